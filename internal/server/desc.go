package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "invoiceocr.v1.InvoiceService"

// Method names of InvoiceService.
const (
	MethodRecognizeInvoice    = "RecognizeInvoice"
	MethodRecognizeBatch      = "RecognizeBatch"
	MethodDetectInvoiceType   = "DetectInvoiceType"
	MethodGetBatchStatus      = "GetBatchStatus"
	MethodCancelBatch         = "CancelBatch"
	MethodGetProcessingStats  = "GetProcessingStats"
	MethodGetArchivedBatch    = "GetArchivedBatch"
	MethodListArchivedBatches = "ListArchivedBatches"
	MethodExportBatch         = "ExportBatch"
)

// InvoiceServiceServer is the server API. Requests and responses are JSON
// objects carried as google.protobuf.Struct.
type InvoiceServiceServer interface {
	RecognizeInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecognizeBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DetectInvoiceType(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBatchStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProcessingStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetArchivedBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListArchivedBatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(InvoiceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InvoiceServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InvoiceServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// InvoiceServiceDesc describes InvoiceService for grpc.Server.RegisterService.
var InvoiceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRecognizeInvoice, InvoiceServiceServer.RecognizeInvoice),
		unary(MethodRecognizeBatch, InvoiceServiceServer.RecognizeBatch),
		unary(MethodDetectInvoiceType, InvoiceServiceServer.DetectInvoiceType),
		unary(MethodGetBatchStatus, InvoiceServiceServer.GetBatchStatus),
		unary(MethodCancelBatch, InvoiceServiceServer.CancelBatch),
		unary(MethodGetProcessingStats, InvoiceServiceServer.GetProcessingStats),
		unary(MethodGetArchivedBatch, InvoiceServiceServer.GetArchivedBatch),
		unary(MethodListArchivedBatches, InvoiceServiceServer.ListArchivedBatches),
		unary(MethodExportBatch, InvoiceServiceServer.ExportBatch),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoiceocr/v1/invoice_service.proto",
}

func RegisterInvoiceServiceServer(s grpc.ServiceRegistrar, srv InvoiceServiceServer) {
	s.RegisterService(&InvoiceServiceDesc, srv)
}

// FullMethod returns "/invoiceocr.v1.InvoiceService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Client calls InvoiceService over any client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a JSON-shaped request.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
