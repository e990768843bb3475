package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
	"github.com/joseph-ayodele/invoice-ocr/internal/utils"
)

// DefaultListLimit caps ListArchivedBatches when the request has no limit.
const DefaultListLimit = 20

// Recognizer is the single-image pipeline.
type Recognizer interface {
	Recognize(ctx context.Context, src entity.ImageSource, format constants.OutputFormat) (*entity.Recognition, error)
	DetectType(ctx context.Context, src entity.ImageSource) (*entity.TypeDetection, error)
}

// Batches is the batch scheduler surface the service needs.
type Batches interface {
	Submit(ctx context.Context, req entity.BatchRequest) (*batch.Handle, error)
	Status(batchID string) (*entity.BatchStatus, error)
	Cancel(batchID string) (int, error)
	Stats() entity.ProcessingStats
}

// envelope wraps every response that is not a batch result.
type envelope struct {
	Success bool                 `json:"success"`
	Data    any                  `json:"data,omitempty"`
	Error   *entity.ErrorPayload `json:"error,omitempty"`
}

type recognizeRequest struct {
	entity.ImageSource
	OutputFormat string `json:"output_format"`
}

type batchRequest struct {
	entity.BatchRequest
	Async bool `json:"async"`
}

type batchIDRequest struct {
	BatchID string `json:"batch_id"`
}

type listRequest struct {
	Limit int `json:"limit"`
}

type InvoiceService struct {
	recognizer Recognizer
	batches    Batches
	archive    repository.BatchRepository
	exports    *export.Service
	schemas    *requestSchemas
	logger     *slog.Logger
}

// NewInvoiceService wires the gRPC surface. archive may be nil, in which
// case the archive methods answer CONFIGURATION_FAILURE.
func NewInvoiceService(rec Recognizer, batches Batches, archive repository.BatchRepository, logger *slog.Logger) (*InvoiceService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schemas, err := compileRequestSchemas()
	if err != nil {
		return nil, fmt.Errorf("request schemas: %w", err)
	}
	return &InvoiceService{
		recognizer: rec,
		batches:    batches,
		archive:    archive,
		exports:    export.NewService(archive, logger),
		schemas:    schemas,
		logger:     logger,
	}, nil
}

func (s *InvoiceService) RecognizeInvoice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	var req recognizeRequest
	if err := s.decode(s.schemas.recognize, in, &req); err != nil {
		return s.failure(MethodRecognizeInvoice, err)
	}
	format, err := constants.ParseOutputFormat(req.OutputFormat)
	if err != nil {
		return s.failure(MethodRecognizeInvoice, common.InvalidInput(err.Error()))
	}
	rec, err := s.recognizer.Recognize(ctx, req.ImageSource, format)
	if err != nil {
		return s.failure(MethodRecognizeInvoice, err)
	}
	s.logger.Info("recognize invoice succeeded", "format", string(format), "duration_ms", time.Since(start).Milliseconds())
	return s.ok(rec)
}

// RecognizeBatch runs a batch to completion and answers the batch result.
// With "async": true it answers the initial status right after submission.
func (s *InvoiceService) RecognizeBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req batchRequest
	if err := s.decode(s.schemas.batch, in, &req); err != nil {
		return s.failure(MethodRecognizeBatch, err)
	}

	if req.Async {
		h, err := s.batches.Submit(context.WithoutCancel(ctx), req.BatchRequest)
		if err != nil {
			return s.failure(MethodRecognizeBatch, err)
		}
		st, err := s.batches.Status(h.ID)
		if err != nil {
			return s.failure(MethodRecognizeBatch, err)
		}
		s.logger.Info("batch accepted", "batch_id", h.ID, "items", len(req.Items))
		return s.ok(st)
	}

	h, err := s.batches.Submit(ctx, req.BatchRequest)
	if err != nil {
		return s.failure(MethodRecognizeBatch, err)
	}
	res, err := h.Wait(ctx)
	if err != nil {
		return s.failure(MethodRecognizeBatch,
			common.NewAppError(common.CodeBatchCancelled, fmt.Sprintf("batch %s: request ended before completion", h.ID), err))
	}
	s.logger.Debug("batch response ready", "batch_id", res.BatchID, "results", len(res.Results))
	return encode(res)
}

func (s *InvoiceService) DetectInvoiceType(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var src entity.ImageSource
	if err := s.decode(s.schemas.detect, in, &src); err != nil {
		return s.failure(MethodDetectInvoiceType, err)
	}
	det, err := s.recognizer.DetectType(ctx, src)
	if err != nil {
		return s.failure(MethodDetectInvoiceType, err)
	}
	s.logger.Info("detect invoice type succeeded", "type", string(det.InvoiceType.Type), "confidence", det.InvoiceType.Confidence)
	return s.ok(det)
}

func (s *InvoiceService) GetBatchStatus(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req batchIDRequest
	if err := s.decode(s.schemas.batchID, in, &req); err != nil {
		return s.failure(MethodGetBatchStatus, err)
	}
	st, err := s.batches.Status(req.BatchID)
	if err != nil {
		return s.failure(MethodGetBatchStatus, err)
	}
	return s.ok(st)
}

func (s *InvoiceService) CancelBatch(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req batchIDRequest
	if err := s.decode(s.schemas.batchID, in, &req); err != nil {
		return s.failure(MethodCancelBatch, err)
	}
	n, err := s.batches.Cancel(req.BatchID)
	if err != nil {
		return s.failure(MethodCancelBatch, err)
	}
	return s.ok(map[string]any{"batch_id": req.BatchID, "cancelled_tasks": n})
}

func (s *InvoiceService) GetProcessingStats(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return s.ok(s.batches.Stats())
}

func (s *InvoiceService) GetArchivedBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req batchIDRequest
	if err := s.decode(s.schemas.batchID, in, &req); err != nil {
		return s.failure(MethodGetArchivedBatch, err)
	}
	if s.archive == nil {
		return s.failure(MethodGetArchivedBatch, errNoArchive)
	}
	res, err := s.archive.GetBatch(ctx, req.BatchID)
	if err != nil {
		return s.failure(MethodGetArchivedBatch, err)
	}
	return s.ok(res)
}

func (s *InvoiceService) ListArchivedBatches(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRequest
	if err := s.decode(s.schemas.list, in, &req); err != nil {
		return s.failure(MethodListArchivedBatches, err)
	}
	if s.archive == nil {
		return s.failure(MethodListArchivedBatches, errNoArchive)
	}
	if req.Limit == 0 {
		req.Limit = DefaultListLimit
	}
	list, err := s.archive.ListBatches(ctx, req.Limit)
	if err != nil {
		return s.failure(MethodListArchivedBatches, err)
	}
	if list == nil {
		list = []entity.BatchSummary{}
	}
	return s.ok(map[string]any{"batches": list})
}

// ExportBatch renders an archived batch as an XLSX workbook (base64).
func (s *InvoiceService) ExportBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req batchIDRequest
	if err := s.decode(s.schemas.batchID, in, &req); err != nil {
		return s.failure(MethodExportBatch, err)
	}
	if s.archive == nil {
		return s.failure(MethodExportBatch, errNoArchive)
	}
	content, err := s.exports.ArchivedBatchXLSX(ctx, req.BatchID)
	if err != nil {
		return s.failure(MethodExportBatch, err)
	}
	return s.ok(map[string]any{
		"batch_id":       req.BatchID,
		"filename":       fmt.Sprintf("invoices-%s.xlsx", req.BatchID),
		"content_base64": base64.StdEncoding.EncodeToString(content),
	})
}

var errNoArchive = common.ConfigurationFailure("batch archive is not configured", nil)

// decode validates the request against schema and unmarshals it into dst.
func (s *InvoiceService) decode(schema *jsonschema.Schema, in *structpb.Struct, dst any) error {
	b, err := utils.StructJSON(in)
	if err != nil {
		return common.InvalidInput(fmt.Sprintf("malformed request: %v", err))
	}
	if err := utils.ValidateJSON(schema, b); err != nil {
		return common.InvalidInput(err.Error())
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return common.InvalidInput(fmt.Sprintf("malformed request: %v", err))
	}
	return nil
}

func (s *InvoiceService) ok(data any) (*structpb.Struct, error) {
	return encode(envelope{Success: true, Data: data})
}

// failure answers a tagged error envelope. Only encoding problems surface as
// gRPC status errors.
func (s *InvoiceService) failure(method string, err error) (*structpb.Struct, error) {
	payload := &entity.ErrorPayload{Code: common.CodeOf(err), Message: common.MessageOf(err)}
	s.logger.Warn("request failed", "method", method, "code", payload.Code, "error", err)
	return encode(envelope{Success: false, Error: payload})
}

func encode(v any) (*structpb.Struct, error) {
	out, err := utils.ToStruct(v)
	if err != nil {
		return nil, common.ToStatus(common.NewAppError(common.CodeProcessing, "encode response", err))
	}
	return out, nil
}
