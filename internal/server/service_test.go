package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice/invoicetest"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/pipeline"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

type harness struct {
	client *Client
	conn   *grpc.ClientConn
}

func newHarness(t *testing.T, withArchive bool) *harness {
	t.Helper()
	ctx := context.Background()
	cfg := common.DefaultConfig()

	asm, err := invoice.NewAssembler(nil, nil)
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	engine := ocr.EngineFunc(func(context.Context, *imaging.Image) (entity.OCRResult, error) {
		return invoicetest.SampleOCR(), nil
	})
	proc := pipeline.NewProcessor(nil, imaging.NewAcquirer(cfg.OCR, nil), engine, asm)

	var (
		archive repository.BatchRepository
		opts    []batch.Option
	)
	if withArchive {
		dbCfg := cfg.Database
		dbCfg.DSN = fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", t.Name())
		db, err := repository.Open(ctx, dbCfg, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { repository.Close(db, nil) })
		if err := repository.Migrate(ctx, db); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		archive = repository.NewBatchRepository(db, nil)
		opts = append(opts, batch.WithArchiver(archive))
	}
	sched := batch.NewScheduler(cfg.Batch, proc, nil, opts...)

	svc, err := NewInvoiceService(proc, sched, archive, nil)
	if err != nil {
		t.Fatalf("NewInvoiceService: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterInvoiceServiceServer(srv, svc)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{client: NewClient(conn), conn: conn}
}

func (h *harness) call(t *testing.T, method string, req map[string]any) map[string]any {
	t.Helper()
	out, err := h.client.Call(context.Background(), method, req)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return out.AsMap()
}

// lookup walks nested objects by key.
func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, k := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func wantFailure(t *testing.T, resp map[string]any, code string) {
	t.Helper()
	if resp["success"] != false {
		t.Fatalf("expected failure envelope, got %v", resp)
	}
	if got := lookup(resp, "error", "code"); got != code {
		t.Fatalf("error code = %v, want %s (%v)", got, code, resp["error"])
	}
	if msg, _ := lookup(resp, "error", "message").(string); msg == "" {
		t.Fatal("failure envelope without a message")
	}
}

func TestRecognizeInvoice(t *testing.T) {
	h := newHarness(t, false)

	resp := h.call(t, MethodRecognizeInvoice, map[string]any{"image_data": invoicetest.PNGPayload()})
	if resp["success"] != true {
		t.Fatalf("response = %v", resp)
	}
	if got := lookup(resp, "data", "basic_info", "invoice_number"); got != "12345678" {
		t.Fatalf("invoice_number = %v", got)
	}
	if got := lookup(resp, "data", "invoice_type", "raw_type"); got != "vat_invoice" {
		t.Fatalf("raw_type = %v", got)
	}

	raw := h.call(t, MethodRecognizeInvoice, map[string]any{"image_data": invoicetest.PNGPayload(), "output_format": "RAW"})
	if _, ok := lookup(raw, "data", "fragments").([]any); !ok {
		t.Fatalf("raw response = %v", raw)
	}

	wantFailure(t, h.call(t, MethodRecognizeInvoice, map[string]any{"image_data": invoicetest.PNGPayload(), "output_format": "xml"}), common.CodeInvalidInput)
	wantFailure(t, h.call(t, MethodRecognizeInvoice, map[string]any{}), common.CodeInvalidInput)
	wantFailure(t, h.call(t, MethodRecognizeInvoice, map[string]any{"image_data": 42.0}), common.CodeInvalidInput)
}

func TestDetectInvoiceType(t *testing.T) {
	h := newHarness(t, false)
	resp := h.call(t, MethodDetectInvoiceType, map[string]any{"image_data": invoicetest.PNGPayload()})
	if resp["success"] != true {
		t.Fatalf("response = %v", resp)
	}
	if got := lookup(resp, "data", "invoice_type", "type"); got != "vat_invoice" {
		t.Fatalf("type = %v", got)
	}
	cands, _ := lookup(resp, "data", "candidates").([]any)
	if len(cands) == 0 || len(cands) > pipeline.CandidateCount {
		t.Fatalf("candidates = %v", cands)
	}
}

func TestRecognizeBatchAndArchive(t *testing.T) {
	h := newHarness(t, true)
	items := []any{
		map[string]any{"id": "first", "image_data": invoicetest.PNGPayload()},
		map[string]any{"id": "second", "image_data": invoicetest.PNGPayload()},
	}
	resp := h.call(t, MethodRecognizeBatch, map[string]any{"items": items, "max_concurrency": 2})
	if resp["success"] != true {
		t.Fatalf("batch response = %v", resp)
	}
	results, _ := resp["results"].([]any)
	if len(results) != 2 || lookup(results[0].(map[string]any), "id") != "first" {
		t.Fatalf("results = %v", results)
	}
	if got := lookup(resp, "statistics", "successful"); got != 2.0 {
		t.Fatalf("successful = %v", got)
	}
	id, _ := resp["batch_id"].(string)

	status := h.call(t, MethodGetBatchStatus, map[string]any{"batch_id": id})
	if lookup(status, "data", "is_complete") != true || lookup(status, "data", "progress") != 1.0 {
		t.Fatalf("status = %v", status)
	}

	archived := h.call(t, MethodGetArchivedBatch, map[string]any{"batch_id": id})
	if lookup(archived, "data", "batch_id") != id {
		t.Fatalf("archived = %v", archived)
	}
	list := h.call(t, MethodListArchivedBatches, map[string]any{"limit": 5})
	if batches, _ := lookup(list, "data", "batches").([]any); len(batches) != 1 {
		t.Fatalf("list = %v", list)
	}

	exp := h.call(t, MethodExportBatch, map[string]any{"batch_id": id})
	content, err := base64.StdEncoding.DecodeString(lookup(exp, "data", "content_base64").(string))
	if err != nil || !bytes.HasPrefix(content, []byte("PK")) {
		t.Fatalf("export content is not a zip container (err=%v)", err)
	}

	stats := h.call(t, MethodGetProcessingStats, nil)
	if lookup(stats, "data", "total_batches") != 1.0 || lookup(stats, "data", "completed_tasks") != 2.0 {
		t.Fatalf("stats = %v", stats)
	}

	wantFailure(t, h.call(t, MethodGetArchivedBatch, map[string]any{"batch_id": "missing"}), common.CodeNotFound)
}

func TestRecognizeBatchRejections(t *testing.T) {
	h := newHarness(t, false)

	wantFailure(t, h.call(t, MethodRecognizeBatch, map[string]any{"items": []any{}}), common.CodeInvalidInput)
	wantFailure(t, h.call(t, MethodRecognizeBatch, map[string]any{}), common.CodeInvalidInput)

	bad := []any{
		map[string]any{"id": "ok", "image_data": invoicetest.PNGPayload()},
		map[string]any{"id": "bad", "image_url": "ftp://example.com/a.png"},
	}
	wantFailure(t, h.call(t, MethodRecognizeBatch, map[string]any{"items": bad}), common.CodeInvalidInput)
	wantFailure(t, h.call(t, MethodRecognizeBatch, map[string]any{"items": bad[:1], "max_concurrency": -1}), common.CodeInvalidInput)
}

func TestAsyncBatchStatusAndCancel(t *testing.T) {
	h := newHarness(t, false)
	items := []any{map[string]any{"id": "a", "image_data": invoicetest.PNGPayload()}}
	resp := h.call(t, MethodRecognizeBatch, map[string]any{"items": items, "async": true})
	if resp["success"] != true {
		t.Fatalf("async response = %v", resp)
	}
	id, _ := lookup(resp, "data", "batch_id").(string)
	if id == "" || lookup(resp, "data", "total_tasks") != 1.0 {
		t.Fatalf("async status = %v", resp)
	}

	cancel := h.call(t, MethodCancelBatch, map[string]any{"batch_id": id})
	if cancel["success"] != true || lookup(cancel, "data", "batch_id") != id {
		t.Fatalf("cancel = %v", cancel)
	}

	wantFailure(t, h.call(t, MethodGetBatchStatus, map[string]any{"batch_id": "nope"}), common.CodeNotFound)
	wantFailure(t, h.call(t, MethodCancelBatch, map[string]any{"batch_id": "nope"}), common.CodeNotFound)
	wantFailure(t, h.call(t, MethodGetBatchStatus, map[string]any{}), common.CodeInvalidInput)
}

func TestArchiveNotConfigured(t *testing.T) {
	h := newHarness(t, false)
	for _, m := range []string{MethodGetArchivedBatch, MethodExportBatch} {
		wantFailure(t, h.call(t, m, map[string]any{"batch_id": "x"}), common.CodeConfiguration)
	}
	wantFailure(t, h.call(t, MethodListArchivedBatches, nil), common.CodeConfiguration)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, false)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestConnectDB(t *testing.T) {
	cfg := common.DefaultConfig().Database
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", t.Name())
	db, err := ConnectDB(context.Background(), cfg, time.Second, nil)
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	defer repository.Close(db, nil)
	list, err := repository.NewBatchRepository(db, nil).ListBatches(context.Background(), 5)
	if err != nil || len(list) != 0 {
		t.Fatalf("fresh archive: %v %v", list, err)
	}
}
