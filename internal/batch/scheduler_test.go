package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

type fakeRecognizer struct {
	running, peak int32
	delay         time.Duration
	gate          chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, src entity.ImageSource, _ constants.OutputFormat) (*entity.Recognition, error) {
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	switch {
	case strings.Contains(src.ImageURL, "bad"):
		return nil, common.AcquisitionFailure("download image", fmt.Errorf("http status 404"))
	case strings.Contains(src.ImageURL, "panic"):
		panic("decoder exploded")
	}
	_, taskID := common.TaskFromContext(ctx)
	num := "id-" + taskID
	return &entity.Recognition{Invoice: &entity.Invoice{BasicInfo: entity.BasicInfo{InvoiceNumber: &num}}}, nil
}

func items(urls ...string) []entity.BatchItem {
	out := make([]entity.BatchItem, len(urls))
	for i, u := range urls {
		out[i] = entity.BatchItem{ID: fmt.Sprintf("img-%d", i), ImageSource: entity.ImageSource{ImageURL: "https://example.com/" + u}}
	}
	return out
}

func testConfig() common.BatchConfig {
	cfg := common.DefaultConfig().Batch
	cfg.ParallelWorkers = 4
	cfg.MaxBatchSize = 10
	return cfg
}

func TestProcessPreservesOrderAndIsolatesFailures(t *testing.T) {
	rec := &fakeRecognizer{delay: 2 * time.Millisecond}
	s := NewScheduler(testConfig(), rec, nil)

	res, err := s.Process(context.Background(), entity.BatchRequest{
		Items: items("a.png", "bad.png", "c.png", "panic.png", "e.png"),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Success || res.BatchID == "" {
		t.Fatalf("unexpected envelope %+v", res)
	}
	if len(res.Results) != 5 {
		t.Fatalf("results = %d", len(res.Results))
	}
	for i, o := range res.Results {
		if o.ID != fmt.Sprintf("img-%d", i) {
			t.Fatalf("result %d has id %s", i, o.ID)
		}
		if o.ProcessingTime == nil {
			t.Errorf("result %d has no processing time", i)
		}
	}
	for _, i := range []int{0, 2, 4} {
		o := res.Results[i]
		if !o.Success || *o.Data.Invoice.BasicInfo.InvoiceNumber != "id-"+o.ID {
			t.Errorf("result %d = %+v", i, o)
		}
	}
	if e := res.Results[1].Error; res.Results[1].Success || e.Code != common.CodeAcquisitionFailure {
		t.Errorf("bad item = %+v", res.Results[1])
	}
	if e := res.Results[3].Error; res.Results[3].Success || e.Code != common.CodeProcessing || !strings.Contains(e.Message, "decoder exploded") {
		t.Errorf("panicking item = %+v", res.Results[3])
	}

	st := res.Statistics
	if st.Total != 5 || st.Successful != 3 || st.Failed != 2 || st.Successful+st.Failed != st.Total {
		t.Errorf("statistics = %+v", st)
	}
	if st.SuccessRate != 0.6 {
		t.Errorf("success rate = %v", st.SuccessRate)
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	cases := []struct {
		requested, configured, want int
	}{
		{2, 4, 2},
		{10, 3, 3},
		{0, 3, 3},
	}
	for _, tc := range cases {
		cfg := testConfig()
		cfg.ParallelWorkers = tc.configured
		rec := &fakeRecognizer{delay: 5 * time.Millisecond}
		s := NewScheduler(cfg, rec, nil)
		if got := s.Concurrency(tc.requested); got != tc.want {
			t.Errorf("Concurrency(%d) with %d workers = %d, want %d", tc.requested, tc.configured, got, tc.want)
		}
		_, err := s.Process(context.Background(), entity.BatchRequest{
			Items:          items("1", "2", "3", "4", "5", "6", "7", "8"),
			MaxConcurrency: tc.requested,
		})
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if peak := atomic.LoadInt32(&rec.peak); int(peak) > tc.want {
			t.Errorf("peak %d exceeds limit %d", peak, tc.want)
		}
	}
}

func TestValidateRejectsWholeBatch(t *testing.T) {
	s := NewScheduler(testConfig(), &fakeRecognizer{}, nil)
	many := make([]string, 11)
	for i := range many {
		many[i] = "x.png"
	}
	dup := items("a.png", "b.png")
	dup[1].ID = dup[0].ID
	noID := items("a.png")
	noID[0].ID = ""
	noSource := []entity.BatchItem{{ID: "x"}}
	badData := []entity.BatchItem{{ID: "x", ImageSource: entity.ImageSource{ImageData: "aGVsbG8="}}}
	badURL := []entity.BatchItem{{ID: "x", ImageSource: entity.ImageSource{ImageURL: "ftp://host/a.png"}}}

	cases := map[string]entity.BatchRequest{
		"empty":         {},
		"too large":     {Items: items(many...)},
		"duplicate id":  {Items: dup},
		"missing id":    {Items: noID},
		"no source":     {Items: noSource},
		"bad payload":   {Items: badData},
		"bad url":       {Items: badURL},
		"bad format":    {Items: items("a.png"), OutputFormat: "yaml"},
		"negative conc": {Items: items("a.png"), MaxConcurrency: -1},
	}
	for name, req := range cases {
		_, err := s.Process(context.Background(), req)
		if common.CodeOf(err) != common.CodeInvalidInput {
			t.Errorf("%s: code = %q (%v)", name, common.CodeOf(err), err)
		}
	}
	if st := s.Stats(); st.TotalBatches != 0 {
		t.Fatalf("rejected batches must not be registered: %+v", st)
	}
}

func TestValidateReportsFirstDuplicate(t *testing.T) {
	s := NewScheduler(testConfig(), &fakeRecognizer{}, nil)
	req := entity.BatchRequest{Items: items("a.png", "b.png", "c.png")}
	for i := range req.Items {
		req.Items[i].ID = "same"
	}

	msg := common.MessageOf(s.Validate(req))
	for _, want := range []string{"items[1].id: duplicates items[0].id", "items[2].id: duplicates items[0].id"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q does not contain %q", msg, want)
		}
	}
	if strings.Contains(msg, "duplicates items[1].id") {
		t.Errorf("later duplicates must point at the first occurrence: %q", msg)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCancelFailsPendingTasks(t *testing.T) {
	gate := make(chan struct{})
	rec := &fakeRecognizer{gate: gate}
	s := NewScheduler(testConfig(), rec, nil)

	h, err := s.Submit(context.Background(), entity.BatchRequest{Items: items("a", "b", "c"), MaxConcurrency: 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&rec.running) == 1 })

	st, err := s.Status(h.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.StatusCounts["processing"] != 1 || st.StatusCounts["pending"] != 2 || st.IsComplete {
		t.Fatalf("status before cancel = %+v", st)
	}

	n, err := s.Cancel(h.ID)
	if err != nil || n != 2 {
		t.Fatalf("Cancel = %d, %v", n, err)
	}
	close(gate)

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Statistics.Successful != 1 || res.Statistics.Failed != 2 {
		t.Fatalf("statistics = %+v", res.Statistics)
	}
	for _, o := range res.Results {
		if o.Success {
			continue
		}
		if o.Error.Code != common.CodeBatchCancelled || o.Error.Message != "batch cancelled" || o.ProcessingTime != nil {
			t.Errorf("cancelled outcome = %+v", o)
		}
	}

	st, _ = s.Status(h.ID)
	if !st.IsComplete || st.Progress != 1 {
		t.Fatalf("status after finish = %+v", st)
	}
	if n, _ := s.Cancel(h.ID); n != 0 {
		t.Fatalf("second cancel touched %d tasks", n)
	}
}

func TestUnknownBatch(t *testing.T) {
	s := NewScheduler(testConfig(), &fakeRecognizer{}, nil)
	if _, err := s.Status("nope"); common.CodeOf(err) != common.CodeNotFound {
		t.Errorf("Status: %v", err)
	}
	if _, err := s.Cancel("nope"); common.CodeOf(err) != common.CodeNotFound {
		t.Errorf("Cancel: %v", err)
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCleanupAndStats(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewScheduler(testConfig(), &fakeRecognizer{}, nil, withClock(clk.Now))

	if _, err := s.Process(context.Background(), entity.BatchRequest{Items: items("a", "bad")}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	clk.Advance(2 * time.Hour)
	if _, err := s.Process(context.Background(), entity.BatchRequest{Items: items("c")}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	st := s.Stats()
	want := entity.ProcessingStats{TotalBatches: 2, TotalTasks: 3, CompletedTasks: 2, FailedTasks: 1, SuccessRate: 0.667, MaxConcurrent: 4}
	if st != want {
		t.Fatalf("Stats = %+v, want %+v", st, want)
	}

	if n := s.Cleanup(time.Hour); n != 1 {
		t.Fatalf("Cleanup removed %d, want 1", n)
	}
	if n := s.Cleanup(time.Hour); n != 0 {
		t.Fatalf("second Cleanup removed %d", n)
	}
	if st := s.Stats(); st.TotalBatches != 1 {
		t.Fatalf("after cleanup: %+v", st)
	}
}

func TestCleanupKeepsActiveBatches(t *testing.T) {
	gate := make(chan struct{})
	rec := &fakeRecognizer{gate: gate}
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewScheduler(testConfig(), rec, nil, withClock(clk.Now))

	h, err := s.Submit(context.Background(), entity.BatchRequest{Items: items("a")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&rec.running) == 1 })
	clk.Advance(48 * time.Hour)
	if n := s.Cleanup(time.Hour); n != 0 {
		t.Fatalf("active batch removed")
	}
	if st := s.Stats(); st.ActiveBatches != 1 {
		t.Fatalf("stats = %+v", st)
	}
	close(gate)
	if _, err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

type recordingArchiver struct {
	mu      sync.Mutex
	batches []string
}

func (a *recordingArchiver) SaveBatch(_ context.Context, res *entity.BatchResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches = append(a.batches, res.BatchID)
	return nil
}

func TestArchiveAndEvict(t *testing.T) {
	cfg := testConfig()
	cfg.EvictOnComplete = true
	arch := &recordingArchiver{}
	s := NewScheduler(cfg, &fakeRecognizer{}, nil, WithArchiver(arch))

	res, err := s.Process(context.Background(), entity.BatchRequest{Items: items("a")})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(arch.batches) != 1 || arch.batches[0] != res.BatchID {
		t.Fatalf("archived = %v", arch.batches)
	}
	if _, err := s.Status(res.BatchID); common.CodeOf(err) != common.CodeNotFound {
		t.Fatalf("evicted batch still registered: %v", err)
	}
}

func TestStatistics(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []entity.BatchTask{
		{ID: "a", Status: constants.TaskCompleted, StartTime: t0, EndTime: t0.Add(1500 * time.Millisecond)},
		{ID: "b", Status: constants.TaskFailed, StartTime: t0, EndTime: t0.Add(500 * time.Millisecond)},
		{ID: "c", Status: constants.TaskCompleted, StartTime: t0, EndTime: t0.Add(1 * time.Second)},
		{ID: "d", Status: constants.TaskFailed, EndTime: t0},
	}
	got := Statistics(tasks, 2*time.Second)
	want := entity.BatchStatistics{
		Total: 4, Successful: 2, Failed: 2, SuccessRate: 0.5,
		TotalTime: 2, AvgProcessingTime: 1, MaxProcessingTime: 1.5, MinProcessingTime: 0.5, Throughput: 2,
	}
	if got != want {
		t.Fatalf("Statistics = %+v, want %+v", got, want)
	}
	if empty := Statistics(nil, 0); empty.SuccessRate != 0 || empty.Throughput != 0 {
		t.Fatalf("empty statistics = %+v", empty)
	}
}

func TestRegistryTransitions(t *testing.T) {
	r := NewMemoryRegistry()
	now := time.Now()
	if err := r.Create("b", now, []entity.BatchTask{{ID: "t", Status: constants.TaskPending}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create("b", now, nil); err == nil {
		t.Fatal("duplicate batch accepted")
	}
	if _, err := r.Transition("b", 0, Update{Status: constants.TaskCompleted, At: now}); err == nil {
		t.Fatal("pending -> completed accepted")
	}
	if _, err := r.Transition("b", 0, Update{Status: constants.TaskProcessing, At: now}); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	if _, err := r.Transition("b", 0, Update{Status: constants.TaskCompleted, At: now}); err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	if _, err := r.Transition("b", 0, Update{Status: constants.TaskFailed, At: now}); err == nil {
		t.Fatal("completed -> failed accepted")
	}
	snap, _ := r.Get("b")
	snap.Tasks[0].Status = constants.TaskPending
	if again, _ := r.Get("b"); again.Tasks[0].Status != constants.TaskCompleted {
		t.Fatal("snapshot aliases registry state")
	}
}

func TestSweeper(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewScheduler(testConfig(), &fakeRecognizer{}, nil, withClock(clk.Now))
	if _, err := NewSweeper(s, "every ten minutes", time.Hour, nil); common.CodeOf(err) != common.CodeConfiguration {
		t.Fatalf("invalid spec: %v", err)
	}
	sw, err := NewSweeper(s, "@every 10m", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	if _, err := s.Process(context.Background(), entity.BatchRequest{Items: items("a")}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	clk.Advance(3 * time.Hour)
	sw.Sweep()
	if st := s.Stats(); st.TotalBatches != 0 {
		t.Fatalf("sweep left %d batches", st.TotalBatches)
	}
	sw.Start()
	sw.Stop(context.Background())
}
