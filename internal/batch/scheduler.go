// Package batch fans invoice recognition out over many images with bounded
// parallelism, isolating failures per task and aggregating statistics.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/utils"
)

const cancelMessage = "batch cancelled"

// Recognizer turns one image source into a recognition result.
type Recognizer interface {
	Recognize(ctx context.Context, src entity.ImageSource, format constants.OutputFormat) (*entity.Recognition, error)
}

// Archiver persists finished batches.
type Archiver interface {
	SaveBatch(ctx context.Context, res *entity.BatchResult) error
}

type Scheduler struct {
	cfg        common.BatchConfig
	recognizer Recognizer
	registry   Registry
	archiver   Archiver
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Scheduler)

// WithRegistry replaces the in-memory task registry.
func WithRegistry(r Registry) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithArchiver stores every finished batch result.
func WithArchiver(a Archiver) Option {
	return func(s *Scheduler) { s.archiver = a }
}

func withClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(cfg common.BatchConfig, recognizer Recognizer, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ParallelWorkers <= 0 {
		cfg.ParallelWorkers = 1
	}
	s := &Scheduler{
		cfg:        cfg,
		recognizer: recognizer,
		registry:   NewMemoryRegistry(),
		logger:     logger,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle is a running batch.
type Handle struct {
	ID   string
	done chan struct{}
	res  *entity.BatchResult
}

// Done is closed when every task is terminal.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (*entity.BatchResult, error) {
	select {
	case <-h.done:
		return h.res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Validate rejects the whole request when any item is unusable.
func (s *Scheduler) Validate(req entity.BatchRequest) error {
	if len(req.Items) == 0 {
		return common.InvalidInput("image list is empty")
	}
	if s.cfg.MaxBatchSize > 0 && len(req.Items) > s.cfg.MaxBatchSize {
		return common.InvalidInput(fmt.Sprintf("batch size %d exceeds the limit of %d images", len(req.Items), s.cfg.MaxBatchSize))
	}
	if _, err := constants.ParseOutputFormat(string(req.OutputFormat)); err != nil {
		return common.InvalidInput(err.Error())
	}
	if req.MaxConcurrency < 0 {
		return common.InvalidInput("max_concurrency must not be negative")
	}

	v := common.NewValidator()
	seen := make(map[string]int, len(req.Items))
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		v.Field(field+".id", it.ID, common.Required)
		if prev, dup := seen[it.ID]; dup && it.ID != "" {
			v.Fail(field+".id", it.ID, fmt.Sprintf("duplicates items[%d].id", prev))
		} else {
			seen[it.ID] = i
		}
		if it.IsEmpty() {
			v.Fail(field, nil, "image_data or image_url is required")
			continue
		}
		if it.ImageData != "" {
			v.Field(field+".image_data", it.ImageData, common.ImageData(imaging.ValidatePayload))
		} else {
			v.Field(field+".image_url", it.ImageURL, common.ImageURL)
		}
	}
	return v.Error()
}

// Concurrency is min(requested, configured); zero requests the configured value.
func (s *Scheduler) Concurrency(requested int) int {
	n := s.cfg.ParallelWorkers
	if requested > 0 && requested < n {
		n = requested
	}
	return n
}

// Submit validates req, registers one Pending task per item under a fresh
// batch id and starts the batch in the background. Cancelling ctx fails the
// tasks still waiting for a slot.
func (s *Scheduler) Submit(ctx context.Context, req entity.BatchRequest) (*Handle, error) {
	if err := s.Validate(req); err != nil {
		s.logger.Warn("batch rejected", "items", len(req.Items), "error", err)
		return nil, err
	}
	format, _ := constants.ParseOutputFormat(string(req.OutputFormat))

	id := uuid.NewString()
	createdAt := s.now()
	tasks := make([]entity.BatchTask, len(req.Items))
	for i, it := range req.Items {
		tasks[i] = entity.BatchTask{ID: it.ID, Source: it.ImageSource, Status: constants.TaskPending}
	}
	if err := s.registry.Create(id, createdAt, tasks); err != nil {
		return nil, common.NewAppError(common.CodeProcessing, "register batch", err)
	}

	h := &Handle{ID: id, done: make(chan struct{})}
	workers := s.Concurrency(req.MaxConcurrency)
	s.logger.Info("batch started", "batch_id", id, "tasks", len(tasks), "concurrency", workers, "format", string(format))

	go func() {
		defer close(h.done)
		h.res = s.run(ctx, id, createdAt, tasks, workers, format)
	}()
	return h, nil
}

// Process runs req to completion.
func (s *Scheduler) Process(ctx context.Context, req entity.BatchRequest) (*entity.BatchResult, error) {
	h, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

func (s *Scheduler) run(ctx context.Context, id string, createdAt time.Time, tasks []entity.BatchTask, workers int, format constants.OutputFormat) *entity.BatchResult {
	start := s.now()
	sem := semaphore.NewWeighted(int64(workers))
	var g errgroup.Group

	for i := range tasks {
		idx, task := i, tasks[i]
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				s.fail(id, idx, common.CodeBatchCancelled, cancelMessage)
				return nil
			}
			defer sem.Release(1)
			s.runTask(ctx, id, idx, task, format)
			return nil
		})
	}
	_ = g.Wait()
	wall := s.now().Sub(start)

	snap, ok := s.registry.Get(id)
	if !ok {
		snap = Snapshot{ID: id, CreatedAt: createdAt, Tasks: tasks}
	}
	res := &entity.BatchResult{
		Success:    true,
		BatchID:    id,
		Results:    Outcomes(snap.Tasks),
		Statistics: Statistics(snap.Tasks, wall),
		CreatedAt:  createdAt,
	}
	st := res.Statistics
	s.logger.Info("batch finished",
		"batch_id", id,
		"successful", st.Successful,
		"failed", st.Failed,
		"total", st.Total,
		"duration_ms", wall.Milliseconds(),
	)

	if s.archiver != nil {
		if err := s.archiver.SaveBatch(ctx, res); err != nil {
			s.logger.Error("batch archive failed", "batch_id", id, "error", err)
		}
	}
	if s.cfg.EvictOnComplete {
		s.registry.Delete(id)
	}
	return res
}

func (s *Scheduler) runTask(ctx context.Context, batchID string, idx int, task entity.BatchTask, format constants.OutputFormat) {
	if _, err := s.registry.Transition(batchID, idx, Update{Status: constants.TaskProcessing, At: s.now()}); err != nil {
		// cancelled while waiting for a slot
		s.logger.Debug("task skipped", "batch_id", batchID, "task_id", task.ID, "error", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "batch_id", batchID, "task_id", task.ID, "panic", r)
			s.fail(batchID, idx, common.CodeProcessing, fmt.Sprintf("task panicked: %v", r))
		}
	}()

	rec, err := s.recognizer.Recognize(common.WithTask(ctx, batchID, task.ID), task.Source, format)
	if err != nil {
		s.logger.Error("task failed", "batch_id", batchID, "task_id", task.ID, "error", err)
		s.fail(batchID, idx, common.CodeOf(err), common.MessageOf(err))
		return
	}
	if _, err := s.registry.Transition(batchID, idx, Update{Status: constants.TaskCompleted, At: s.now(), Result: rec}); err != nil {
		s.logger.Error("task completion not recorded", "batch_id", batchID, "task_id", task.ID, "error", err)
	}
}

func (s *Scheduler) fail(batchID string, idx int, code, msg string) {
	u := Update{Status: constants.TaskFailed, At: s.now(), Error: &entity.ErrorPayload{Code: code, Message: msg}}
	if _, err := s.registry.Transition(batchID, idx, u); err != nil && !errors.Is(err, ErrInvalidTransition) {
		s.logger.Error("task failure not recorded", "batch_id", batchID, "index", idx, "error", err)
	}
}

// Status reports per-status counts and progress of a registered batch.
func (s *Scheduler) Status(batchID string) (*entity.BatchStatus, error) {
	snap, ok := s.registry.Get(batchID)
	if !ok {
		return nil, common.NotFound(fmt.Sprintf("batch %s not found", batchID))
	}
	counts := make(map[string]int, len(constants.AllTaskStatuses))
	for _, st := range constants.AllTaskStatuses {
		counts[string(st)] = 0
	}
	done := 0
	for _, t := range snap.Tasks {
		counts[string(t.Status)]++
		if t.Status.IsTerminal() {
			done++
		}
	}
	var progress float64
	if n := len(snap.Tasks); n > 0 {
		progress = utils.Round(float64(done)/float64(n), 3)
	}
	return &entity.BatchStatus{
		BatchID:      batchID,
		TotalTasks:   len(snap.Tasks),
		StatusCounts: counts,
		Progress:     progress,
		IsComplete:   done == len(snap.Tasks),
	}, nil
}

// Cancel fails every task that has not started yet. Running tasks finish.
func (s *Scheduler) Cancel(batchID string) (int, error) {
	reason := entity.ErrorPayload{Code: common.CodeBatchCancelled, Message: cancelMessage}
	n, err := s.registry.CancelPending(batchID, reason, s.now())
	if errors.Is(err, ErrBatchNotFound) {
		return 0, common.NotFound(fmt.Sprintf("batch %s not found", batchID))
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("batch cancelled", "batch_id", batchID, "cancelled_tasks", n)
	return n, nil
}

// Cleanup drops fully terminal batches whose last task ended more than
// maxAge ago.
func (s *Scheduler) Cleanup(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	var expired []string
	for _, snap := range s.registry.List() {
		if snap.Terminal() && snap.LastEnd().Before(cutoff) {
			expired = append(expired, snap.ID)
		}
	}
	n := s.registry.Delete(expired...)
	if n > 0 {
		s.logger.Info("expired batches removed", "count", n)
	}
	return n
}

// Stats aggregates over every registered batch.
func (s *Scheduler) Stats() entity.ProcessingStats {
	st := entity.ProcessingStats{MaxConcurrent: s.cfg.ParallelWorkers}
	for _, snap := range s.registry.List() {
		st.TotalBatches++
		if !snap.Terminal() {
			st.ActiveBatches++
		}
		st.TotalTasks += len(snap.Tasks)
		for _, t := range snap.Tasks {
			switch t.Status {
			case constants.TaskCompleted:
				st.CompletedTasks++
			case constants.TaskFailed:
				st.FailedTasks++
			}
		}
	}
	if st.TotalTasks > 0 {
		st.SuccessRate = utils.Round(float64(st.CompletedTasks)/float64(st.TotalTasks), 3)
	}
	return st
}

// Outcomes converts tasks into per-item results, preserving order.
func Outcomes(tasks []entity.BatchTask) []entity.TaskOutcome {
	out := make([]entity.TaskOutcome, len(tasks))
	for i, t := range tasks {
		o := entity.TaskOutcome{ID: t.ID, Success: t.Status == constants.TaskCompleted}
		if o.Success {
			o.Data = t.Result
		} else {
			o.Error = t.Error
			if o.Error == nil {
				o.Error = &entity.ErrorPayload{Code: common.CodeProcessing, Message: "task did not finish"}
			}
		}
		if d, ok := t.ProcessingTime(); ok {
			secs := utils.Round(d.Seconds(), 3)
			o.ProcessingTime = &secs
		}
		out[i] = o
	}
	return out
}

// Statistics summarises terminal tasks over a batch that took wall to run.
func Statistics(tasks []entity.BatchTask, wall time.Duration) entity.BatchStatistics {
	st := entity.BatchStatistics{Total: len(tasks)}
	var sum, lo, hi float64
	n := 0
	for _, t := range tasks {
		switch t.Status {
		case constants.TaskCompleted:
			st.Successful++
		case constants.TaskFailed:
			st.Failed++
		}
		d, ok := t.ProcessingTime()
		if !ok {
			continue
		}
		secs := d.Seconds()
		if n == 0 || secs < lo {
			lo = secs
		}
		if n == 0 || secs > hi {
			hi = secs
		}
		sum += secs
		n++
	}
	if st.Total > 0 {
		st.SuccessRate = utils.Round(float64(st.Successful)/float64(st.Total), 3)
	}
	if n > 0 {
		st.AvgProcessingTime = utils.Round(sum/float64(n), 2)
		st.MinProcessingTime = utils.Round(lo, 2)
		st.MaxProcessingTime = utils.Round(hi, 2)
	}
	total := wall.Seconds()
	st.TotalTime = utils.Round(total, 2)
	if total > 0 {
		st.Throughput = utils.Round(float64(st.Total)/total, 2)
	}
	return st
}
