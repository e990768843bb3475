// Package async runs OCR detections on a fixed set of background workers so
// callers never block a scheduler goroutine on the engine itself.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

// ErrPoolClosed is returned by Detect after Shutdown.
var ErrPoolClosed = errors.New("ocr pool is shutting down")

type job struct {
	ctx   context.Context
	img   *imaging.Image
	reply chan result
}

type result struct {
	res entity.OCRResult
	err error
}

// Pool is a bounded OCR worker pool. It satisfies ocr.Engine.
type Pool struct {
	engine  ocr.Engine
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(engine ocr.Engine, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		engine:  engine,
		logger:  logger,
		workers: 4,
		timeout: 30 * time.Second,
		ch:      make(chan job, 256),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) Name() string { return p.engine.Name() }

// Workers is the number of OCR goroutines.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("ocr worker started", "worker_id", workerID)
				for j := range p.ch {
					j.reply <- p.run(workerID, j)
				}
				p.logger.Debug("ocr worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *Pool) run(workerID int, j job) (r result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("ocr worker panic", "worker_id", workerID, "panic", rec)
			r = result{err: common.ExtractionFailure("ocr engine panicked", fmt.Errorf("%v", rec))}
		}
	}()
	if err := j.ctx.Err(); err != nil {
		return result{err: err}
	}
	ctx, cancel := context.WithTimeout(j.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	res, err := p.engine.Detect(ctx, j.img)
	if err != nil {
		p.logger.Error("ocr failed", "worker_id", workerID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return result{err: err}
	}
	p.logger.Debug("ocr done", "worker_id", workerID, "fragments", len(res.Fragments), "duration_ms", time.Since(start).Milliseconds())
	return result{res: res}
}

// Detect queues img and waits for a worker's answer or ctx.
func (p *Pool) Detect(ctx context.Context, img *imaging.Image) (entity.OCRResult, error) {
	j := job{ctx: ctx, img: img, reply: make(chan result, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return entity.OCRResult{}, common.NewAppError(common.CodeProcessing, ErrPoolClosed.Error(), common.ErrUnavailable)
	}
	select {
	case p.ch <- j:
	default:
		p.logger.Warn("ocr queue full, applying backpressure")
		select {
		case p.ch <- j:
		case <-ctx.Done():
			p.mu.RUnlock()
			return entity.OCRResult{}, ctx.Err()
		}
	}
	p.mu.RUnlock()

	select {
	case r := <-j.reply:
		return r.res, r.err
	case <-ctx.Done():
		return entity.OCRResult{}, ctx.Err()
	}
}

// Shutdown stops accepting work and waits for queued jobs to drain.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("ocr pool shutdown interrupted by context")
	case <-done:
		p.logger.Info("ocr pool drained, shutdown complete")
	}
}
