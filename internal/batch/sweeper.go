package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// Sweeper runs Scheduler.Cleanup on a cron schedule.
type Sweeper struct {
	cron      *cron.Cron
	scheduler *Scheduler
	retention time.Duration
	logger    *slog.Logger
}

// NewSweeper parses spec (standard cron or an @every descriptor).
func NewSweeper(s *Scheduler, spec string, retention time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sw := &Sweeper{cron: cron.New(), scheduler: s, retention: retention, logger: logger}
	if _, err := sw.cron.AddFunc(spec, sw.Sweep); err != nil {
		return nil, common.ConfigurationFailure("invalid cleanup schedule "+spec, err)
	}
	return sw, nil
}

// Sweep removes expired batches once.
func (sw *Sweeper) Sweep() {
	n := sw.scheduler.Cleanup(sw.retention)
	sw.logger.Debug("cleanup sweep", "removed", n, "retention", sw.retention.String())
}

func (sw *Sweeper) Start() { sw.cron.Start() }

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (sw *Sweeper) Stop(ctx context.Context) {
	done := sw.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		sw.logger.Warn("cleanup sweeper stop interrupted by context")
	}
}
