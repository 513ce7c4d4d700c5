// FilePath: internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/models"
	"github.com/fabwatch/factoryhub/internal/shift"
)

// Rollover is the single effect the scheduler produces: begin the next
// accounting day.
type Rollover interface {
	RolloverAll(ctx context.Context, dayOffset int) (*models.RolloverReport, error)
}

// Scheduler fires the day rollover once per day at shift end. The timer
// re-arms from the shift window each cycle, so DST shifts in the plant
// timezone are picked up automatically.
type Scheduler struct {
	window   *shift.Window
	rollover Rollover
	now      func() time.Time
}

func New(window *shift.Window, rollover Rollover) *Scheduler {
	return &Scheduler{window: window, rollover: rollover, now: time.Now}
}

// Run blocks until the context is cancelled, invoking the rollover at
// every shift end.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.window.NextEnd(s.now())
		nuts.L.Infof("[Scheduler] Next day rollover at %v", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			nuts.L.Infof("[Scheduler] Stopped")
			return
		case <-timer.C:
		}

		report, err := s.rollover.RolloverAll(ctx, 1)
		if err != nil {
			nuts.L.Errorf("[Scheduler] Day rollover failed: %v", err)
			continue
		}
		nuts.L.Infof("[Scheduler] Day rollover to %s: %d processed, %d failed",
			report.TargetDate, len(report.Processed), len(report.Failed))
	}
}
