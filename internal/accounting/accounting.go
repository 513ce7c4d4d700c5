// FilePath: internal/accounting/accounting.go
package accounting

import (
	"context"
	"math"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
	"github.com/fabwatch/factoryhub/internal/notify"
	"github.com/fabwatch/factoryhub/internal/repository"
	"github.com/fabwatch/factoryhub/internal/shift"
)

// Service is the spray-machine daily accounting core. It consumes decoded
// telemetry (run/stop status plus cumulative kWh counter), keeps one
// ledger row per machine per operating day, and rolls the day over at
// shift end.
type Service struct {
	machines repository.MachineRepository
	ledgers  repository.LedgerRepository
	window   *shift.Window
	notifier notify.Notifier
	now      func() time.Time
}

func New(
	machines repository.MachineRepository,
	ledgers repository.LedgerRepository,
	window *shift.Window,
	notifier notify.Notifier,
) *Service {
	return &Service{
		machines: machines,
		ledgers:  ledgers,
		window:   window,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock. Tests use this to drive the
// temporal accounting deterministically.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AcceptTelemetry applies one decoded telemetry message to the machine's
// ledger row for today.
//
// Messages outside the work shift are ignored (Accepted=false, no
// mutation, no error). Stored active/stop hours only reflect closed
// intervals: the in-flight interval of the current status is committed
// when the next status change arrives. Duplicate or out-of-order
// redelivery is not detected here; a replayed status change older than
// the debounce window re-enters the transition and double-counts its
// delta, matching the accounted-at-delivery contract of the transport.
func (s *Service) AcceptTelemetry(ctx context.Context, machineID string, status models.MachineStatus, energyCounter float64) (*models.TelemetryResult, error) {
	now := s.now()

	if !s.window.Contains(now) {
		nuts.L.Debugf("[Accounting] Ignoring out-of-shift telemetry for %s at %v", machineID, now)
		return &models.TelemetryResult{Accepted: false}, nil
	}

	if status != models.StatusStopped && status != models.StatusRunning {
		return nil, errors.NewValidationError("status must be 0 or 1", nil)
	}
	if math.IsNaN(energyCounter) || math.IsInf(energyCounter, 0) || energyCounter < 0 {
		return nil, errors.NewValidationError("energy counter must be a finite non-negative number", nil)
	}

	machine, err := s.machines.Get(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if machine.Type != models.MachineTypeSpray {
		return nil, errors.NewNotFoundError("machine is not registered as a spray machine", nil)
	}

	ledger, err := s.resolveTodayLedger(ctx, machineID, now)
	if err != nil {
		return nil, err
	}
	expected := ledger.LastUpdate

	s.applyEnergy(ledger, energyCounter)
	s.applyTime(ledger, status, now)

	ledger.ActiveTime = math.Max(0, ledger.ActiveTime)
	ledger.StopTime = math.Max(0, ledger.StopTime)
	ledger.LastUpdate = now

	if err := s.ledgers.Update(ctx, ledger, expected); err != nil {
		return nil, err
	}

	if err := s.machines.UpdateLastSeen(ctx, machineID, now); err != nil {
		nuts.L.Warnf("[Accounting] Failed to update last seen for %s: %v", machineID, err)
	}
	if err := s.notifier.LedgerUpdated(ctx, ledger); err != nil {
		nuts.L.Warnf("[Accounting] Failed to notify ledger update for %s: %v", machineID, err)
	}

	return &models.TelemetryResult{Accepted: true, Ledger: ledger}, nil
}

// applyEnergy folds the cumulative counter reading into the row. A
// freshly created row carries baseline 0 as a placeholder; the first
// nonzero reading of the day establishes the true start-of-day baseline
// so pre-existing meter accumulation never shows up as today's
// consumption. Readings dipping below the baseline (meter glitch) clamp
// the daily total at zero.
func (s *Service) applyEnergy(ledger *models.DailyLedger, energyCounter float64) {
	ledger.CurrentEnergyCounter = energyCounter
	if ledger.EnergyBaseline > 0 {
		ledger.TotalEnergyConsumed = math.Max(0, energyCounter-ledger.EnergyBaseline)
	} else if energyCounter > 0 {
		ledger.EnergyBaseline = energyCounter
		ledger.TotalEnergyConsumed = 0
	}
}

// applyTime commits the closed interval since the last status change to
// the bucket of the previous status, clamped to the shift length.
func (s *Service) applyTime(ledger *models.DailyLedger, status models.MachineStatus, now time.Time) {
	elapsed := now.Sub(ledger.LastStatusChangeTime)
	decision := transition(ledger.LastStatus, status, elapsed)

	if decision.commit > 0 {
		hours := decision.commit.Hours()
		limit := s.window.LengthHours()
		switch decision.bucket {
		case bucketActive:
			ledger.ActiveTime = clamp(ledger.ActiveTime+hours, 0, limit)
		case bucketStop:
			ledger.StopTime = clamp(ledger.StopTime+hours, 0, limit)
		}
	}
	if decision.changed {
		ledger.LastStatus = status
		ledger.LastStatusChangeTime = now
	}
}

// resolveTodayLedger returns the row that should receive the next
// mutation for the machine, creating today's row when none exists or the
// latest one is stale. A stale latest row (rollover missed, machine
// offline across the day boundary) seeds the new day's baseline from its
// final counter reading so the energy delta restarts at zero.
func (s *Service) resolveTodayLedger(ctx context.Context, machineID string, now time.Time) (*models.DailyLedger, error) {
	today := s.window.DateKey(now, 0)

	latest, err := s.ledgers.GetLatest(ctx, machineID)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		return s.createLedger(ctx, machineID, today, 0, 0, now)
	}

	if latest.Date >= today {
		return latest, nil
	}

	nuts.L.Infof("[Accounting] Latest ledger for %s is %s, starting %s with baseline %.3f",
		machineID, latest.Date, today, latest.CurrentEnergyCounter)
	return s.createLedger(ctx, machineID, today,
		latest.CurrentEnergyCounter, latest.CurrentEnergyCounter, now)
}

func (s *Service) createLedger(ctx context.Context, machineID, date string, baseline, counter float64, now time.Time) (*models.DailyLedger, error) {
	ledger := &models.DailyLedger{
		ID:                   nuts.NID("dl", 12),
		MachineID:            machineID,
		Date:                 date,
		EnergyBaseline:       baseline,
		CurrentEnergyCounter: counter,
		LastStatus:           models.StatusStopped,
		LastStatusChangeTime: now,
		LastUpdate:           now,
		CreatedAt:            now,
	}
	if err := s.ledgers.Create(ctx, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// PeekLatestLedger is the read path: it returns the most recent row
// without ever creating one. A machine that has never sent telemetry
// yields NotFound.
func (s *Service) PeekLatestLedger(ctx context.Context, machineID string) (*models.DailyLedger, error) {
	return s.ledgers.GetLatest(ctx, machineID)
}

// History returns the most recent limitDays rows, descending by date.
func (s *Service) History(ctx context.Context, machineID string, limitDays int) ([]*models.DailyLedger, error) {
	if limitDays <= 0 {
		limitDays = 30
	}
	if limitDays > 365 {
		limitDays = 365
	}
	return s.ledgers.History(ctx, machineID, limitDays)
}

// Statistics sums the machine's history window.
func (s *Service) Statistics(ctx context.Context, machineID string, limitDays int) (*models.LedgerStatistics, error) {
	history, err := s.History(ctx, machineID, limitDays)
	if err != nil {
		return nil, err
	}

	stats := &models.LedgerStatistics{MachineID: machineID, DaysCount: len(history)}
	for _, row := range history {
		stats.TotalActiveTime += row.ActiveTime
		stats.TotalStopTime += row.StopTime
		stats.TotalEnergyConsumed += row.TotalEnergyConsumed
	}
	if total := stats.TotalActiveTime + stats.TotalStopTime; total > 0 {
		stats.AverageEfficiencyPct = stats.TotalActiveTime / total * 100
	}
	return stats, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
