// FilePath: internal/accounting/rollover.go
package accounting

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
)

// RolloverAll starts the ledger row for now+dayOffset days on every
// registered spray machine, carrying each machine's energy baseline
// forward from the previous day's final counter reading.
//
// The operation is idempotent: a row that already exists for the target
// date is reset in place to zeroed time/energy with the recomputed
// baseline. Machines are processed independently; one failure never
// aborts the rest. The scheduler invokes this with dayOffset=1 at shift
// end; dayOffset=0 is the manual/debug variant.
func (s *Service) RolloverAll(ctx context.Context, dayOffset int) (*models.RolloverReport, error) {
	now := s.now()
	targetDate := s.window.DateKey(now, dayOffset)
	previousDate := s.window.DateKey(now, dayOffset-1)

	machines, err := s.machines.ListByType(ctx, models.MachineTypeSpray)
	if err != nil {
		return nil, err
	}

	report := &models.RolloverReport{
		TargetDate: targetDate,
		Failed:     map[string]string{},
		StartedAt:  now,
	}

	nuts.L.Infof("[Accounting] Rolling over %d spray machines to %s", len(machines), targetDate)

	for _, machine := range machines {
		ledger, err := s.rolloverMachine(ctx, machine.ID, targetDate, previousDate)
		if err != nil {
			nuts.L.Errorf("[Accounting] Rollover failed for %s: %v", machine.ID, err)
			report.Failed[machine.ID] = err.Error()
			continue
		}
		report.Processed = append(report.Processed, machine.ID)

		if err := s.notifier.LedgerUpdated(ctx, ledger); err != nil {
			nuts.L.Warnf("[Accounting] Failed to notify rollover for %s: %v", machine.ID, err)
		}
	}

	report.FinishedAt = s.now()
	nuts.L.Infof("[Accounting] Rollover to %s done: %d processed, %d failed",
		targetDate, len(report.Processed), len(report.Failed))
	return report, nil
}

func (s *Service) rolloverMachine(ctx context.Context, machineID, targetDate, previousDate string) (*models.DailyLedger, error) {
	baseline := 0.0
	previous, err := s.ledgers.GetByDate(ctx, machineID, previousDate)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
	} else {
		baseline = previous.CurrentEnergyCounter
	}

	now := s.now()

	existing, err := s.ledgers.GetByDate(ctx, machineID, targetDate)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		return s.createLedger(ctx, machineID, targetDate, baseline, baseline, now)
	}

	// Reset in place so a re-run converges on the same row.
	expected := existing.LastUpdate
	existing.ActiveTime = 0
	existing.StopTime = 0
	existing.TotalEnergyConsumed = 0
	existing.EnergyBaseline = baseline
	existing.CurrentEnergyCounter = baseline
	existing.LastStatus = models.StatusStopped
	existing.LastStatusChangeTime = now
	existing.LastUpdate = now

	if err := s.ledgers.Update(ctx, existing, expected); err != nil {
		return nil, err
	}
	return existing, nil
}
