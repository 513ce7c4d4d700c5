// FilePath: internal/cleanup/cleanup.go
package cleanup

import (
	"context"
	"fmt"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/repository"
)

// Service coordinates deletion of a machine and its dependent data. The
// accounting core never deletes ledger rows; only removing a machine
// from the registry cascades into its history.
type Service struct {
	machines repository.MachineRepository
	ledgers  repository.LedgerRepository
	events   *nuts.EventEmitter
}

// New creates a new cleanup Service
func New(machines repository.MachineRepository, ledgers repository.LedgerRepository) *Service {
	return &Service{
		machines: machines,
		ledgers:  ledgers,
		events:   nuts.NewEventEmitter(),
	}
}

// DeleteMachine deletes a machine and all its ledger rows in one
// transaction
func (s *Service) DeleteMachine(ctx context.Context, machineID string) error {
	tx, err := s.machines.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if err := s.ledgers.DeleteByMachine(ctx, machineID, tx); err != nil {
		return fmt.Errorf("failed to delete ledger rows: %w", err)
	}

	if err := s.machines.DeleteWithLedgers(ctx, machineID, tx); err != nil {
		return fmt.Errorf("failed to delete machine: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.events.Emit("ledgers.deleted", machineID)
	s.events.Emit("machine.deleted", machineID)
	return nil
}

// OnCleanup registers a callback for cleanup events
func (s *Service) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
