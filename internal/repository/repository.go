// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fabwatch/factoryhub/internal/database"
	"github.com/fabwatch/factoryhub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// MachineRepository defines the interface for machine registry operations
type MachineRepository interface {
	database.Repository
	Create(ctx context.Context, machine *models.Machine) error
	Get(ctx context.Context, id string) (*models.Machine, error)
	Update(ctx context.Context, machine *models.Machine) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters models.MachineFilters, offset, limit int) ([]*models.Machine, error)
	ListByType(ctx context.Context, machineType models.MachineType) ([]*models.Machine, error)
	UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error
	DeleteWithLedgers(ctx context.Context, id string, tx database.Transaction) error
}

// LedgerRepository defines the interface for daily ledger persistence.
// Ledger rows are keyed by (machine_id, date) and are never deleted by
// the accounting core; DeleteByMachine exists only for registry cleanup
// when a machine itself is removed.
type LedgerRepository interface {
	database.Repository
	Create(ctx context.Context, ledger *models.DailyLedger) error
	// Update persists a mutated row conditionally: it only succeeds when
	// the stored last_update still equals expectedLastUpdate, so two
	// near-simultaneous messages for the same machine cannot silently
	// overwrite each other.
	Update(ctx context.Context, ledger *models.DailyLedger, expectedLastUpdate time.Time) error
	GetLatest(ctx context.Context, machineID string) (*models.DailyLedger, error)
	GetByDate(ctx context.Context, machineID, date string) (*models.DailyLedger, error)
	History(ctx context.Context, machineID string, limitDays int) ([]*models.DailyLedger, error)
	DeleteByMachine(ctx context.Context, machineID string, tx database.Transaction) error
}
