// FilePath: internal/repository/postgres/postgres.ledger.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/database"
	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
)

type LedgerRepo struct {
	PostgresBaseRepo
}

func NewLedgerRepository(db database.DB) (*LedgerRepo, error) {
	repo := &LedgerRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *LedgerRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS spray_daily_ledgers (
			id TEXT PRIMARY KEY,
			machine_id TEXT NOT NULL,
			date TEXT NOT NULL,
			active_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			stop_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_energy_consumed DOUBLE PRECISION NOT NULL DEFAULT 0,
			energy_baseline DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_energy_counter DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_status INTEGER NOT NULL DEFAULT 0,
			last_status_change_time TIMESTAMPTZ NOT NULL,
			last_update TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (machine_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spray_ledgers_machine_date
			ON spray_daily_ledgers (machine_id, date DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewDatabaseError("failed to initialize ledger schema", err)
		}
	}
	return nil
}

func (r *LedgerRepo) Create(ctx context.Context, ledger *models.DailyLedger) error {
	query := `
		INSERT INTO spray_daily_ledgers (
			id, machine_id, date, active_time, stop_time,
			total_energy_consumed, energy_baseline, current_energy_counter,
			last_status, last_status_change_time, last_update, created_at
		) VALUES (
			:id, :machine_id, :date, :active_time, :stop_time,
			:total_energy_consumed, :energy_baseline, :current_energy_counter,
			:last_status, :last_status_change_time, :last_update, :created_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, ledger)
	if err != nil {
		return errors.NewDatabaseError("failed to create ledger row", err)
	}
	return nil
}

// Update writes the mutated row only when last_update still carries the
// value the caller read. Zero rows affected means a concurrent writer got
// there first; the caller decides whether to retry.
func (r *LedgerRepo) Update(ctx context.Context, ledger *models.DailyLedger, expectedLastUpdate time.Time) error {
	query := `
		UPDATE spray_daily_ledgers SET
			active_time = $1,
			stop_time = $2,
			total_energy_consumed = $3,
			energy_baseline = $4,
			current_energy_counter = $5,
			last_status = $6,
			last_status_change_time = $7,
			last_update = $8
		WHERE id = $9 AND last_update = $10`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		ledger.ActiveTime, ledger.StopTime, ledger.TotalEnergyConsumed,
		ledger.EnergyBaseline, ledger.CurrentEnergyCounter,
		ledger.LastStatus, ledger.LastStatusChangeTime, ledger.LastUpdate,
		ledger.ID, expectedLastUpdate)
	if err != nil {
		return errors.NewDatabaseError("failed to update ledger row", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewConflictError("ledger row changed concurrently", nil)
	}

	return nil
}

func (r *LedgerRepo) GetLatest(ctx context.Context, machineID string) (*models.DailyLedger, error) {
	ledger := &models.DailyLedger{}
	query := `
		SELECT * FROM spray_daily_ledgers
		WHERE machine_id = $1
		ORDER BY date DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, ledger, query, machineID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no ledger rows for machine", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest ledger row", err)
	}
	return ledger, nil
}

func (r *LedgerRepo) GetByDate(ctx context.Context, machineID, date string) (*models.DailyLedger, error) {
	ledger := &models.DailyLedger{}
	query := `SELECT * FROM spray_daily_ledgers WHERE machine_id = $1 AND date = $2`

	err := r.db.GetDB().GetContext(ctx, ledger, query, machineID, date)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no ledger row for date", err)
		}
		return nil, errors.NewDatabaseError("failed to get ledger row", err)
	}
	return ledger, nil
}

func (r *LedgerRepo) History(ctx context.Context, machineID string, limitDays int) ([]*models.DailyLedger, error) {
	ledgers := []*models.DailyLedger{}
	query := `
		SELECT * FROM spray_daily_ledgers
		WHERE machine_id = $1
		ORDER BY date DESC
		LIMIT $2`

	err := r.db.GetDB().SelectContext(ctx, &ledgers, query, machineID, limitDays)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get ledger history", err)
	}
	return ledgers, nil
}

func (r *LedgerRepo) DeleteByMachine(ctx context.Context, machineID string, tx database.Transaction) error {
	query := `DELETE FROM spray_daily_ledgers WHERE machine_id = $1`

	result, err := tx.ExecContext(ctx, query, machineID)
	if err != nil {
		return errors.NewDatabaseError("failed to delete ledger rows", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[LedgerRepo] Deleted %d ledger rows for machine %s", rows, machineID)
	return nil
}
