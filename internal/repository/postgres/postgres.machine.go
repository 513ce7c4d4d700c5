// FilePath: internal/repository/postgres/postgres.machine.go
package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/database"
	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
)

type MachineRepo struct {
	PostgresBaseRepo
}

func NewMachineRepository(db database.DB) (*MachineRepo, error) {
	repo := &MachineRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *MachineRepo) initializeSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS machines (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			mqtt_topic TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'offline',
			last_seen TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`

	if _, err := r.db.GetDB().Exec(query); err != nil {
		return errors.NewDatabaseError("failed to initialize machines schema", err)
	}
	return nil
}

func (r *MachineRepo) Create(ctx context.Context, machine *models.Machine) error {
	query := `
		INSERT INTO machines (
			id, name, description, type, location,
			ip_address, mqtt_topic, status, last_seen,
			created_at, updated_at
		) VALUES (
			:id, :name, :description, :type, :location,
			:ip_address, :mqtt_topic, :status, :last_seen,
			:created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, machine)
	if err != nil {
		return errors.NewDatabaseError("failed to create machine", err)
	}
	return nil
}

func (r *MachineRepo) Get(ctx context.Context, id string) (*models.Machine, error) {
	machine := &models.Machine{}
	query := `SELECT * FROM machines WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, machine, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("machine not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get machine", err)
	}
	return machine, nil
}

func (r *MachineRepo) Update(ctx context.Context, machine *models.Machine) error {
	query := `
		UPDATE machines SET
			name = :name,
			description = :description,
			type = :type,
			location = :location,
			ip_address = :ip_address,
			mqtt_topic = :mqtt_topic,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, machine)
	if err != nil {
		return errors.NewDatabaseError("failed to update machine", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("machine not found", nil)
	}

	return nil
}

func (r *MachineRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM machines WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete machine", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("machine not found", nil)
	}

	return nil
}

func (r *MachineRepo) List(ctx context.Context, filters models.MachineFilters, offset, limit int) ([]*models.Machine, error) {
	query := `SELECT * FROM machines WHERE 1=1`
	args := []interface{}{}

	if filters.Type != "" {
		args = append(args, filters.Type)
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filters.Location != "" {
		args = append(args, filters.Location)
		query += ` AND location = $` + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	machines := []*models.Machine{}
	err := r.db.GetDB().SelectContext(ctx, &machines, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list machines", err)
	}
	return machines, nil
}

func (r *MachineRepo) ListByType(ctx context.Context, machineType models.MachineType) ([]*models.Machine, error) {
	machines := []*models.Machine{}
	query := `SELECT * FROM machines WHERE type = $1 ORDER BY name ASC`

	err := r.db.GetDB().SelectContext(ctx, &machines, query, machineType)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list machines by type", err)
	}
	return machines, nil
}

func (r *MachineRepo) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	query := `
		UPDATE machines SET
			last_seen = $1,
			status = 'online',
			updated_at = $1
		WHERE id = $2`

	result, err := r.db.GetDB().ExecContext(ctx, query, lastSeen, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update last seen", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("machine not found", nil)
	}

	return nil
}

func (r *MachineRepo) DeleteWithLedgers(ctx context.Context, id string, tx database.Transaction) error {
	query := `DELETE FROM machines WHERE id = $1`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete machine", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("machine not found", nil)
	}

	nuts.L.Infof("[MachineRepo] Deleted machine %s", id)
	return nil
}

