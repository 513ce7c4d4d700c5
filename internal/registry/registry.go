// FilePath: internal/registry/registry.go
package registry

import (
	"context"
	"time"

	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/cleanup"
	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
	"github.com/fabwatch/factoryhub/internal/repository"
)

// Service handles machine-registry business logic. The registry is the
// source of truth the accounting core consults for machine type checks
// and the rollover enumeration.
type Service struct {
	Machines repository.MachineRepository
	Ledgers  repository.LedgerRepository
	Cleanup  *cleanup.Service
}

func New(machines repository.MachineRepository, ledgers repository.LedgerRepository) *Service {
	return &Service{
		Machines: machines,
		Ledgers:  ledgers,
		Cleanup:  cleanup.New(machines, ledgers),
	}
}

// CreateMachine creates a new machine with proper validation and initialization
func (s *Service) CreateMachine(ctx context.Context, machine *models.Machine) error {
	if machine.Name == "" {
		return errors.NewValidationError("machine name is required", nil)
	}
	switch machine.Type {
	case models.MachineTypeSpray, models.MachineTypeCNC, models.MachineTypePowder:
	default:
		return errors.NewValidationError("unknown machine type", nil)
	}

	if machine.ID == "" {
		machine.ID = nuts.NID("mc", 12)
	}

	now := time.Now()
	machine.CreatedAt = now
	machine.UpdatedAt = now
	machine.LastSeen = now
	if machine.Status == "" {
		machine.Status = "offline"
	}

	nuts.L.Infof("[Registry] Creating machine: %s (%s, %s)", machine.Name, machine.ID, machine.Type)
	return s.Machines.Create(ctx, machine)
}

// GetMachine retrieves a machine with role-based field filtering
func (s *Service) GetMachine(ctx context.Context, id string) (*models.Machine, error) {
	machine, err := s.Machines.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	roles := GetUserRoles(ctx)

	filteredMap, err := struccy.StructToMapFieldsWithReadXS(machine, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to filter machine fields", err)
	}
	filtered := &models.Machine{}
	_, err = struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to map filtered fields to machine struct", err)
	}

	return filtered, nil
}

// UpdateMachine updates an existing machine with role-based access control
func (s *Service) UpdateMachine(ctx context.Context, machine *models.Machine) error {
	existing, err := s.Machines.Get(ctx, machine.ID)
	if err != nil {
		return err
	}

	roles := GetUserRoles(ctx)

	updatedFields, _, err := struccy.UpdateStructFields(existing, machine, roles, true, true)
	if err != nil {
		return errors.NewAuthorizationError("unauthorized field update", err)
	}

	machine.UpdatedAt = time.Now()

	nuts.L.Infof("[Registry] Updating machine %s, fields changed: %v", machine.ID, updatedFields)
	return s.Machines.Update(ctx, machine)
}

// ListMachines retrieves a paginated, filtered list of machines
func (s *Service) ListMachines(ctx context.Context, filters models.MachineFilters, offset, limit int) ([]*models.Machine, error) {
	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}

	machines, err := s.Machines.List(ctx, filters, offset, limit)
	if err != nil {
		return nil, err
	}

	roles := GetUserRoles(ctx)
	filtered := make([]*models.Machine, 0, len(machines))

	for _, machine := range machines {
		filteredMap, err := struccy.StructToMapFieldsWithReadXS(machine, roles)
		if err != nil {
			nuts.L.Warnf("[Registry] Failed to filter machine %s: %v", machine.ID, err)
			continue
		}
		filteredMachine := &models.Machine{}
		_, err = struccy.MergeMapStringFieldsToStruct(filteredMachine, filteredMap, roles)
		if err != nil {
			nuts.L.Warnf("[Registry] Failed to map filtered fields for machine %s: %v", machine.ID, err)
			continue
		}
		filtered = append(filtered, filteredMachine)
	}

	return filtered, nil
}

// DeleteMachine removes a machine and its ledger history
func (s *Service) DeleteMachine(ctx context.Context, id string) error {
	if _, err := s.Machines.Get(ctx, id); err != nil {
		return err
	}

	nuts.L.Infof("[Registry] Deleting machine: %s", id)
	return s.Cleanup.DeleteMachine(ctx, id)
}

type contextKey string

const rolesContextKey contextKey = "user_roles"

// WithUserRoles returns a context carrying the caller's roles. The auth
// middleware stores them here; field filtering reads them back.
func WithUserRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesContextKey, roles)
}

// GetUserRoles retrieves user roles from context
func GetUserRoles(ctx context.Context) []string {
	if r, ok := ctx.Value(rolesContextKey).([]string); ok {
		return r
	}
	return []string{"guest"}
}
