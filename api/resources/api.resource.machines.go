// FilePath: api/resources/api.resource.machines.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
	"github.com/fabwatch/factoryhub/internal/registry"
)

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
	queryDecoder.RegisterConverter(models.MachineType(""), func(s string) reflect.Value {
		return reflect.ValueOf(models.MachineType(s))
	})
}

// MachineResource handles machine-registry endpoints
type MachineResource struct {
	registry *registry.Service
}

func NewMachineResource(reg *registry.Service) *MachineResource {
	return &MachineResource{registry: reg}
}

// Create godoc
// @Summary Create a new machine
// @Description Registers a new machine in the factory registry
// @Tags machines
// @Accept json
// @Produce json
// @Param machine body models.Machine true "Machine object"
// @Success 201 {object} models.Machine
// @Failure 400 {object} errors.APIError
// @Router /machines [post]
func (res *MachineResource) Create(w http.ResponseWriter, r *http.Request) {
	var machine models.Machine
	if err := json.NewDecoder(r.Body).Decode(&machine); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err))
		return
	}

	if err := res.registry.CreateMachine(r.Context(), &machine); err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, machine)
}

// Get godoc
// @Summary Get machine by ID
// @Description Retrieves a machine, with fields filtered by caller roles
// @Tags machines
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} models.Machine
// @Failure 404 {object} errors.APIError
// @Router /machines/{id} [get]
func (res *MachineResource) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	machine, err := res.registry.GetMachine(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, machine)
}

// List godoc
// @Summary List machines
// @Description Lists machines matching optional type/status/location filters
// @Tags machines
// @Produce json
// @Param type query string false "Machine type"
// @Param status query string false "Machine status"
// @Param location query string false "Location"
// @Success 200 {array} models.Machine
// @Router /machines [get]
func (res *MachineResource) List(w http.ResponseWriter, r *http.Request) {
	var filters models.MachineFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}

	offset, limit := getPaginationParams(r)

	machines, err := res.registry.ListMachines(r.Context(), filters, offset, limit)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, machines)
}

// Update godoc
// @Summary Update a machine
// @Description Updates machine fields the caller's roles may write
// @Tags machines
// @Accept json
// @Produce json
// @Param id path string true "Machine ID"
// @Param machine body models.Machine true "Machine object"
// @Success 200 {object} models.Machine
// @Failure 403 {object} errors.APIError
// @Router /machines/{id} [put]
func (res *MachineResource) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var machine models.Machine
	if err := json.NewDecoder(r.Body).Decode(&machine); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err))
		return
	}
	machine.ID = id

	if err := res.registry.UpdateMachine(r.Context(), &machine); err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, machine)
}

// Delete godoc
// @Summary Delete a machine
// @Description Removes a machine and its ledger history
// @Tags machines
// @Param id path string true "Machine ID"
// @Success 204
// @Failure 404 {object} errors.APIError
// @Router /machines/{id} [delete]
func (res *MachineResource) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := res.registry.DeleteMachine(r.Context(), id); err != nil {
		respondWithError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
