// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fabwatch/factoryhub/api/middleware"
	"github.com/fabwatch/factoryhub/api/resources"
	"github.com/fabwatch/factoryhub/internal/accounting"
	"github.com/fabwatch/factoryhub/internal/realtime"
	"github.com/fabwatch/factoryhub/internal/registry"
)

// RouterConfig bundles everything the HTTP surface needs
type RouterConfig struct {
	Registry   *registry.Service
	Accounting *accounting.Service
	Hub        *realtime.Hub
	Auth       *middleware.KeycloakMiddleware
}

// NewRouter builds the full /api/v1 route tree
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	// Public endpoints
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ws", cfg.Hub.ServeWS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(cfg.Auth.Authenticate)

	machines := resources.NewMachineResource(cfg.Registry)
	spray := resources.NewSprayResource(cfg.Accounting)

	admin := cfg.Auth.RequireRoles([]string{"plantadmin"})

	// Machine registry
	api.HandleFunc("/machines", machines.List).Methods(http.MethodGet)
	api.HandleFunc("/machines/{id}", machines.Get).Methods(http.MethodGet)
	api.Handle("/machines", admin(http.HandlerFunc(machines.Create))).Methods(http.MethodPost)
	api.Handle("/machines/{id}", admin(http.HandlerFunc(machines.Update))).Methods(http.MethodPut)
	api.Handle("/machines/{id}", admin(http.HandlerFunc(machines.Delete))).Methods(http.MethodDelete)

	// Spray daily accounting
	api.HandleFunc("/spray/{id}/latest", spray.GetLatest).Methods(http.MethodGet)
	api.HandleFunc("/spray/{id}/history", spray.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/spray/{id}/statistics", spray.GetStatistics).Methods(http.MethodGet)
	api.HandleFunc("/spray/{id}/report", spray.ExportReport).Methods(http.MethodGet)
	api.Handle("/spray/rollover", admin(http.HandlerFunc(spray.TriggerRollover))).Methods(http.MethodPost)

	return router
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
