// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/api"
	"github.com/fabwatch/factoryhub/api/middleware"
	"github.com/fabwatch/factoryhub/internal/accounting"
	"github.com/fabwatch/factoryhub/internal/config"
	"github.com/fabwatch/factoryhub/internal/database"
	"github.com/fabwatch/factoryhub/internal/ingest"
	"github.com/fabwatch/factoryhub/internal/monitoring"
	"github.com/fabwatch/factoryhub/internal/notify"
	"github.com/fabwatch/factoryhub/internal/realtime"
	"github.com/fabwatch/factoryhub/internal/registry"
	"github.com/fabwatch/factoryhub/internal/repository/postgres"
	"github.com/fabwatch/factoryhub/internal/scheduler"
	"github.com/fabwatch/factoryhub/internal/shift"
)

// Server ties the ingest, accounting, and HTTP layers together and owns
// their lifecycles.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	db         database.DB
	redis      *redis.Client
	consumer   *ingest.Consumer
	monitoring *monitoring.Service

	cancelBackground context.CancelFunc
}

// New wires all components from configuration. Nothing is started yet;
// call Start to bring the server up.
func New(cfg *config.Config) (*Server, error) {
	db, err := database.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	machineRepo, err := postgres.NewMachineRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize machine repository: %w", err)
	}
	ledgerRepo, err := postgres.NewLedgerRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger repository: %w", err)
	}

	window, err := shift.New(cfg.Shift.Start, cfg.Shift.End, cfg.Shift.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid shift configuration: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var notifier notify.Notifier = notify.NewRedisNotifier(redisClient, cfg.Redis.Channel)

	accountingSvc := accounting.New(machineRepo, ledgerRepo, window, notifier)
	registrySvc := registry.New(machineRepo, ledgerRepo)
	hub := realtime.NewHub(redisClient, cfg.Redis.Channel)
	consumer := ingest.NewConsumer(cfg.MQTT, accountingSvc)
	sched := scheduler.New(window, accountingSvc)

	monitoringSvc := monitoring.NewService(monitoring.Config{
		PrometheusEndpoint: cfg.Monitoring.PrometheusEndpoint,
		LokiEndpoint:       cfg.Monitoring.LokiEndpoint,
	})
	registrySvc.Cleanup.OnCleanup("machine.deleted", func(id string) {
		monitoringSvc.RecordEvent("machine_deleted", map[string]string{"machine_id": id})
	})
	registrySvc.Cleanup.OnCleanup("ledgers.deleted", func(id string) {
		monitoringSvc.RecordEvent("ledgers_deleted", map[string]string{"machine_id": id})
	})

	auth := middleware.NewKeycloakMiddleware(middleware.KeycloakConfig{
		URL:          cfg.Keycloak.URL,
		Realm:        cfg.Keycloak.Realm,
		ClientID:     cfg.Keycloak.ClientID,
		ClientSecret: cfg.Keycloak.ClientSecret,
	})

	router := api.NewRouter(api.RouterConfig{
		Registry:   registrySvc,
		Accounting: accountingSvc,
		Hub:        hub,
		Auth:       auth,
	})

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	backgroundCtx, cancel := context.WithCancel(context.Background())
	go hub.Run(backgroundCtx)
	go sched.Run(backgroundCtx)

	srv := &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      handlers.CombinedLoggingHandler(os.Stdout, corsHandler(router)),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		db:               db,
		redis:            redisClient,
		consumer:         consumer,
		monitoring:       monitoringSvc,
		cancelBackground: cancel,
	}
	return srv, nil
}

// Start connects the telemetry consumer and serves HTTP until Shutdown.
func (s *Server) Start() error {
	if err := s.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start telemetry consumer: %w", err)
	}

	nuts.L.Infof("[Server] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops ingest first so no ledger writes race the teardown,
// then drains HTTP and closes the backing stores.
func (s *Server) Shutdown(ctx context.Context) error {
	nuts.L.Info("[Server] Shutting down")

	s.consumer.Stop()
	s.cancelBackground()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		nuts.L.Errorf("[Server] HTTP shutdown error: %v", err)
	}

	if err := s.redis.Close(); err != nil {
		nuts.L.Errorf("[Server] Redis close error: %v", err)
	}
	if err := s.db.Close(); err != nil {
		nuts.L.Errorf("[Server] Database close error: %v", err)
	}

	// give in-flight log writes a moment to flush
	time.Sleep(100 * time.Millisecond)
	return nil
}
