package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	specpkg "github.com/daap14/loyalty/api"
	"github.com/daap14/loyalty/internal/api"
	"github.com/daap14/loyalty/internal/auth"
	"github.com/daap14/loyalty/internal/config"
	"github.com/daap14/loyalty/internal/customer"
	"github.com/daap14/loyalty/internal/database"
	"github.com/daap14/loyalty/internal/loyalty"
	"github.com/daap14/loyalty/internal/metrics"
	"github.com/daap14/loyalty/internal/reconciler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "store", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	authService := auth.NewService(st.users, cfg.BcryptCost)
	if _, err := authService.BootstrapSuperuser(ctx); err != nil {
		slog.Error("failed to bootstrap superuser", "error", err)
		os.Exit(1)
	}

	m := metrics.New(cfg.Version)
	engine := loyalty.NewEngine(st.records, loyalty.WithRecorder(m))

	if every := cfg.ReconcilerEvery(); every > 0 {
		rec := reconciler.New(engine, m, every)
		go rec.Start(ctx)
	}

	deps := api.RouterDeps{
		StoreDriver: cfg.StoreDriver,
		Version:     cfg.Version,
		OpenAPISpec: specpkg.OpenAPISpec,
		Engine:      engine,
		Customers:   st.customers,
		AuthService: authService,
		UserRepo:    st.users,
	}
	if st.db != nil {
		deps.DBPinger = st.db
	}
	if cfg.MetricsEnabled {
		deps.MetricsHandler = m.Handler()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting loyalty server", "port", cfg.Port, "version", cfg.Version, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		stop()
		st.close()
		os.Exit(1)
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		st.close()
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// stores bundles the repositories for the configured driver.
type stores struct {
	db        *database.DB
	records   loyalty.Repository
	customers customer.Directory
	users     auth.UserRepository
}

func (s *stores) close() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		customers := customer.NewMemoryDirectory()
		for id, name := range cfg.SeedCustomers {
			cid, err := uuid.Parse(id)
			if err != nil {
				return nil, fmt.Errorf("parsing seed customer id %q: %w", id, err)
			}
			customers.Add(customer.Customer{ID: cid, Name: name})
		}
		return &stores{
			records:   loyalty.NewMemoryRepository(),
			customers: customers,
			users:     auth.NewMemoryRepository(),
		}, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")
	}

	pool := db.Pool()
	return &stores{
		db:        db,
		records:   loyalty.NewPostgresRepository(pool),
		customers: customer.NewPostgresDirectory(pool),
		users:     auth.NewRepository(pool),
	}, nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
