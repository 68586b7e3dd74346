package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ersonp/kin-core/internal/application/handlers"
	"github.com/ersonp/kin-core/internal/domain/services"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
	"github.com/ersonp/kin-core/internal/infrastructure/logging"
	"github.com/ersonp/kin-core/internal/infrastructure/metrics"
	"github.com/ersonp/kin-core/internal/infrastructure/relationaldb/sqlite"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config              *config.Config
	Registers           *config.RegistersConfig
	Register            string
	PersonHandler       *handlers.PersonHandler
	RelationshipHandler *handlers.RelationshipHandler
	CheckHandler        *handlers.CheckHandler
	ImportHandler       *handlers.ImportHandler
}

// internalDeps holds all dependencies including low-level components.
// Used internally by helper functions.
type internalDeps struct {
	Deps
	logger *zap.Logger
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level components.
func withInternalDeps(fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registers, err := config.LoadRegisters(cwd)
	if err != nil {
		return fmt.Errorf("loading registers: %w", err)
	}

	register := resolveRegister()
	if _, err := registers.Get(register); err != nil {
		return err
	}

	store, err := openRegisterStore(context.Background(), cwd, register, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if globalMetrics {
		defer func() {
			if err := metrics.WriteText(metricsOut, reg); err != nil {
				logger.Warn("writing metrics", zap.Error(err))
			}
		}()
	}

	graph := services.NewGraphService(store,
		services.WithLogger(logger.With(zap.String("register", register))),
		services.WithRecorder(m),
		services.WithReciprocalCascade(cfg.Graph.CascadeReciprocalDelete),
	)

	deps := &internalDeps{
		Deps: Deps{
			Config:              cfg,
			Registers:           registers,
			Register:            register,
			PersonHandler:       handlers.NewPersonHandler(services.NewPersonService(store), graph),
			RelationshipHandler: handlers.NewRelationshipHandler(graph),
			CheckHandler:        handlers.NewCheckHandler(services.NewCheckService(store)),
			ImportHandler:       handlers.NewImportHandler(services.NewImportService(graph), cfg.Graph.ImportWorkers),
		},
		logger: logger,
	}

	return fn(deps)
}

// resolveRegister returns the register selected with --register, or the
// register created by init.
func resolveRegister() string {
	if globalRegister == "" {
		return handlers.DefaultRegister
	}
	return globalRegister
}

// openRegisterStore opens the SQLite database of a register, creating its
// directory and schema if needed.
func openRegisterStore(ctx context.Context, basePath, register string, cfg *config.Config) (*sqlite.Repository, error) {
	if err := os.MkdirAll(config.RegisterDir(basePath, register), 0755); err != nil {
		return nil, fmt.Errorf("creating register directory: %w", err)
	}

	sqliteCfg := cfg.SQLite
	sqliteCfg.Path = config.SQLitePathForRegister(basePath, register)

	store, err := sqlite.NewRepository(sqliteCfg, sqlite.WithTxTimeout(cfg.Graph.TxTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening register %q: %w", register, err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	return store, nil
}

// withPersonHandler provides access to the PersonHandler for people commands.
func withPersonHandler(fn func(*handlers.PersonHandler) error) error {
	return withDeps(func(d *Deps) error {
		return fn(d.PersonHandler)
	})
}

// withRelationshipHandler provides access to the RelationshipHandler for relationship commands.
func withRelationshipHandler(fn func(*handlers.RelationshipHandler) error) error {
	return withDeps(func(d *Deps) error {
		return fn(d.RelationshipHandler)
	})
}

// withCheckHandler provides access to the CheckHandler.
func withCheckHandler(fn func(*handlers.CheckHandler) error) error {
	return withDeps(func(d *Deps) error {
		return fn(d.CheckHandler)
	})
}
