package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/arbiter"
	"github.com/fyrsmithlabs/orchd/internal/audit"
	"github.com/fyrsmithlabs/orchd/internal/blueprint"
	"github.com/fyrsmithlabs/orchd/internal/config"
	"github.com/fyrsmithlabs/orchd/internal/engine"
	"github.com/fyrsmithlabs/orchd/internal/httpapi"
	"github.com/fyrsmithlabs/orchd/internal/logging"
	"github.com/fyrsmithlabs/orchd/internal/memory"
	"github.com/fyrsmithlabs/orchd/internal/oracle"
	"github.com/fyrsmithlabs/orchd/internal/registry"
	"github.com/fyrsmithlabs/orchd/internal/runner"
	"github.com/fyrsmithlabs/orchd/internal/store"
	"github.com/fyrsmithlabs/orchd/internal/telemetry"
	"github.com/fyrsmithlabs/orchd/internal/tracker"
)

// app holds the wired dependency graph for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *store.SQLite
	registry  *registry.Registry
	planner   *blueprint.Planner
	runner    *runner.Controller
	server    *httpapi.Server
	telemetry *telemetry.Provider
	publisher *tracker.NATSPublisher
}

// newApp loads configuration and wires every service. Optional
// collaborators (memory, events, the status API) are skipped when
// disabled; a broken optional collaborator degrades with a warning
// instead of failing startup.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLite(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	oc, err := oracle.NewClient(cfg.Oracle, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	trail, err := audit.NewTrail(st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	reg, err := registry.New(st, oc, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	eng, err := engine.New(reg, trail, oc, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	arb, err := arbiter.New(oc, trail, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	blueprints, err := blueprint.NewStore(st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	planner, err := blueprint.NewPlanner(blueprints, oc, arb, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		registry:  reg,
		planner:   planner,
		telemetry: tel,
	}

	var runnerOpts []runner.Option
	if cfg.Memory.Enabled {
		recorder, err := memory.NewChromemRecorder(cfg.Memory.Path, nil, logger)
		if err != nil {
			logger.Warn("memory recorder unavailable, learnings will not be captured", zap.Error(err))
		} else {
			runnerOpts = append(runnerOpts, runner.WithRecorder(recorder))
		}
	}
	if cfg.Events.Enabled {
		publisher, err := tracker.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			logger.Warn("event publisher unavailable, run events will not be published", zap.Error(err))
		} else {
			a.publisher = publisher
			runnerOpts = append(runnerOpts, runner.WithPublisher(publisher))
		}
	}

	ctrl, err := runner.New(eng, oc, trail, logger, runnerOpts...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.runner = ctrl

	if cfg.HTTP.Enabled {
		server, err := httpapi.NewServer(trail, reg, blueprints, logger, cfg.HTTP)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.server = server
	}

	return a, nil
}

// Close releases resources in reverse dependency order.
func (a *app) Close(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shut down telemetry", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
