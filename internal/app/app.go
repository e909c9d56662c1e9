package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wuyuepku/ssfscg/internal/infra/telemetry"
)

type App struct {
	logger *zap.Logger
}

type SimulateConfig struct {
	ConfigPath string
	// Clients and Rounds override the loaded configuration when positive.
	Clients int
	Rounds  int
}

type ValidateConfig struct {
	ConfigPath string
}

// SimulationResult is returned by Simulate.
type SimulationResult struct {
	RunID   string
	Reports []RoundReport
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger.Named("app"),
	}
}

// Simulate loads configuration and runs the fleet simulation, serving
// observability endpoints for the duration of the run when enabled.
func (a *App) Simulate(ctx context.Context, cfg SimulateConfig) (SimulationResult, error) {
	loaded, err := NewConfigLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return SimulationResult{}, err
	}
	if cfg.Clients > 0 {
		loaded.Simulation.Clients = cfg.Clients
	}
	if cfg.Rounds > 0 {
		loaded.Simulation.Rounds = cfg.Rounds
	}

	a.logger.Info("configuration loaded",
		zap.String("config", cfg.ConfigPath),
		zap.Int("clients", loaded.Simulation.Clients),
		zap.Int("rounds", loaded.Simulation.Rounds),
		zap.Int("shards", loaded.Registry.Shards),
	)

	promRegistry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(promRegistry)

	fleet := NewFleet(FleetOptions{
		Registry:   loaded.Registry,
		Simulation: loaded.Simulation,
		Logger:     a.logger,
		Metrics:    metrics,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return telemetry.StartHTTPServer(groupCtx, telemetry.HTTPServerOptions{
			Addr:          loaded.Observability.ListenAddress,
			EnableMetrics: loaded.Observability.EnableMetrics,
			EnableHealthz: loaded.Observability.EnableHealthz,
			Registry:      promRegistry,
			Health:        fleetHealth(fleet),
		}, a.logger)
	})

	var reports []RoundReport
	group.Go(func() error {
		defer cancel()
		var runErr error
		reports, runErr = fleet.Run(groupCtx)
		return runErr
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("simulation interrupted", zap.Int("rounds", len(reports)))
		err = nil
	}
	if err != nil {
		return SimulationResult{RunID: fleet.RunID(), Reports: reports}, err
	}

	a.logger.Info("simulation finished",
		telemetry.RunIDField(fleet.RunID()),
		zap.Int("rounds", len(reports)),
		zap.Int("generations", fleet.Generation()+1),
	)
	return SimulationResult{RunID: fleet.RunID(), Reports: reports}, nil
}

func fleetHealth(fleet *Fleet) telemetry.HealthFunc {
	return func() telemetry.HealthReport {
		reg := fleet.Registry()
		stats := reg.Stats()
		return telemetry.HealthReport{
			Status:   "ok",
			Registry: reg.Name(),
			Stats:    &stats,
		}
	}
}

func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	loaded, err := NewConfigLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}

	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.String("registry", loaded.Registry.Name),
		zap.Int("shards", loaded.Registry.Shards),
		zap.Int("clients", loaded.Simulation.Clients),
	)
	return nil
}
