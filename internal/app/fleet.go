package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wuyuepku/ssfscg/internal/domain"
	"github.com/wuyuepku/ssfscg/internal/infra/handle"
	"github.com/wuyuepku/ssfscg/internal/infra/registry"
	"github.com/wuyuepku/ssfscg/internal/infra/telemetry"
)

// AppSharedObj is the payload each simulated client shares with the server.
// A counts server visits, B counts client-side work.
type AppSharedObj struct {
	A int
	B int
}

type simClient struct {
	name  string
	owner *handle.Owner[AppSharedObj]
}

// RoundReport summarizes one simulation round.
type RoundReport struct {
	Round      int
	Generation int
	Alive      int
	Died       int
	Swept      int
	Upgraded   bool
	Stats      domain.RegistryStats
}

// FleetOptions configures a Fleet.
type FleetOptions struct {
	Registry   RegistryConfig
	Simulation SimulationConfig
	Logger     *zap.Logger
	Metrics    domain.Metrics
}

// Fleet drives simulated clients against a registry and can replace the
// registry mid-run to model a hot upgrade.
type Fleet struct {
	logger  *zap.Logger
	metrics domain.Metrics
	regCfg  RegistryConfig
	simCfg  SimulationConfig
	runID   string

	mu          sync.Mutex
	rng         *rand.Rand
	clients     []*simClient
	reg         *registry.Registry[AppSharedObj]
	generation  int
	stopSweeper context.CancelFunc
	deadClients []domain.ClientID
}

// NewFleet constructs a fleet with its first registry generation. Clients are
// not started until Start.
func NewFleet(opts FleetOptions) *Fleet {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	seed := opts.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()
	f := &Fleet{
		logger:  logger.Named("fleet").With(telemetry.RunIDField(runID)),
		metrics: metrics,
		regCfg:  opts.Registry,
		simCfg:  opts.Simulation,
		runID:   runID,
		rng:     rand.New(rand.NewSource(seed)),
	}
	f.reg = f.newRegistry()
	return f
}

// RunID identifies this simulation run in logs.
func (f *Fleet) RunID() string {
	return f.runID
}

func (f *Fleet) newRegistry() *registry.Registry[AppSharedObj] {
	return registry.New[AppSharedObj](
		registry.WithName[AppSharedObj](f.regCfg.Name),
		registry.WithShards[AppSharedObj](f.regCfg.Shards),
		registry.WithRetainLimit[AppSharedObj](f.regCfg.RetainLimit),
		registry.WithLogger[AppSharedObj](f.logger),
		registry.WithMetrics[AppSharedObj](f.metrics),
	)
}

// Registry returns the current registry generation.
func (f *Fleet) Registry() *registry.Registry[AppSharedObj] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg
}

// Generation returns how many hot upgrades have happened.
func (f *Fleet) Generation() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// Alive returns the number of clients still holding their payload.
func (f *Fleet) Alive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Start spawns the configured number of clients, each registering itself,
// and starts the background sweeper.
func (f *Fleet) Start(ctx context.Context) error {
	for i := 0; i < f.simCfg.Clients; i++ {
		if err := f.Join(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.startSweeperLocked(ctx)
	f.mu.Unlock()
	return nil
}

// Join adds one client and registers it with the current registry.
func (f *Fleet) Join() error {
	client := &simClient{
		name:  "client-" + uuid.NewString()[:8],
		owner: handle.New(AppSharedObj{}),
	}

	f.mu.Lock()
	reg := f.reg
	f.clients = append(f.clients, client)
	f.mu.Unlock()

	if err := reg.Register(client.owner.Handle()); err != nil {
		return fmt.Errorf("join %s: %w", client.name, err)
	}
	f.logger.Debug("client joined",
		telemetry.EventField(telemetry.EventRegister),
		telemetry.ClientNameField(client.name),
		telemetry.ClientIDField(client.owner.ID()),
	)
	return nil
}

func (f *Fleet) startSweeperLocked(ctx context.Context) {
	if f.regCfg.SweepInterval <= 0 {
		return
	}
	if f.stopSweeper != nil {
		f.stopSweeper()
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	f.stopSweeper = cancel
	f.reg.StartSweeper(sweepCtx, f.regCfg.SweepInterval)
}

// Round runs client work, server visits, random client deaths and a sweep.
func (f *Fleet) Round(ctx context.Context, round int) (RoundReport, error) {
	f.mu.Lock()
	clients := append([]*simClient(nil), f.clients...)
	reg := f.reg
	generation := f.generation
	f.mu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, client := range clients {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return client.owner.With(func(obj *AppSharedObj) error {
				obj.B++
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return RoundReport{}, fmt.Errorf("round %d client work: %w", round, err)
	}

	for _, info := range reg.Snapshot() {
		err := reg.Access(info.ID, func(obj *AppSharedObj) error {
			obj.A++
			return nil
		})
		if err != nil {
			f.logger.Debug("server visit skipped", telemetry.ClientIDField(info.ID), zap.Error(err))
			continue
		}
		if round%2 == 0 {
			reg.Capture(info.ID)
		}
	}

	died := f.killRandom(round)
	swept := reg.Sweep()

	report := RoundReport{
		Round:      round,
		Generation: generation,
		Alive:      f.Alive(),
		Died:       died,
		Swept:      swept,
		Stats:      reg.Stats(),
	}
	f.logger.Info("round finished",
		telemetry.RoundField(round),
		zap.Int("generation", generation),
		zap.Int("alive", report.Alive),
		zap.Int("died", died),
		zap.Int("swept", swept),
		zap.Int("entries", report.Stats.Entries),
		zap.Int("retained", report.Stats.Retained),
	)
	return report, nil
}

func (f *Fleet) killRandom(round int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	survivors := f.clients[:0]
	died := 0
	for _, client := range f.clients {
		if f.rng.Float64() < f.simCfg.DeathRate {
			client.owner.Release()
			f.deadClients = append(f.deadClients, client.owner.ID())
			died++
			f.logger.Debug("client died",
				telemetry.EventField(telemetry.EventClientDied),
				telemetry.RoundField(round),
				telemetry.ClientNameField(client.name),
				telemetry.ClientIDField(client.owner.ID()),
			)
			continue
		}
		survivors = append(survivors, client)
	}
	for i := len(survivors); i < len(f.clients); i++ {
		f.clients[i] = nil
	}
	f.clients = survivors
	return died
}

// HotUpgrade discards the current registry and rebuilds a fresh one from the
// clients that are still alive. Nothing is carried over from the old
// registry; checkpoints are recomputed from live payloads.
func (f *Fleet) HotUpgrade(ctx context.Context) (int, error) {
	f.mu.Lock()
	if f.stopSweeper != nil {
		f.stopSweeper()
		f.stopSweeper = nil
	}
	f.reg = f.newRegistry()
	f.generation++
	reg := f.reg
	generation := f.generation
	clients := append([]*simClient(nil), f.clients...)
	f.startSweeperLocked(ctx)
	f.mu.Unlock()

	rebuilt := 0
	for _, client := range clients {
		if err := reg.Register(client.owner.Handle()); err != nil {
			return rebuilt, fmt.Errorf("hot upgrade re-register %s: %w", client.name, err)
		}
		if reg.Capture(client.owner.ID()) {
			rebuilt++
		}
	}

	f.logger.Info("hot upgrade complete",
		telemetry.EventField(telemetry.EventHotUpgrade),
		zap.Int("generation", generation),
		zap.Int("rebuilt", rebuilt),
	)
	return rebuilt, nil
}

// Verify checks that every living client is registered and that no dead
// client is reported live.
func (f *Fleet) Verify() error {
	f.mu.Lock()
	clients := append([]*simClient(nil), f.clients...)
	dead := append([]domain.ClientID(nil), f.deadClients...)
	reg := f.reg
	f.mu.Unlock()

	for _, client := range clients {
		if !reg.HasClient(client.owner.ID()) {
			return domain.E(domain.CodeInternal, "verify", fmt.Sprintf("live client %s missing from registry", client.name), nil)
		}
	}
	for _, id := range dead {
		if reg.HasClient(id) {
			return domain.E(domain.CodeInternal, "verify", fmt.Sprintf("dead client %d reported live", id), nil)
		}
	}
	return nil
}

// Run executes the configured rounds, performing a hot upgrade after
// UpgradeAtRound when it is set.
func (f *Fleet) Run(ctx context.Context) ([]RoundReport, error) {
	if err := f.Start(ctx); err != nil {
		return nil, err
	}
	defer f.Stop()

	reports := make([]RoundReport, 0, f.simCfg.Rounds)
	for round := 1; round <= f.simCfg.Rounds; round++ {
		report, err := f.Round(ctx, round)
		if err != nil {
			return reports, err
		}
		if f.simCfg.UpgradeAtRound > 0 && round == f.simCfg.UpgradeAtRound {
			if _, err := f.HotUpgrade(ctx); err != nil {
				return reports, err
			}
			report.Upgraded = true
		}
		reports = append(reports, report)
		if err := f.Verify(); err != nil {
			return reports, err
		}

		if round == f.simCfg.Rounds || f.simCfg.RoundInterval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		case <-time.After(f.simCfg.RoundInterval):
		}
	}
	return reports, nil
}

// Stop releases every remaining client and stops the sweeper.
func (f *Fleet) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopSweeper != nil {
		f.stopSweeper()
		f.stopSweeper = nil
	}
	for _, client := range f.clients {
		client.owner.Release()
		f.deadClients = append(f.deadClients, client.owner.ID())
	}
	f.clients = nil
}
