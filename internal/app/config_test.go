package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ssfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigLoader_Defaults(t *testing.T) {
	cfg, err := NewConfigLoader(zap.NewNop()).Load(context.Background(), "")
	require.NoError(t, err)

	want := Config{
		Registry: RegistryConfig{
			Name:          domain.DefaultRegistryName,
			Shards:        domain.DefaultShardCount,
			RetainLimit:   domain.DefaultRetainLimit,
			SweepInterval: time.Duration(domain.DefaultSweepIntervalMillis) * time.Millisecond,
		},
		Simulation: SimulationConfig{
			Clients:        domain.DefaultSimulationClients,
			Rounds:         domain.DefaultSimulationRounds,
			RoundInterval:  time.Duration(domain.DefaultSimulationRoundMillis) * time.Millisecond,
			DeathRate:      domain.DefaultSimulationDeathRate,
			UpgradeAtRound: domain.DefaultSimulationUpgradeAt,
		},
		Observability: ObservabilityConfig{
			ListenAddress: domain.DefaultObservabilityListenAddress,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigLoader_File(t *testing.T) {
	path := writeConfig(t, `
registry:
  name: edge
  shards: 4
  retainLimit: 0
  sweepIntervalMillis: 0
simulation:
  clients: 3
  rounds: 2
  roundIntervalMillis: 5
  deathRate: 0.5
  upgradeAtRound: 1
  seed: 42
observability:
  listenAddress: "127.0.0.1:0"
  metrics: true
`)

	cfg, err := NewConfigLoader(zap.NewNop()).Load(context.Background(), path)
	require.NoError(t, err)

	want := Config{
		Registry: RegistryConfig{Name: "edge", Shards: 4},
		Simulation: SimulationConfig{
			Clients:        3,
			Rounds:         2,
			RoundInterval:  5 * time.Millisecond,
			DeathRate:      0.5,
			UpgradeAtRound: 1,
			Seed:           42,
		},
		Observability: ObservabilityConfig{
			ListenAddress: "127.0.0.1:0",
			EnableMetrics: true,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigLoader_EnvOverride(t *testing.T) {
	t.Setenv("SSFS_REGISTRY_SHARDS", "2")
	t.Setenv("SSFS_SIMULATION_CLIENTS", "5")

	cfg, err := NewConfigLoader(zap.NewNop()).Load(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Registry.Shards)
	require.Equal(t, 5, cfg.Simulation.Clients)
}

func TestConfigLoader_Invalid(t *testing.T) {
	path := writeConfig(t, `
registry:
  shards: 0
simulation:
  deathRate: 1.5
`)

	_, err := NewConfigLoader(zap.NewNop()).Load(context.Background(), path)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrInvalidConfig))
	require.Contains(t, err.Error(), "registry.shards")
	require.Contains(t, err.Error(), "simulation.deathRate")

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeInvalidArgument, code)
}

func TestConfigLoader_MissingFile(t *testing.T) {
	_, err := NewConfigLoader(zap.NewNop()).Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}

func TestConfigLoader_MalformedFile(t *testing.T) {
	path := writeConfig(t, "registry: [unterminated")

	_, err := NewConfigLoader(zap.NewNop()).Load(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}
