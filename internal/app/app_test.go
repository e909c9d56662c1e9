package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

func TestApp_Simulate(t *testing.T) {
	path := writeConfig(t, `
registry:
  shards: 2
  sweepIntervalMillis: 1
simulation:
  clients: 10
  rounds: 10
  roundIntervalMillis: 0
  deathRate: 0.2
  upgradeAtRound: 4
  seed: 5
`)

	core, logs := observer.New(zapcore.InfoLevel)
	application := New(zap.New(core))

	result, err := application.Simulate(context.Background(), SimulateConfig{ConfigPath: path, Rounds: 6})
	require.NoError(t, err)
	require.Len(t, result.Reports, 6)
	require.NotEmpty(t, result.RunID)
	assert.True(t, result.Reports[3].Upgraded)

	assert.Equal(t, 1, logs.FilterMessage("simulation finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("hot upgrade complete").Len())
	assert.Equal(t, 6, logs.FilterMessage("round finished").Len())
}

func TestApp_SimulateInvalidConfig(t *testing.T) {
	path := writeConfig(t, "simulation:\n  clients: 0\n")

	_, err := New(zap.NewNop()).Simulate(context.Background(), SimulateConfig{ConfigPath: path})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestApp_SimulateCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zap.NewNop()).Simulate(ctx, SimulateConfig{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestApp_ValidateConfig(t *testing.T) {
	application := New(zap.NewNop())

	require.NoError(t, application.ValidateConfig(context.Background(), ValidateConfig{}))

	path := writeConfig(t, "registry:\n  retainLimit: -1\n")
	err := application.ValidateConfig(context.Background(), ValidateConfig{ConfigPath: path})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
