package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

func testFleet(t *testing.T, sim SimulationConfig) *Fleet {
	t.Helper()
	fleet := NewFleet(FleetOptions{
		Registry: RegistryConfig{
			Name:        "test",
			Shards:      4,
			RetainLimit: 64,
		},
		Simulation: sim,
		Logger:     zap.NewNop(),
	})
	t.Cleanup(fleet.Stop)
	return fleet
}

func TestFleet_StartRegistersClients(t *testing.T) {
	fleet := testFleet(t, SimulationConfig{Clients: 5, Rounds: 1, Seed: 1})
	require.NoError(t, fleet.Start(context.Background()))

	assert.Equal(t, 5, fleet.Alive())
	assert.Equal(t, 5, fleet.Registry().Stats().Live)
	require.NoError(t, fleet.Verify())
}

func TestFleet_RoundVisitsAndCheckpoints(t *testing.T) {
	fleet := testFleet(t, SimulationConfig{Clients: 3, Rounds: 2, Seed: 1})
	require.NoError(t, fleet.Start(context.Background()))

	report, err := fleet.Round(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Round)
	assert.Equal(t, 3, report.Alive)
	assert.Zero(t, report.Died)

	reg := fleet.Registry()
	for _, info := range reg.Snapshot() {
		require.True(t, info.HasCheckpoint)
		value, ok := reg.ReadCheckpoint(info.ID)
		require.True(t, ok)
		assert.Equal(t, AppSharedObj{A: 1, B: 1}, value)
	}
}

func TestFleet_AllClientsDie(t *testing.T) {
	fleet := testFleet(t, SimulationConfig{Clients: 4, Rounds: 1, DeathRate: 1, Seed: 7})
	require.NoError(t, fleet.Start(context.Background()))

	report, err := fleet.Round(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Died)
	assert.Equal(t, 4, report.Swept)
	assert.Zero(t, report.Alive)
	assert.Equal(t, domain.RegistryStats{Entries: 0, Live: 0, Retained: 4}, report.Stats)
	require.NoError(t, fleet.Verify())
}

func TestFleet_HotUpgradeRebuildsFromLiveClients(t *testing.T) {
	fleet := testFleet(t, SimulationConfig{Clients: 6, Rounds: 1, DeathRate: 0.5, Seed: 3})
	require.NoError(t, fleet.Start(context.Background()))

	_, err := fleet.Round(context.Background(), 1)
	require.NoError(t, err)
	alive := fleet.Alive()
	old := fleet.Registry()

	rebuilt, err := fleet.HotUpgrade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alive, rebuilt)
	assert.Equal(t, 1, fleet.Generation())

	next := fleet.Registry()
	require.NotSame(t, old, next)
	stats := next.Stats()
	assert.Equal(t, alive, stats.Live)
	assert.Zero(t, stats.Retained)
	require.NoError(t, fleet.Verify())
}

func TestFleet_Run(t *testing.T) {
	fleet := testFleet(t, SimulationConfig{
		Clients:        4,
		Rounds:         3,
		RoundInterval:  time.Millisecond,
		DeathRate:      0.25,
		UpgradeAtRound: 2,
		Seed:           11,
	})

	reports, err := fleet.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.False(t, reports[0].Upgraded)
	assert.True(t, reports[1].Upgraded)
	assert.Equal(t, 1, reports[2].Generation)
	assert.Zero(t, fleet.Alive())
}

func TestFleet_RunCanceled(t *testing.T) {
	fleet := testFleet(t, SimulationConfig{
		Clients:       2,
		Rounds:        100,
		RoundInterval: time.Hour,
		Seed:          1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	reports, err := fleet.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, reports, 1)
}
