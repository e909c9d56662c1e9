package domain

const (
	DefaultRegistryName        = "default"
	DefaultShardCount          = 16
	DefaultRetainLimit         = 1024
	DefaultSweepIntervalMillis = 1000

	DefaultSimulationClients     = 8
	DefaultSimulationRounds      = 10
	DefaultSimulationRoundMillis = 50
	DefaultSimulationDeathRate   = 0.1
	DefaultSimulationUpgradeAt   = 5

	DefaultObservabilityListenAddress = "127.0.0.1:9090"
)
