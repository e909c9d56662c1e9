package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

// Config is the normalized runtime configuration.
type Config struct {
	Registry      RegistryConfig
	Simulation    SimulationConfig
	Observability ObservabilityConfig
}

// RegistryConfig configures the client registry.
type RegistryConfig struct {
	Name          string
	Shards        int
	RetainLimit   int
	SweepInterval time.Duration
}

// SimulationConfig configures the fleet simulation.
type SimulationConfig struct {
	Clients        int
	Rounds         int
	RoundInterval  time.Duration
	DeathRate      float64
	UpgradeAtRound int
	Seed           int64
}

// ObservabilityConfig configures the metrics and health endpoint.
type ObservabilityConfig struct {
	ListenAddress string
	EnableMetrics bool
	EnableHealthz bool
}

const envPrefix = "SSFS"

type rawConfig struct {
	Registry      rawRegistryConfig      `mapstructure:"registry"`
	Simulation    rawSimulationConfig    `mapstructure:"simulation"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
}

type rawRegistryConfig struct {
	Name                string `mapstructure:"name"`
	Shards              int    `mapstructure:"shards"`
	RetainLimit         int    `mapstructure:"retainLimit"`
	SweepIntervalMillis int    `mapstructure:"sweepIntervalMillis"`
}

type rawSimulationConfig struct {
	Clients             int     `mapstructure:"clients"`
	Rounds              int     `mapstructure:"rounds"`
	RoundIntervalMillis int     `mapstructure:"roundIntervalMillis"`
	DeathRate           float64 `mapstructure:"deathRate"`
	UpgradeAtRound      int     `mapstructure:"upgradeAtRound"`
	Seed                int64   `mapstructure:"seed"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	Metrics       bool   `mapstructure:"metrics"`
	Healthz       bool   `mapstructure:"healthz"`
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)
	return v
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("registry.name", domain.DefaultRegistryName)
	v.SetDefault("registry.shards", domain.DefaultShardCount)
	v.SetDefault("registry.retainLimit", domain.DefaultRetainLimit)
	v.SetDefault("registry.sweepIntervalMillis", domain.DefaultSweepIntervalMillis)
	v.SetDefault("simulation.clients", domain.DefaultSimulationClients)
	v.SetDefault("simulation.rounds", domain.DefaultSimulationRounds)
	v.SetDefault("simulation.roundIntervalMillis", domain.DefaultSimulationRoundMillis)
	v.SetDefault("simulation.deathRate", domain.DefaultSimulationDeathRate)
	v.SetDefault("simulation.upgradeAtRound", domain.DefaultSimulationUpgradeAt)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metrics", false)
	v.SetDefault("observability.healthz", false)
}

// ConfigLoader reads configuration from YAML and the environment.
type ConfigLoader struct {
	logger *zap.Logger
}

// NewConfigLoader constructs a loader.
func NewConfigLoader(logger *zap.Logger) *ConfigLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigLoader{logger: logger.Named("config")}
}

// Load reads path, or only defaults and environment when path is empty.
func (l *ConfigLoader) Load(ctx context.Context, path string) (Config, error) {
	v := newConfigViper()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	} else {
		l.logger.Debug("no config file given, using defaults")
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	cfg, validationErrors := normalizeConfig(raw)
	if len(validationErrors) > 0 {
		return Config{}, fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(validationErrors, "; "))
	}
	return cfg, nil
}

func normalizeConfig(raw rawConfig) (Config, []string) {
	var errs []string

	name := strings.TrimSpace(raw.Registry.Name)
	if name == "" {
		name = domain.DefaultRegistryName
	}
	if raw.Registry.Shards < 1 {
		errs = append(errs, "registry.shards must be >= 1")
	}
	if raw.Registry.RetainLimit < 0 {
		errs = append(errs, "registry.retainLimit must be >= 0")
	}
	if raw.Registry.SweepIntervalMillis < 0 {
		errs = append(errs, "registry.sweepIntervalMillis must be >= 0")
	}
	if raw.Simulation.Clients < 1 {
		errs = append(errs, "simulation.clients must be >= 1")
	}
	if raw.Simulation.Rounds < 1 {
		errs = append(errs, "simulation.rounds must be >= 1")
	}
	if raw.Simulation.RoundIntervalMillis < 0 {
		errs = append(errs, "simulation.roundIntervalMillis must be >= 0")
	}
	if raw.Simulation.DeathRate < 0 || raw.Simulation.DeathRate > 1 {
		errs = append(errs, "simulation.deathRate must be within [0, 1]")
	}
	if raw.Simulation.UpgradeAtRound < 0 {
		errs = append(errs, "simulation.upgradeAtRound must be >= 0")
	}
	if addr := strings.TrimSpace(raw.Observability.ListenAddress); addr == "" && (raw.Observability.Metrics || raw.Observability.Healthz) {
		errs = append(errs, "observability.listenAddress is required when metrics or healthz is enabled")
	}

	return Config{
		Registry: RegistryConfig{
			Name:          name,
			Shards:        raw.Registry.Shards,
			RetainLimit:   raw.Registry.RetainLimit,
			SweepInterval: millis(raw.Registry.SweepIntervalMillis),
		},
		Simulation: SimulationConfig{
			Clients:        raw.Simulation.Clients,
			Rounds:         raw.Simulation.Rounds,
			RoundInterval:  millis(raw.Simulation.RoundIntervalMillis),
			DeathRate:      raw.Simulation.DeathRate,
			UpgradeAtRound: raw.Simulation.UpgradeAtRound,
			Seed:           raw.Simulation.Seed,
		},
		Observability: ObservabilityConfig{
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
			EnableMetrics: raw.Observability.Metrics,
			EnableHealthz: raw.Observability.Healthz,
		},
	}, errs
}

func millis(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}
