package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wuyuepku/ssfscg/internal/app"
	"github.com/wuyuepku/ssfscg/internal/domain"
)

type rootOptions struct {
	configPath string
	logLevel   string
	devLogs    bool
	logger     *zap.Logger
}

type simulateOptions struct {
	clients int
	rounds  int
}

func main() {
	opts := &rootOptions{logger: zap.NewNop()}

	root := newRootCmd(opts)
	if err := root.Execute(); err != nil {
		fields := []zap.Field{zap.Error(err)}
		if code, ok := domain.CodeFrom(err); ok {
			fields = append(fields, zap.String("code", string(code)))
		}
		opts.logger.Error("command failed", fields...)
		_ = opts.logger.Sync()
		os.Exit(1)
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "ssfsd",
		Short:         "State-spill-free client registry demonstration harness",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := app.NewLogger(app.LoggingConfig{
				Level:       opts.logLevel,
				Development: opts.devLogs,
			})
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults only when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.devLogs, "dev-logs", false, "use human readable development logging")

	root.AddCommand(
		newSimulateCmd(opts),
		newValidateCmd(opts),
	)

	return root
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	simOpts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated client fleet against the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			applySimulateFlagBindings(cmd.Flags(), &simOpts)
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logger)
			_, err := application.Simulate(ctx, app.SimulateConfig{
				ConfigPath: opts.configPath,
				Clients:    simOpts.clients,
				Rounds:     simOpts.rounds,
			})
			return err
		},
	}

	cmd.Flags().Int("clients", 0, "override simulation.clients")
	cmd.Flags().Int("rounds", 0, "override simulation.rounds")

	return cmd
}

// applySimulateFlagBindings copies only the flags that were set on the
// command line.
func applySimulateFlagBindings(flags *pflag.FlagSet, opts *simulateOptions) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "clients":
			opts.clients, _ = flags.GetInt("clients")
		case "rounds":
			opts.rounds, _ = flags.GetInt("rounds")
		}
	})
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without running the simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(opts.logger)
			return application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}

	return cmd
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
