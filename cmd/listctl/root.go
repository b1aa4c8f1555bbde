package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/internal/config"
	"github.com/goliatone/go-resource-list/internal/logging"
	"github.com/goliatone/go-resource-list/pkg/di"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	configPath string
	debug      bool
	timeout    time.Duration

	logger    *zap.Logger
	container *di.Container
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "listctl",
		Short: "Browse and edit console resource lists",
		Long: "listctl reads filtered, paginated resource lists from the console API " +
			"and deletes records, sharing one cache across commands.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a config file (LISTCTL_* variables override it)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 15*time.Second, "Give up after this long")

	root.AddCommand(
		newListCmd(a),
		newDeleteCmd(a),
		newOptionsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if a.debug {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return err
	}
	logger.Debug("loaded config", zap.Stringer("config", cfg))

	container, err := di.FromConfig(cfg, logger, nil)
	if err != nil {
		return err
	}

	a.logger = logger
	a.container = container
	return nil
}

func (a *app) teardown() {
	if a.container != nil {
		a.container.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
