package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string
	cfg        Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: defaultConfig()}

	root := &cobra.Command{
		Use:          "tally",
		Short:        "Operate on tally identifiers, rankings and counters",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			a.logger.Debug("config loaded", "path", a.configPath, "json", cfg.Logger.JSON)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "tally.yaml", "path to the YAML config file")

	root.AddCommand(
		newIDCmd(),
		newDiscoverCmd(a),
		newReconcileCmd(a),
	)
	return root
}
