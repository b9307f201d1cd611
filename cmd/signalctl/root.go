package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/signal"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func buildRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "signalctl",
		Short:         "Run and exercise the typed signal dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml or .json)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override: debug|info|warn|error|disabled")

	root.AddCommand(
		newServeCmd(g),
		newDemoCmd(g),
		newValidateCmd(g),
		newNamesCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig returns the file configuration, or defaults when no file is
// given.
func (g *globalFlags) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, nil
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "validate",
		Short:   "Load and validate the configuration file",
		Example: "  signalctl validate -c signals.toml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.configPath == "" {
				return fmt.Errorf("validate requires --config")
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d signals configured)\n", g.configPath, len(cfg.Signals))
			return nil
		},
	}
}

func newNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names [name...]",
		Short: "List built-in signal names, or check custom names",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(out, strings.Join(signal.BuiltinNames(), "\n"))
				return nil
			}
			var bad int
			for _, name := range args {
				switch err := signal.ValidateName(name); {
				case signal.IsBuiltin(name):
					fmt.Fprintf(out, "%s: built-in\n", name)
				case err != nil:
					bad++
					fmt.Fprintf(out, "%s: %v\n", name, err)
				default:
					fmt.Fprintf(out, "%s: ok\n", name)
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d invalid signal name(s)", bad)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signalctl %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
