// Package cli holds the flags and start-up steps shared by every lc3tools
// command: --config, --verbose, logger setup and the version subcommand.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lc3tools/internal/logging"
	"lc3tools/pkg/buildinfo"
	"lc3tools/pkg/config"
)

// Globals are the persistent flags every command accepts.
type Globals struct {
	ConfigPath string
	Verbose    bool
	// Dir is searched for lc3sim.yaml and .env when ConfigPath is empty.
	Dir string
}

// Bind registers the persistent flags on cmd.
func (g *Globals) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "path to "+config.FileName)
	cmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "enable debug logging")
	if g.Dir == "" {
		g.Dir = "."
	}
}

// Setup loads the configuration and installs the global console logger.
func (g *Globals) Setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Resolve(g.ConfigPath, g.Dir)
	if err != nil {
		log.Logger = logging.Stderr(logging.Level("", g.Verbose))
		return nil, log.Logger, err
	}
	log.Logger = logging.Stderr(logging.Level(cfg.LogLevel, g.Verbose))
	log.Debug().Str("options", cfg.Options.String()).Msg("configuration loaded")
	return cfg, log.Logger, nil
}

// VersionCommand prints the build metadata for the named binary.
func VersionCommand(name string) *cobra.Command {
	var deps bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + name,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), buildinfo.Summary(name))
			if !deps {
				return
			}
			for _, d := range buildinfo.Dependencies() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", d.Path, d.Version)
			}
		},
	}
	cmd.Flags().BoolVar(&deps, "deps", false, "also list the modules compiled in")
	return cmd
}
