// Package cmd implements the gateway command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/scm-gateway/internal/config"
	"github.com/Sternrassler/scm-gateway/internal/gateway"
	"github.com/Sternrassler/scm-gateway/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information set by the main package.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo is called by main to set version information.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// app holds the flags and the lazily built runtime shared by subcommands.
type app struct {
	cfgFile  string
	output   string
	logLevel string
	verbose  bool
	adapter  string

	cfg    *config.Config
	logger zerolog.Logger
	reg    *gateway.Registry
}

// Execute runs the root command until it finishes or the process receives
// SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree writing results to out and logs
// to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "scm-gateway",
		Short: "Read repositories, issues, pull requests and deployments from GitHub and Azure DevOps",
		Long: `scm-gateway normalizes GitHub and Azure DevOps data into one schema.

Every upstream is called through an adaptive throttle that follows the
remaining-quota and Retry-After telemetry of its responses. Cursor and page
traversals are followed to exhaustion.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutput(a.output)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.reg != nil {
				return a.reg.Close()
			}
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "gateway.yaml", "config file")
	flags.StringVarP(&a.output, "output", "o", outputJSON, "output format (json or yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.StringVarP(&a.adapter, "adapter", "a", "", "adapter name (default: from repositories config, or the only adapter)")

	root.AddCommand(
		a.reposCmd(),
		a.repoCmd(),
		a.issuesCmd(),
		a.pullsCmd(),
		a.commitsCmd(),
		a.deploymentsCmd(),
		a.environmentsCmd(),
		a.scrapeCmd(),
		a.serveCmd(),
		versionCmd(),
	)
	return root
}

// load reads the configuration, sets up logging and builds the registry.
func (a *app) load(cmd *cobra.Command) error {
	if a.reg != nil {
		return nil
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	switch {
	case a.verbose:
		logCfg.Level = logging.LevelDebug
	case a.logLevel != "":
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
		logCfg.Level = logging.LogLevel(a.logLevel)
	}
	a.logger = logging.Setup(logCfg)

	reg, err := gateway.NewRegistry(cfg, a.logger)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.reg = reg
	return nil
}

// adapterFor resolves the adapter serving a repository id: the --adapter
// flag, then the repositories section, then the only configured adapter.
func (a *app) adapterFor(id string) (*gateway.Adapter, error) {
	if a.adapter != "" {
		return a.reg.Adapter(a.adapter)
	}
	for _, r := range a.cfg.Repositories {
		if r.ID == id {
			return a.reg.Adapter(r.Adapter)
		}
	}
	return a.reg.Default()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "scm-gateway %s (commit %s, built %s)\n",
				versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
			return err
		},
	}
}
