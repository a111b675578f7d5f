package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/aigen/pkg/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the configuration resolved from them.
type app struct {
	configFile  string
	envFile     string
	logLevel    string
	logFormat   string
	executorURL string

	cfg *config.Config
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "aigen",
		Short: "Compile node graphs into pipeline documents and run them",
		Long: `aigen turns a Start-to-End chain of typed nodes into a YAML pipeline
document and submits it to a remote executor, once or once per batch value.

Graphs are read from the editor's JSON save format or from DOT files whose
nodes carry a kind attribute.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./aigen.yml if present)")
	pf.StringVar(&a.envFile, "env-file", "", "env file to load (default: ./.env if present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.executorURL, "executor", "", "remote executor base URL")

	root.AddCommand(compileCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(runCmd(a))
	root.AddCommand(batchCmd(a))
	root.AddCommand(healthCmd(a))
	root.AddCommand(serveCmd(a))
	return root
}

// setup loads configuration, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	var opts []config.Option
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	if a.envFile != "" {
		opts = append(opts, config.WithEnvFile(a.envFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("executor") {
		cfg.Executor.URL = a.executorURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := initLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[aigen] interrupted, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
