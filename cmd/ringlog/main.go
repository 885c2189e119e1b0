package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	agentrun "github.com/rzbill/ringlog/internal/cmd/agent"
	clientcmd "github.com/rzbill/ringlog/internal/cmd/client"
	collectorrun "github.com/rzbill/ringlog/internal/cmd/collector"
	"github.com/rzbill/ringlog/internal/cmd/inspect"
	cfgpkg "github.com/rzbill/ringlog/internal/config"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/filter"
	logpkg "github.com/rzbill/ringlog/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// CLI logger; agent and collector replace it from config.
	level := os.Getenv("RINGLOG_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "ringlog",
		Short: "ringlog event log CLI",
		Long:  "ringlog records fixed-size events in a ring buffer, drains them to numbered files and uploads them to a collector.",
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("RINGLOG_CONFIG"), "JSON config file")

	// agent start
	agentCmd := &cobra.Command{Use: "agent", Short: "Agent commands"}
	agentStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the logging agent (drain, upload, diagnostics HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			l, err := logpkg.ApplyConfig(&cfg.Log)
			if err != nil {
				return err
			}
			logpkg.RedirectStdLog(l)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := agentrun.Run(ctx, agentrun.Options{Config: cfg, Logger: l}); err != nil {
				return fmt.Errorf("agent error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	agentStartCmd.Flags().String("log-dir", "", "Directory for numbered .log files (empty disables file output)")
	agentStartCmd.Flags().String("data-dir", "", "Pebble directory for ring checkpoints (empty disables persistence)")
	agentStartCmd.Flags().String("server", "", "Collector URL, e.g. tcp://collector:5000")
	agentStartCmd.Flags().String("http", "", "Diagnostics HTTP listen address")
	agentStartCmd.Flags().Int("capacity", 0, "Ring capacity in records")
	agentStartCmd.Flags().String("fsync", "", "Checkpoint fsync mode: always|interval|never")
	agentStartCmd.Flags().Bool("print", false, "Echo every record to stdout as it is logged")
	agentStartCmd.Flags().Bool("print-only", false, "Echo records to stdout without storing them")
	agentStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	agentStartCmd.Flags().String("log-format", "", "Log format: text|json (default text)")
	agentCmd.AddCommand(agentStartCmd)
	rootCmd.AddCommand(agentCmd)

	// collector start|list
	collectorCmd := &cobra.Command{Use: "collector", Short: "Upload collector commands"}
	collectorStartCmd := &cobra.Command{
		Use:   "start",
		Short: "Accept uploads from agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			l, err := logpkg.ApplyConfig(&cfg.Log)
			if err != nil {
				return err
			}
			logpkg.RedirectStdLog(l)
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return collectorrun.Run(ctx, collectorrun.Options{Config: cfg, Logger: l})
		},
	}
	collectorStartCmd.Flags().String("addr", "", "Listen address")
	collectorStartCmd.Flags().String("dir", "", "Directory for received files")
	collectorStartCmd.Flags().Bool("compress", false, "Store received files zstd-compressed")
	collectorStartCmd.Flags().String("index-driver", "", "Upload index driver: sqlite|postgres|mysql")
	collectorStartCmd.Flags().String("index-dsn", "", "Upload index DSN")
	collectorListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent uploads from the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return collectorrun.List(cmd.Context(), cfg, limit, cmd.OutOrStdout())
		},
	}
	collectorListCmd.Flags().Int("limit", 20, "Number of uploads")
	collectorListCmd.Flags().String("dir", "", "Collector directory")
	collectorListCmd.Flags().String("index-driver", "", "Upload index driver")
	collectorListCmd.Flags().String("index-dsn", "", "Upload index DSN")
	collectorCmd.AddCommand(collectorStartCmd, collectorListCmd)
	rootCmd.AddCommand(collectorCmd)

	// dump
	dumpCmd := &cobra.Command{
		Use:   "dump <file|dir>...",
		Short: "Print .log or .log.zst files as text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventsFile, _ := cmd.Flags().GetString("events")
			expr, _ := cmd.Flags().GetString("filter")
			table := events.Default()
			if eventsFile != "" {
				t, err := events.LoadTable(eventsFile)
				if err != nil {
					return err
				}
				table = t
			}
			paths, err := inspect.Expand(args)
			if err != nil {
				return err
			}
			var f inspect.Filter
			if expr != "" {
				cf, err := filter.New(expr, table)
				if err != nil {
					return err
				}
				f = cf
			}
			return inspect.Dump(cmd.OutOrStdout(), paths, table, f)
		},
	}
	dumpCmd.Flags().String("events", os.Getenv("RINGLOG_EVENTS_FILE"), "JSON event table (default built-in)")
	dumpCmd.Flags().String("filter", "", "CEL filter, e.g. name == \"TCP_SEND_FAILURE\"")
	rootCmd.AddCommand(dumpCmd)

	// log and upload commands against a running agent
	rootCmd.AddCommand(clientcmd.NewLogCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewUploadCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, overlays RINGLOG_* and then any flags the
// command defines and the user set.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	cfgpkg.FromEnv(&cfg)

	fl := cmd.Flags()
	str := func(name string, dst *string) {
		if fl.Lookup(name) != nil && fl.Changed(name) {
			*dst, _ = fl.GetString(name)
		}
	}
	str("log-dir", &cfg.LogDir)
	str("data-dir", &cfg.DataDir)
	str("server", &cfg.Upload.ServerURL)
	str("http", &cfg.HTTPAddr)
	str("fsync", &cfg.Fsync)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("addr", &cfg.Collector.Addr)
	str("dir", &cfg.Collector.Dir)
	str("index-driver", &cfg.Collector.IndexDriver)
	str("index-dsn", &cfg.Collector.IndexDSN)
	if fl.Lookup("capacity") != nil && fl.Changed("capacity") {
		cfg.Capacity, _ = fl.GetInt("capacity")
	}
	boolean := func(name string, dst *bool) {
		if fl.Lookup(name) != nil && fl.Changed(name) {
			*dst, _ = fl.GetBool(name)
		}
	}
	boolean("compress", &cfg.Collector.Compress)
	boolean("print", &cfg.Print)
	boolean("print-only", &cfg.PrintOnly)
	return cfg, cfg.Validate()
}

func apiURL() string {
	if v := os.Getenv("RINGLOG_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:5061"
}
