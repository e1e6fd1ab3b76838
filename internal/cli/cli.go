// ============================================================================
// eventfold CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command line wrapper around an on-disk eventfold
// event log, demonstrated with a counter view and a todo-list view.
//
// Command Structure:
//   eventfold                      # Root command
//   ├── append                     # Append one event to the log
//   │   └── --dir, --type, --data
//   ├── view                       # Refresh and print a view's state
//   │   └── --dir, --name
//   ├── rotate                     # Force log rotation
//   │   └── --dir
//   ├── tail                       # Block until new events are appended
//   │   └── --dir, --timeout
//   ├── stats                      # Print log size and registered views
//   │   └── --dir
//   ├── serve                      # Run the debug HTTP server (/metrics, /views)
//   │   └── --dir, --addr
//   ├── --version
//   └── --help
//
// Configuration Management:
//   Every command reads an optional YAML config file (default:
//   configs/default.yaml) for defaults, overridable by flags:
//     dir: event log directory
//     max_log_size: auto-rotation threshold in bytes
//     metrics:
//       enabled: true/false
//       addr: listen address for the debug server
//
// ============================================================================

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/eventfold/internal/debugserver"
	"github.com/ChuLiYu/eventfold/internal/eventlog"
	"github.com/ChuLiYu/eventfold/internal/metrics"
	"github.com/ChuLiYu/eventfold/internal/storage/wal"
	"github.com/ChuLiYu/eventfold/internal/views"
	"github.com/ChuLiYu/eventfold/pkg/event"
)

// Config is the on-disk shape of an eventfold CLI config file.
type Config struct {
	Dir        string `yaml:"dir"`
	MaxLogSize uint64 `yaml:"max_log_size"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

var configFile string

func loadConfig(path string) (*Config, error) {
	cfg := &Config{Dir: "./data", MaxLogSize: 0}
	cfg.Metrics.Addr = ":9090"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// openDemoLog opens an EventLog at dir with the counter and todo demo
// views registered, the shape every CLI subcommand operates against.
func openDemoLog(dir string, maxLogSize uint64, coll *metrics.Collector) (*eventlog.EventLog, error) {
	b := eventlog.NewBuilder(dir).MaxLogSize(maxLogSize)
	if coll != nil {
		b = b.Metrics(coll)
	}
	eventlog.RegisterView[views.CounterState](b, "counter", views.NewCounterReducer("counter.incremented"))
	eventlog.RegisterView[views.TodoState](b, "todo", views.TodoReducer)
	return b.Open()
}

// BuildCLI assembles the root eventfold command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eventfold",
		Short: "eventfold: an embedded, single-writer event-sourcing log",
		Long: `eventfold is an embedded event-sourcing library: application state is
the fold of a pure reducer over an append-only log of events, cached
incrementally via on-disk snapshots.`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildAppendCommand())
	rootCmd.AddCommand(buildViewCommand())
	rootCmd.AddCommand(buildRotateCommand())
	rootCmd.AddCommand(buildTailCommand())
	rootCmd.AddCommand(buildStatsCommand())
	rootCmd.AddCommand(buildServeCommand())

	return rootCmd
}

func buildAppendCommand() *cobra.Command {
	var dir, eventType, data string

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one event to the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return appendEvent(dir, eventType, data)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (overrides config)")
	cmd.Flags().StringVar(&eventType, "type", "", "event type")
	cmd.Flags().StringVar(&data, "data", "{}", "event payload as a JSON object")
	cmd.MarkFlagRequired("type")

	return cmd
}

func appendEvent(dirFlag, eventType, rawData string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	dir := resolveDir(cfg, dirFlag)

	var payload interface{}
	if err := yaml.Unmarshal([]byte(rawData), &payload); err != nil {
		return fmt.Errorf("failed to parse --data as JSON/YAML: %w", err)
	}

	el, err := openDemoLog(dir, cfg.MaxLogSize, nil)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer el.Close()

	result, err := el.Append(event.New(eventType, payload))
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	fmt.Printf("appended at offset [%d, %d), hash=%s\n", result.StartOffset, result.EndOffset, result.LineHash)
	return nil
}

func buildViewCommand() *cobra.Command {
	var dir, name string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Refresh and print a view's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printView(dir, name)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (overrides config)")
	cmd.Flags().StringVar(&name, "name", "counter", "view name (counter, todo)")

	return cmd
}

func printView(dirFlag, name string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	dir := resolveDir(cfg, dirFlag)

	el, err := openDemoLog(dir, cfg.MaxLogSize, nil)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer el.Close()

	if err := el.RefreshAll(); err != nil {
		return fmt.Errorf("failed to refresh views: %w", err)
	}

	switch name {
	case "counter":
		state, err := eventlog.View[views.CounterState](el, "counter")
		if err != nil {
			return err
		}
		fmt.Printf("counter: %d\n", state.Count)
	case "todo":
		state, err := eventlog.View[views.TodoState](el, "todo")
		if err != nil {
			return err
		}
		for id, item := range state.Items {
			fmt.Printf("%s: %q [%s]\n", id, item.Title, item.Status)
		}
	default:
		return fmt.Errorf("unknown view %q (expected counter or todo)", name)
	}
	return nil
}

func buildRotateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Force rotation of the active log into the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rotateLog(dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (overrides config)")

	return cmd
}

func rotateLog(dirFlag string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	dir := resolveDir(cfg, dirFlag)

	el, err := openDemoLog(dir, cfg.MaxLogSize, nil)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer el.Close()

	if err := el.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate: %w", err)
	}
	fmt.Println("rotation complete")
	return nil
}

func buildTailCommand() *cobra.Command {
	var dir string
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Block until new events are appended, or the timeout elapses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailLog(dir, time.Duration(timeoutSeconds)*time.Second)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (overrides config)")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "seconds to wait before giving up")

	return cmd
}

func tailLog(dirFlag string, timeout time.Duration) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	dir := resolveDir(cfg, dirFlag)

	el, err := openDemoLog(dir, cfg.MaxLogSize, nil)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer el.Close()

	size, err := el.Reader().ActiveLogSize()
	if err != nil {
		return err
	}

	result, err := el.Reader().WaitForEvents(size, timeout)
	if err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	switch result.Outcome {
	case wal.NewData:
		fmt.Printf("new data: log grew to %d bytes\n", result.Size)
	case wal.Timeout:
		fmt.Println("timed out waiting for new events")
	}
	return nil
}

func buildStatsCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show log size and registered views",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStats(dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (overrides config)")

	return cmd
}

func showStats(dirFlag string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	dir := resolveDir(cfg, dirFlag)

	el, err := openDemoLog(dir, cfg.MaxLogSize, nil)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer el.Close()

	size, err := el.Reader().ActiveLogSize()
	if err != nil {
		return err
	}

	fmt.Println("eventfold log:")
	fmt.Printf("  dir:             %s\n", el.Dir())
	fmt.Printf("  active log path: %s\n", el.ActivePath())
	fmt.Printf("  archive path:    %s\n", el.ArchivePath())
	fmt.Printf("  active log size: %d bytes\n", size)
	fmt.Printf("  views:           %v\n", el.ViewNames())
	return nil
}

func buildServeCommand() *cobra.Command {
	var dir, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /metrics and /views/<name> over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveDebug(dir, addr)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config, default :9090)")

	return cmd
}

func serveDebug(dirFlag, addrFlag string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	dir := resolveDir(cfg, dirFlag)
	addr := addrFlag
	if addr == "" {
		addr = cfg.Metrics.Addr
	}

	coll := metrics.NewCollector()
	el, err := openDemoLog(dir, cfg.MaxLogSize, coll)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer el.Close()

	srv := debugserver.New(el, addr)
	fmt.Printf("serving /metrics and /views on %s\n", addr)
	return srv.ListenAndServe()
}

func resolveDir(cfg *Config, dirFlag string) string {
	if dirFlag != "" {
		return dirFlag
	}
	return cfg.Dir
}
