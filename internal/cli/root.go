package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portfolio-trader/internal/config"
	"portfolio-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-29"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.SnapshotStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	snapshots, err := store.NewSQLiteStore(cfg.Snapshots.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize snapshot store, positions will not persist")
	} else {
		app.Store = snapshots
		logger.Debug().Str("path", cfg.Snapshots.Path).Msg("snapshot store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Portfolio Trader - position and order lifecycle CLI",
		Long: `Portfolio Trader tracks per-instrument positions and manages the
lifecycle of market orders against an execution venue.

Positions survive restarts through SQLite snapshots. The sim command
runs a session against a simulated venue.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/portfolio-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newSimCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Portfolio Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Account")
	output.Printf("  Broker ID:       %s\n", valueOrUnset(cfg.Account.BrokerID))
	output.Printf("  Account:         %s\n", valueOrUnset(cfg.Account.Account))
	output.Println()

	output.Bold("Orders")
	output.Printf("  Timeout:          %s\n", cfg.Orders.Timeout)
	output.Printf("  External Reports: %s\n", cfg.Orders.ExternalReports)
	output.Printf("  Cancel On Timeout: %v\n", cfg.Orders.CancelOnTimeout)
	output.Println()

	output.Bold("Sim Venue")
	output.Printf("  Latency:         %s\n", cfg.Sim.Latency)
	output.Printf("  Partial Lots:    %d\n", cfg.Sim.PartialLots)
	output.Println()

	output.Bold("Snapshots")
	output.Printf("  Path:            %s\n", cfg.Snapshots.Path)
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
