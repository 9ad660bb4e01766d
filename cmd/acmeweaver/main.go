// acmeweaver publishes and removes ACME DNS-01 challenge TXT records
// through the Cloudflare API and confirms propagation through public DNS
// before reporting success. The subcommands exercise the full challenge
// lifecycle against a live account, run a complete test order against an
// ACME directory, or serve the challenge API over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/acmeweaver/internal/config"
	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
	"gitlab.bluewillows.net/root/acmeweaver/providers/cloudflare"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-29"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "acmeweaver",
	Short: "ACME DNS-01 challenge provider for Cloudflare DNS",
	Long: `acmeweaver manages the TXT records behind ACME DNS-01 challenges:
it resolves the Cloudflare zone for a record, publishes and removes the
challenge value, and polls public DNS until the change has propagated.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if verbose {
			c.LogLevel = "debug"
		}

		logger = setupLogger(c.LogLevel, c.LogFormat)
		slog.SetDefault(logger)
		metrics.SetBuildInfo(Version, runtime.Version())

		cfg = c
		return nil
	},
}

func init() {
	// Load .env file if it exists (silently ignore if not found).
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(zonesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newProvider builds the Cloudflare provider from the loaded configuration.
func newProvider() (*cloudflare.Provider, error) {
	p, err := cloudflare.NewFromMap(cfg.Provider, cloudflare.WithProviderLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	return p, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("acmeweaver %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
	},
}
