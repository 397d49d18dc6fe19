// ====================================
// File: cmd/scanner/main.go
// ====================================
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/app"
	"github.com/rovshanmuradov/token-scanner/internal/config"
	"github.com/rovshanmuradov/token-scanner/internal/utils/logger"
)

var (
	configPath  string
	scanUser    string
	scanTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "token-scanner",
	Short: "Solana new token discovery and risk scanner",
	Long: `token-scanner finds freshly listed Solana tokens across several market
data providers, assembles a detail card per token and scores its risk.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *app.Runner, log *logger.Logger) error {
			return r.Serve(cmd.Context())
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover recent tokens and print the first card",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *app.Runner, log *logger.Logger) error {
			defer log.TrackPerformance("cli_scan")()
			ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
			defer cancel()

			res, err := r.Service().Scan(ctx, scanUser, r.IsPrivileged(scanUser))
			if err != nil {
				return err
			}
			if !res.Decision.Allowed {
				return fmt.Errorf("throttled, retry in %ds", res.Decision.RemainingSeconds())
			}
			return printJSON(res)
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <mint|link>",
	Short: "Print the detail card for one token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *app.Runner, log *logger.Logger) error {
			defer log.TrackPerformance("cli_token")()
			ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
			defer cancel()

			page, err := r.Service().Token(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(page)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (JSON or YAML)")

	scanCmd.Flags().StringVar(&scanUser, "user", "cli", "User id the scan is throttled under")
	for _, c := range []*cobra.Command{scanCmd, tokenCmd} {
		c.Flags().DurationVar(&scanTimeout, "timeout", 60*time.Second, "Overall deadline")
	}

	rootCmd.AddCommand(serveCmd, scanCmd, tokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withRunner(fn func(r *app.Runner, log *logger.Logger) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	runner, err := app.NewRunner(cfg, log.WithComponent("scanner"))
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	return fn(runner, log)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
