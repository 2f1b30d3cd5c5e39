// Package cli provides uploadop's command-line interface: factory functions
// returning *cobra.Command, a package-global signal-handled context, and a
// shared logger reached via GetLogger.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uploadop/uploadop/internal/logging"
)

var (
	cfgFile string
	verbose bool

	logger *logging.Logger

	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd builds the root "uploadop" command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "uploadop",
		Short: "Upload orchestrator driving rclone with identity rotation and adaptive staging",
		Long: `uploadop schedules, throttles, and drives rclone uploads across a pool of
service-account identities, rotating identities as daily quota and
provider-side rate-limit triggers dictate.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefault()
			if verbose {
				logging.SetGlobalLevel(-1)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (debug) logging")

	return rootCmd
}

// Execute runs the CLI, wiring Ctrl-C/SIGTERM into a cancellable context so
// an in-flight orchestrator run can release its locks before exiting.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nreceived signal %v, shutting down (waiting for in-flight transfers to release their locks)...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands attaches every uploadop subcommand to rootCmd.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newQuotaCmd())
}

// GetLogger returns the process-wide CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return logger
}

// GetContext returns the signal-handled root context.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

func requireConfigFlag() error {
	if cfgFile == "" {
		return fmt.Errorf("--config is required")
	}
	return nil
}
