package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/esp-release-packager/internal/logger"
	"github.com/oshokin/esp-release-packager/internal/service/verifier"
	"github.com/oshokin/esp-release-packager/internal/version"
)

// errUnknownLogLevel indicates the --log-level value is not a recognized level name.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// logLevel controls logging verbosity for the run.
	logLevel string

	// rootCmd represents the base command for verifying a release archive.
	rootCmd = &cobra.Command{
		Use:   "esp-verifier [archive]",
		Short: "Verify a packaged firmware release archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return verifier.Run(ctx, &verifier.Options{ArchivePath: args[0]})
		},
	}
)

// Execute runs the esp-verifier CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error, fatal)")
}
