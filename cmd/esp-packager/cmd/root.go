package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/esp-release-packager/internal/config"
	"github.com/oshokin/esp-release-packager/internal/logger"
	"github.com/oshokin/esp-release-packager/internal/service/packager"
	"github.com/oshokin/esp-release-packager/internal/version"
)

// errUnknownLogLevel indicates the --log-level value is not a recognized level name.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// buildDir overrides the ESP-IDF build directory.
	buildDir string
	// outputDir overrides the archive output directory.
	outputDir string
	// signingKey overrides the Secure Boot signing key path.
	signingKey string
	// releaseName overrides the label in the archive filename.
	releaseName string
	// logLevel controls logging verbosity for the run.
	logLevel string

	// rootCmd represents the base command for packaging a firmware release.
	rootCmd = &cobra.Command{
		Use:   "esp-packager",
		Short: "Package an ESP-IDF build into a flashable release archive",
		Long: `Collects the flashing artifacts of an ESP-IDF project into a single archive.

Reads flasher_args.json and project_description.json from the build directory,
adjusts the flashing arguments for Secure Boot and flash encryption, renders a
flash.sh wrapper around esptool, and zips everything together with a release
description. Run it from anywhere inside the project; the project root is
located by walking up to the .git directory.

A Secure Boot build additionally needs the signing key to produce the public
key digest that is flashed to the efuse key block.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath: configPath,
				BuildDir:   buildDir,
				OutputDir:  outputDir,
				SigningKey: signingKey,
				Name:       releaseName,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the esp-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&buildDir, "build-dir", "b", "",
		"path to the ESP-IDF build directory (default: build under the project root)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "",
		"directory for the release archive (default: taken from configuration)")
	rootCmd.Flags().StringVarP(&signingKey, "signing-key", "k", "",
		"path to the Secure Boot signing key (default: taken from configuration)")
	rootCmd.Flags().StringVarP(&releaseName, "name", "n", "",
		"custom release label for the archive filename (default: derived from the project version)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error, fatal)")
}
