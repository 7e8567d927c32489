package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/oshokin/shim-installer/internal/service/installer"
	"github.com/oshokin/shim-installer/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// libraryDir overrides the bundled library tree.
	libraryDir string
	// patcherPath overrides the patcher executable.
	patcherPath string
	// engineAddress points at a running shim-patchd.
	engineAddress string
	// logLevel overrides the configured log level.
	logLevel string
	// dryRun prints the planned changes without applying them.
	dryRun bool

	// rootCmd represents the base command for installing the shim.
	rootCmd = &cobra.Command{
		Use:   "shim-install [package-dir]",
		Short: "Install the shim library into an extracted application package.",
		Long: `Merges the bundled native libraries into <package-dir>/lib, switches the
manifest's native library declaration to the shim and, when a patcher is available,
removes anti-tamper checks from the original binary for every architecture.

Patch failures are reported as warnings and never abort the installation.
A missing patcher only produces a notice, in which case the binaries must be patched manually.`,
		Example: heredoc.Doc(`
			# Install with the bundled libs/ folder and the patcher found in PATH
			shim-install ./smashhit

			# Use a library archive and a remote patch engine
			shim-install --libs shim-libs.tar.gz --engine-address 10.0.0.5:50061 ./smashhit

			# Show the manifest diff and planned patches without touching the package
			shim-install --dry-run ./smashhit`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				ConfigPath:    configPath,
				PackageDir:    args[0],
				LibraryDir:    libraryDir,
				PatcherPath:   patcherPath,
				EngineAddress: engineAddress,
				LogLevel:      logLevel,
				DryRun:        dryRun,
				Output:        cmd.OutOrStdout(),
			}

			return installer.Run(ctx, options)
		},
	}
)

// Execute runs the shim-install CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Empty config path means the default file next to the working directory, when present.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVar(&libraryDir, "libs", "", "library tree to deploy (default: libs next to the executable)")
	rootCmd.Flags().StringVar(&patcherPath, "patcher", "", "path to the patcher executable (default: looked up in PATH)")
	rootCmd.Flags().StringVar(&engineAddress, "engine-address", "", "address of a shim-patchd server to patch with")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print planned changes without modifying the package")
}
