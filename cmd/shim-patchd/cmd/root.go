package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/oshokin/shim-installer/internal/service/patchd"
	"github.com/oshokin/shim-installer/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// patcherPath overrides the patcher executable.
	patcherPath string

	// rootCmd represents the base command for running the patch engine server.
	rootCmd = &cobra.Command{
		Use:   "shim-patchd [listen-address]",
		Short: "Serve the patch engine over gRPC.",
		Long: `Starts a gRPC server that patches binaries sent by shim-install with the local patcher.

The server listens on the provided address, on engine_address from the configuration
file, or on ` + patchd.DefaultListenAddress + ` when neither is set.`,
		Example: heredoc.Doc(`
			# Serve on all interfaces with the patcher found in PATH
			shim-patchd 0.0.0.0:50061`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &patchd.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				PatcherPath:   patcherPath,
			}

			return patchd.Run(ctx, options)
		},
	}
)

// Execute runs the shim-patchd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVar(&patcherPath, "patcher", "", "path to the patcher executable (default: looked up in PATH)")
}
