package patchd

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/shim-installer/internal/api/grpc/patchengine"
	"github.com/oshokin/shim-installer/internal/config"
	"github.com/oshokin/shim-installer/internal/engine"
	"github.com/oshokin/shim-installer/internal/logger"
	"github.com/oshokin/shim-installer/internal/version"
)

// DefaultListenAddress is used when neither an override nor a configured engine address exists.
const DefaultListenAddress = "127.0.0.1:50061"

// Options controls the shim-patchd process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// PatcherPath overrides the patcher executable.
	PatcherPath string
	// Ready, when set, receives the bound address once the server is listening.
	Ready func(address string)
}

// ErrPatcherUnavailable indicates that the daemon has no local patcher to delegate to.
var ErrPatcherUnavailable = errors.New("patcher executable not available")

// Run starts the gRPC server and blocks until context is canceled or server stops.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "shim-patchd")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if !logger.ParseAndSetLevel(settings.LogLevel) {
		logger.WarnKV(ctx, "Ignoring unknown log level", "level", settings.LogLevel)
	}

	patcherPath := settings.PatcherPath
	if opts.PatcherPath != "" {
		patcherPath = opts.PatcherPath
	}

	// The daemon always patches locally, whatever engine address the settings name.
	availability := engine.Probe(ctx, &engine.ProbeOptions{
		PatcherPath: patcherPath,
		Timeout:     settings.Timeout,
	})
	if !availability.IsAvailable() {
		return fmt.Errorf("%w: %s: %s", ErrPatcherUnavailable, availability.Location, availability.Reason)
	}

	listenAddress := resolveListenAddress(settings.EngineAddress, opts.ListenAddress)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(patchengine.ServiceName, healthpb.HealthCheckResponse_SERVING)

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(patchengine.MaxMessageSize),
		grpc.MaxSendMsgSize(patchengine.MaxMessageSize),
	)
	patchengine.RegisterPatchEngineServer(grpcServer, patchengine.NewServer(availability.Engine))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	logger.InfoKV(ctx, "Patch engine listening",
		append([]any{"listen_address", lis.Addr().String(), "patcher", availability.Location}, version.KV()...)...)

	if opts.Ready != nil {
		opts.Ready(lis.Addr().String())
	}

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// An override wins; otherwise the configured engine address is served as is,
// so the installer and the daemon can share one settings file.
func resolveListenAddress(configAddr, override string) string {
	if override != "" {
		return override
	}

	if configAddr != "" {
		return configAddr
	}

	return DefaultListenAddress
}
