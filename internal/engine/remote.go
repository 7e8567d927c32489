package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/shim-installer/internal/api/grpc/patchengine"
	"github.com/oshokin/shim-installer/internal/domain/patchset"
	"github.com/oshokin/shim-installer/internal/fileutil"
	"github.com/oshokin/shim-installer/internal/logger"
)

// DefaultCallTimeout bounds a single remote call when no timeout is configured.
const DefaultCallTimeout = 2 * time.Minute

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errNotServing is returned when the daemon reports it cannot patch.
	errNotServing = errors.New("patch engine is not serving")
	// errEmptyPatchedBinary is returned when the daemon reports a patch but sends no content.
	errEmptyPatchedBinary = errors.New("patch engine returned an empty binary")
)

// Remote wraps a gRPC connection to shim-patchd.
// The binary is uploaded, patched remotely and written back atomically, so the
// daemon does not need access to the local filesystem.
type Remote struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn
	// health checks whether the daemon is serving.
	health healthpb.HealthClient
	// address is the daemon address, kept for logs.
	address string

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// dialOptions are appended to the insecure transport credentials.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Remote)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(r *Remote) {
		if timeout > 0 {
			r.callTimeout = timeout
		}
	}
}

// WithDialOptions passes extra options to grpc.NewClient.
func WithDialOptions(dialOptions ...grpc.DialOption) Option {
	return func(r *Remote) {
		r.dialOptions = append(r.dialOptions, dialOptions...)
	}
}

// Dial prepares a connection to the patch daemon; no traffic is sent until the first call.
// Note: this uses insecure transport credentials; run the daemon on a trusted
// network or behind a TLS-terminating proxy.
func Dial(address string, opts ...Option) (*Remote, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	remote := &Remote{
		address:     address,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(remote)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		remote.dialOptions...,
	)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial patch engine: %w", err)
	}

	remote.conn = conn
	remote.health = healthpb.NewHealthClient(conn)

	return remote, nil
}

// Close releases the underlying gRPC connection.
func (r *Remote) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}

	return r.conn.Close()
}

// Address returns the daemon address.
func (r *Remote) Address() string {
	return r.address
}

// Ping asks the daemon whether the patch engine service is serving.
func (r *Remote) Ping(ctx context.Context) error {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	response, err := r.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: patchengine.ServiceName})
	if err != nil {
		return fmt.Errorf("check patch engine health: %w", err)
	}

	if response.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, response.GetStatus())
	}

	return nil
}

// PatchBinary uploads the binary at path and replaces it with the patched result.
func (r *Remote) PatchBinary(ctx context.Context, path string, spec patchset.Spec) (patchset.Outcome, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return patchset.OutcomeUnknown, fmt.Errorf("read binary: %w", err)
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	logger.DebugKV(ctx, "Sending binary to patch engine", "address", r.address, "binary", path)

	response, err := patchengine.Invoke(callCtx, r.conn, &patchengine.Request{
		Name:    filepath.Base(path),
		Content: content,
		Patches: spec.Clone(),
	})
	if err != nil {
		return patchset.OutcomeUnknown, fmt.Errorf("patch binary: %w", err)
	}

	if response.Outcome == patchset.OutcomePatched {
		// Never truncate the original library.
		if len(response.Content) == 0 {
			return patchset.OutcomeUnknown, fmt.Errorf("%s: %w", path, errEmptyPatchedBinary)
		}

		if err = fileutil.Replace(path, response.Content); err != nil {
			return patchset.OutcomeUnknown, fmt.Errorf("write patched binary: %w", err)
		}
	}

	return response.Outcome, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (r *Remote) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.callTimeout)
}
