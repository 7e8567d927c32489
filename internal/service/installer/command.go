package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/shim-installer/internal/config"
	"github.com/oshokin/shim-installer/internal/deploy"
	"github.com/oshokin/shim-installer/internal/domain/patchset"
	"github.com/oshokin/shim-installer/internal/engine"
	"github.com/oshokin/shim-installer/internal/logger"
	"github.com/oshokin/shim-installer/internal/manifest"
	"github.com/oshokin/shim-installer/internal/patch"
	"github.com/oshokin/shim-installer/internal/version"
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// PackageDir is the extracted application package to modify.
	PackageDir string
	// LibraryDir overrides the bundled library tree location.
	LibraryDir string
	// PatcherPath overrides the patcher executable.
	PatcherPath string
	// EngineAddress overrides the shim-patchd address.
	EngineAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
	// DryRun reports what would change without writing anything.
	DryRun bool
	// Output receives the final summary; nil means standard output.
	Output io.Writer
}

// Phase is a step of an installation.
type Phase int

const (
	// PhaseIdle is the state before any work.
	PhaseIdle Phase = iota
	// PhaseDeploying merges the library tree.
	PhaseDeploying
	// PhaseManifestRewriting switches the manifest to the shim.
	PhaseManifestRewriting
	// PhasePatching removes anti-tamper checks from the original binaries.
	PhasePatching
	// PhaseDone is reached regardless of individual patch outcomes.
	PhaseDone
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDeploying:
		return "deploying"
	case PhaseManifestRewriting:
		return "manifest-rewriting"
	case PhasePatching:
		return "patching"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	// errPackageDirRequired is returned when no package directory is given.
	errPackageDirRequired = errors.New("package directory must be provided")
	// errNotADirectory is returned when the package path is not a directory.
	errNotADirectory = errors.New("not a directory")
	// errUnknownLogLevel is returned for unparsable log levels.
	errUnknownLogLevel = errors.New("unknown log level")
)

// runner holds the state of a single installation.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg        *config.Config // Settings with command-line overrides applied.
	packageDir string         // Absolute package root.
	libraryDir string         // Absolute library tree.
	output     io.Writer      // Summary destination.
	phase      Phase          // Current step.
	summary    *summary       // What has been done so far.
}

// Run installs the shim into opts.PackageDir. Only deployment and manifest
// errors are returned; patch problems are reported and the run still succeeds.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "shim-install")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "package", r.packageDir)
	logger.DebugKV(ctx, "Starting installer", version.KV()...)

	if opts.DryRun {
		return r.dryRun(ctx)
	}

	release, err := acquireMarker(ctx, r.packageDir)
	if err != nil {
		return err
	}

	defer release()

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Installation failed", "phase", r.phase, "error", err)
		return err
	}

	r.summary.write(r.output)

	return nil
}

// newRunner loads settings, applies overrides and validates the package directory.
func newRunner(opts *Options) (*runner, error) {
	if opts == nil || opts.PackageDir == "" {
		return nil, errPackageDirRequired
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err = applyOverrides(cfg, opts); err != nil {
		return nil, err
	}

	packageDir, err := filepath.Abs(opts.PackageDir)
	if err != nil {
		return nil, fmt.Errorf("resolve package directory: %w", err)
	}

	info, err := os.Stat(packageDir)
	if err != nil {
		return nil, fmt.Errorf("package directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", packageDir, errNotADirectory)
	}

	libraryDir, err := cfg.ResolveLibraryDir()
	if err != nil {
		return nil, err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	return &runner{
		cfg:        cfg,
		packageDir: packageDir,
		libraryDir: libraryDir,
		output:     output,
		phase:      PhaseIdle,
		summary:    &summary{packageDir: packageDir},
	}, nil
}

// applyOverrides copies non-empty command-line values over the loaded settings.
func applyOverrides(cfg *config.Config, opts *Options) error {
	if opts.LibraryDir != "" {
		cfg.LibraryDir = opts.LibraryDir
	}

	if opts.PatcherPath != "" {
		cfg.PatcherPath = opts.PatcherPath
	}

	if opts.EngineAddress != "" {
		cfg.EngineAddress = opts.EngineAddress
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if !logger.ParseAndSetLevel(cfg.LogLevel) {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
	}

	return nil
}

// Run executes the workflow for this runner instance:
// 1) Merge the library tree, unpacking it first when it is an archive, into lib/.
// 2) Rewrite the manifest.
// 3) Patch the original binaries, containing failures per binary.
func (r *runner) Run(ctx context.Context) error {
	r.enter(ctx, PhaseDeploying)

	sourceTree, cleanup, err := deploy.Unpack(ctx, r.libraryDir)
	if err != nil {
		return fmt.Errorf("deploy libraries: %w", err)
	}

	defer cleanup()

	deployReport, err := deploy.Run(ctx, sourceTree, r.libTarget(), &deploy.Options{
		Policy:   deploy.Overwrite,
		Progress: r.progressWriter(),
	})
	if err != nil {
		return fmt.Errorf("deploy libraries: %w", err)
	}

	r.summary.deploy = deployReport

	r.enter(ctx, PhaseManifestRewriting)

	manifestResult, err := manifest.RewriteLibName(ctx, r.packageDir)
	if err != nil {
		return fmt.Errorf("rewrite manifest: %w", err)
	}

	r.summary.manifest = manifestResult

	r.enter(ctx, PhasePatching)

	r.summary.patch = r.patch(ctx)

	r.enter(ctx, PhaseDone)

	return nil
}

// patch probes the engine once and applies the configured patch sets.
func (r *runner) patch(ctx context.Context) *patch.Report {
	availability := engine.Probe(ctx, r.probeOptions())

	defer func() {
		if err := availability.Close(); err != nil {
			logger.DebugKV(ctx, "Unable to close patch engine", "error", err)
		}
	}()

	targets, err := patchset.ResolveTargets(r.packageDir, r.cfg.Architectures, r.cfg.Binary)
	if err != nil {
		// packageDir is already absolute, so this cannot happen in practice.
		logger.WarnKV(ctx, "Unable to resolve binaries", "error", err)
		return &patch.Report{Engine: availability.State}
	}

	return patch.Apply(ctx, availability, targets, r.cfg.Binary, r.cfg.PatchSets, &patch.Options{Notices: r.output})
}

// dryRun validates every input and prints what a real run would change.
func (r *runner) dryRun(ctx context.Context) error {
	if err := deploy.CheckSource(r.libraryDir); err != nil {
		return err
	}

	diff, err := manifest.Preview(
		filepath.Join(r.packageDir, manifest.Filename),
		[]byte(manifest.LibNameDeclaration),
		[]byte(manifest.ShimDeclaration),
	)
	if err != nil {
		return fmt.Errorf("preview manifest: %w", err)
	}

	availability := engine.Probe(ctx, r.probeOptions())
	defer func() {
		_ = availability.Close()
	}()

	targets, err := patchset.ResolveTargets(r.packageDir, r.cfg.Architectures, r.cfg.Binary)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(r.output, "Would merge %s into %s\n", r.libraryDir, r.libTarget())

	if diff == "" {
		_, _ = fmt.Fprintln(r.output, "Manifest already declares the shim")
	} else {
		_, _ = fmt.Fprintf(r.output, "Would rewrite %s:\n%s", manifest.Filename, diff)
	}

	if !availability.IsAvailable() {
		_, _ = fmt.Fprintf(r.output, "Patcher not found at %s: %s\n", availability.Location, availability.Reason)
		return nil
	}

	for _, target := range targets {
		_, _ = fmt.Fprintf(r.output, "Would patch %s with %v using %s\n",
			target.Path, r.cfg.PatchSets.Names(), availability.Location)
	}

	return nil
}

// enter records a phase transition.
func (r *runner) enter(ctx context.Context, phase Phase) {
	logger.DebugKV(ctx, "Installer phase", "from", r.phase, "to", phase)
	r.phase = phase
}

// libTarget is the lib/ directory inside the package.
func (r *runner) libTarget() string {
	return filepath.Join(r.packageDir, patchset.LibraryDir)
}

// probeOptions builds engine lookup settings from the configuration.
func (r *runner) probeOptions() *engine.ProbeOptions {
	return &engine.ProbeOptions{
		Address:     r.cfg.EngineAddress,
		PatcherPath: r.cfg.PatcherPath,
		Timeout:     r.cfg.Timeout,
	}
}

// progressWriter returns the summary output when it is a terminal, so piped runs stay clean.
func (r *runner) progressWriter() io.Writer {
	if isTerminal(r.output) {
		return r.output
	}

	return nil
}
