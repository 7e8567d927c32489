package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
)

// Config holds installer settings that may differ between shim builds.
// The manifest substitution strings are compiled in and not configurable.
type Config struct {
	// LibraryDir is the bundled library tree with one subdirectory per ABI,
	// or an archive holding that tree. Empty means "libs" next to the installer executable.
	LibraryDir string `yaml:"library_dir"`
	// Binary is the original native library the patch engine operates on.
	Binary string `yaml:"binary"`
	// Architectures lists the ABIs whose binaries are patched.
	Architectures []string `yaml:"architectures"`
	// PatchSets maps patch set names to the sub-patches requested from the engine.
	PatchSets patchset.Spec `yaml:"patch_sets"`
	// PatcherPath is an explicit path to the patcher executable.
	// Empty means the executable is looked up on PATH.
	PatcherPath string `yaml:"patcher_path"`
	// EngineAddress is the gRPC address of a shim-patchd instance.
	// When set, it takes precedence over the local patcher executable.
	EngineAddress string `yaml:"engine_address"`
	// Timeout bounds a single patch engine invocation.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of log messages (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the working directory.
	DefaultConfigFilename = "shim-install.yaml"

	// DefaultLibraryDirname is the bundled library tree name next to the executable.
	DefaultLibraryDirname = "libs"

	// DefaultTimeout bounds a single patch engine invocation.
	DefaultTimeout = 2 * time.Minute

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoArchitectures is returned when the architecture list is empty.
	errNoArchitectures = errors.New("at least one architecture must be configured")
	// errBadBinaryName is returned when the binary is not a bare file name.
	errBadBinaryName = errors.New("binary must be a file name without directories")
)

// Default returns the settings used when no configuration file exists.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults on an empty config.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default location yields Default; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings for consistency.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.Binary == "" {
		settings.Binary = patchset.DefaultBinary
	}

	if filepath.Base(settings.Binary) != settings.Binary {
		return fmt.Errorf("%q: %w", settings.Binary, errBadBinaryName)
	}

	if settings.Architectures == nil {
		settings.Architectures = patchset.DefaultArchitectures()
	}

	if len(settings.Architectures) == 0 {
		return errNoArchitectures
	}

	for _, arch := range settings.Architectures {
		if err := patchset.ValidateArchitecture(arch); err != nil {
			return fmt.Errorf("invalid architecture: %w", err)
		}
	}

	if settings.PatchSets == nil {
		settings.PatchSets = patchset.Default()
	}

	if err := settings.PatchSets.Validate(); err != nil {
		return fmt.Errorf("invalid patch sets: %w", err)
	}

	// Set default timeout if not specified.
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.EngineAddress == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(settings.EngineAddress); err != nil {
		return fmt.Errorf("invalid engine address: %w", err)
	}

	return nil
}

// ResolveLibraryDir returns the library tree location, defaulting to the
// directory next to the running executable.
func (c *Config) ResolveLibraryDir() (string, error) {
	if c.LibraryDir != "" {
		return filepath.Abs(c.LibraryDir)
	}

	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate installer executable: %w", err)
	}

	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return "", fmt.Errorf("resolve installer executable: %w", err)
	}

	return filepath.Join(filepath.Dir(executable), DefaultLibraryDirname), nil
}
