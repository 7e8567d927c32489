package patchset

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
)

const (
	// DefaultName is the patch set that disables the anti-tamper checks.
	DefaultName = "antitamper"

	// DefaultBinary is the original native entry point shipped in the package.
	DefaultBinary = "libsmashhit.so"

	// LibraryDir is the package-relative directory holding per-ABI libraries.
	LibraryDir = "lib"
)

var (
	// errEmptySpec is returned when a spec names no patch sets.
	errEmptySpec = errors.New("patch spec is empty")
	// errEmptyName is returned when a patch set name is blank.
	errEmptyName = errors.New("patch set name must not be empty")
	// errEmptySubPatch is returned when a sub-patch identifier is blank.
	errEmptySubPatch = errors.New("sub-patch identifier must not be empty")
	// ErrUnknownArchitecture is returned for ABI names Android does not define.
	ErrUnknownArchitecture = errors.New("unknown architecture")
)

// Spec maps a patch set name to the ordered sub-patch identifiers to apply.
// An empty list requests every patch registered under that name.
type Spec map[string][]string

// Default returns the spec requesting the whole anti-tamper patch set.
func Default() Spec {
	return Spec{DefaultName: []string{}}
}

// Names returns the patch set names in lexical order.
func (s Spec) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns a deep copy where every list is non-nil, so an empty list
// survives serialization as [] rather than null.
func (s Spec) Clone() Spec {
	cloned := make(Spec, len(s))
	for name, subPatches := range s {
		cloned[name] = append(make([]string, 0, len(subPatches)), subPatches...)
	}

	return cloned
}

// Validate checks that the spec names at least one patch set and holds no blank identifiers.
func (s Spec) Validate() error {
	if len(s) == 0 {
		return errEmptySpec
	}

	for name, subPatches := range s {
		if name == "" {
			return errEmptyName
		}

		if slices.Contains(subPatches, "") {
			return fmt.Errorf("patch set %s: %w", name, errEmptySubPatch)
		}
	}

	return nil
}

// Architectures lists the ABI directory names Android recognizes under lib/.
func Architectures() []string {
	return []string{"armeabi", "armeabi-v7a", "arm64-v8a", "x86", "x86_64", "mips", "mips64", "riscv64"}
}

// DefaultArchitectures returns the ABIs the shim is built for.
func DefaultArchitectures() []string {
	return []string{"armeabi-v7a", "arm64-v8a"}
}

// ValidateArchitecture reports whether arch is a known ABI directory name.
func ValidateArchitecture(arch string) error {
	if !slices.Contains(Architectures(), arch) {
		return fmt.Errorf("%q: %w", arch, ErrUnknownArchitecture)
	}

	return nil
}

// Target is a single native library that the patch engine mutates in place.
type Target struct {
	// Architecture is the ABI directory the binary lives in.
	Architecture string
	// Path is the absolute path of the binary.
	Path string
}

// ResolveTargets maps every architecture to its binary under packageDir/lib/<arch>/.
func ResolveTargets(packageDir string, architectures []string, binary string) ([]Target, error) {
	root, err := filepath.Abs(packageDir)
	if err != nil {
		return nil, fmt.Errorf("resolve package directory: %w", err)
	}

	targets := make([]Target, 0, len(architectures))
	for _, arch := range architectures {
		targets = append(targets, Target{
			Architecture: arch,
			Path:         filepath.Join(root, LibraryDir, arch, binary),
		})
	}

	return targets, nil
}
