// Package installer installs the shim into an extracted application package.
//
// A run moves through fixed phases: the bundled library tree is merged into
// lib/, the manifest is switched to load the shim, and the original native
// library is patched against anti-tamper checks when a patch engine is
// available. Only the first two phases can fail the run; patching problems
// end up in the summary and as a single warning.
package installer
