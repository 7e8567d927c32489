// Package patch applies a patch spec to every architecture's binary.
//
// Architectures are independent artifacts: a failure on one binary is
// recorded in its Result and reported once as a warning, and the remaining
// binaries are still attempted. Nothing here is fatal.
package patch
