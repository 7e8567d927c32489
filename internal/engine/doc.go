// Package engine talks to the external patch engine that removes anti-tamper
// checks from native libraries.
//
// Two transports exist: Exec runs a local patcher executable and Remote calls
// a shim-patchd instance over gRPC. Probe decides once, up front, which one
// is usable, so callers branch on an Availability instead of on errors at
// every call site.
package engine
