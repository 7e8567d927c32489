// Package patchd runs the patch engine as a gRPC daemon.
//
// The daemon wraps a local patcher executable behind the shim.v1.PatchEngine
// service and the standard gRPC health service, so installers on hosts
// without the patcher toolchain can still patch binaries remotely.
package patchd
