// Package patchengine exposes a patch engine over gRPC.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated code: a request carries the binary file name, its contents
// (base64) and the patch spec; a response carries the outcome and the
// patched contents. Server adapts any Service to the RPC, and Invoke is the
// matching client call.
package patchengine
