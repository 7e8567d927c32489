// Package patchset contains core domain types for anti-tamper patching.
//
// It defines Spec (patch set name to ordered sub-patch identifiers), the
// supported Android ABI names and the binary Target resolved per ABI.
package patchset
