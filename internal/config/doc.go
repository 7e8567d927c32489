// Package config defines installer settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every field has a default, so a missing settings file is not an error:
// the shim ships with a fixed ABI list, the anti-tamper patch set and the
// patcher looked up on PATH.
package config
