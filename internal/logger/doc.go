// Package logger wraps a global zap sugared logger.
//
// Services name their logger once with WithName and attach fields such as
// the package directory with WithKV; everything below them logs through the
// context they pass down. Leveled helpers come in plain, f and KV flavors.
package logger
