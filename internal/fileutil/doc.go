// Package fileutil replaces file contents atomically.
package fileutil
