// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with context and match with errors.Is.
var (
	// Module registry errors
	ErrModuleExists   = errors.New("wiresentry: module already registered")
	ErrModuleNotFound = errors.New("wiresentry: module not found")

	// Plugin factory errors
	ErrPluginNotFound   = errors.New("wiresentry: plugin not found")
	ErrPluginInitFailed = errors.New("wiresentry: plugin init failed")

	// Capture errors
	ErrDeviceNotFound = errors.New("wiresentry: capture device not found")
	ErrCaptureClosed  = errors.New("wiresentry: capture source closed")

	// Sink errors
	ErrSinkClosed = errors.New("wiresentry: sink closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("wiresentry: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("wiresentry: daemon not running")
)
