// Package core defines sentinel errors.
package core

import "errors"

var (
	// Decode errors
	ErrTooShort = errors.New("fabrictap: too short")

	// Send errors
	ErrInterfaceNotFound = errors.New("fabrictap: interface not found")
	ErrPermissionDenied  = errors.New("fabrictap: permission denied")

	// Capture errors
	ErrSocketOpenFailed = errors.New("fabrictap: capture socket open failed")
	ErrTransientRead    = errors.New("fabrictap: transient read failure")
	ErrTimeout          = errors.New("fabrictap: read timeout")
	ErrInvalidState     = errors.New("fabrictap: invalid state transition")

	// Frame building errors
	ErrInvalidFrame    = errors.New("fabrictap: invalid frame")
	ErrPayloadTooLarge = errors.New("fabrictap: payload too large")

	ErrUnsupportedPlatform = errors.New("fabrictap: unsupported platform")

	// Configuration errors
	ErrConfigInvalid = errors.New("fabrictap: invalid configuration")
)
