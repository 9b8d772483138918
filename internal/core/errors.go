// Package core defines sentinel errors.
package core

import "errors"

var (
	// Connection registry errors
	ErrConnExhausted = errors.New("wpan: connection pool exhausted")

	// Socket layer errors
	ErrAddrInvalid  = errors.New("wpan: invalid bind address")
	ErrSocketClosed = errors.New("wpan: socket closed")
	ErrQueueEmpty   = errors.New("wpan: receive queue empty")

	// Frame decoding errors
	ErrFrameTruncated   = errors.New("wpan: frame too short")
	ErrAddrModeReserved = errors.New("wpan: reserved addressing mode")

	// Configuration errors
	ErrConfigInvalid = errors.New("wpan: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("wpan: daemon not running")
)
