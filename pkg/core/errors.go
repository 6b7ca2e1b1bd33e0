// Package core provides core types and error definitions
package core

import "errors"

var (
	// ErrNoDomain is returned when no domain is specified
	ErrNoDomain = errors.New("domain is required")

	// ErrInvalidDomain is returned when the target domain is malformed
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrTooManyWorkers is returned when worker count exceeds limits
	ErrTooManyWorkers = errors.New("worker count exceeds maximum (1000)")

	// ErrInvalidChunkSize is returned when the chunk size is not positive
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")

	// ErrInvalidPort is returned when a port is outside 1-65535
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidIP is returned when IP address is invalid
	ErrInvalidIP = errors.New("invalid IP address")

	// ErrInvalidCIDR is returned when CIDR notation is invalid
	ErrInvalidCIDR = errors.New("invalid CIDR notation")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInterrupted is returned when a run is cancelled before it completes.
	// Partial results are discarded.
	ErrInterrupted = errors.New("run interrupted")

	// ErrDuplicate is returned by a wildcard store when the record already exists
	ErrDuplicate = errors.New("duplicate record")
)
