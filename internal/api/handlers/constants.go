package handlers

import "time"

const (
	// Timeouts
	JobQueryTimeout = 5 * time.Second

	// Job listing bounds
	DefaultJobListLimit = 20
	MaxJobListLimit     = 100
)
