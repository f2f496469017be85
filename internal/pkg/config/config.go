package config

import "time"

// Config defines the read-only configuration surface the application uses.
type Config interface {
	// GetString retrieves the value for key as a string, or "" when unset.
	GetString(key string) string

	// GetBool retrieves the value for key as a bool, or false when unset.
	GetBool(key string) bool

	// GetInt retrieves the value for key as an int, or 0 when unset.
	GetInt(key string) int

	// GetSecond retrieves the value for key as a duration in seconds.
	GetSecond(key string) time.Duration
}
