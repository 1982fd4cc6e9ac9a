package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	APICall           time.Duration // Bound on every controller API call
	FullSync          time.Duration // Bound on one full-sync pass
	RetryMaxAttempts  int           // Start-up connectivity attempts
	RetryInitialDelay time.Duration // Initial delay between start-up attempts
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - VNSYNC_TIMEOUT_API_CALL (default: 30s)
//   - VNSYNC_TIMEOUT_FULL_SYNC (default: 10m)
//   - VNSYNC_RETRY_MAX_ATTEMPTS (default: 5)
//   - VNSYNC_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		APICall:           parseDuration("VNSYNC_TIMEOUT_API_CALL", 30*time.Second),
		FullSync:          parseDuration("VNSYNC_TIMEOUT_FULL_SYNC", 10*time.Minute),
		RetryMaxAttempts:  parseInt("VNSYNC_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("VNSYNC_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a positive duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses a non-negative integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}

	return i
}
