package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the connection timing values tunable from the environment.
type Timeouts struct {
	Connect           time.Duration // Timeout for TCP connect plus SSH handshake
	ConnectRetries    int           // Additional connection attempts per host
	RetryInitialDelay time.Duration // Initial delay between connection attempts
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - ACMEDIST_CONNECT_TIMEOUT (default: 30s)
//   - ACMEDIST_CONNECT_RETRIES (default: 0)
//   - ACMEDIST_RETRY_INITIAL_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Connect:           parseDuration("ACMEDIST_CONNECT_TIMEOUT", 30*time.Second),
		ConnectRetries:    parseInt("ACMEDIST_CONNECT_RETRIES", 0),
		RetryInitialDelay: parseDuration("ACMEDIST_RETRY_INITIAL_DELAY", 2*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
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

// parseInt parses an integer from an environment variable.
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
