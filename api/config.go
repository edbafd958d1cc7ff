// Package api provides the HTTP front end for generation requests,
// injection management, and metrics.
package api

import "time"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// ResultTimeout bounds how long a generation request waits for its
	// task result before reporting a timeout status.
	ResultTimeout time.Duration
}
