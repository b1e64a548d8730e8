// Package api provides an HTTP API server for driving a preference
// learning session remotely.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
