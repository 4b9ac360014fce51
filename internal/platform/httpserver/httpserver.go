// Package httpserver builds the *http.Server that serves the vault router.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 2 * time.Minute
	// writeSlack lets the router's own timeout answer before the server cuts
	// the connection.
	writeSlack     = 5 * time.Second
	maxHeaderBytes = 64 << 10
)

// New returns a server for handler on addr. requestTimeout is the deadline
// the handler enforces on itself.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
