// Package lifecycle handles process-wide startup and shutdown concerns: the
// single-instance lock, signal-driven graceful shutdown, and the
// self-restart re-exec path.
package lifecycle

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// LockPort is the fixed loopback port probed to detect an already-running
// instance and then held for the lifetime of this process.
const LockPort = 41999

const probeTimeout = 500 * time.Millisecond

// AcquireLock probes LockPort; if something answers there, another instance
// is already running and this call fails. Otherwise it binds the port and
// starts an HTTP server that answers any request with a 200 identifying the
// service, returning the listener so the caller can close it on shutdown.
func AcquireLock(serviceName string) (net.Listener, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", LockPort)

	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err == nil {
		conn.Close()
		return nil, fmt.Errorf("lifecycle: another instance is already running on %s", addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: bind lock port %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			io.WriteString(w, serviceName+" is running\n")
		}),
	}
	go srv.Serve(ln)

	return ln, nil
}
