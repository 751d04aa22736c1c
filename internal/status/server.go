// Package status serves the liveness HTTP endpoint.
package status

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
)

// Server answers GET /status while the process is up.
type Server struct {
	host string
	port string
}

// New creates a status server for the given bind address.
func New(host, port string) *Server {
	return &Server{host: host, port: port}
}

// Start serves in a background goroutine. Bind failures are fatal.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", handleStatus)

	addr := net.JoinHostPort(s.host, s.port)
	go func() {
		log.Printf("Status server running on http://%s/status", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("Status server error: %v", err)
		}
	}()
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"message": "The bot is online.",
	})
}
