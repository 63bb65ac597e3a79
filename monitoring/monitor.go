// Package monitoring exposes live co-simulation state over HTTP so a long
// host-simulator run can be observed from outside the process.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"

	"github.com/sarchlab/cosim/bridge"
)

// Monitor serves session statistics as JSON.
type Monitor struct {
	portNumber int

	mu       sync.Mutex
	sessions []*bridge.Session
}

// NewMonitor creates a Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port to serve on. Port 0 picks a free one.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	m.portNumber = portNumber
	return m
}

// RegisterSession adds a session to be reported on.
func (m *Monitor) RegisterSession(s *bridge.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
}

// StartServer starts the HTTP server in the background and returns its
// address.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp",
		fmt.Sprintf("127.0.0.1:%d", m.portNumber))
	if err != nil {
		return "", err
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/sessions", m.handleSessions)

	go func() {
		err := http.Serve(listener, r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "monitoring server: %v\n", err)
		}
	}()

	addr := listener.Addr().String()
	fmt.Fprintf(os.Stderr, "Monitoring sessions at http://%s/api/sessions\n",
		addr)

	return addr, nil
}

type sessionStatus struct {
	ID    string
	Ready bool
	Stats bridge.Stats
}

func (m *Monitor) handleSessions(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	sessions := make([]*bridge.Session, len(m.sessions))
	copy(sessions, m.sessions)
	m.mu.Unlock()

	statuses := make([]sessionStatus, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, sessionStatus{
			ID:    s.ID(),
			Ready: s.Ready(),
			Stats: s.Stats(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
