// Package testdata provides a fake simulation backend: random-walk charts
// served over the batch and detail endpoints, with changes pushed to
// websocket clients. Tests and the demo command use it.
package testdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jask/simdash/internal/logging"
	"github.com/jask/simdash/internal/wire"
)

// Sim is an in-memory simulation backend.
type Sim struct {
	mu       sync.Mutex
	rng      *rand.Rand
	order    []string
	charts   map[string][]wire.Dataset
	clients  map[*websocket.Conn]bool
	acks     []string
	upgrader websocket.Upgrader
}

func NewSim(seed uint64) *Sim {
	return &Sim{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		charts:  make(map[string][]wire.Dataset),
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Add registers a chart with two starting values per series and pushes CREATE.
func (s *Sim) Add(id string, labels ...string) wire.ChartPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := make([]wire.Dataset, len(labels))
	for i, l := range labels {
		start := s.rng.Float64() * 100
		ds[i] = wire.Dataset{Label: l, Values: []float64{start, s.walk(start)}}
	}
	if _, ok := s.charts[id]; !ok {
		s.order = append(s.order, id)
	}
	s.charts[id] = ds
	p := s.payload(id)
	s.broadcast(wire.Frame{Op: wire.OpCreate, Response: &p})
	return p
}

// Step appends one random-walk value to every series of id and pushes WRITE.
func (s *Sim) Step(id string) (wire.ChartPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.charts[id]
	if !ok {
		return wire.ChartPayload{}, false
	}
	for i := range ds {
		last := 0.0
		if n := len(ds[i].Values); n > 0 {
			last = ds[i].Values[n-1]
		}
		ds[i].Values = append(ds[i].Values, s.walk(last))
	}
	p := s.payload(id)
	s.broadcast(wire.Frame{Op: wire.OpWrite, Response: &p})
	return p, true
}

// Remove drops id and pushes REMOVE with a top-level file field.
func (s *Sim) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charts[id]; !ok {
		return false
	}
	delete(s.charts, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.broadcast(wire.Frame{Op: wire.OpRemove, File: id})
	return true
}

// Payloads returns every chart in creation order.
func (s *Sim) Payloads() []wire.ChartPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.ChartPayload, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.payload(id))
	}
	return out
}

func (s *Sim) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// PushRaw sends data verbatim to every connected client.
func (s *Sim) PushRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(data)
}

// Acks returns the text frames clients have sent back.
func (s *Sim) Acks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acks...)
}

// Clients reports how many push clients are connected.
func (s *Sim) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// WaitForClients polls until at least n push clients are connected.
func (s *Sim) WaitForClients(ctx context.Context, n int) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for s.Clients() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// DisconnectAll closes every push client with a normal close frame.
func (s *Sim) DisconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
		delete(s.clients, c)
	}
}

func (s *Sim) walk(from float64) float64 {
	return from + (s.rng.Float64()-0.5)*10
}

func (s *Sim) payload(id string) wire.ChartPayload {
	ds := s.charts[id]
	cp := make([]wire.Dataset, len(ds))
	for i, d := range ds {
		cp[i] = wire.Dataset{Label: d.Label, Values: append([]float64(nil), d.Values...)}
	}
	return wire.ChartPayload{File: id, Data: wire.ChartData{Datasets: cp}}
}

func (s *Sim) broadcast(f wire.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		logging.Errorf("sim: marshal frame: %v", err)
		return
	}
	s.send(data)
}

func (s *Sim) send(data []byte) {
	var failed []*websocket.Conn
	for c := range s.clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		c.Close()
		delete(s.clients, c)
	}
}

// Handler serves the batch endpoint at batchPath and the detail endpoint
// under detailPath.
func (s *Sim) Handler(batchPath, detailPath string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+batchPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Payloads())
	})
	prefix := strings.TrimSuffix(detailPath, "/") + "/"
	mux.HandleFunc("GET "+prefix, func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		s.mu.Lock()
		_, ok := s.charts[id]
		var p wire.ChartPayload
		if ok {
			p = s.payload(id)
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, []wire.ChartPayload{})
			return
		}
		writeJSON(w, []wire.ChartPayload{p})
	})
	return mux
}

// PushHandler upgrades requests to websocket push clients.
func (s *Sim) PushHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnf("sim: upgrade: %v", err)
			return
		}
		s.mu.Lock()
		s.clients[conn] = true
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logging.Debugf("sim: client read: %v", err)
				}
				return
			}
			if mt == websocket.TextMessage {
				s.mu.Lock()
				s.acks = append(s.acks, string(msg))
				s.mu.Unlock()
			}
		}
	})
}

// Run drives a demo: it seeds a few charts, then every interval steps a
// random chart and now and then retires one and starts another.
func (s *Sim) Run(ctx context.Context, interval time.Duration) error {
	for i := 0; i < 3; i++ {
		s.Add(demoID(), "agents", "infected", "recovered")
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		tick++
		ids := s.IDs()
		if len(ids) == 0 {
			s.Add(demoID(), "agents", "infected", "recovered")
			continue
		}
		s.mu.Lock()
		pick := ids[s.rng.IntN(len(ids))]
		s.mu.Unlock()
		s.Step(pick)
		if tick%40 == 0 {
			s.Remove(ids[0])
			s.Add(demoID(), "agents", "infected", "recovered")
		}
	}
}

func demoID() string {
	return fmt.Sprintf("run_%s.csv", uuid.NewString()[:8])
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnf("sim: encode response: %v", err)
	}
}
