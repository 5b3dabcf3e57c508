package models

import (
	"fmt"
	"sync"
)

// Station is the engine's read-only view of a wireless station
type Station interface {
	Ports() []int
	ConnectionCount(port int) int
	Bandwidth() int
	LossFactor() float64
}

// HasPort reports whether port belongs to the station's port set
func HasPort(s Station, port int) bool {
	for _, p := range s.Ports() {
		if p == port {
			return true
		}
	}
	return false
}

// StationSpec describes a station before construction
type StationSpec struct {
	Ports      []int   `json:"ports" yaml:"ports"`
	Bandwidth  int     `json:"bandwidth" yaml:"bandwidth"`
	LossFactor float64 `json:"loss_factor" yaml:"loss_factor"`
}

// Validate applies the checks NewWirelessStation runs
func (s StationSpec) Validate() error {
	if s.Bandwidth <= 0 {
		return fmt.Errorf("%w (got %d)", ErrDivisionByZero, s.Bandwidth)
	}

	var errs ValidationErrors
	errs.AddIf(len(s.Ports) == 0, "Ports", s.Ports, "station needs at least one port")
	errs.AddIf(s.LossFactor <= 1, "LossFactor", s.LossFactor, "LossFactor must be > 1")

	seen := make(map[int]bool, len(s.Ports))
	for _, p := range s.Ports {
		errs.AddIf(seen[p], "Ports", p, "duplicate port")
		seen[p] = true
	}

	if errs.HasErrors() {
		return fmt.Errorf("%w: %v", ErrInvalidStation, errs)
	}
	return nil
}

// WirelessStation is the simulation's edge station model. Connection counts are
// mutated by the driver as devices attach and detach.
type WirelessStation struct {
	ports      []int
	bandwidth  int
	lossFactor float64

	mu          sync.RWMutex
	connections map[int]int
}

// NewWirelessStation creates a station with zero connections on every port
func NewWirelessStation(spec StationSpec) (*WirelessStation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ws := &WirelessStation{
		ports:       make([]int, len(spec.Ports)),
		bandwidth:   spec.Bandwidth,
		lossFactor:  spec.LossFactor,
		connections: make(map[int]int, len(spec.Ports)),
	}
	copy(ws.ports, spec.Ports)
	for _, p := range ws.ports {
		ws.connections[p] = 0
	}
	return ws, nil
}

// Ports returns the ports in enumeration order
func (ws *WirelessStation) Ports() []int {
	out := make([]int, len(ws.ports))
	copy(out, ws.ports)
	return out
}

func (ws *WirelessStation) Bandwidth() int      { return ws.bandwidth }
func (ws *WirelessStation) LossFactor() float64 { return ws.lossFactor }

// ConnectionCount returns the live connection count, 0 for unknown ports
func (ws *WirelessStation) ConnectionCount(port int) int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connections[port]
}

// SetConnections overwrites the connection count of a port
func (ws *WirelessStation) SetConnections(port, count int) error {
	if count < 0 {
		return fmt.Errorf("%w: negative connection count %d on port %d", ErrInvalidStation, count, port)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.connections[port]; !ok {
		return fmt.Errorf("%w: port %d", ErrInvalidChannel, port)
	}
	ws.connections[port] = count
	return nil
}

// Attach registers one more connection on port
func (ws *WirelessStation) Attach(port int) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.connections[port]; !ok {
		return fmt.Errorf("%w: port %d", ErrInvalidChannel, port)
	}
	ws.connections[port]++
	return nil
}

// Detach removes one connection from port
func (ws *WirelessStation) Detach(port int) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	count, ok := ws.connections[port]
	if !ok {
		return fmt.Errorf("%w: port %d", ErrInvalidChannel, port)
	}
	if count == 0 {
		return fmt.Errorf("%w: no connection to detach on port %d", ErrInvalidStation, port)
	}
	ws.connections[port]--
	return nil
}

// Move detaches from one port and attaches to another as a single step
func (ws *WirelessStation) Move(from, to int) error {
	if from == to {
		return nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	count, ok := ws.connections[from]
	if !ok {
		return fmt.Errorf("%w: port %d", ErrInvalidChannel, from)
	}
	if _, ok := ws.connections[to]; !ok {
		return fmt.Errorf("%w: port %d", ErrInvalidChannel, to)
	}
	if count == 0 {
		return fmt.Errorf("%w: no connection to move from port %d", ErrInvalidStation, from)
	}
	ws.connections[from]--
	ws.connections[to]++
	return nil
}

// Snapshot returns a copy of the per-port connection counts
func (ws *WirelessStation) Snapshot() map[int]int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make(map[int]int, len(ws.connections))
	for p, c := range ws.connections {
		out[p] = c
	}
	return out
}

// Reset drops every connection
func (ws *WirelessStation) Reset() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for p := range ws.connections {
		ws.connections[p] = 0
	}
}
