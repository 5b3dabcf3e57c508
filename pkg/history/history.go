// Package history keeps the per-device offload choices consulted by the
// dynamic strategy. A DecisionHistory lives for one simulation session.
package history

import (
	"fmt"
	"sync"
)

// Choice is the tri-state decision stored per device
type Choice int8

const (
	Unset   Choice = -1
	Local   Choice = 0
	Offload Choice = 1
)

func (c Choice) String() string {
	switch c {
	case Unset:
		return "unset"
	case Local:
		return "local"
	case Offload:
		return "offload"
	default:
		return fmt.Sprintf("choice(%d)", int8(c))
	}
}

// RandomSource is the randomness the sampler draws from. *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// DecisionHistory is a growable sequence indexed by device id. A single mutex
// guards growth, slot access and sampling, so the random source is never used
// concurrently.
type DecisionHistory struct {
	mu      sync.Mutex
	entries []Choice
	locals  int
	offload int
}

// Stats is a point-in-time distribution of the history
type Stats struct {
	Size    int `json:"size"`
	Unset   int `json:"unset"`
	Local   int `json:"local"`
	Offload int `json:"offload"`
}

// New creates an empty history
func New() *DecisionHistory {
	return &DecisionHistory{entries: make([]Choice, 0)}
}

// Resolve returns the stored choice for id, growing the history and sampling a
// fresh choice when the slot is unset. The whole sequence is one critical section.
func (h *DecisionHistory) Resolve(id int, rnd RandomSource) (choice Choice, sampled bool, err error) {
	if id < 0 {
		return Unset, false, fmt.Errorf("negative device id %d", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.growLocked(id)
	if h.entries[id] != Unset {
		return h.entries[id], false, nil
	}

	choice = sample(h.locals, h.offload, rnd)
	h.setLocked(id, choice)
	return choice, true, nil
}

// Get returns the stored choice without growing the history
func (h *DecisionHistory) Get(id int) (Choice, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id < 0 || id >= len(h.entries) {
		return Unset, false
	}
	return h.entries[id], true
}

// Set stores a choice for id, growing the history if needed
func (h *DecisionHistory) Set(id int, choice Choice) error {
	if id < 0 {
		return fmt.Errorf("negative device id %d", id)
	}
	if choice != Unset && choice != Local && choice != Offload {
		return fmt.Errorf("unknown choice %d", int8(choice))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.growLocked(id)
	h.setLocked(id, choice)
	return nil
}

// Len returns the history length
func (h *DecisionHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Snapshot returns a copy of every slot
func (h *DecisionHistory) Snapshot() []Choice {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Choice, len(h.entries))
	copy(out, h.entries)
	return out
}

// Stats returns the current distribution
func (h *DecisionHistory) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Size:    len(h.entries),
		Unset:   len(h.entries) - h.locals - h.offload,
		Local:   h.locals,
		Offload: h.offload,
	}
}

// growLocked back-fills with Unset up to and including id
func (h *DecisionHistory) growLocked(id int) {
	for len(h.entries) <= id {
		h.entries = append(h.entries, Unset)
	}
}

func (h *DecisionHistory) setLocked(id int, choice Choice) {
	switch h.entries[id] {
	case Local:
		h.locals--
	case Offload:
		h.offload--
	}
	switch choice {
	case Local:
		h.locals++
	case Offload:
		h.offload++
	}
	h.entries[id] = choice
}
