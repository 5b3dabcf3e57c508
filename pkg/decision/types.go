package decision

import (
	"time"

	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// Decision is the record of one engine call. It mirrors what was written onto the
// device; Outcome UNCHANGED means nothing was written.
type Decision struct {
	DeviceID int             `json:"device_id"`
	Strategy models.Strategy `json:"strategy"`
	Outcome  models.Outcome  `json:"outcome"`

	// Channel selection
	CurrentChannel int     `json:"current_channel"`
	TargetChannel  int     `json:"target_channel"`
	StayOverhead   float64 `json:"stay_overhead"`
	BestOverhead   float64 `json:"best_overhead"`

	// Device outputs
	OffloadWeight float64 `json:"offload_weight"`
	CloudTime     float64 `json:"cloud_time"`
	TransferTime  int     `json:"transfer_time"`

	// History strategy
	Choice     history.Choice `json:"choice"`
	Sampled    bool           `json:"sampled"`
	Evaluation *Evaluation    `json:"evaluation,omitempty"`

	DecisionTime    time.Time     `json:"decision_time"`
	DecisionLatency time.Duration `json:"decision_latency"`
}

// Evaluation is the side-effect free answer to "is offloading this device beneficial"
type Evaluation struct {
	LocalTime   float64 `json:"local_time"`
	LocalEnergy float64 `json:"local_energy"`

	Channel      int     `json:"channel"`
	CloudCost    float64 `json:"cloud_cost"`
	TransferTime int     `json:"transfer_time"`

	Cheaper    bool   `json:"cheaper"`
	Beneficial bool   `json:"beneficial"`
	Reason     string `json:"reason"`
}

// LocalCost returns the combined local time and energy the cloud cost competes with
func (e Evaluation) LocalCost() float64 {
	return e.LocalTime + e.LocalEnergy
}

// ChannelChoice is the result of the look-ahead channel comparison
type ChannelChoice struct {
	Current      int     `json:"current"`
	Best         int     `json:"best"`
	StayOverhead float64 `json:"stay_overhead"`
	BestOverhead float64 `json:"best_overhead"`

	// MoveOverheads holds the projected total for every other port, in port order
	MoveOverheads []PortOverhead `json:"move_overheads"`
}

// PortOverhead pairs a port with a projected overhead
type PortOverhead struct {
	Port     int     `json:"port"`
	Overhead float64 `json:"overhead"`
}

const (
	reasonBeneficial      = "cloud cost below local cost"
	reasonLocalCheaper    = "local execution cheaper"
	reasonTransferTooLong = "transfer time above ceiling"
)
