package database

import (
	"time"
)

// Simulation represents a single simulation run
type Simulation struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Status      string     `json:"status"` // running, completed, failed
	Config      string     `json:"config"` // JSON configuration
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DecisionRecord is one engine decision made during a run
type DecisionRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SimulationID string    `json:"simulation_id" gorm:"index"`
	Round        int       `json:"round" gorm:"index"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`

	DeviceID int    `json:"device_id" gorm:"index"`
	Strategy string `json:"strategy" gorm:"index"` // mec, dynamic
	Outcome  string `json:"outcome"`               // partial_offload, full_offload, forced_local, unchanged

	// Device inputs
	Battery            int     `json:"battery"`
	DataSize           int     `json:"data_size"`
	LocalExecutionTime float64 `json:"local_execution_time"`

	// Channel selection
	CurrentChannel int     `json:"current_channel"`
	TargetChannel  int     `json:"target_channel"`
	StayOverhead   float64 `json:"stay_overhead"`
	BestOverhead   float64 `json:"best_overhead"`

	// Outputs
	OffloadWeight float64 `json:"offload_weight"`
	CloudTime     float64 `json:"cloud_time"`
	TransferTime  int     `json:"transfer_time"`

	// History strategy
	Choice     string  `json:"choice"` // unset, local, offload
	Sampled    bool    `json:"sampled"`
	CloudCost  float64 `json:"cloud_cost"`
	LocalCost  float64 `json:"local_cost"`
	Beneficial bool    `json:"beneficial"`
	Reason     string  `json:"reason"`

	LatencyMicros int64 `json:"latency_micros"`

	CreatedAt time.Time `json:"created_at"`
}

// ChannelSnapshot captures one port's congestion at the end of a round
type ChannelSnapshot struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SimulationID string    `json:"simulation_id" gorm:"index"`
	Round        int       `json:"round" gorm:"index"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`

	Port        int     `json:"port"`
	Connections int     `json:"connections"`
	Overhead    float64 `json:"overhead"`

	CreatedAt time.Time `json:"created_at"`
}

// Event represents simulation events (round boundaries, errors, etc)
type Event struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SimulationID string    `json:"simulation_id" gorm:"index"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`

	EventType string `json:"event_type"` // round_started, round_completed, decision_failed
	Category  string `json:"category"`   // simulation, engine, station
	Severity  string `json:"severity"`   // info, warning, error

	Message string `json:"message"`
	Details string `json:"details"` // JSON for additional data

	CreatedAt time.Time `json:"created_at"`
}
