package simulation

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/casperlundberg/mec-offloading-engine/internal/database"
	"github.com/casperlundberg/mec-offloading-engine/pkg/cost"
	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// DBCollector writes a run's decisions, channel snapshots and events to the ledger.
// It is not safe for concurrent use; the runner feeds it from one goroutine.
type DBCollector struct {
	repo         *database.Repository
	simulationID string
	buffer       []database.DecisionRecord
	bufferSize   int
	lastFlush    time.Time
}

// NewDBCollector creates the simulation record and returns a collector bound to it
func NewDBCollector(repo *database.Repository, simName, simDescription string, config interface{}) (*DBCollector, error) {
	configJSON := ""
	if config != nil {
		data, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		configJSON = string(data)
	}

	sim := &database.Simulation{
		ID:          uuid.New().String(),
		Name:        simName,
		Description: simDescription,
		StartTime:   time.Now(),
		Status:      "running",
		Config:      configJSON,
	}

	if err := repo.CreateSimulation(sim); err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	return &DBCollector{
		repo:         repo,
		simulationID: sim.ID,
		buffer:       make([]database.DecisionRecord, 0, 100),
		bufferSize:   100,
		lastFlush:    time.Now(),
	}, nil
}

// GetSimulationID returns the simulation ID
func (dc *DBCollector) GetSimulationID() string {
	return dc.simulationID
}

// CollectDecision buffers one decision together with the device inputs it was made on
func (dc *DBCollector) CollectDecision(round int, device models.Device, d decision.Decision) error {
	record := database.DecisionRecord{
		SimulationID: dc.simulationID,
		Round:        round,
		Timestamp:    d.DecisionTime,

		DeviceID: d.DeviceID,
		Strategy: d.Strategy.String(),
		Outcome:  string(d.Outcome),

		Battery:            device.Battery(),
		DataSize:           device.DataSize(),
		LocalExecutionTime: device.LocalExecutionTime(),

		CurrentChannel: d.CurrentChannel,
		TargetChannel:  d.TargetChannel,
		StayOverhead:   d.StayOverhead,
		BestOverhead:   d.BestOverhead,

		OffloadWeight: d.OffloadWeight,
		CloudTime:     d.CloudTime,
		TransferTime:  d.TransferTime,

		Choice:  d.Choice.String(),
		Sampled: d.Sampled,

		LatencyMicros: d.DecisionLatency.Microseconds(),
	}

	if eval := d.Evaluation; eval != nil {
		record.CloudCost = eval.CloudCost
		record.LocalCost = eval.LocalCost()
		record.Beneficial = eval.Beneficial
		record.Reason = eval.Reason
	}

	dc.buffer = append(dc.buffer, record)

	if len(dc.buffer) >= dc.bufferSize || time.Since(dc.lastFlush) > 5*time.Second {
		return dc.flush()
	}
	return nil
}

// CollectChannels stores the per-port congestion at the end of a round
func (dc *DBCollector) CollectChannels(round int, timestamp time.Time, station models.Station, connections map[int]int) error {
	ports := make([]int, 0, len(connections))
	for p := range connections {
		ports = append(ports, p)
	}
	sort.Ints(ports)

	bandwidth := float64(station.Bandwidth())
	snapshots := make([]database.ChannelSnapshot, 0, len(ports))
	for _, p := range ports {
		snapshots = append(snapshots, database.ChannelSnapshot{
			SimulationID: dc.simulationID,
			Round:        round,
			Timestamp:    timestamp,
			Port:         p,
			Connections:  connections[p],
			Overhead:     cost.ChannelOverhead(station.LossFactor(), float64(connections[p]), bandwidth),
		})
	}

	return dc.repo.BatchSaveChannelSnapshots(snapshots)
}

// CollectEvent stores an event in the database
func (dc *DBCollector) CollectEvent(
	timestamp time.Time,
	eventType, category, severity, message string,
	details interface{},
) error {
	detailsJSON := ""
	if details != nil {
		data, err := json.Marshal(details)
		if err == nil {
			detailsJSON = string(data)
		}
	}

	event := &database.Event{
		SimulationID: dc.simulationID,
		Timestamp:    timestamp,
		EventType:    eventType,
		Category:     category,
		Severity:     severity,
		Message:      message,
		Details:      detailsJSON,
	}

	return dc.repo.SaveEvent(event)
}

// Flush writes buffered decisions to the database
func (dc *DBCollector) Flush() error {
	return dc.flush()
}

func (dc *DBCollector) flush() error {
	if len(dc.buffer) == 0 {
		return nil
	}

	if err := dc.repo.BatchSaveDecisions(dc.buffer); err != nil {
		return fmt.Errorf("failed to save decisions: %w", err)
	}

	dc.buffer = dc.buffer[:0]
	dc.lastFlush = time.Now()
	return nil
}

// Close flushes remaining data and stamps the final status of the run
func (dc *DBCollector) Close(status string) error {
	if err := dc.flush(); err != nil {
		_ = dc.repo.EndSimulation(dc.simulationID, "failed")
		return err
	}
	return dc.repo.EndSimulation(dc.simulationID, status)
}
