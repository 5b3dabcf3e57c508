package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSimulation creates a new simulation record
func (r *Repository) CreateSimulation(sim *Simulation) error {
	return r.db.Create(sim).Error
}

// GetSimulation retrieves a simulation by ID
func (r *Repository) GetSimulation(id string) (*Simulation, error) {
	var sim Simulation
	err := r.db.First(&sim, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

// ListSimulations lists all simulations, newest first
func (r *Repository) ListSimulations() ([]Simulation, error) {
	var sims []Simulation
	err := r.db.Order("created_at DESC").Find(&sims).Error
	return sims, err
}

// UpdateSimulation updates a simulation record
func (r *Repository) UpdateSimulation(sim *Simulation) error {
	return r.db.Save(sim).Error
}

// UpdateSimulationMetadata updates simulation name and description
func (r *Repository) UpdateSimulationMetadata(simulationID, name, description string) error {
	return r.db.Model(&Simulation{}).
		Where("id = ?", simulationID).
		Updates(map[string]interface{}{
			"name":        name,
			"description": description,
		}).Error
}

// EndSimulation stamps the end time and final status of a run
func (r *Repository) EndSimulation(id string, status string) error {
	now := time.Now()
	return r.db.Model(&Simulation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"end_time": now,
			"status":   status,
		}).Error
}

// SaveDecision saves a single decision record
func (r *Repository) SaveDecision(decision *DecisionRecord) error {
	return r.db.Create(decision).Error
}

// BatchSaveDecisions saves decision records in batches
func (r *Repository) BatchSaveDecisions(decisions []DecisionRecord) error {
	if len(decisions) == 0 {
		return nil
	}
	return r.db.CreateInBatches(decisions, 100).Error
}

// GetDecisions retrieves decisions for a simulation, optionally filtered by strategy.
// limit <= 0 returns everything.
func (r *Repository) GetDecisions(simulationID string, strategy string, limit int) ([]DecisionRecord, error) {
	var decisions []DecisionRecord
	query := r.db.Where("simulation_id = ?", simulationID)

	if strategy != "" {
		query = query.Where("strategy = ?", strategy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("round ASC, device_id ASC, id ASC").Find(&decisions).Error
	return decisions, err
}

// GetDeviceDecisions retrieves every decision made for one device
func (r *Repository) GetDeviceDecisions(simulationID string, deviceID int) ([]DecisionRecord, error) {
	var decisions []DecisionRecord
	err := r.db.Where("simulation_id = ? AND device_id = ?", simulationID, deviceID).
		Order("round ASC, id ASC").
		Find(&decisions).Error
	return decisions, err
}

// BatchSaveChannelSnapshots saves channel snapshots
func (r *Repository) BatchSaveChannelSnapshots(snapshots []ChannelSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.CreateInBatches(snapshots, 100).Error
}

// GetChannelSnapshots retrieves channel snapshots for a simulation, optionally for one round.
// round < 0 returns every round.
func (r *Repository) GetChannelSnapshots(simulationID string, round int) ([]ChannelSnapshot, error) {
	var snapshots []ChannelSnapshot
	query := r.db.Where("simulation_id = ?", simulationID)

	if round >= 0 {
		query = query.Where("round = ?", round)
	}

	err := query.Order("round ASC, port ASC").Find(&snapshots).Error
	return snapshots, err
}

// SaveEvent saves an event
func (r *Repository) SaveEvent(event *Event) error {
	return r.db.Create(event).Error
}

// GetEvents retrieves events for a simulation
func (r *Repository) GetEvents(simulationID string, eventType string) ([]Event, error) {
	var events []Event
	query := r.db.Where("simulation_id = ?", simulationID)

	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	err := query.Order("timestamp DESC").Find(&events).Error
	return events, err
}

// OutcomeCount is the number of decisions per strategy and outcome
type OutcomeCount struct {
	Strategy string `json:"strategy"`
	Outcome  string `json:"outcome"`
	Count    int64  `json:"count"`
}

// ChannelUsage is the number of decisions that targeted a port
type ChannelUsage struct {
	TargetChannel int   `json:"target_channel"`
	Count         int64 `json:"count"`
}

// SimulationSummary aggregates the ledger of one run
type SimulationSummary struct {
	Simulation   *Simulation    `json:"simulation"`
	Decisions    int64          `json:"decisions"`
	Outcomes     []OutcomeCount `json:"outcomes"`
	ChannelUsage []ChannelUsage `json:"channel_usage"`

	AvgOffloadWeight float64 `json:"avg_offload_weight"`
	AvgTransferTime  float64 `json:"avg_transfer_time"`
	BeneficialCount  int64   `json:"beneficial_count"`
}

// GetSimulationSummary gets aggregated stats for a simulation
func (r *Repository) GetSimulationSummary(simulationID string) (*SimulationSummary, error) {
	sim, err := r.GetSimulation(simulationID)
	if err != nil {
		return nil, err
	}

	summary := &SimulationSummary{Simulation: sim}
	base := func() *gorm.DB {
		return r.db.Model(&DecisionRecord{}).Where("simulation_id = ?", simulationID)
	}

	if err := base().Count(&summary.Decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}

	if err := base().
		Select("strategy, outcome, COUNT(*) as count").
		Group("strategy, outcome").
		Order("strategy, outcome").
		Scan(&summary.Outcomes).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate outcomes: %w", err)
	}

	if err := base().
		Where("target_channel >= 0").
		Select("target_channel, COUNT(*) as count").
		Group("target_channel").
		Order("target_channel").
		Scan(&summary.ChannelUsage).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate channel usage: %w", err)
	}

	var averages struct {
		AvgOffloadWeight float64
		AvgTransferTime  float64
	}
	if err := base().
		Where("outcome <> ?", "unchanged").
		Select("COALESCE(AVG(offload_weight), 0) as avg_offload_weight, " +
			"COALESCE(AVG(transfer_time), 0) as avg_transfer_time").
		Scan(&averages).Error; err != nil {
		return nil, fmt.Errorf("failed to average outputs: %w", err)
	}
	summary.AvgOffloadWeight = averages.AvgOffloadWeight
	summary.AvgTransferTime = averages.AvgTransferTime

	if err := base().Where("beneficial = ?", true).Count(&summary.BeneficialCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count beneficial decisions: %w", err)
	}

	return summary, nil
}

// DeleteSimulation deletes a simulation and all related data
func (r *Repository) DeleteSimulation(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("simulation_id = ?", id).Delete(&DecisionRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("simulation_id = ?", id).Delete(&ChannelSnapshot{}).Error; err != nil {
			return err
		}
		if err := tx.Where("simulation_id = ?", id).Delete(&Event{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&Simulation{}).Error
	})
}
