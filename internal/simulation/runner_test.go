package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casperlundberg/mec-offloading-engine/internal/database"
	"github.com/casperlundberg/mec-offloading-engine/internal/metrics"
	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

func smallConfig() Config {
	config := DefaultConfig()
	config.Rounds = 3
	config.Devices = 25
	config.Workers = 4
	return config
}

func TestRunner_RunBothStrategies(t *testing.T) {
	config := smallConfig()
	runner, err := NewRunner(config, nil, nil)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, config.Rounds*config.Devices*2, summary.Decisions)
	assert.Zero(t, summary.Failures)

	// every channel-selection decision is a partial offload
	mec := summary.Outcomes[models.StrategyChannelSelection]
	assert.Equal(t, config.Rounds*config.Devices, mec[models.PARTIAL_OFFLOAD])

	dynamic := summary.Outcomes[models.StrategyHistory]
	total := 0
	for _, n := range dynamic {
		total += n
	}
	assert.Equal(t, config.Rounds*config.Devices, total)

	// ids are stable across rounds, so the history holds one entry per device
	assert.Equal(t, config.Devices, summary.History.Size)
	assert.Zero(t, summary.History.Unset)
	assert.Equal(t, config.Devices, summary.History.Local+summary.History.Offload)

	assert.GreaterOrEqual(t, summary.OffloadWeight.Mean, 0.0)
	assert.LessOrEqual(t, summary.OffloadWeight.Mean, 1.0)

	for _, port := range runner.Station.Ports() {
		assert.Zero(t, runner.Station.ConnectionCount(port), "station is emptied after each round")
	}
}

func TestRunner_ChannelUsageOnlyStationPorts(t *testing.T) {
	config := smallConfig()
	config.Mode = ModeChannelSelection
	runner, err := NewRunner(config, nil, nil)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	used := 0
	for port, n := range summary.ChannelUsage {
		assert.True(t, models.HasPort(runner.Station, port))
		used += n
	}
	assert.Equal(t, config.Rounds*config.Devices, used)
}

func TestRunner_RngStreamSource(t *testing.T) {
	config := smallConfig()
	config.Random = RandomRngStream
	config.Mode = ModeHistory
	runner, err := NewRunner(config, nil, nil)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.Rounds*config.Devices, summary.Decisions)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner, err := NewRunner(smallConfig(), nil, nil)
	require.NoError(t, err)

	summary, err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Decisions, 25*2*3)
}

func TestRunner_RejectsInvalidConfig(t *testing.T) {
	config := smallConfig()
	config.Station.Bandwidth = 0

	_, err := NewRunner(config, nil, nil)
	assert.ErrorIs(t, err, models.ErrDivisionByZero)
}

func TestRunner_PersistsAndRecords(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := database.NewRepository(db)

	config := smallConfig()
	collector, err := NewDBCollector(repo, config.Name, config.Description, config)
	require.NoError(t, err)
	recorder := metrics.NewRecorder()

	runner, err := NewRunner(config, collector, recorder)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, collector.GetSimulationID(), summary.SimulationID)

	sim, err := repo.GetSimulation(summary.SimulationID)
	require.NoError(t, err)
	assert.Equal(t, "completed", sim.Status)
	assert.NotNil(t, sim.EndTime)
	assert.Contains(t, sim.Config, `"strategy":"both"`)

	decisions, err := repo.GetDecisions(summary.SimulationID, "", 0)
	require.NoError(t, err)
	assert.Len(t, decisions, summary.Decisions)

	mec, err := repo.GetDecisions(summary.SimulationID, string(models.StrategyChannelSelection), 0)
	require.NoError(t, err)
	assert.Len(t, mec, config.Rounds*config.Devices)

	snapshots, err := repo.GetChannelSnapshots(summary.SimulationID, -1)
	require.NoError(t, err)
	assert.Len(t, snapshots, config.Rounds*2*len(config.Station.Ports))
	for _, s := range snapshots {
		assert.Contains(t, config.Station.Ports, s.Port)
	}

	events, err := repo.GetEvents(summary.SimulationID, "round_completed")
	require.NoError(t, err)
	assert.Len(t, events, config.Rounds*2)

	families, err := recorder.Registry().Gather()
	require.NoError(t, err)
	counted := 0.0
	for _, mf := range families {
		if mf.GetName() != "mec_decisions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			counted += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(summary.Decisions), counted)
}

func TestDBCollector_RecordsEvaluation(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := database.NewRepository(db)

	collector, err := NewDBCollector(repo, "eval", "", nil)
	require.NoError(t, err)

	device := models.NewMobileDevice(3, 50, 10, 40)
	eval := decision.Evaluation{LocalTime: 40, LocalEnergy: 20, Channel: 1, CloudCost: 9.3, TransferTime: 1, Cheaper: true, Beneficial: true, Reason: "beneficial"}
	d := decision.Decision{
		DeviceID:      3,
		Strategy:      models.StrategyHistory,
		Outcome:       models.FULL_OFFLOAD,
		TargetChannel: 1,
		OffloadWeight: 1,
		Choice:        history.Local,
		Evaluation:    &eval,
	}
	require.NoError(t, collector.CollectDecision(0, device, d))
	require.NoError(t, collector.Close("completed"))

	records, err := repo.GetDeviceDecisions(collector.GetSimulationID(), 3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 50, records[0].Battery)
	assert.Equal(t, 9.3, records[0].CloudCost)
	assert.Equal(t, 60.0, records[0].LocalCost)
	assert.True(t, records[0].Beneficial)
	assert.Equal(t, "local", records[0].Choice)
}

func TestDistribution(t *testing.T) {
	assert.Equal(t, Distribution{}, distribution(nil))
	assert.Equal(t, Distribution{Count: 1, Mean: 0.5}, distribution([]float64{0.5}))

	d := distribution([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, d.Count)
	assert.InDelta(t, 5.0, d.Mean, 1e-9)
	assert.InDelta(t, 2.138, d.StdDev, 1e-3)
}
