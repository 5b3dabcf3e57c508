package simulation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/casperlundberg/mec-offloading-engine/internal/metrics"
	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// Runner drives rounds of devices through the decision engine
type Runner struct {
	Config  Config
	Station *models.WirelessStation
	History *history.DecisionHistory
	Engine  *decision.DecisionEngine

	// Optional sinks
	DBCollector *DBCollector
	Metrics     *metrics.Recorder

	devices Source
}

type job struct {
	round    int
	strategy models.Strategy
	device   *models.MobileDevice
	current  int
}

type result struct {
	round    int
	device   *models.MobileDevice
	decision decision.Decision
	err      error
}

// NewRunner builds the station, a fresh decision history and the engine for one session
func NewRunner(config Config, dbCollector *DBCollector, recorder *metrics.Recorder) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	station, err := models.NewWirelessStation(config.Station)
	if err != nil {
		return nil, fmt.Errorf("failed to create station: %w", err)
	}

	sampler, err := newSource(config.Random, config.Seed, "sampler")
	if err != nil {
		return nil, err
	}
	devices, err := newSource(config.Random, config.Seed, "devices")
	if err != nil {
		return nil, err
	}

	hist := history.New()
	engine, err := decision.NewDecisionEngine(station, hist, sampler)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision engine: %w", err)
	}

	return &Runner{
		Config:      config,
		Station:     station,
		History:     hist,
		Engine:      engine,
		DBCollector: dbCollector,
		Metrics:     recorder,
		devices:     devices,
	}, nil
}

// Run executes every round for every configured strategy. Cancelling ctx stops
// dispatch; decisions already handed to workers still complete and are recorded.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	log.Printf("Starting simulation: %d rounds x %d devices, strategy %s, %d workers",
		r.Config.Rounds, r.Config.Devices, r.Config.Mode, r.Config.Workers)

	builder := newSummaryBuilder(r.Config.Rounds, r.Config.Devices)

	var runErr error
rounds:
	for round := 0; round < r.Config.Rounds; round++ {
		for _, strategy := range r.Config.Strategies() {
			if err := r.runRound(ctx, round, strategy, builder); err != nil {
				runErr = err
				break rounds
			}
		}
	}

	summary := builder.build(r.History.Stats(), time.Since(start))
	if r.Metrics != nil {
		r.Metrics.ObserveHistory(summary.History)
	}

	if r.DBCollector != nil {
		summary.SimulationID = r.DBCollector.GetSimulationID()
		status := "completed"
		if runErr != nil {
			status = "failed"
		}
		if err := r.DBCollector.Close(status); err != nil {
			log.Printf("Warning: Failed to close database collector: %v", err)
		}
	}

	return summary, runErr
}

// runRound attaches a fresh set of devices to random ports, decides for all of
// them concurrently and leaves the station empty again
func (r *Runner) runRound(ctx context.Context, round int, strategy models.Strategy, builder *summaryBuilder) error {
	r.Station.Reset()
	defer r.Station.Reset()

	r.event("round_started", "simulation", "info",
		fmt.Sprintf("round %d (%s) started", round, strategy), nil)

	jobs := make([]job, 0, r.Config.Devices)
	ports := r.Station.Ports()
	for id := 0; id < r.Config.Devices; id++ {
		port := ports[r.devices.Intn(len(ports))]
		if err := r.Station.Attach(port); err != nil {
			return fmt.Errorf("failed to attach device %d: %w", id, err)
		}
		jobs = append(jobs, job{
			round:    round,
			strategy: strategy,
			device:   r.newDevice(id),
			current:  port,
		})
	}

	jobCh := make(chan job)
	resultCh := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < r.Config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				resultCh <- r.decide(j)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range resultCh {
			r.record(res, builder)
		}
	}()

	var dispatchErr error
dispatch:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		case jobCh <- j:
		}
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)
	<-done

	connections := r.Station.Snapshot()
	if r.Metrics != nil {
		r.Metrics.ObserveChannels(connections)
	}
	if r.DBCollector != nil {
		if err := r.DBCollector.CollectChannels(round, time.Now(), r.Station, connections); err != nil {
			log.Printf("Warning: Failed to save channel snapshot: %v", err)
		}
		if err := r.DBCollector.Flush(); err != nil {
			log.Printf("Warning: Failed to flush decisions: %v", err)
		}
	}

	if dispatchErr != nil {
		r.event("round_cancelled", "simulation", "warning",
			fmt.Sprintf("round %d (%s) cancelled", round, strategy), nil)
		return dispatchErr
	}

	r.event("round_completed", "simulation", "info",
		fmt.Sprintf("round %d (%s) completed", round, strategy), connections)
	log.Printf("Round %d (%s) completed: connections %v", round, strategy, connections)
	return nil
}

// decide runs on a worker. The device's connection follows the engine's target.
func (r *Runner) decide(j job) result {
	res := result{round: j.round, device: j.device}

	switch j.strategy {
	case models.StrategyChannelSelection:
		res.decision, res.err = r.Engine.DecideByChannelSelection(j.device, j.current)
	case models.StrategyHistory:
		res.decision, res.err = r.Engine.DecideByHistory(j.device)
		res.decision.CurrentChannel = j.current
	default:
		res.err = fmt.Errorf("unknown strategy %q", j.strategy)
	}
	if res.err != nil {
		return res
	}

	target := res.decision.TargetChannel
	if target >= 0 && target != j.current {
		if err := r.Station.Move(j.current, target); err != nil {
			res.err = fmt.Errorf("failed to move device %d to channel %d: %w", j.device.ID(), target, err)
		}
	}
	return res
}

// record runs on the single collector goroutine
func (r *Runner) record(res result, builder *summaryBuilder) {
	if res.err != nil {
		builder.fail()
		log.Printf("Warning: decision failed for device %d: %v", res.device.ID(), res.err)
		r.event("decision_failed", "engine", "error", res.err.Error(),
			map[string]interface{}{"round": res.round, "device_id": res.device.ID()})
		return
	}

	builder.add(res.decision)
	if r.Metrics != nil {
		r.Metrics.ObserveDecision(res.decision)
	}
	if r.DBCollector != nil {
		if err := r.DBCollector.CollectDecision(res.round, res.device, res.decision); err != nil {
			log.Printf("Warning: Failed to save decision to database: %v", err)
		}
	}
}

func (r *Runner) newDevice(id int) *models.MobileDevice {
	p := r.Config.Profile
	battery := p.MinBattery + r.devices.Intn(p.MaxBattery-p.MinBattery+1)
	dataSize := p.MinDataSize + r.devices.Intn(p.MaxDataSize-p.MinDataSize+1)
	localTime := p.MinLocalTime + r.devices.Float64()*(p.MaxLocalTime-p.MinLocalTime)
	return models.NewMobileDevice(id, battery, dataSize, localTime)
}

func (r *Runner) event(eventType, category, severity, message string, details interface{}) {
	if r.DBCollector == nil {
		return
	}
	if err := r.DBCollector.CollectEvent(time.Now(), eventType, category, severity, message, details); err != nil {
		log.Printf("Warning: Failed to save event: %v", err)
	}
}
