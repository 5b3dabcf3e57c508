package simulation

import (
	"fmt"
	"log"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/casperlundberg/mec-offloading-engine/pkg/decision"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// Distribution is the mean and sample standard deviation of a series
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summary aggregates one run
type Summary struct {
	SimulationID string        `json:"simulation_id,omitempty"`
	Rounds       int           `json:"rounds"`
	Devices      int           `json:"devices"`
	Decisions    int           `json:"decisions"`
	Failures     int           `json:"failures"`
	Duration     time.Duration `json:"duration"`

	// keyed by strategy, then outcome
	Outcomes     map[models.Strategy]map[models.Outcome]int `json:"outcomes"`
	ChannelUsage map[int]int                                `json:"channel_usage"`

	OffloadWeight Distribution  `json:"offload_weight"`
	TransferTime  Distribution  `json:"transfer_time"`
	History       history.Stats `json:"history"`
}

// summaryBuilder accumulates decisions on the collector goroutine
type summaryBuilder struct {
	summary   Summary
	weights   []float64
	transfers []float64
}

func newSummaryBuilder(rounds, devices int) *summaryBuilder {
	return &summaryBuilder{
		summary: Summary{
			Rounds:       rounds,
			Devices:      devices,
			Outcomes:     make(map[models.Strategy]map[models.Outcome]int),
			ChannelUsage: make(map[int]int),
		},
	}
}

func (b *summaryBuilder) add(d decision.Decision) {
	b.summary.Decisions++

	byOutcome, ok := b.summary.Outcomes[d.Strategy]
	if !ok {
		byOutcome = make(map[models.Outcome]int)
		b.summary.Outcomes[d.Strategy] = byOutcome
	}
	byOutcome[d.Outcome]++

	if d.Outcome == models.UNCHANGED {
		return
	}
	b.weights = append(b.weights, d.OffloadWeight)
	if d.TargetChannel >= 0 {
		b.summary.ChannelUsage[d.TargetChannel]++
	}
	if d.Outcome == models.FULL_OFFLOAD {
		b.transfers = append(b.transfers, float64(d.TransferTime))
	}
}

func (b *summaryBuilder) fail() {
	b.summary.Failures++
}

func (b *summaryBuilder) build(hist history.Stats, duration time.Duration) Summary {
	s := b.summary
	s.OffloadWeight = distribution(b.weights)
	s.TransferTime = distribution(b.transfers)
	s.History = hist
	s.Duration = duration
	return s
}

func distribution(values []float64) Distribution {
	switch len(values) {
	case 0:
		return Distribution{}
	case 1:
		return Distribution{Count: 1, Mean: values[0]}
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Distribution{Count: len(values), Mean: mean, StdDev: std}
}

// Log prints the summary the way the runner reports progress
func (s Summary) Log() {
	log.Printf("=== Simulation summary ===")
	if s.SimulationID != "" {
		log.Printf("Simulation ID: %s", s.SimulationID)
	}
	log.Printf("Rounds: %d, devices: %d, decisions: %d, failures: %d, duration: %v",
		s.Rounds, s.Devices, s.Decisions, s.Failures, s.Duration)

	strategies := make([]string, 0, len(s.Outcomes))
	for strategy := range s.Outcomes {
		strategies = append(strategies, string(strategy))
	}
	sort.Strings(strategies)
	for _, strategy := range strategies {
		byOutcome := s.Outcomes[models.Strategy(strategy)]
		outcomes := make([]string, 0, len(byOutcome))
		for outcome, n := range byOutcome {
			outcomes = append(outcomes, fmt.Sprintf("%s=%d", outcome, n))
		}
		sort.Strings(outcomes)
		log.Printf("  %s: %v", strategy, outcomes)
	}

	ports := make([]int, 0, len(s.ChannelUsage))
	for p := range s.ChannelUsage {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	for _, p := range ports {
		log.Printf("  channel %d: %d decisions", p, s.ChannelUsage[p])
	}

	log.Printf("Offload weight: mean %.3f, stddev %.3f (n=%d)",
		s.OffloadWeight.Mean, s.OffloadWeight.StdDev, s.OffloadWeight.Count)
	log.Printf("Transfer time: mean %.3f, stddev %.3f (n=%d)",
		s.TransferTime.Mean, s.TransferTime.StdDev, s.TransferTime.Count)
	log.Printf("History: size %d, local %d, offload %d, unset %d",
		s.History.Size, s.History.Local, s.History.Offload, s.History.Unset)
}
