package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/casperlundberg/mec-offloading-engine/pkg/cost"
	"github.com/casperlundberg/mec-offloading-engine/pkg/history"
	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// DecisionEngine decides where a device's task runs. It reads the station and
// the shared decision history, and writes outputs onto the device.
type DecisionEngine struct {
	station models.Station
	history *history.DecisionHistory
	random  history.RandomSource
}

// NewDecisionEngine creates an engine over a station and a session-owned history.
// random feeds the history sampler and is only used under the history lock.
func NewDecisionEngine(
	station models.Station,
	hist *history.DecisionHistory,
	random history.RandomSource,
) (*DecisionEngine, error) {
	if station == nil {
		return nil, fmt.Errorf("station is required")
	}
	if station.Bandwidth() <= 0 {
		return nil, fmt.Errorf("%w (got %d)", models.ErrDivisionByZero, station.Bandwidth())
	}
	if len(station.Ports()) == 0 {
		return nil, fmt.Errorf("%w: station has no ports", models.ErrInvalidStation)
	}
	if hist == nil {
		return nil, fmt.Errorf("decision history is required")
	}
	if random == nil {
		return nil, fmt.Errorf("random source is required")
	}

	return &DecisionEngine{
		station: station,
		history: hist,
		random:  random,
	}, nil
}

// History returns the decision history the engine consults
func (de *DecisionEngine) History() *history.DecisionHistory {
	return de.history
}

// DecideByChannelSelection moves the device to the channel with the lowest
// projected congestion and sets its offload weight from its battery level.
func (de *DecisionEngine) DecideByChannelSelection(device models.Device, currentChannel int) (Decision, error) {
	startTime := time.Now()

	if err := models.ValidateDevice(device); err != nil {
		return Decision{}, err
	}

	choice, err := de.SelectBestChannel(currentChannel)
	if err != nil {
		return Decision{}, err
	}

	device.SetTargetChannel(choice.Best)
	weight := SetOffloadingWeight(device)

	return Decision{
		DeviceID:        device.ID(),
		Strategy:        models.StrategyChannelSelection,
		Outcome:         models.PARTIAL_OFFLOAD,
		CurrentChannel:  currentChannel,
		TargetChannel:   choice.Best,
		StayOverhead:    choice.StayOverhead,
		BestOverhead:    choice.BestOverhead,
		OffloadWeight:   weight,
		Choice:          history.Unset,
		DecisionTime:    startTime,
		DecisionLatency: time.Since(startTime),
	}, nil
}

// SelectBestChannel compares the overhead of staying on currentChannel with the
// projected overhead of moving the task to each other port. Ties keep the
// earlier candidate, current channel first.
func (de *DecisionEngine) SelectBestChannel(currentChannel int) (ChannelChoice, error) {
	if !models.HasPort(de.station, currentChannel) {
		return ChannelChoice{}, fmt.Errorf("%w: port %d not on station", models.ErrInvalidChannel, currentChannel)
	}

	return selectBestChannel(
		currentChannel,
		de.station.Ports(),
		de.connectionSnapshot(),
		de.station.LossFactor(),
		float64(de.station.Bandwidth()),
	), nil
}

// selectBestChannel expects currentChannel to be one of ports
func selectBestChannel(
	currentChannel int,
	ports []int,
	connections map[int]int,
	lossFactor float64,
	bandwidth float64,
) ChannelChoice {
	currentConnections := float64(connections[currentChannel])

	counts := make([]int, len(ports))
	for i, port := range ports {
		counts[i] = connections[port]
	}
	stay := cost.TotalOverhead(lossFactor, counts, bandwidth)

	// one fewer connection on the vacated channel
	vacated := cost.ChannelOverhead(lossFactor, currentConnections-1, bandwidth)

	choice := ChannelChoice{
		Current:       currentChannel,
		Best:          currentChannel,
		StayOverhead:  stay,
		BestOverhead:  stay,
		MoveOverheads: make([]PortOverhead, 0, len(ports)-1),
	}

	for _, port := range ports {
		if port == currentChannel {
			continue
		}
		moved := vacated + cost.ChannelOverhead(lossFactor, float64(connections[port])+1, bandwidth)
		choice.MoveOverheads = append(choice.MoveOverheads, PortOverhead{Port: port, Overhead: moved})

		if moved < choice.BestOverhead {
			choice.BestOverhead = moved
			choice.Best = port
		}
	}

	return choice
}

// OffloadWeightForBattery maps a battery level to an offload weight. Lower
// battery offloads more.
func OffloadWeightForBattery(battery int) float64 {
	switch {
	case battery > 80:
		return 0.5
	case battery > 60:
		return 0.6
	case battery > 40:
		return 0.7
	case battery > 20:
		return 0.8
	default:
		return 0.9
	}
}

// SetOffloadingWeight writes the battery-derived weight onto the device and returns it
func SetOffloadingWeight(device models.Device) float64 {
	weight := OffloadWeightForBattery(device.Battery())
	device.SetOffloadWeight(weight)
	return weight
}

// DecideByHistory applies the device's recorded choice, sampling one first if the
// device has never been seen. A local choice that does not pay off forces weight
// 0; a local choice that pays off commits the full offload; an offload choice is
// accepted as is.
func (de *DecisionEngine) DecideByHistory(device models.Device) (Decision, error) {
	startTime := time.Now()

	if err := models.ValidateDevice(device); err != nil {
		return Decision{}, err
	}

	choice, sampled, err := de.history.Resolve(device.ID(), de.random)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve history for device %d: %w", device.ID(), err)
	}

	dec := Decision{
		DeviceID:       device.ID(),
		Strategy:       models.StrategyHistory,
		Outcome:        models.UNCHANGED,
		CurrentChannel: -1,
		TargetChannel:  -1,
		Choice:         choice,
		Sampled:        sampled,
		DecisionTime:   startTime,
	}

	if choice == history.Local {
		eval := de.Evaluate(device)
		dec.Evaluation = &eval

		if eval.Beneficial {
			de.commit(device, eval)
			dec.Outcome = models.FULL_OFFLOAD
			dec.TargetChannel = eval.Channel
			dec.OffloadWeight = 1
			dec.CloudTime = cost.RemoteExecutionTime
			dec.TransferTime = eval.TransferTime
		} else {
			device.SetOffloadWeight(0)
			dec.Outcome = models.FORCED_LOCAL
		}
	}

	dec.DecisionLatency = time.Since(startTime)
	return dec, nil
}

// IsBeneficial evaluates the device and commits a full offload when it pays off.
// A false answer leaves the device untouched.
func (de *DecisionEngine) IsBeneficial(device models.Device) (bool, error) {
	if err := models.ValidateDevice(device); err != nil {
		return false, err
	}

	eval := de.Evaluate(device)
	if !eval.Beneficial {
		return false, nil
	}
	de.commit(device, eval)
	return true, nil
}

// Evaluate compares local execution against the cheapest channel using live
// connection counts. It never mutates the device.
func (de *DecisionEngine) Evaluate(device models.Device) Evaluation {
	localTime, localEnergy := cost.LocalCost(device.LocalExecutionTime())
	bandwidth := de.station.Bandwidth()

	eval := Evaluation{
		LocalTime:    localTime,
		LocalEnergy:  localEnergy,
		Channel:      -1,
		CloudCost:    math.MaxFloat64,
		TransferTime: -1,
	}

	for _, port := range de.station.Ports() {
		c, transfer := cost.CloudCost(device.DataSize(), de.station.ConnectionCount(port), bandwidth)
		if c < eval.CloudCost {
			eval.CloudCost = c
			eval.TransferTime = transfer
			eval.Channel = port
		}
	}

	eval.Cheaper = eval.CloudCost < eval.LocalCost()
	switch {
	case !eval.Cheaper:
		eval.Reason = reasonLocalCheaper
	case eval.TransferTime > cost.TransferCeiling:
		eval.Reason = reasonTransferTooLong
	default:
		eval.Beneficial = true
		eval.Reason = reasonBeneficial
	}
	return eval
}

// Commit writes a beneficial evaluation onto the device as a full offload
func (de *DecisionEngine) Commit(device models.Device, eval Evaluation) error {
	if !eval.Beneficial {
		return fmt.Errorf("cannot commit non-beneficial evaluation: %s", eval.Reason)
	}
	if !models.HasPort(de.station, eval.Channel) {
		return fmt.Errorf("%w: port %d not on station", models.ErrInvalidChannel, eval.Channel)
	}
	de.commit(device, eval)
	return nil
}

func (de *DecisionEngine) commit(device models.Device, eval Evaluation) {
	device.SetTargetChannel(eval.Channel)
	device.SetCloudTime(cost.RemoteExecutionTime)
	device.SetTransferTime(eval.TransferTime)
	device.SetOffloadWeight(1)
}

// connectionSnapshot reads every port's count once
func (de *DecisionEngine) connectionSnapshot() map[int]int {
	ports := de.station.Ports()
	out := make(map[int]int, len(ports))
	for _, p := range ports {
		out[p] = de.station.ConnectionCount(p)
	}
	return out
}
