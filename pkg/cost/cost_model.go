// Package cost holds the congestion-aware cost model used by the offloading
// engine. Every function is pure.
package cost

import "math"

const (
	// RemoteExecutionTime is the fixed time a task takes on the edge station
	RemoteExecutionTime = 6.0

	// TransferCeiling is the largest transfer time an offload may have
	TransferCeiling = 30

	// CongestionFactor scales the connection count into a transfer multiplier
	CongestionFactor = 2

	// AckOverheadDivisor sizes the protocol overhead as a fraction of the raw transfer
	AckOverheadDivisor = 3.0

	// EnergyRatio models local energy as a fixed fraction of local time
	EnergyRatio = 0.5
)

// ChannelOverhead returns lossFactor^connections * connections / bandwidth.
// Connection counts may be fractional or negative when evaluating what-if moves.
func ChannelOverhead(lossFactor, connections, bandwidth float64) float64 {
	return math.Pow(lossFactor, connections) * connections / bandwidth
}

// TotalOverhead sums ChannelOverhead over a set of connection counts
func TotalOverhead(lossFactor float64, connections []int, bandwidth float64) float64 {
	total := 0.0
	for _, c := range connections {
		total += ChannelOverhead(lossFactor, float64(c), bandwidth)
	}
	return total
}

// LocalCost returns the time and energy cost of running a task on the device
func LocalCost(localExecutionTime float64) (timeCost, energyCost float64) {
	return localExecutionTime, localExecutionTime * EnergyRatio
}

// CloudCost returns the cost of offloading dataSize bytes over a channel with the
// given connection count, plus the transfer time used for the feasibility ceiling.
// The transfer time truncates dataSize/bandwidth before scaling.
func CloudCost(dataSize, connections, bandwidth int) (cost float64, transferTime int) {
	rawTransfer := float64(dataSize) / float64(bandwidth)
	congestion := connections * CongestionFactor

	cost = RemoteExecutionTime +
		rawTransfer*float64(congestion) +
		rawTransfer/AckOverheadDivisor
	transferTime = dataSize / bandwidth * congestion
	return cost, transferTime
}
