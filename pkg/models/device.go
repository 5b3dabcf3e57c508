package models

import (
	"fmt"
	"sync"
)

// Device is the engine's view of a mobile device. Inputs are read-only,
// the setters receive the outputs of the most recent decision.
type Device interface {
	ID() int
	Battery() int
	DataSize() int
	LocalExecutionTime() float64

	SetTargetChannel(channel int)
	SetOffloadWeight(weight float64)
	SetCloudTime(t float64)
	SetTransferTime(t int)
}

// ValidateDevice checks the device inputs and wraps any violation with ErrInvalidDeviceState
func ValidateDevice(d Device) error {
	var errs ValidationErrors

	errs.AddIf(d.ID() < 0, "ID", d.ID(), "ID must be non-negative")
	errs.AddIf(d.Battery() < 0 || d.Battery() > 100, "Battery", d.Battery(),
		"Battery must be in range [0,100]")
	errs.AddIf(d.DataSize() < 0, "DataSize", d.DataSize(), "DataSize must be non-negative")
	errs.AddIf(d.LocalExecutionTime() < 0, "LocalExecutionTime", d.LocalExecutionTime(),
		"LocalExecutionTime must be non-negative")

	if errs.HasErrors() {
		return fmt.Errorf("%w: %v", ErrInvalidDeviceState, errs)
	}
	return nil
}

// DeviceOutputs holds the fields the engine writes back onto a device
type DeviceOutputs struct {
	TargetChannel int     `json:"target_channel"`
	OffloadWeight float64 `json:"offload_weight"`
	CloudTime     float64 `json:"cloud_time"`
	TransferTime  int     `json:"transfer_time"`
}

// MobileDevice is the simulation's device model
type MobileDevice struct {
	id                 int
	battery            int
	dataSize           int
	localExecutionTime float64

	mu      sync.Mutex
	outputs DeviceOutputs
}

// NewMobileDevice creates a device with no target channel assigned
func NewMobileDevice(id, battery, dataSize int, localExecutionTime float64) *MobileDevice {
	return &MobileDevice{
		id:                 id,
		battery:            battery,
		dataSize:           dataSize,
		localExecutionTime: localExecutionTime,
		outputs:            DeviceOutputs{TargetChannel: -1},
	}
}

func (d *MobileDevice) ID() int                     { return d.id }
func (d *MobileDevice) Battery() int                { return d.battery }
func (d *MobileDevice) DataSize() int               { return d.dataSize }
func (d *MobileDevice) LocalExecutionTime() float64 { return d.localExecutionTime }

func (d *MobileDevice) SetTargetChannel(channel int) {
	d.mu.Lock()
	d.outputs.TargetChannel = channel
	d.mu.Unlock()
}

func (d *MobileDevice) SetOffloadWeight(weight float64) {
	d.mu.Lock()
	d.outputs.OffloadWeight = weight
	d.mu.Unlock()
}

func (d *MobileDevice) SetCloudTime(t float64) {
	d.mu.Lock()
	d.outputs.CloudTime = t
	d.mu.Unlock()
}

func (d *MobileDevice) SetTransferTime(t int) {
	d.mu.Lock()
	d.outputs.TransferTime = t
	d.mu.Unlock()
}

// Outputs returns a copy of the current decision outputs
func (d *MobileDevice) Outputs() DeviceOutputs {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs
}
