package models

import (
	"errors"
	"fmt"
)

// Caller contract violations. None of them are retriable.
var (
	// ErrInvalidChannel is returned when a referenced channel is not one of the station's ports
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrDivisionByZero is returned when a station is built with a non-positive bandwidth
	ErrDivisionByZero = errors.New("division by zero: bandwidth must be positive")

	// ErrInvalidDeviceState is returned for negative ids, negative data sizes or out of range battery levels
	ErrInvalidDeviceState = errors.New("invalid device state")

	// ErrInvalidStation is returned for malformed port sets or loss factors
	ErrInvalidStation = errors.New("invalid station")
)

// Strategy names the offloading strategy that produced a decision
type Strategy string

const (
	StrategyChannelSelection Strategy = "mec"
	StrategyHistory          Strategy = "dynamic"
)

// ValidStrategies returns all valid strategies
func ValidStrategies() []Strategy {
	return []Strategy{StrategyChannelSelection, StrategyHistory}
}

// IsValid checks if a Strategy is valid
func (s Strategy) IsValid() bool {
	for _, valid := range ValidStrategies() {
		if s == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of Strategy
func (s Strategy) String() string {
	return string(s)
}

// Outcome describes what a decision did to the device
type Outcome string

const (
	PARTIAL_OFFLOAD Outcome = "partial_offload" // weight set from battery level
	FULL_OFFLOAD    Outcome = "full_offload"    // beneficial offload committed, weight 1
	FORCED_LOCAL    Outcome = "forced_local"    // weight forced to 0
	UNCHANGED       Outcome = "unchanged"       // history said offload, nothing written
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s",
		ve.Field, ve.Value, ve.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", ve[0].Error(), len(ve)-1)
}

// HasErrors returns true if there are validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field string, value interface{}, message string) {
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// AddIf adds a validation error if the condition is true
func (ve *ValidationErrors) AddIf(condition bool, field string, value interface{}, message string) {
	if condition {
		ve.Add(field, value, message)
	}
}
