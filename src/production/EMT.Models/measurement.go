package emtmodels

import (
	"fmt"
	"time"
)

// Quantity identifies a tracked time series.
type Quantity string

const (
	QuantityCurrent       Quantity = "current"
	QuantityVoltage       Quantity = "voltage"
	QuantityGridFrequency Quantity = "gridFrequency"
	QuantityTemperature   Quantity = "temperature"
)

// ParseQuantity converts a request enumerator into a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	switch Quantity(s) {
	case QuantityCurrent, QuantityVoltage, QuantityGridFrequency, QuantityTemperature:
		return Quantity(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidQuantityType, s)
	}
}

// PhaseTagged reports whether measurements of this quantity carry a phase tag.
// Only current and voltage are measured per electrical phase.
func (q Quantity) PhaseTagged() bool {
	return q == QuantityCurrent || q == QuantityVoltage
}

// Phase is one of the three electrical phases.
type Phase string

const (
	PhaseL1 Phase = "L1"
	PhaseL2 Phase = "L2"
	PhaseL3 Phase = "L3"
)

// ParsePhase converts a request parameter into a Phase.
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseL1, PhaseL2, PhaseL3:
		return Phase(s), nil
	default:
		return "", fmt.Errorf("invalid electric phase: %q", s)
	}
}

// Measurement is one timestamped sample of a quantity. Phase is empty for
// quantities that are not phase-tagged.
type Measurement struct {
	Value float64   `json:"value"`
	Time  time.Time `json:"timestamp"`
	Phase Phase     `json:"phase,omitempty"`
}

// MinMaxMean holds the three windowed aggregate sequences of one query.
// The field order is the canonical response order: min, mean, max.
type MinMaxMean struct {
	Min  []Measurement `json:"min"`
	Mean []Measurement `json:"mean"`
	Max  []Measurement `json:"max"`
}
