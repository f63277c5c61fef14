package thermistor

import (
	"context"
)

// TemperatureBehaviorFunc defines the function signature for temperature
// behavior. It returns the temperature in Celsius or an error.
type TemperatureBehaviorFunc func(ctx context.Context) (float64, error)

// MockTemperatureSensor is a mock temperature source driven by a behavior
// function, usable wherever a Thermistor's ReadTemperature is expected
// (the respiration pipeline in particular) without any hardware.
type MockTemperatureSensor struct {
	behavior TemperatureBehaviorFunc
}

// NewMockTemperatureSensor creates a mock with the given behavior.
//
// Example usage:
//
//	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) { return 34.5, nil })
func NewMockTemperatureSensor(behavior TemperatureBehaviorFunc) *MockTemperatureSensor {
	return &MockTemperatureSensor{behavior: behavior}
}

// ReadTemperature returns the temperature by calling the behavior function.
func (m *MockTemperatureSensor) ReadTemperature(ctx context.Context) (float64, error) {
	return m.behavior(ctx)
}
