package thermistor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Calibration holds three (temperature, resistance) reference points for a
// probe, low to high temperature. Profiles are usually shipped as small
// yaml files next to the probe's datasheet values.
type Calibration struct {
	T1 float64 `yaml:"t1"`
	T2 float64 `yaml:"t2"`
	T3 float64 `yaml:"t3"`
	R1 float64 `yaml:"r1"`
	R2 float64 `yaml:"r2"`
	R3 float64 `yaml:"r3"`
}

// DefaultCalibration returns the Amphenol MA100 datasheet points.
func DefaultCalibration() Calibration {
	return Calibration{
		T1: 15.0, R1: 16031,
		T2: 30.0, R2: 7869,
		T3: 45.0, R3: 4267,
	}
}

// Coefficients fits the Steinhart-Hart model to the three points.
func (c Calibration) Coefficients() Coefficients {
	return Fit(c.T1, c.T2, c.T3, c.R1, c.R2, c.R3)
}

// LoadCalibration reads a yaml calibration profile.
func LoadCalibration(path string) (Calibration, error) {
	var cal Calibration
	raw, err := os.ReadFile(path)
	if err != nil {
		return cal, fmt.Errorf("thermistor: could not read calibration profile: %w", err)
	}
	err = yaml.Unmarshal(raw, &cal)
	if err != nil {
		return cal, fmt.Errorf("thermistor: could not parse calibration profile: %w", err)
	}
	if cal.R1 == 0 || cal.R2 == 0 || cal.R3 == 0 {
		return cal, fmt.Errorf("thermistor: calibration profile %s is missing resistance points", path)
	}
	return cal, nil
}
