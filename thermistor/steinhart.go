package thermistor

import (
	"context"
	"errors"
	"fmt"
	"math"

	biodata "github.com/possibly-human/BioData"
)

// ErrZeroResistance is returned by Temperature when the measured
// resistance is exactly zero, which would put log(0) into the model.
var ErrZeroResistance = errors.New("thermistor: zero resistance (shorted divider or missing probe)")

const kelvin = 273.15

// Connect tells which leg of the voltage divider the thermistor occupies.
// The two wirings need different algebra; using the wrong one produces a
// plausible-looking but wrong resistance.
type Connect int

const (
	// ConnectExcite: thermistor between the excitation rail and the ADC
	// node, series resistor to ground.
	ConnectExcite Connect = iota
	// ConnectGround: thermistor between the ADC node and ground, series
	// resistor to the excitation rail.
	ConnectGround
)

// Defaults describe an Amphenol MA100 NTC on a 10k divider read through an
// ADS1115 at the 4.096V range on a 3.3V rail.
const (
	DefaultDividerResistance = 10000.0
	DefaultExciteValue       = 65535
	DefaultVoltageIn         = 3.3
	// Full-scale span of the 4.096V PGA range across the signed 16-bit
	// result, used to turn a raw count into volts.
	DefaultADCGain = 4.096 * 2
)

// Coefficients of the Steinhart-Hart model 1/T = a + b·ln(R) + c·ln(R)³.
type Coefficients struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
	C float64 `yaml:"c"`
}

// Fit solves the three-point Steinhart-Hart system in closed form by
// elimination. Temperatures are Celsius, resistances ohms. The three
// resistances must be pairwise distinct: their logarithms end up in
// denominators and repeated values yield NaN/Inf coefficients. This is a
// precondition, not checked at runtime.
func Fit(t1, t2, t3, r1, r2, r3 float64) Coefficients {
	t1 += kelvin
	t2 += kelvin
	t3 += kelvin
	x1 := math.Log(r1)
	x2 := math.Log(r2)
	x3 := math.Log(r3)

	s := x1 - x2
	u := x1 - x3
	v := 1/t1 - 1/t2
	w := 1/t1 - 1/t3

	x1c := math.Pow(x1, 3)
	x2c := math.Pow(x2, 3)
	x3c := math.Pow(x3, 3)

	var coef Coefficients
	coef.C = (v - s*w/u) / ((x1c - x2c) - s*(x1c-x3c)/u)
	coef.B = (v - coef.C*(x1c-x2c)) / s
	coef.A = 1/t1 - coef.C*x1c - coef.B*x1
	return coef
}

type Opts struct {
	DividerResistance float64
	Offset            float64
	Connect           Connect
	ExciteValue       int
	VoltageIn         float64
	ADCGain           float64
	Calibration       Calibration
}

type Opt func(*Opts)

// WithDividerResistance sets the series resistor value in ohms.
func WithDividerResistance(r float64) Opt {
	return func(o *Opts) {
		o.DividerResistance = r
	}
}

// WithOffset adds a fixed Celsius correction to every reading.
func WithOffset(offset float64) Opt {
	return func(o *Opts) {
		o.Offset = offset
	}
}

func WithConnect(connect Connect) Opt {
	return func(o *Opts) {
		o.Connect = connect
	}
}

// WithExciteValue sets the full-scale ADC count the divider maths works
// against: 65535 for the ADS1115, 1023 for a 10-bit onboard ADC.
func WithExciteValue(value int) Opt {
	return func(o *Opts) {
		o.ExciteValue = value
	}
}

// WithVoltageIn sets the divider excitation voltage.
func WithVoltageIn(v float64) Opt {
	return func(o *Opts) {
		o.VoltageIn = v
	}
}

// WithADCGain sets the volts-per-full-scale factor used to turn an
// external-ADC raw count into a voltage (twice the PGA range for the
// signed 16-bit ADS1x15 result).
func WithADCGain(gain float64) Opt {
	return func(o *Opts) {
		o.ADCGain = gain
	}
}

// WithCalibration replaces the MA100 default calibration points.
func WithCalibration(cal Calibration) Opt {
	return func(o *Opts) {
		o.Calibration = cal
	}
}

// Thermistor converts ADC counts into resistance and temperature. The
// zero-value-options constructor is usable out of the box with the MA100
// defaults. Readings are recomputed on every call; the Last* getters only
// keep the most recent snapshot.
type Thermistor struct {
	coef   Coefficients
	config Opts

	analog biodata.AnalogReader
	pin    string

	lastRaw         int
	lastResistance  float64
	lastTemperature float64
}

// New builds a converter for the external-ADC path: the caller feeds raw
// ADS1x15 counts into ResistanceFromRaw / TemperatureFromRaw.
func New(opts ...Opt) *Thermistor {
	config := Opts{
		DividerResistance: DefaultDividerResistance,
		Connect:           ConnectExcite,
		ExciteValue:       DefaultExciteValue,
		VoltageIn:         DefaultVoltageIn,
		ADCGain:           DefaultADCGain,
		Calibration:       DefaultCalibration(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Thermistor{
		coef:   config.Calibration.Coefficients(),
		config: config,
	}
}

// NewWithAnalog builds a converter for the onboard-ADC path, reading raw
// counts from the host analog input identified by pin.
func NewWithAnalog(reader biodata.AnalogReader, pin string, opts ...Opt) *Thermistor {
	t := New(opts...)
	t.analog = reader
	t.pin = pin
	return t
}

// SetCoefficients refits the model from three (Celsius, ohm) points.
func (t *Thermistor) SetCoefficients(t1, t2, t3, r1, r2, r3 float64) {
	t.coef = Fit(t1, t2, t3, r1, r2, r3)
}

func (t *Thermistor) Coefficients() Coefficients {
	return t.coef
}

func (t *Thermistor) SetDividerResistance(r float64) {
	t.config.DividerResistance = r
}

func (t *Thermistor) SetOffset(offset float64) {
	t.config.Offset = offset
}

// ResistanceFromRaw maps an external-ADC count to the thermistor
// resistance through the divider model: the count is first scaled to a
// voltage against the full-scale range, then solved for R on the
// configured leg.
func (t *Thermistor) ResistanceFromRaw(raw int16) float64 {
	t.lastRaw = int(raw)
	voltageOut := float64(raw) / float64(t.config.ExciteValue) * t.config.ADCGain

	divR := t.config.DividerResistance
	if t.config.Connect == ConnectGround {
		t.lastResistance = voltageOut * divR / (t.config.VoltageIn - voltageOut)
	} else {
		t.lastResistance = t.config.VoltageIn*divR/voltageOut - divR
	}
	return t.lastResistance
}

// resistanceFromCount is the onboard-ADC variant: raw counts ratioed
// directly against the excitation count, no voltage step. The two paths
// assume different full-scale references and must stay distinct.
func (t *Thermistor) resistanceFromCount(count int) float64 {
	t.lastRaw = count
	divR := t.config.DividerResistance
	excite := float64(t.config.ExciteValue)
	if t.config.Connect == ConnectGround {
		t.lastResistance = divR * float64(count) / (excite - float64(count))
	} else {
		t.lastResistance = divR * (excite/float64(count) - 1)
	}
	return t.lastResistance
}

// ReadResistance samples the host analog input and returns the divider
// resistance. Only valid on converters built with NewWithAnalog.
func (t *Thermistor) ReadResistance(ctx context.Context) (float64, error) {
	if t.analog == nil {
		return 0, fmt.Errorf("thermistor: no analog reader configured")
	}
	count, err := t.analog.AnalogRead(ctx, t.pin)
	if err != nil {
		return 0, fmt.Errorf("thermistor: analog read failed: %w", err)
	}
	return t.resistanceFromCount(count), nil
}

// Temperature evaluates the Steinhart-Hart model and returns Celsius.
// Exactly zero resistance returns ErrZeroResistance; negative resistance
// is undefined (the model takes its logarithm) and is not guarded.
func (t *Thermistor) Temperature(resistance float64) (float64, error) {
	if resistance == 0 {
		return 0, ErrZeroResistance
	}
	lr := math.Log(resistance)
	t.lastTemperature = 1/(t.coef.A+t.coef.B*lr+t.coef.C*math.Pow(lr, 3)) - kelvin + t.config.Offset
	return t.lastTemperature, nil
}

// TemperatureFromRaw composes ResistanceFromRaw and Temperature; this is
// the primary entry point for the external-ADC path.
func (t *Thermistor) TemperatureFromRaw(raw int16) (float64, error) {
	return t.Temperature(t.ResistanceFromRaw(raw))
}

// ReadTemperature samples the host analog input and converts to Celsius;
// the primary entry point for the onboard path.
func (t *Thermistor) ReadTemperature(ctx context.Context) (float64, error) {
	resistance, err := t.ReadResistance(ctx)
	if err != nil {
		return 0, err
	}
	return t.Temperature(resistance)
}

func (t *Thermistor) LastRaw() int {
	return t.lastRaw
}

func (t *Thermistor) LastResistance() float64 {
	return t.lastResistance
}

func (t *Thermistor) LastTemperature() float64 {
	return t.lastTemperature
}
