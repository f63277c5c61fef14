package respiration

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// TemperatureSource produces Celsius samples: a thermistor on either ADC
// path, or a mock.
type TemperatureSource interface {
	ReadTemperature(ctx context.Context) (float64, error)
}

// Opts carries the pipeline tuning. The defaults follow the BioData
// breathing sensor: a nose-mounted thermistor warms on exhale and cools on
// inhale, so the base temperature signal oscillates once per breath.
type Opts struct {
	SampleRate float64 // samples per second

	SmootherWindow   float64 // base signal smoothing time constant (s)
	NormalizerWindow float64 // base signal normalizer window (s)
	ScalerWindow     float64 // adaptive min/max window (s)

	PeakThreshold     float64
	PeakReload        float64
	PeakFallback      float64
	TroughThreshold   float64
	TroughReload      float64
	TroughFallback    float64
	MinBreathInterval time.Duration // intervals below this are treated as noise

	AmplitudeSmootherWindow    float64
	AmplitudeWindow            float64 // amplitude normalizer window (s)
	AmplitudeVariabilityWindow float64
	AmplitudeLevelWindow       float64 // slow smoother behind AmplitudeLevel

	RpmSmootherWindow    float64
	RpmWindow            float64 // rpm normalizer window (s)
	RpmVariabilityWindow float64
	RpmLevelWindow       float64 // slow smoother behind RpmLevel
}

// Bounds used to map a normalized (stddev) value onto [0, 1]: ±3 standard
// deviations cover the scale, ±1 marks a significant departure from the
// baseline for the level indicators.
const (
	scaleStdDevSpan  = 3.0
	levelSignificant = 1.0
)

type Opt func(*Opts)

func WithSampleRate(rate float64) Opt {
	return func(o *Opts) {
		o.SampleRate = rate
	}
}

func WithPeakThresholds(threshold, reload, fallback float64) Opt {
	return func(o *Opts) {
		o.PeakThreshold = threshold
		o.PeakReload = reload
		o.PeakFallback = fallback
	}
}

func WithTroughThresholds(threshold, reload, fallback float64) Opt {
	return func(o *Opts) {
		o.TroughThreshold = threshold
		o.TroughReload = reload
		o.TroughFallback = fallback
	}
}

// Metrics is the per-sample snapshot of everything the pipeline derives
// from the temperature signal.
type Metrics struct {
	Temperature float64 `yaml:"temperature"` // Celsius, last raw sample
	Normalized  float64 `yaml:"normalized"`  // base signal, mean 0 / stddev 1
	Scaled      float64 `yaml:"scaled"`      // base signal scaled into [0,1]
	Exhaling    bool    `yaml:"exhaling"`

	Amplitude            float64 `yaml:"amplitude"`             // peak-to-trough temperature span
	AmplitudeDelta       float64 `yaml:"amplitude_delta"`       // vs previous breath
	AmplitudeVariability float64 `yaml:"amplitude_variability"` // coefficient of variation, percent

	Interval       float64 `yaml:"interval"` // seconds between exhale peaks
	Rpm            float64 `yaml:"rpm"`      // respirations per minute
	RpmDelta       float64 `yaml:"rpm_delta"`
	RpmVariability float64 `yaml:"rpm_variability"` // coefficient of variation, percent
}

// Respiration turns a stream of temperature samples into breathing
// metrics: exhale/inhale state, breath amplitude and rate plus their
// per-breath deltas and variability. The accessors are safe to call while
// Run samples in another goroutine.
//
// Typical usage:
//
//	resp := respiration.New(therm)
//	go resp.Run(ctx)
//	...
//	m := resp.Metrics()
type Respiration struct {
	source TemperatureSource
	config Opts

	mx sync.Mutex

	smoother   *Smoother
	normalizer *Normalizer
	scaler     *Scaler
	peak       *PeakDetector
	trough     *PeakDetector

	smootherAmplitude      *Smoother
	normalizerAmplitude    *Normalizer
	variabilityAmplitude   *Normalizer
	smootherAmplitudeLevel *Smoother
	smootherRpm            *Smoother
	normalizerRpm          *Normalizer
	variabilityRpm         *Normalizer
	smootherRpmLevel       *Smoother

	lastUpdate   time.Time
	lastPeak     time.Time
	havePeakTime bool

	cycleMin      float64
	cycleMax      float64
	prevAmplitude float64
	prevRpm       float64

	metrics Metrics
}

func New(source TemperatureSource, opts ...Opt) *Respiration {
	config := Opts{
		SampleRate:                 20,
		SmootherWindow:             0.1,
		NormalizerWindow:           10,
		ScalerWindow:               10,
		PeakThreshold:              0.5,
		PeakReload:                 0.4,
		PeakFallback:               0.05,
		TroughThreshold:            0.5,
		TroughReload:               0.6,
		TroughFallback:             0.05,
		MinBreathInterval:          30 * time.Millisecond,
		AmplitudeSmootherWindow:    2,
		AmplitudeWindow:            90,
		AmplitudeVariabilityWindow: 30,
		AmplitudeLevelWindow:       20,
		RpmSmootherWindow:          2,
		RpmWindow:                  90,
		RpmVariabilityWindow:       30,
		RpmLevelWindow:             20,
	}
	for _, opt := range opts {
		opt(&config)
	}
	// a non-positive rate would zero the ticker period
	if config.SampleRate <= 0 {
		config.SampleRate = 20
	}
	return &Respiration{
		source:                 source,
		config:                 config,
		smoother:               NewSmoother(config.SmootherWindow),
		normalizer:             NewNormalizer(config.NormalizerWindow),
		scaler:                 NewScaler(config.ScalerWindow),
		peak:                   newPeakDetector(peakMax, config.PeakThreshold, config.PeakReload, config.PeakFallback),
		trough:                 newPeakDetector(peakMin, config.TroughThreshold, config.TroughReload, config.TroughFallback),
		smootherAmplitude:      NewSmoother(config.AmplitudeSmootherWindow),
		normalizerAmplitude:    NewNormalizer(config.AmplitudeWindow),
		variabilityAmplitude:   NewNormalizer(config.AmplitudeVariabilityWindow),
		smootherAmplitudeLevel: NewSmoother(config.AmplitudeLevelWindow),
		smootherRpm:            NewSmoother(config.RpmSmootherWindow),
		normalizerRpm:          NewNormalizer(config.RpmWindow),
		variabilityRpm:         NewNormalizer(config.RpmVariabilityWindow),
		smootherRpmLevel:       NewSmoother(config.RpmLevelWindow),
		metrics: Metrics{
			Temperature: 25,
			Amplitude:   0.3,
			Rpm:         12,
		},
	}
}

// Run samples the source at the configured rate until the context is
// cancelled.
func (r *Respiration) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / r.config.SampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.Sample(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sample reads one temperature from the source and advances the pipeline.
func (r *Respiration) Sample(ctx context.Context) error {
	value, err := r.source.ReadTemperature(ctx)
	if err != nil {
		return fmt.Errorf("respiration: temperature sample failed: %w", err)
	}
	r.Step(value, time.Now())
	return nil
}

// Step advances the pipeline with one temperature sample taken at the
// given instant. Exported so recorded sessions can be replayed offline.
// Safe to call while another goroutine reads the metrics.
func (r *Respiration) Step(value float64, now time.Time) {
	r.mx.Lock()
	defer r.mx.Unlock()
	dt := 1 / r.config.SampleRate
	if !r.lastUpdate.IsZero() {
		if elapsed := now.Sub(r.lastUpdate).Seconds(); elapsed > 0 {
			dt = elapsed
		}
	}
	r.lastUpdate = now
	r.metrics.Temperature = value

	// base signal: smooth, normalize, scale, then peak/trough detection
	smoothed := r.smoother.Update(value, dt)
	r.metrics.Normalized = r.normalizer.Update(smoothed, dt)
	r.metrics.Scaled = r.scaler.Update(r.metrics.Normalized, dt)
	peaked := r.peak.Update(r.metrics.Scaled)
	troughed := r.trough.Update(r.metrics.Scaled)
	if peaked {
		r.metrics.Exhaling = true
	} else if troughed {
		r.metrics.Exhaling = false
	}

	r.amplitude(value, peaked, troughed, dt)
	r.rpm(now, peaked, dt)
}

func (r *Respiration) amplitude(value float64, peaked, troughed bool, dt float64) {
	if peaked {
		r.cycleMax = value
		r.metrics.Amplitude = math.Abs(r.cycleMax - r.cycleMin)
		r.metrics.AmplitudeDelta = r.metrics.Amplitude - r.prevAmplitude
		r.prevAmplitude = r.metrics.Amplitude
	}
	if troughed {
		r.cycleMin = value
	}
	r.normalizerAmplitude.Update(r.smootherAmplitude.Update(r.metrics.Amplitude, dt), dt)
	r.smootherAmplitudeLevel.Update(r.normalizerAmplitude.Value(), dt)
	r.variabilityAmplitude.Update(r.metrics.Amplitude, dt)
	if mean := r.variabilityAmplitude.Mean(); mean != 0 {
		r.metrics.AmplitudeVariability = r.variabilityAmplitude.StdDev() / mean * 100
	}
}

func (r *Respiration) rpm(now time.Time, peaked bool, dt float64) {
	if peaked {
		if r.havePeakTime {
			interval := now.Sub(r.lastPeak)
			// minimal interval condition to bypass noise errors
			if interval >= r.config.MinBreathInterval {
				r.metrics.Interval = interval.Seconds()
				rpm := 60 / interval.Seconds()
				r.metrics.RpmDelta = rpm - r.prevRpm
				r.prevRpm = rpm
				r.metrics.Rpm = rpm
			}
		}
		r.lastPeak = now
		r.havePeakTime = true
	}
	r.normalizerRpm.Update(r.smootherRpm.Update(r.metrics.Rpm, dt), dt)
	r.smootherRpmLevel.Update(r.normalizerRpm.Value(), dt)
	r.variabilityRpm.Update(r.metrics.Rpm, dt)
	if mean := r.variabilityRpm.Mean(); mean != 0 {
		r.metrics.RpmVariability = r.variabilityRpm.StdDev() / mean * 100
	}
}

// Metrics returns the latest snapshot.
func (r *Respiration) Metrics() Metrics {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.metrics
}

// NormalizedRpm returns the smoothed respiration rate against its 90s
// baseline, mean 0 / stddev 1.
func (r *Respiration) NormalizedRpm() float64 {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.normalizerRpm.Value()
}

// NormalizedAmplitude returns the smoothed breath amplitude against its
// 90s baseline, mean 0 / stddev 1.
func (r *Respiration) NormalizedAmplitude() float64 {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.normalizerAmplitude.Value()
}

// ScaledRpm maps the normalized respiration rate onto [0, 1]: 0 is three
// standard deviations below the baseline, 1 three above.
func (r *Respiration) ScaledRpm() float64 {
	r.mx.Lock()
	defer r.mx.Unlock()
	return scaleStdDev(r.normalizerRpm.Value())
}

// ScaledAmplitude maps the normalized breath amplitude onto [0, 1]: 0 is
// three standard deviations below the baseline, 1 three above.
func (r *Respiration) ScaledAmplitude() float64 {
	r.mx.Lock()
	defer r.mx.Unlock()
	return scaleStdDev(r.normalizerAmplitude.Value())
}

// RpmLevel is a three-state baseline indicator: 0 slower than baseline,
// 0.5 no significant change, 1 faster. Derived from a slow smoothing of
// the normalized rate so single breaths do not flip it.
func (r *Respiration) RpmLevel() float64 {
	r.mx.Lock()
	defer r.mx.Unlock()
	return level(r.smootherRpmLevel.Value())
}

// AmplitudeLevel is a three-state baseline indicator: 0 smaller than
// baseline, 0.5 no significant change, 1 larger.
func (r *Respiration) AmplitudeLevel() float64 {
	r.mx.Lock()
	defer r.mx.Unlock()
	return level(r.smootherAmplitudeLevel.Value())
}

func scaleStdDev(normalized float64) float64 {
	scaled := (normalized + scaleStdDevSpan) / (2 * scaleStdDevSpan)
	return math.Min(1, math.Max(0, scaled))
}

func level(normalized float64) float64 {
	if normalized < -levelSignificant {
		return 0
	}
	if normalized > levelSignificant {
		return 1
	}
	return 0.5
}
