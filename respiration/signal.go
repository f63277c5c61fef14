package respiration

import "math"

// Signal primitives used by the breath pipeline. All of them are fed one
// sample at a time together with the elapsed time since the previous
// sample, so the behavior stays stable when the sampling loop jitters.

// alpha converts a time window in seconds into the weight of the newest
// sample for an exponentially-weighted update.
func alpha(window, dt float64) float64 {
	if window <= 0 {
		return 1
	}
	return dt / (window + dt)
}

// Smoother is a one-pole low-pass filter with a time constant in seconds.
type Smoother struct {
	window float64
	value  float64
	primed bool
}

func NewSmoother(window float64) *Smoother {
	return &Smoother{window: window}
}

func (s *Smoother) Update(value, dt float64) float64 {
	if !s.primed {
		s.value = value
		s.primed = true
		return value
	}
	s.value += (value - s.value) * alpha(s.window, dt)
	return s.value
}

func (s *Smoother) Value() float64 {
	return s.value
}

// Normalizer tracks an exponentially-windowed mean and variance and maps
// each sample onto a signal with target mean 0 and standard deviation 1:
// -2 is abnormally low, +2 abnormally high.
type Normalizer struct {
	window   float64
	mean     float64
	variance float64
	last     float64
	primed   bool
}

func NewNormalizer(window float64) *Normalizer {
	return &Normalizer{window: window}
}

func (n *Normalizer) Update(value, dt float64) float64 {
	if !n.primed {
		n.mean = value
		n.variance = 0
		n.primed = true
		n.last = 0
		return 0
	}
	a := alpha(n.window, dt)
	delta := value - n.mean
	n.mean += a * delta
	n.variance += a * (delta*delta - n.variance)
	if n.variance <= 0 {
		n.last = 0
		return 0
	}
	n.last = (value - n.mean) / math.Sqrt(n.variance)
	return n.last
}

func (n *Normalizer) Value() float64 {
	return n.last
}

func (n *Normalizer) Mean() float64 {
	return n.mean
}

func (n *Normalizer) StdDev() float64 {
	return math.Sqrt(n.variance)
}

// Scaler maps the signal into [0, 1] against an adaptive minimum and
// maximum. The envelope expands instantly when the signal escapes it and
// relaxes back toward the signal over the time window, so the scale keeps
// following a drifting baseline.
type Scaler struct {
	window   float64
	min, max float64
	primed   bool
}

func NewScaler(window float64) *Scaler {
	return &Scaler{window: window}
}

func (s *Scaler) Update(value, dt float64) float64 {
	if !s.primed {
		s.min = value
		s.max = value
		s.primed = true
		return 0.5
	}
	a := alpha(s.window, dt)
	if value < s.min {
		s.min = value
	} else {
		s.min += a * (value - s.min)
	}
	if value > s.max {
		s.max = value
	} else {
		s.max += a * (value - s.max)
	}
	span := s.max - s.min
	if span < 1e-12 {
		return 0.5
	}
	return (value - s.min) / span
}

type peakMode int

const (
	peakMax peakMode = iota
	peakMin
)

// PeakDetector fires once per cycle when the signal crosses the trigger
// threshold and then falls back from its running extreme by the fallback
// tolerance. It rearms only after the signal returns past the reload
// threshold, which keeps noise around the trigger level from double
// firing. For peakMin the logic is mirrored.
type PeakDetector struct {
	mode      peakMode
	threshold float64
	reload    float64
	fallback  float64

	armed    bool
	tracking bool
	extreme  float64
}

func newPeakDetector(mode peakMode, threshold, reload, fallback float64) *PeakDetector {
	return &PeakDetector{
		mode:      mode,
		threshold: threshold,
		reload:    reload,
		fallback:  fallback,
		armed:     true,
	}
}

func (p *PeakDetector) Update(value float64) bool {
	switch p.mode {
	case peakMax:
		if !p.armed {
			if value <= p.reload {
				p.armed = true
			}
			return false
		}
		if !p.tracking {
			if value >= p.threshold {
				p.tracking = true
				p.extreme = value
			}
			return false
		}
		if value > p.extreme {
			p.extreme = value
			return false
		}
		if p.extreme-value >= p.fallback {
			p.armed = false
			p.tracking = false
			return true
		}
	case peakMin:
		if !p.armed {
			if value >= p.reload {
				p.armed = true
			}
			return false
		}
		if !p.tracking {
			if value <= p.threshold {
				p.tracking = true
				p.extreme = value
			}
			return false
		}
		if value < p.extreme {
			p.extreme = value
			return false
		}
		if value-p.extreme >= p.fallback {
			p.armed = false
			p.tracking = false
			return true
		}
	}
	return false
}
