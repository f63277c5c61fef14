package respiration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmootherPrimesOnFirstSample(t *testing.T) {
	s := NewSmoother(1.0)
	assert.Equal(t, 20.0, s.Update(20, 0.05))
	assert.Equal(t, 20.0, s.Value())
}

func TestSmootherConvergesToConstant(t *testing.T) {
	s := NewSmoother(0.5)
	s.Update(0, 0.05)
	var v float64
	for i := 0; i < 2000; i++ {
		v = s.Update(10, 0.05)
	}
	assert.InDelta(t, 10.0, v, 0.01)
}

func TestSmootherAttenuatesStep(t *testing.T) {
	s := NewSmoother(1.0)
	s.Update(0, 0.05)
	v := s.Update(10, 0.05)
	// one step moves only a small fraction toward the target
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 1.0)
}

func TestNormalizerConstantInputIsZero(t *testing.T) {
	n := NewNormalizer(10)
	var z float64
	for i := 0; i < 100; i++ {
		z = n.Update(34.5, 0.05)
	}
	assert.Equal(t, 0.0, z)
	assert.InDelta(t, 34.5, n.Mean(), 1e-9)
}

func TestNormalizerCentersSine(t *testing.T) {
	n := NewNormalizer(10)
	for i := 0; i < 4000; i++ {
		tm := float64(i) * 0.05
		n.Update(34+0.75*math.Sin(2*math.Pi*0.25*tm), 0.05)
	}
	assert.InDelta(t, 34.0, n.Mean(), 0.3)
	// stddev of a sine is amplitude/sqrt(2)
	assert.InDelta(t, 0.53, n.StdDev(), 0.25)
}

func TestScalerTracksEnvelope(t *testing.T) {
	s := NewScaler(10)
	assert.Equal(t, 0.5, s.Update(5, 0.05))

	// a new maximum expands the envelope instantly and lands at 1
	assert.Equal(t, 1.0, s.Update(8, 0.05))
	// a new minimum lands at 0
	assert.Equal(t, 0.0, s.Update(2, 0.05))

	v := s.Update(5, 0.05)
	assert.Greater(t, v, 0.2)
	assert.Less(t, v, 0.8)
}

func TestScalerFlatSignalIsMidpoint(t *testing.T) {
	s := NewScaler(10)
	var v float64
	for i := 0; i < 50; i++ {
		v = s.Update(3.3, 0.05)
	}
	assert.Equal(t, 0.5, v)
}

func TestPeakDetectorFiresOncePerCycle(t *testing.T) {
	p := newPeakDetector(peakMax, 0.5, 0.4, 0.05)

	assert.False(t, p.Update(0.3))
	assert.False(t, p.Update(0.6)) // crossed threshold, tracking
	assert.False(t, p.Update(0.8))
	assert.False(t, p.Update(0.78)) // fell back but within tolerance
	assert.True(t, p.Update(0.7))   // fell back past tolerance: fire

	// still above reload: no rearm, no second fire
	assert.False(t, p.Update(0.9))
	assert.False(t, p.Update(0.45))

	// below reload rearms, next cycle fires again
	assert.False(t, p.Update(0.3))
	assert.False(t, p.Update(0.7))
	assert.True(t, p.Update(0.6))
}

func TestPeakDetectorMinMirrors(t *testing.T) {
	p := newPeakDetector(peakMin, 0.5, 0.6, 0.05)

	assert.False(t, p.Update(0.7))
	assert.False(t, p.Update(0.4)) // below threshold, tracking
	assert.False(t, p.Update(0.2))
	assert.True(t, p.Update(0.3)) // rose past tolerance: fire

	assert.False(t, p.Update(0.1))
	assert.False(t, p.Update(0.7)) // above reload rearms
	assert.False(t, p.Update(0.4))
	assert.True(t, p.Update(0.5))
}
