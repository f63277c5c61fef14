package thermistor

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRoundTrip(t *testing.T) {
	// NTC-like curve
	th := New(WithCalibration(Calibration{
		T1: 25, R1: 10000,
		T2: 50, R2: 3602,
		T3: 75, R3: 1500,
	}))
	tests := []struct {
		resistance float64
		expected   float64
	}{
		{10000, 25},
		{3602, 50},
		{1500, 75},
	}
	for _, tt := range tests {
		temp, err := th.Temperature(tt.resistance)
		assert.NoError(t, err)
		assert.InDelta(t, tt.expected, temp, 0.5)
	}
}

func TestDefaultCalibration(t *testing.T) {
	th := New()
	temp, err := th.Temperature(7869)
	assert.NoError(t, err)
	// MA100 mid reference point
	assert.InDelta(t, 30.0, temp, 0.5)
}

func TestOffsetApplied(t *testing.T) {
	th := New(WithOffset(1.5))
	temp, err := th.Temperature(7869)
	assert.NoError(t, err)
	assert.InDelta(t, 31.5, temp, 0.5)
}

func TestZeroResistance(t *testing.T) {
	th := New()
	_, err := th.Temperature(0)
	assert.ErrorIs(t, err, ErrZeroResistance)
}

func TestDividerBranchesDiverge(t *testing.T) {
	ground := New(WithConnect(ConnectGround))
	excite := New(WithConnect(ConnectExcite))
	// away from the divider midpoint the two wirings must disagree
	raw := int16(10000)
	rGround := ground.ResistanceFromRaw(raw)
	rExcite := excite.ResistanceFromRaw(raw)
	assert.Greater(t, math.Abs(rGround-rExcite), 1.0)
}

func TestResistanceFromRaw(t *testing.T) {
	// voltageOut = 10000/65535*8.192 = 1.2500V on a 3.3V rail
	raw := int16(10000)

	ground := New(WithConnect(ConnectGround))
	assert.InDelta(t, 6097.7, ground.ResistanceFromRaw(raw), 1.0)

	excite := New(WithConnect(ConnectExcite))
	assert.InDelta(t, 16399.7, excite.ResistanceFromRaw(raw), 1.0)
	assert.Equal(t, 10000, excite.LastRaw())
	assert.InDelta(t, 16399.7, excite.LastResistance(), 1.0)
}

func TestResistanceFromCount(t *testing.T) {
	// onboard 10-bit path ratios counts directly, no voltage step
	ground := New(WithConnect(ConnectGround), WithExciteValue(1023))
	assert.InDelta(t, 10000.0*512/511, ground.resistanceFromCount(512), 0.1)

	excite := New(WithConnect(ConnectExcite), WithExciteValue(1023))
	assert.InDelta(t, 10000.0*(1023.0/512-1), excite.resistanceFromCount(512), 0.1)
}

type analogReaderFunc func(ctx context.Context, pin string) (int, error)

func (f analogReaderFunc) AnalogRead(ctx context.Context, pin string) (int, error) {
	return f(ctx, pin)
}

func TestReadTemperatureOnboard(t *testing.T) {
	reader := analogReaderFunc(func(ctx context.Context, pin string) (int, error) {
		assert.Equal(t, "A0", pin)
		// midpoint of a 10-bit ADC: divider resistance equals divR
		return 512, nil
	})
	th := NewWithAnalog(reader, "A0", WithConnect(ConnectGround), WithExciteValue(1023))
	temp, err := th.ReadTemperature(context.Background())
	require.NoError(t, err)
	// ~10k on the MA100 curve sits just below 25C
	assert.InDelta(t, 24.6, temp, 1.5)
}

func TestReadTemperatureErrors(t *testing.T) {
	th := New()
	_, err := th.ReadTemperature(context.Background())
	assert.Error(t, err)

	failing := analogReaderFunc(func(ctx context.Context, pin string) (int, error) {
		return 0, errors.New("pin busy")
	})
	th = NewWithAnalog(failing, "A0")
	_, err = th.ReadTemperature(context.Background())
	assert.Error(t, err)
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	profile := "t1: 25\nt2: 50\nt3: 75\nr1: 10000\nr2: 3602\nr3: 1500\n"
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))

	cal, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, cal.R1)

	th := New(WithCalibration(cal))
	temp, err := th.Temperature(3602)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, temp, 0.5)
}

func TestLoadCalibrationRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("t1: 25\n"), 0o644))
	_, err := LoadCalibration(path)
	assert.Error(t, err)

	_, err = LoadCalibration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMockTemperatureSensor(t *testing.T) {
	sensor := NewMockTemperatureSensor(func(ctx context.Context) (float64, error) {
		return 34.5, nil
	})
	temp, err := sensor.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 34.5, temp)
}
