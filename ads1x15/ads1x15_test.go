package ads1x15

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockI2CBus is a mock implementation of biodata.I2CBus using testify/mock.
// Read expectations can provide canned register bytes as their first return
// value; they are copied into the caller's buffer.
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestGainRoundTrip(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus))
	for _, gain := range []uint8{0, 1, 2, 4, 8, 16} {
		t.Run(fmt.Sprintf("gain %d", gain), func(t *testing.T) {
			adc.SetGain(gain)
			assert.Equal(t, gain, adc.Gain())
			assert.NoError(t, adc.LastError())
		})
	}
	for _, gain := range []uint8{3, 5, 17, 255} {
		t.Run(fmt.Sprintf("invalid gain %d", gain), func(t *testing.T) {
			adc.SetGain(gain)
			assert.Equal(t, uint8(0), adc.Gain())
			assert.ErrorIs(t, adc.LastError(), ErrInvalidGain)
			// latched error is cleared on read
			assert.NoError(t, adc.LastError())
		})
	}
}

func TestGainIgnoredWithoutPGA(t *testing.T) {
	adc := NewADS1113(new(MockI2CBus))
	adc.SetGain(16)
	assert.Equal(t, uint8(0), adc.Gain())
	assert.InDelta(t, 6.144, adc.MaxVoltage(), 1e-9)
}

func TestModeRoundTrip(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus))
	adc.SetMode(0)
	assert.Equal(t, uint8(0), adc.Mode())
	adc.SetMode(1)
	assert.Equal(t, uint8(1), adc.Mode())
	// anything else falls back to single-shot
	adc.SetMode(7)
	assert.Equal(t, uint8(1), adc.Mode())
	assert.ErrorIs(t, adc.LastError(), ErrInvalidMode)
}

func TestDataRateRoundTrip(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus))
	for rate := uint8(0); rate <= 7; rate++ {
		adc.SetDataRate(rate)
		assert.Equal(t, rate, adc.DataRate())
	}
	adc.SetDataRate(8)
	assert.Equal(t, uint8(4), adc.DataRate())
	adc.SetDataRate(255)
	assert.Equal(t, uint8(4), adc.DataRate())
}

func TestComparatorQueueClamp(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus))
	for _, tt := range []struct{ in, out uint8 }{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {5, 3}} {
		adc.SetComparatorQueue(tt.in)
		assert.Equal(t, tt.out, adc.ComparatorQueue())
	}
}

func TestConfigWord(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus), WithGain(1), WithMode(1), WithDataRate(4))
	// start | AIN2 mux | 4.096V | single-shot | rate 4 | traditional |
	// active high | non-latching | queue disabled
	expected := uint16(0x8000 | 0x6000 | 0x0200 | 0x0100 | 0x0080 | 0x0000 | 0x0008 | 0x0000 | 0x0003)
	assert.Equal(t, expected, adc.configWord(singleMux(2)))
	assert.Equal(t, uint16(0xE38B), adc.configWord(singleMux(2)))
}

func TestTimeoutBound(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus))
	tests := []struct {
		rate    uint8
		timeout time.Duration
	}{
		{0, 129 * time.Millisecond},
		{1, 65 * time.Millisecond},
		{4, 9 * time.Millisecond},
		{7, 2 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("rate %d", tt.rate), func(t *testing.T) {
			adc.SetDataRate(tt.rate)
			assert.Equal(t, tt.timeout, adc.timeout())
		})
	}
}

func TestBeginRejectsAddressOutOfRange(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus, WithAddress(0x50))
	err := adc.Begin(context.Background())
	assert.Error(t, err)
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestBeginProbesDevice(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x49), []byte(nil)).Return(nil).Once()
	adc := NewADS1115(bus, WithAddress(0x49))
	assert.NoError(t, adc.Begin(context.Background()))
	bus.AssertExpectations(t)
}

func TestBeginProbeFailure(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte(nil)).Return(errors.New("no ack")).Once()
	adc := NewADS1115(bus)
	assert.Error(t, adc.Begin(context.Background()))
	assert.ErrorIs(t, adc.LastError(), ErrI2C)
}

func TestRequestInvalidChannelWritesNothing(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus)
	assert.NoError(t, adc.Request(context.Background(), 4))
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestWritesConfig(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus, WithGain(1), WithMode(1), WithDataRate(4))
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01, 0xE3, 0x8B}).Return(nil).Once()
	assert.NoError(t, adc.Request(context.Background(), 2))
	bus.AssertExpectations(t)
}

func TestReadSingleShot(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus, WithMode(1), WithDataRate(7))
	ctx := context.Background()

	config := adc.configWord(singleMux(0))
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01, byte(config >> 8), byte(config)}).Return(nil).Once()
	// status poll reports the conversion done right away
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x80, 0x00}, nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x00}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x12, 0x34}, nil).Once()

	raw, err := adc.Read(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, int16(0x1234), raw)
	bus.AssertExpectations(t)
}

func TestReadSingleShotTimeout(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus, WithMode(1), WithDataRate(7)) // 2ms bound
	ctx := context.Background()

	config := adc.configWord(singleMux(0))
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01, byte(config >> 8), byte(config)}).Return(nil).Once()
	// the device never reports ready
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01}).Return(nil)
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x00, 0x00}, nil)

	_, err := adc.Read(ctx, 0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, adc.LastError(), ErrTimeout)
	assert.NoError(t, adc.LastError())
	// the conversion register must not be touched after a timeout
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, byte(0x48), []byte{0x00})
}

func TestReadContinuousSkipsPolling(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1015(bus, WithMode(0)) // 1ms settle delay
	ctx := context.Background()

	config := adc.configWord(singleMux(1))
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01, byte(config >> 8), byte(config)}).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x00}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x7F, 0xF0}, nil).Once()

	raw, err := adc.Read(ctx, 1)
	assert.NoError(t, err)
	// 12-bit variant: result arrives left-aligned and is shifted down
	assert.Equal(t, int16(0x07FF), raw)
	bus.AssertExpectations(t)
	// no status polling in continuous mode
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, byte(0x48), []byte{0x01})
}

func TestValueShiftKeepsSign(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1015(bus)
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x00}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x80, 0x10}, nil).Once()

	raw, err := adc.Value(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int16(-2047), raw)
}

func TestReadInvalidChannelReturnsZero(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus, WithMode(1))
	raw, err := adc.Read(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, int16(0), raw)
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsReady(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus)
	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x01}).Return(nil).Twice()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x85, 0x83}, nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x05, 0x83}, nil).Once()

	ready, err := adc.IsReady(context.Background())
	assert.NoError(t, err)
	assert.True(t, ready)

	busy, err := adc.IsBusy(context.Background())
	assert.NoError(t, err)
	assert.True(t, busy)
}

func TestToVoltage(t *testing.T) {
	adc := NewADS1115(new(MockI2CBus), WithGain(1))
	assert.InDelta(t, 4.096, adc.ToVoltage(32767), 1e-3)
	assert.InDelta(t, 0, adc.ToVoltage(0), 1e-9)
	adc.SetGain(16)
	assert.InDelta(t, -0.256, adc.ToVoltage(-32767), 1e-3)
}

func TestThresholds(t *testing.T) {
	bus := new(MockI2CBus)
	adc := NewADS1115(bus)
	ctx := context.Background()

	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x02, 0xFC, 0x18}).Return(nil).Once()
	assert.NoError(t, adc.SetThresholdLow(ctx, -1000))

	bus.On("WriteToAddr", mock.Anything, byte(0x48), []byte{0x03}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x48), mock.Anything).Return([]byte{0x7F, 0xFF}, nil).Once()
	hi, err := adc.ThresholdHigh(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int16(0x7FFF), hi)
	bus.AssertExpectations(t)
}
