package analog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdaptor struct {
	name  string
	value int
	err   error
	pin   string
}

func (f *fakeAdaptor) Name() string        { return f.name }
func (f *fakeAdaptor) SetName(name string) { f.name = name }
func (f *fakeAdaptor) Connect() error      { return nil }
func (f *fakeAdaptor) Finalize() error     { return nil }

func (f *fakeAdaptor) AnalogRead(pin string) (int, error) {
	f.pin = pin
	return f.value, f.err
}

func TestGobotReaderRead(t *testing.T) {
	adaptor := &fakeAdaptor{value: 512}
	reader := NewGobotReader(adaptor)

	value, err := reader.AnalogRead(context.Background(), "A0")
	require.NoError(t, err)
	assert.Equal(t, 512, value)
	assert.Equal(t, "A0", adaptor.pin)
}

func TestGobotReaderWrapsError(t *testing.T) {
	boom := errors.New("pin busy")
	reader := NewGobotReader(&fakeAdaptor{err: boom})

	_, err := reader.AnalogRead(context.Background(), "A1")
	assert.ErrorIs(t, err, boom)
}

func TestGobotReaderHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewGobotReader(&fakeAdaptor{value: 100})
	_, err := reader.AnalogRead(ctx, "A0")
	assert.ErrorIs(t, err, context.Canceled)
}
