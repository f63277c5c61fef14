// Package analog bridges Gobot analog adaptors into the AnalogReader
// interface used by the thermistor's onboard ADC path.
//
// Example usage:
//
//	adaptor := firmata.NewAdaptor("/dev/ttyACM0")
//	_ = adaptor.Connect()
//	reader := analog.NewGobotReader(adaptor)
//	therm := thermistor.NewWithAnalog(reader, "0", thermistor.WithExciteValue(1023))
package analog

import (
	"context"
	"fmt"

	"gobot.io/x/gobot/v2/drivers/aio"
)

// GobotReader adapts a Gobot aio.AnalogReader (firmata, raspi, nanopi and
// the other Gobot platforms) to the context-aware AnalogReader interface.
type GobotReader struct {
	adaptor aio.AnalogReader
}

func NewGobotReader(adaptor aio.AnalogReader) *GobotReader {
	return &GobotReader{adaptor: adaptor}
}

// AnalogRead reads the raw ADC count from the given pin. Gobot adaptor
// reads do not take a context, so cancellation is only checked before the
// read starts.
func (g *GobotReader) AnalogRead(ctx context.Context, pin string) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	value, err := g.adaptor.AnalogRead(pin)
	if err != nil {
		return 0, fmt.Errorf("analog: read of pin %s failed: %w", pin, err)
	}
	return value, nil
}
