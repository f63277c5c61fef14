package biodata

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// I2CBus is the two-wire transport all drivers talk through. A zero-length
// write is a presence probe: it must return nil only when the device ACKs
// its address.
type I2CBus interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// AnalogReader provides raw counts from a host analog input, keyed by the
// platform's pin identifier. Satisfied via the analog package by any gobot
// aio adaptor.
type AnalogReader interface {
	AnalogRead(ctx context.Context, pin string) (int, error)
}
