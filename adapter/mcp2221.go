// Package adapter drives the Microchip MCP2221 USB-to-I2C bridge over raw
// HID reports, so the ADC can hang off a laptop USB port during bring-up.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	biodata "github.com/possibly-human/BioData"
	"github.com/karalabe/hid"

	"github.com/possibly-human/BioData/cmd/biodata/console"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID report layout per the MCP2221 datasheet: every command and response
// is exactly one 64-byte report.
const reportSize = 64

// command opcodes (datasheet section 3.1)
const (
	cmdStatusSetParameters = 0x10
	cmdI2CReadGetData      = 0x40
	cmdI2CWriteData        = 0x90
	cmdI2CReadData         = 0x91
)

var ErrDeviceNotFound = errors.New("MCP2221 device not found")
var ErrAmbiguousDevice = errors.New("ambiguous device identification")

var _ biodata.I2CBus = &MCP2221{}

// MCP2221 talks to one bridge chip. The device is enumerated and opened
// per command, so unplugging and replugging the adapter between calls
// works without any reinitialization.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
}

// Status reports the state of the bridge's internal I2C engine.
type Status struct {
	RequestedTransferSize uint16 `yaml:"requested_transfer_size"`
	TransferredSize       uint16 `yaml:"transferred_size"`
	DataBufferCounter     int    `yaml:"data_buffer_counter"`
	SpeedDivider          int    `yaml:"speed_divider"`
	Timeout               int    `yaml:"timeout"`
	CurrentAddress        string `yaml:"current_address"`
	ReadPending           int    `yaml:"read_pending"`
}

func NewMCP2221() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
	}
}

// WriteToAddr performs an I2C write with a START/STOP frame. A zero-length
// buffer still clocks the address out, which makes it usable as a presence
// probe.
func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	if len(buffer) > 0 {
		copy(d.request[4:], buffer)
	}
	err := d.roundTrip(ctx)
	if err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	// engine still busy with a previous transfer
	if d.response[1] == 0x01 {
		console.Debug("adapter busy")
		return biodata.ErrBusBusy
	}
	return nil
}

// ReadFromAddr performs an I2C read: one command to start the transfer on
// the bus, a second to fetch the received bytes from the engine buffer.
func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.roundTrip(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %#x failed: %w", address, err)
	}
	d.request[0] = cmdI2CReadGetData
	resetBuffer(d.response)
	err = d.roundTrip(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	// 127 flags an unfinished transfer
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// Status queries the I2C engine without touching the bus.
func (d *MCP2221) Status(ctx context.Context) (*Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	err := d.roundTrip(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// Release cancels whatever transfer the I2C engine is stuck on.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

// ReleaseBus is Release plus the resulting engine status, for diagnostics.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	d.request[2] = 0x10 // cancel current transfer
	err := d.roundTrip(ctx)
	if err != nil {
		return nil, fmt.Errorf("bus release failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *Status {
	/*
		9-10:  requested I2C transfer length
		11-12: already transferred number of bytes
		13:    internal I2C data buffer counter
		14:    current I2C communication speed divider
		15:    current I2C timeout value
		16-17: I2C address being used
		25:    pending read count
	*/
	return &Status{
		RequestedTransferSize: binary.LittleEndian.Uint16(buffer[9:11]),
		TransferredSize:       binary.LittleEndian.Uint16(buffer[11:13]),
		DataBufferCounter:     int(buffer[13]),
		SpeedDivider:          int(buffer[14]),
		Timeout:               int(buffer[15]),
		CurrentAddress:        hex.EncodeToString(buffer[16:18]),
		ReadPending:           int(buffer[25]),
	}
}

// roundTrip opens the single attached bridge, writes the pending request
// report and reads the response report back.
func (d *MCP2221) roundTrip(ctx context.Context) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return ErrDeviceNotFound
	}
	if len(devs) > 1 {
		return ErrAmbiguousDevice
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer dev.Close()
	verbose := console.IsVerbose(ctx)
	if verbose {
		console.Printf("sending message to adapter:\n%s\n", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		console.Printf("read message from adapter:\n%s\n", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
