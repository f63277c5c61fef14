package ads1x15

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	biodata "github.com/possibly-human/BioData"
)

// Error taxonomy. I2C and timeout failures are also returned from the
// operation that hit them; LastError keeps the latched copy for callers
// ported from the polling style.
var (
	ErrInvalidGain = errors.New("ads1x15: invalid gain requested")
	ErrInvalidMode = errors.New("ads1x15: invalid mode requested")
	ErrI2C         = errors.New("ads1x15: I2C transaction failure")
	ErrTimeout     = errors.New("ads1x15: conversion timed out")
)

// interval between busy polls while waiting for a single-shot conversion
const pollInterval = 250 * time.Microsecond

type Opts struct {
	Address  byte
	Gain     uint8
	Mode     uint8
	DataRate uint8
}

type Opt func(*Opts)

func WithAddress(address byte) Opt {
	return func(o *Opts) {
		o.Address = address
	}
}

// WithGain sets the PGA code: 0, 1, 2, 4, 8 or 16 selecting full-scale
// ranges 6.144V down to 0.256V. Anything else falls back to 0 (widest).
func WithGain(gain uint8) Opt {
	return func(o *Opts) {
		o.Gain = gain
	}
}

// WithMode selects 0 (continuous) or 1 (single-shot).
func WithMode(mode uint8) Opt {
	return func(o *Opts) {
		o.Mode = mode
	}
}

// WithDataRate sets the sample rate code 0..7 (device-specific SPS, see
// datasheet). Out-of-range codes fall back to 4.
func WithDataRate(rate uint8) Opt {
	return func(o *Opts) {
		o.DataRate = rate
	}
}

// Device drives one converter of the ADS101x/ADS111x family. It owns its
// configuration shadow but not the bus; the caller must not interleave
// configuration writes to the same chip from elsewhere between a request
// and its read.
//
// Typical usage:
//
//	adc := ads1x15.NewADS1115(bus)
//	if err := adc.Begin(ctx); err != nil { ... }
//	raw, err := adc.Read(ctx, 0)
type Device struct {
	transport biodata.I2CBus
	addr      byte
	variant   Variant

	gain     uint16
	mode     uint16
	dataRate uint16 // stored pre-shifted into bits 7-5

	compMode  uint8
	compPol   uint8
	compLatch uint8
	compQueue uint8

	lastRequest uint16
	lastErr     error

	buf [2]byte
}

func NewADS1115(transport biodata.I2CBus, opts ...Opt) *Device {
	return newDevice(transport, variantADS1115, opts)
}

func NewADS1114(transport biodata.I2CBus, opts ...Opt) *Device {
	return newDevice(transport, variantADS1114, opts)
}

func NewADS1113(transport biodata.I2CBus, opts ...Opt) *Device {
	return newDevice(transport, variantADS1113, opts)
}

func NewADS1015(transport biodata.I2CBus, opts ...Opt) *Device {
	return newDevice(transport, variantADS1015, opts)
}

func NewADS1014(transport biodata.I2CBus, opts ...Opt) *Device {
	return newDevice(transport, variantADS1014, opts)
}

func NewADS1013(transport biodata.I2CBus, opts ...Opt) *Device {
	return newDevice(transport, variantADS1013, opts)
}

func newDevice(transport biodata.I2CBus, variant Variant, opts []Opt) *Device {
	config := Opts{
		Address:  DefaultAddress,
		Gain:     1,
		Mode:     0,
		DataRate: 4,
	}
	for _, opt := range opts {
		opt(&config)
	}
	d := &Device{
		transport: transport,
		addr:      config.Address,
		variant:   variant,
	}
	d.Reset()
	d.SetGain(config.Gain)
	d.SetMode(config.Mode)
	d.SetDataRate(config.DataRate)
	return d
}

// Reset restores the configuration shadow to power-on defaults: 4.096V
// range, continuous mode, mid data rate, traditional active-high
// non-latching comparator with the queue disabled.
func (d *Device) Reset() {
	d.SetGain(1)
	d.SetMode(0)
	d.SetDataRate(4)
	d.compMode = 0
	d.compPol = 1
	d.compLatch = 0
	d.compQueue = 3
	d.lastRequest = noRequest
	d.lastErr = nil
}

// Begin validates the address and probes the device with a zero-length
// write. No configuration is written.
func (d *Device) Begin(ctx context.Context) error {
	if d.addr < 0x48 || d.addr > 0x4B {
		return fmt.Errorf("%s: address %#x outside supported range 0x48..0x4B", d.variant.Name, d.addr)
	}
	if err := d.transport.WriteToAddr(ctx, d.addr, nil); err != nil {
		d.lastErr = ErrI2C
		return fmt.Errorf("%s: device %#x not responding: %w", d.variant.Name, d.addr, err)
	}
	return nil
}

// Variant returns the device traits selected at construction.
func (d *Device) Variant() Variant {
	return d.variant
}

// SetGain accepts the PGA codes 0, 1, 2, 4, 8, 16. Invalid codes clamp to
// the widest range and latch ErrInvalidGain; variants without a PGA are
// pinned to code 0.
func (d *Device) SetGain(gain uint8) {
	if !d.variant.HasGain {
		gain = 0
	}
	switch gain {
	case 0:
		d.gain = pga6144V
	case 1:
		d.gain = pga4096V
	case 2:
		d.gain = pga2048V
	case 4:
		d.gain = pga1024V
	case 8:
		d.gain = pga0512V
	case 16:
		d.gain = pga0256V
	default:
		d.gain = pga6144V
		d.lastErr = ErrInvalidGain
	}
}

func (d *Device) Gain() uint8 {
	if !d.variant.HasGain {
		return 0
	}
	switch d.gain {
	case pga4096V:
		return 1
	case pga2048V:
		return 2
	case pga1024V:
		return 4
	case pga0512V:
		return 8
	case pga0256V:
		return 16
	}
	return 0
}

// MaxVoltage returns the full-scale input voltage for the current gain.
func (d *Device) MaxVoltage() float64 {
	switch d.gain {
	case pga4096V:
		return 4.096
	case pga2048V:
		return 2.048
	case pga1024V:
		return 1.024
	case pga0512V:
		return 0.512
	case pga0256V:
		return 0.256
	}
	return 6.144
}

// ToVoltage converts a raw (already shifted) conversion result to volts.
func (d *Device) ToVoltage(raw int16) float64 {
	fullScale := int16(0x7FFF) >> d.variant.BitShift
	return float64(raw) * d.MaxVoltage() / float64(fullScale)
}

// SetMode selects 0 (continuous) or 1 (single-shot). Any other value
// clamps to single-shot and latches ErrInvalidMode.
func (d *Device) SetMode(mode uint8) {
	switch mode {
	case 0:
		d.mode = modeContinuous
	case 1:
		d.mode = modeSingle
	default:
		d.mode = modeSingle
		d.lastErr = ErrInvalidMode
	}
}

func (d *Device) Mode() uint8 {
	if d.mode == modeContinuous {
		return 0
	}
	return 1
}

// SetDataRate takes the rate code 0 (slowest) .. 7 (fastest); out-of-range
// codes clamp to the mid-speed default 4.
func (d *Device) SetDataRate(rate uint8) {
	if rate > 7 {
		rate = 4
	}
	d.dataRate = uint16(rate) << 5
}

func (d *Device) DataRate() uint8 {
	return uint8(d.dataRate>>5) & 0x07
}

// SetComparatorMode selects 0 (traditional) or any non-zero value (window).
func (d *Device) SetComparatorMode(mode uint8) {
	if !d.variant.HasComparator {
		return
	}
	if mode == 0 {
		d.compMode = 0
	} else {
		d.compMode = 1
	}
}

func (d *Device) ComparatorMode() uint8 {
	return d.compMode
}

// SetComparatorPolarity: 0 selects an active-high ALERT pin, non-zero
// active-low.
func (d *Device) SetComparatorPolarity(pol uint8) {
	if !d.variant.HasComparator {
		return
	}
	if pol == 0 {
		d.compPol = 1
	} else {
		d.compPol = 0
	}
}

func (d *Device) ComparatorPolarity() uint8 {
	return d.compPol
}

// SetComparatorLatch: 0 enables latching, non-zero disables it.
func (d *Device) SetComparatorLatch(latch uint8) {
	if !d.variant.HasComparator {
		return
	}
	if latch == 0 {
		d.compLatch = 1
	} else {
		d.compLatch = 0
	}
}

func (d *Device) ComparatorLatch() uint8 {
	return d.compLatch
}

// SetComparatorQueue sets how many consecutive out-of-threshold conversions
// assert ALERT: 0, 1, 2 select 1, 2, 4 conversions; 3 and above disable
// the comparator.
func (d *Device) SetComparatorQueue(mode uint8) {
	if !d.variant.HasComparator {
		return
	}
	if mode < 3 {
		d.compQueue = mode
	} else {
		d.compQueue = 3
	}
}

func (d *Device) ComparatorQueue() uint8 {
	return d.compQueue
}

func (d *Device) SetThresholdLow(ctx context.Context, value int16) error {
	return d.writeRegister(ctx, regLowThreshold, uint16(value))
}

func (d *Device) ThresholdLow(ctx context.Context) (int16, error) {
	value, err := d.readRegister(ctx, regLowThreshold)
	return int16(value), err
}

func (d *Device) SetThresholdHigh(ctx context.Context, value int16) error {
	return d.writeRegister(ctx, regHighThreshold, uint16(value))
}

func (d *Device) ThresholdHigh(ctx context.Context) (int16, error) {
	value, err := d.readRegister(ctx, regHighThreshold)
	return int16(value), err
}

// Request starts a conversion on a single-ended channel. Out-of-range
// channels are silently ignored: no bus write happens and a following
// Value call returns whatever the conversion register last held.
func (d *Device) Request(ctx context.Context, channel uint8) error {
	if channel >= d.variant.MaxChannels {
		return nil
	}
	return d.request(ctx, singleMux(channel))
}

// RequestDifferential starts a conversion on one of the Mux input pairs.
func (d *Device) RequestDifferential(ctx context.Context, pair Mux) error {
	return d.request(ctx, uint16(pair))
}

// Read requests a conversion on a single-ended channel and blocks until
// the result is available. In single-shot mode it polls the status bit up
// to the rate-dependent timeout; in continuous mode it waits the fixed
// per-variant settle delay because the conversion register may still hold
// the previous sample right after the configuration write.
func (d *Device) Read(ctx context.Context, channel uint8) (int16, error) {
	if channel >= d.variant.MaxChannels {
		return 0, nil
	}
	return d.read(ctx, singleMux(channel))
}

// ReadDifferential is Read for a Mux input pair.
func (d *Device) ReadDifferential(ctx context.Context, pair Mux) (int16, error) {
	return d.read(ctx, uint16(pair))
}

// Value reads the conversion register and returns the bit-shifted signed
// result without requesting a new conversion.
func (d *Device) Value(ctx context.Context) (int16, error) {
	raw, err := d.readRegister(ctx, regConversion)
	if err != nil {
		return 0, err
	}
	return int16(raw) >> d.variant.BitShift, nil
}

func (d *Device) IsReady(ctx context.Context) (bool, error) {
	value, err := d.readRegister(ctx, regConfig)
	if err != nil {
		return false, err
	}
	return value&osNotBusy > 0, nil
}

func (d *Device) IsBusy(ctx context.Context) (bool, error) {
	ready, err := d.IsReady(ctx)
	return !ready, err
}

// LastError returns the latched taxonomy error and clears it: two calls
// without an intervening failure observe nil on the second.
func (d *Device) LastError() error {
	err := d.lastErr
	d.lastErr = nil
	return err
}

func (d *Device) read(ctx context.Context, mux uint16) (int16, error) {
	if err := d.request(ctx, mux); err != nil {
		return 0, err
	}
	if d.mode == modeSingle {
		if err := d.waitReady(ctx); err != nil {
			return 0, err
		}
	} else {
		if err := wait(ctx, d.variant.ConversionDelay); err != nil {
			return 0, err
		}
	}
	return d.Value(ctx)
}

// waitReady polls the status bit until the conversion completes or the
// rate-dependent timeout expires: (128 >> rate) + 1 ms, i.e.
// {129, 65, 33, 17, 9, 5, 3, 2}, a few ms above the max conversion time.
func (d *Device) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(d.timeout())
	for {
		ready, err := d.IsReady(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			d.lastErr = ErrTimeout
			return ErrTimeout
		}
		if err := wait(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func (d *Device) timeout() time.Duration {
	return time.Duration(128>>d.DataRate()+1) * time.Millisecond
}

// request encodes the configuration word and writes it. The write happens
// in continuous mode too, since any of the other flags may have changed.
func (d *Device) request(ctx context.Context, mux uint16) error {
	if err := d.writeRegister(ctx, regConfig, d.configWord(mux)); err != nil {
		return err
	}
	d.lastRequest = mux
	return nil
}

func (d *Device) configWord(mux uint16) uint16 {
	config := osStartSingle // bit 15, forces a wake-up if needed
	config |= mux           // bits 14-12
	config |= d.gain        // bits 11-9
	config |= d.mode        // bit 8
	config |= d.dataRate    // bits 7-5
	if d.compMode != 0 {    // bit 4
		config |= compModeWindow
	}
	if d.compPol != 0 { // bit 3
		config |= compPolActiveHigh
	}
	if d.compLatch != 0 { // bit 2
		config |= compLatching
	}
	config |= uint16(d.compQueue) // bits 1-0
	return config
}

func singleMux(channel uint8) uint16 {
	return uint16(4+channel) << 12
}

func (d *Device) writeRegister(ctx context.Context, reg byte, value uint16) error {
	err := d.transport.WriteToAddr(ctx, d.addr, []byte{reg, byte(value >> 8), byte(value)})
	if err != nil {
		d.lastErr = ErrI2C
		return fmt.Errorf("%s: register %#x write failed: %w", d.variant.Name, reg, err)
	}
	return nil
}

func (d *Device) readRegister(ctx context.Context, reg byte) (uint16, error) {
	if err := d.transport.WriteToAddr(ctx, d.addr, []byte{reg}); err != nil {
		d.lastErr = ErrI2C
		return 0, fmt.Errorf("%s: register %#x select failed: %w", d.variant.Name, reg, err)
	}
	if err := d.transport.ReadFromAddr(ctx, d.addr, d.buf[:]); err != nil {
		d.lastErr = ErrI2C
		return 0, fmt.Errorf("%s: register %#x read failed: %w", d.variant.Name, reg, err)
	}
	return binary.BigEndian.Uint16(d.buf[:]), nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
