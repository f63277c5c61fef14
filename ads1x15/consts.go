package ads1x15

import "time"

// DefaultAddress is used when the ADDR pin is tied to GND. ADDR on VDD, SDA
// or SCL selects 0x49, 0x4A or 0x4B respectively.
const DefaultAddress byte = 0x48

// Register map
const (
	regConversion    byte = 0x00
	regConfig        byte = 0x01
	regLowThreshold  byte = 0x02
	regHighThreshold byte = 0x03
)

// Config register bit 15: operational status. Written 1 it starts a
// single-shot conversion, read 1 it means the device is not converting.
const (
	osStartSingle uint16 = 0x8000
	osNotBusy     uint16 = 0x8000
)

// Mux selects the input pair measured by the next conversion
// (config register bits 14-12).
type Mux uint16

const (
	MuxDiff01 Mux = 0x0000 // AIN0 positive, AIN1 negative
	MuxDiff03 Mux = 0x1000 // AIN0 positive, AIN3 negative
	MuxDiff13 Mux = 0x2000 // AIN1 positive, AIN3 negative
	MuxDiff23 Mux = 0x3000 // AIN2 positive, AIN3 negative
)

// Gain masks (bits 11-9). Values are the programmable full-scale input
// range, not a multiplier.
const (
	pga6144V uint16 = 0x0000
	pga4096V uint16 = 0x0200
	pga2048V uint16 = 0x0400
	pga1024V uint16 = 0x0600
	pga0512V uint16 = 0x0800
	pga0256V uint16 = 0x0A00
)

// Mode bit 8
const (
	modeContinuous uint16 = 0x0000
	modeSingle     uint16 = 0x0100
)

// Comparator bits
const (
	compModeWindow    uint16 = 0x0010 // bit 4, 0 = traditional
	compPolActiveHigh uint16 = 0x0008 // bit 3, 0 = active low
	compLatching      uint16 = 0x0004 // bit 2, 0 = non-latching
	compQueueDisable  uint16 = 0x0003 // bits 1-0, 0/1/2 = alert after 1/2/4
)

// lastRequest value before any conversion has been requested
const noRequest uint16 = 0xFFFF

// Variant carries the per-device traits fixed at construction.
type Variant struct {
	Name            string
	MaxChannels     uint8
	BitShift        uint8
	ConversionDelay time.Duration
	HasGain         bool
	HasComparator   bool
}

var (
	variantADS1013 = Variant{Name: "ads1013", MaxChannels: 1, BitShift: 4, ConversionDelay: time.Millisecond}
	variantADS1014 = Variant{Name: "ads1014", MaxChannels: 1, BitShift: 4, ConversionDelay: time.Millisecond, HasGain: true, HasComparator: true}
	variantADS1015 = Variant{Name: "ads1015", MaxChannels: 4, BitShift: 4, ConversionDelay: time.Millisecond, HasGain: true, HasComparator: true}
	variantADS1113 = Variant{Name: "ads1113", MaxChannels: 1, BitShift: 0, ConversionDelay: 8 * time.Millisecond}
	variantADS1114 = Variant{Name: "ads1114", MaxChannels: 1, BitShift: 0, ConversionDelay: 8 * time.Millisecond, HasGain: true, HasComparator: true}
	variantADS1115 = Variant{Name: "ads1115", MaxChannels: 4, BitShift: 0, ConversionDelay: 8 * time.Millisecond, HasGain: true, HasComparator: true}
)
