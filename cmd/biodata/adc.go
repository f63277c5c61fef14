package main

import (
	"fmt"
	"os"

	biodata "github.com/possibly-human/BioData"
	"github.com/possibly-human/BioData/adapter"
	"github.com/possibly-human/BioData/ads1x15"
	"github.com/possibly-human/BioData/cmd/biodata/console"
	"github.com/possibly-human/BioData/i2c"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// openBus resolves the --adapter flag: "mcp2221" goes through the USB
// bridge, anything else is treated as a periph bus name ("1", "/dev/i2c-1").
func openBus(name string) (biodata.I2CBus, error) {
	if name == "mcp2221" {
		return adapter.NewMCP2221(), nil
	}
	return i2c.NewGenericBus(name)
}

func newConverter(chip string, bus biodata.I2CBus, opts ...ads1x15.Opt) (*ads1x15.Device, error) {
	switch chip {
	case "ads1115":
		return ads1x15.NewADS1115(bus, opts...), nil
	case "ads1114":
		return ads1x15.NewADS1114(bus, opts...), nil
	case "ads1113":
		return ads1x15.NewADS1113(bus, opts...), nil
	case "ads1015":
		return ads1x15.NewADS1015(bus, opts...), nil
	case "ads1014":
		return ads1x15.NewADS1014(bus, opts...), nil
	case "ads1013":
		return ads1x15.NewADS1013(bus, opts...), nil
	}
	return nil, fmt.Errorf("unknown converter chip %q", chip)
}

var adapterFlag = &cli.StringFlag{
	Name:    "adapter",
	Aliases: []string{"a"},
	Value:   "mcp2221",
	Usage:   "mcp2221 or a kernel i2c bus name",
}

var chipFlag = &cli.StringFlag{
	Name:  "chip",
	Value: "ads1115",
	Usage: "converter variant (ads1013..ads1115)",
}

var addressFlag = &cli.IntFlag{
	Name:  "address",
	Value: int(ads1x15.DefaultAddress),
	Usage: "i2c address (0x48..0x4B)",
}

var gainFlag = &cli.IntFlag{
	Name:    "gain",
	Aliases: []string{"g"},
	Value:   1,
	Usage:   "gain code: 0, 1, 2, 4, 8 or 16",
}

var adcCmd = cli.Command{
	Name: "adc",
	Subcommands: cli.Commands{
		&adcReadCmd,
		&adcStatusCmd,
		&adcThresholdCmd,
	},
}

var adcReadCmd = cli.Command{
	Name: "read",
	Flags: []cli.Flag{
		adapterFlag,
		chipFlag,
		addressFlag,
		gainFlag,
		&cli.IntFlag{Name: "channel", Aliases: []string{"c"}, Value: 0},
		&cli.IntFlag{Name: "rate", Aliases: []string{"r"}, Value: 4, Usage: "data rate code 0..7"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
		bus, err := openBus(c.String("adapter"))
		if err != nil {
			return console.Exit(1, "bus error: %s", console.Red(err))
		}
		dev, err := newConverter(c.String("chip"), bus,
			ads1x15.WithAddress(uint8(c.Int("address"))),
			ads1x15.WithGain(uint8(c.Int("gain"))),
			ads1x15.WithDataRate(uint8(c.Int("rate"))),
		)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = dev.Begin(ctx); err != nil {
			return console.Exit(1, "converter not responding: %s", console.Red(err))
		}
		raw, err := dev.Read(ctx, uint8(c.Int("channel")))
		if err != nil {
			return console.Exit(1, "conversion failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoChart, "raw %s, %s V",
			console.White(raw), console.White(fmt.Sprintf("%.6f", dev.ToVoltage(raw))))
		return nil
	},
}

type adcStatus struct {
	Chip          string  `yaml:"chip"`
	Address       string  `yaml:"address"`
	Gain          uint8   `yaml:"gain"`
	MaxVoltage    float64 `yaml:"max_voltage"`
	Mode          uint8   `yaml:"mode"`
	DataRate      uint8   `yaml:"data_rate"`
	ThresholdLow  int16   `yaml:"threshold_low"`
	ThresholdHigh int16   `yaml:"threshold_high"`
}

var adcStatusCmd = cli.Command{
	Name: "status",
	Flags: []cli.Flag{
		adapterFlag,
		chipFlag,
		addressFlag,
		gainFlag,
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
		bus, err := openBus(c.String("adapter"))
		if err != nil {
			return console.Exit(1, "bus error: %s", console.Red(err))
		}
		dev, err := newConverter(c.String("chip"), bus,
			ads1x15.WithAddress(uint8(c.Int("address"))),
			ads1x15.WithGain(uint8(c.Int("gain"))),
		)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = dev.Begin(ctx); err != nil {
			return console.Exit(1, "converter not responding: %s", console.Red(err))
		}
		status := adcStatus{
			Chip:       dev.Variant().Name,
			Address:    fmt.Sprintf("%#x", c.Int("address")),
			Gain:       dev.Gain(),
			MaxVoltage: dev.MaxVoltage(),
			Mode:       dev.Mode(),
			DataRate:   dev.DataRate(),
		}
		if status.ThresholdLow, err = dev.ThresholdLow(ctx); err != nil {
			return console.Exit(1, "threshold read failed: %s", console.Red(err))
		}
		if status.ThresholdHigh, err = dev.ThresholdHigh(ctx); err != nil {
			return console.Exit(1, "threshold read failed: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		if err = enc.Encode(status); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var adcThresholdCmd = cli.Command{
	Name: "threshold",
	Flags: []cli.Flag{
		adapterFlag,
		chipFlag,
		addressFlag,
		&cli.IntFlag{Name: "low", Value: -32768},
		&cli.IntFlag{Name: "high", Value: 32767},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
		answer, err := console.YesOrNo(fmt.Sprintf("write thresholds low=%d high=%d to %s?",
			c.Int("low"), c.Int("high"), c.String("chip")))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if answer != console.Yes {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}
		bus, err := openBus(c.String("adapter"))
		if err != nil {
			return console.Exit(1, "bus error: %s", console.Red(err))
		}
		dev, err := newConverter(c.String("chip"), bus,
			ads1x15.WithAddress(uint8(c.Int("address"))))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = dev.Begin(ctx); err != nil {
			return console.Exit(1, "converter not responding: %s", console.Red(err))
		}
		if err = dev.SetThresholdLow(ctx, int16(c.Int("low"))); err != nil {
			return console.Exit(1, "threshold write failed: %s", console.Red(err))
		}
		if err = dev.SetThresholdHigh(ctx, int16(c.Int("high"))); err != nil {
			return console.Exit(1, "threshold write failed: %s", console.Red(err))
		}
		console.Infof("thresholds written")
		return nil
	},
}
