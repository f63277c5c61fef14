package main

import (
	"fmt"

	"github.com/possibly-human/BioData/ads1x15"
	"github.com/possibly-human/BioData/analog"
	"github.com/possibly-human/BioData/cmd/biodata/console"
	"github.com/possibly-human/BioData/thermistor"
	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/firmata"
)

func thermistorOpts(c *cli.Context) ([]thermistor.Opt, error) {
	opts := []thermistor.Opt{
		thermistor.WithDividerResistance(c.Float64("divider")),
		thermistor.WithOffset(c.Float64("offset")),
	}
	switch c.String("connect") {
	case "excite":
		opts = append(opts, thermistor.WithConnect(thermistor.ConnectExcite))
	case "ground":
		opts = append(opts, thermistor.WithConnect(thermistor.ConnectGround))
	default:
		return nil, fmt.Errorf("unknown wiring %q, expected excite or ground", c.String("connect"))
	}
	if path := c.String("calibration"); path != "" {
		cal, err := thermistor.LoadCalibration(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, thermistor.WithCalibration(cal))
	}
	return opts, nil
}

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Flags: []cli.Flag{
		adapterFlag,
		chipFlag,
		addressFlag,
		gainFlag,
		&cli.IntFlag{Name: "channel", Aliases: []string{"c"}, Value: 0},
		&cli.Float64Flag{Name: "divider", Value: thermistor.DefaultDividerResistance},
		&cli.Float64Flag{Name: "offset", Value: 0},
		&cli.StringFlag{Name: "connect", Value: "excite", Usage: "thermistor wiring: excite or ground"},
		&cli.StringFlag{Name: "calibration", Usage: "yaml calibration profile, MA100 points by default"},
		&cli.StringFlag{Name: "firmata", Usage: "serial device of a firmata board, reads the onboard ADC instead of the ADS1x15"},
		&cli.StringFlag{Name: "pin", Value: "0", Usage: "onboard analog pin (with --firmata)"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
		opts, err := thermistorOpts(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}

		// onboard ADC path over firmata
		if serial := c.String("firmata"); serial != "" {
			board := firmata.NewAdaptor(serial)
			if err = board.Connect(); err != nil {
				return console.Exit(1, "firmata connection error: %s", console.Red(err))
			}
			defer func() { _ = board.Finalize() }()
			opts = append(opts, thermistor.WithExciteValue(1023))
			therm := thermistor.NewWithAnalog(analog.NewGobotReader(board), c.String("pin"), opts...)
			temp, err := therm.ReadTemperature(ctx)
			if err != nil {
				return console.Exit(1, "error getting temperature read: %s", console.Red(err))
			}
			console.PInfof(console.PictoThermometer, "%s °C", console.White(fmt.Sprintf("%.2f", temp)))
			return nil
		}

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
		opts = append(opts, thermistor.WithADCGain(2*dev.MaxVoltage()))
		therm := thermistor.New(opts...)
		raw, err := dev.Read(ctx, uint8(c.Int("channel")))
		if err != nil {
			return console.Exit(1, "conversion failed: %s", console.Red(err))
		}
		temp, err := therm.TemperatureFromRaw(raw)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		console.PInfof(console.PictoThermometer, "%s °C (raw %d, %.1f Ω)",
			console.White(fmt.Sprintf("%.2f", temp)), raw, therm.LastResistance())
		return nil
	},
}
