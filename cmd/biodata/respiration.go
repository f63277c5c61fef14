package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/possibly-human/BioData/ads1x15"
	"github.com/possibly-human/BioData/cmd/biodata/console"
	"github.com/possibly-human/BioData/respiration"
	"github.com/possibly-human/BioData/thermistor"
	"github.com/urfave/cli/v2"
)

// adcTemperatureSource chains one ADC conversion and the Steinhart-Hart
// model into a respiration.TemperatureSource.
type adcTemperatureSource struct {
	dev     *ads1x15.Device
	therm   *thermistor.Thermistor
	channel uint8
}

func (s *adcTemperatureSource) ReadTemperature(ctx context.Context) (float64, error) {
	raw, err := s.dev.Read(ctx, s.channel)
	if err != nil {
		return 0, err
	}
	return s.therm.TemperatureFromRaw(raw)
}

var respirationCmd = cli.Command{
	Name:    "respiration",
	Aliases: []string{"resp"},
	Subcommands: cli.Commands{
		&respirationMonitorCmd,
	},
}

var respirationMonitorCmd = cli.Command{
	Name: "monitor",
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
		&cli.Float64Flag{Name: "sample-rate", Value: 20, Usage: "samples per second"},
		&cli.DurationFlag{Name: "report", Value: time.Second, Usage: "metrics print interval"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := thermistorOpts(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
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
		channel := uint8(c.Int("channel"))

		source := &adcTemperatureSource{dev: dev, therm: therm, channel: channel}
		resp := respiration.New(source, respiration.WithSampleRate(c.Float64("sample-rate")))

		done := make(chan error, 1)
		go func() {
			done <- resp.Run(ctx)
		}()

		ticker := time.NewTicker(c.Duration("report"))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m := resp.Metrics()
				phase := "inhale"
				if m.Exhaling {
					phase = "exhale"
				}
				console.PInfof(console.PictoLungs, "%s  %s °C  %s rpm  amplitude %s (cv %.0f%%)",
					console.Bold(phase),
					console.White(fmt.Sprintf("%.2f", m.Temperature)),
					console.White(fmt.Sprintf("%.1f", m.Rpm)),
					console.White(fmt.Sprintf("%.2f", m.Amplitude)),
					m.RpmVariability)
			case err = <-done:
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return console.Exit(1, "sampling stopped: %s", console.Red(err))
			}
		}
	},
}
