package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rfidd/internal/session"
	"rfidd/internal/tuning"
)

const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 1 << 20
	DefaultEventBuffer  = 64
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	broadcastAddress    = 0xFF
)

// Default returns a fully populated configuration for the simulated reader.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills every unspecified field.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverSim
	}
	if c.ReaderAddress == 0 {
		c.ReaderAddress = broadcastAddress
	}
	if opts, err := c.Serial.Normalize(); err == nil {
		c.Serial = opts
	}
	if c.Session.Baseline == nil {
		b := session.DefaultBaseline
		c.Session.Baseline = &b
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.HTTP.EventBuffer <= 0 {
		c.HTTP.EventBuffer = DefaultEventBuffer
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	return c
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSim, DriverSerial:
	default:
		return fmt.Errorf("unknown driver %q: expected %s or %s", c.Driver, DriverSim, DriverSerial)
	}
	if c.ReaderAddress < 0 || c.ReaderAddress > 0xFF {
		return fmt.Errorf("reader_address %d out of range", c.ReaderAddress)
	}
	if c.Driver == DriverSerial {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	if _, err := c.Space(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	for i, t := range c.Sim.Tags {
		if strings.TrimSpace(t.EPC) == "" {
			return fmt.Errorf("sim tag %d: empty epc", i)
		}
	}
	return nil
}

// Timings converts the millisecond settings. Zero fields stay zero so the
// session applies its own defaults.
func (c Config) Timings() session.Timings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	s := c.Session
	return session.Timings{
		OpTimeout:        ms(s.OpTimeoutMS),
		ResumeGrace:      ms(s.ResumeGraceMS),
		MinStartInterval: ms(s.MinStartIntervalMS),
		FastRestart:      ms(s.FastRestartMS),
		SlowRestart:      ms(s.SlowRestartMS),
		PresenceWindow:   ms(s.PresenceWindowMS),
		TuneCadence:      ms(s.TuneCadenceMS),
		QuietWindow:      ms(s.QuietWindowMS),
	}
}

// Space builds the tuning space. Lists left empty take the reference values.
func (c Config) Space() (tuning.Space, error) {
	t := c.Tuning
	if len(t.Powers) == 0 && len(t.Antennas) == 0 && len(t.Triggers) == 0 && len(t.Frequencies) == 0 {
		return tuning.DefaultSpace(), nil
	}
	powers, err := byteList("tuning.powers", t.Powers, []byte{30, 33})
	if err != nil {
		return tuning.Space{}, err
	}
	antennas, err := byteList("tuning.antennas", t.Antennas, []byte{0, 1})
	if err != nil {
		return tuning.Space{}, err
	}
	triggers := t.Triggers
	if len(triggers) == 0 {
		triggers = []bool{false, true}
	}
	freqs := t.Frequencies
	if len(freqs) == 0 {
		freqs = []tuning.FrequencyPlan{
			{Region: 0, Start: 0, End: 6},
			{Region: 1, Start: 0, End: 10},
			{Region: 2, Start: 0, End: 6},
			{Region: 3, Start: 0, End: 52},
		}
	}
	return tuning.NewSpace(powers, antennas, triggers, freqs)
}

func byteList(name string, in []int, def []byte) ([]byte, error) {
	if len(in) == 0 {
		return def, nil
	}
	out := make([]byte, len(in))
	for i, v := range in {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("%s[%d]=%d out of range", name, i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}
