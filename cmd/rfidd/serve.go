package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rfidd/internal/common/hexutil"
	"rfidd/internal/config"
	"rfidd/internal/driver"
	"rfidd/internal/driver/serialdrv"
	"rfidd/internal/driver/sim"
	"rfidd/internal/httpapi"
	"rfidd/internal/session"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reader session and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg.Log))
		},
	}
	f := cmd.Flags()
	f.String("addr", envStr("RFIDD_ADDR", config.DefaultAddr), "HTTP listen address, e.g. :8080")
	f.String("driver", envStr("RFIDD_DRIVER", config.DriverSim), "Reader driver: sim|serial")
	f.String("serial-path", envStr("RFIDD_SERIAL_PATH", serialdrv.DefaultPath), "Serial device of the reader")
	f.Int("baud", envInt("RFIDD_BAUD", serialdrv.DefaultBaudRate), "Serial baud rate")
	f.Bool("auto-connect", envBool("RFIDD_AUTO_CONNECT", false), "Connect the reader on startup")
	f.String("log-level", envStr("RFIDD_LOG_LEVEL", config.DefaultLogLevel), "Log level: debug|info|warn|error")
	f.String("log-format", envStr("RFIDD_LOG_FORMAT", config.DefaultLogFormat), "Log format: console|json")
	f.Int64("max-body-bytes", int64(envInt("RFIDD_MAX_BODY_BYTES", config.DefaultMaxBodyBytes)), "Maximum JSON request body size")
	f.String("cors-origins", envStr("RFIDD_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (enables CORS)")
	return cmd
}

// loadConfig reads the optional config file, then applies flags the user
// set (or whose env default differs from the built-in one).
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	fs := cmd.Flags()
	override := func(name string, apply func()) {
		f := fs.Lookup(name)
		if f == nil {
			return
		}
		if f.Changed || f.DefValue != builtinDefaults[name] {
			apply()
		}
	}
	override("addr", func() { cfg.Addr, _ = fs.GetString("addr") })
	override("driver", func() { cfg.Driver, _ = fs.GetString("driver") })
	override("serial-path", func() { cfg.Serial.Path, _ = fs.GetString("serial-path") })
	override("baud", func() { cfg.Serial.BaudRate, _ = fs.GetInt("baud") })
	override("auto-connect", func() { cfg.Session.AutoConnect, _ = fs.GetBool("auto-connect") })
	override("log-level", func() { cfg.Log.Level, _ = fs.GetString("log-level") })
	override("log-format", func() { cfg.Log.Format, _ = fs.GetString("log-format") })
	override("max-body-bytes", func() { cfg.HTTP.MaxBodyBytes, _ = fs.GetInt64("max-body-bytes") })
	override("cors-origins", func() {
		v, _ := fs.GetString("cors-origins")
		cfg.HTTP.CORSOrigins = splitCSV(v)
		cfg.HTTP.CORSEnabled = len(cfg.HTTP.CORSOrigins) > 0
	})
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// builtinDefaults are the flag defaults before environment overrides, as
// rendered by pflag.
var builtinDefaults = map[string]string{
	"addr":           config.DefaultAddr,
	"driver":         config.DriverSim,
	"serial-path":    serialdrv.DefaultPath,
	"baud":           fmt.Sprint(serialdrv.DefaultBaudRate),
	"auto-connect":   "false",
	"log-level":      config.DefaultLogLevel,
	"log-format":     config.DefaultLogFormat,
	"max-body-bytes": fmt.Sprint(config.DefaultMaxBodyBytes),
	"cors-origins":   "",
}

func newLogger(c config.LogConf) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if c.Format == "json" {
		l = zerolog.New(os.Stderr)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return l.Level(lvl).With().Timestamp().Logger()
}

// buildDriver returns the reader driver selected by cfg.
func buildDriver(cfg config.Config, log zerolog.Logger) (driver.Driver, error) {
	switch cfg.Driver {
	case config.DriverSerial:
		return serialdrv.New(serialdrv.Config{
			Port:    cfg.Serial,
			Address: byte(cfg.ReaderAddress),
			Logger:  log,
		}), nil
	case config.DriverSim:
		tags, err := simTags(cfg.Sim.Tags)
		if err != nil {
			return nil, err
		}
		return sim.New(sim.Config{
			Tags:      tags,
			RoundTime: time.Duration(cfg.Sim.RoundTimeMS) * time.Millisecond,
			Logger:    log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

// simTags converts configured tags. With none configured the simulator gets
// one tag that only answers at full power in region 3, so the tuner has
// something to find.
func simTags(in []config.SimTag) ([]sim.Tag, error) {
	if len(in) == 0 {
		region := 3
		in = []config.SimTag{{EPC: "E20034120000000000001234", RSSI: 200, MinPower: 33, Region: &region}}
	}
	out := make([]sim.Tag, 0, len(in))
	for i, t := range in {
		epc, ok := hexutil.Decode(t.EPC)
		if !ok || len(epc) == 0 {
			return nil, fmt.Errorf("sim tag %d: invalid epc %q", i, t.EPC)
		}
		minPower, region := t.MinPower, t.Region
		tag := sim.Tag{EPC: epc, RSSI: byte(t.RSSI)}
		if minPower > 0 || region != nil {
			tag.Visible = func(s sim.Settings) bool {
				if int(s.Power) < minPower {
					return false
				}
				return region == nil || int(s.Region) == *region
			}
		}
		out = append(out, tag)
	}
	return out, nil
}

func configureHTTP(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(httpLogLevel(cfg.Log.Level))
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.HTTP.CORSEnabled, cfg.HTTP.CORSOrigins, cfg.HTTP.CORSMethods, cfg.HTTP.CORSHeaders)
	httpapi.SetBaseContext(ctx)
}

// httpLogLevel maps the process level onto the per-request levels.
func httpLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled":
		return "off"
	default:
		return "info"
	}
}

// serve runs the session loop and the HTTP server until ctx is done.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	drv, err := buildDriver(cfg, log)
	if err != nil {
		return err
	}
	space, err := cfg.Space()
	if err != nil {
		return err
	}
	events := session.NewBroadcaster(cfg.HTTP.EventBuffer)
	s := session.New(session.Config{
		Driver:    drv,
		Publisher: events,
		Logger:    log,
		Timings:   cfg.Timings(),
		Baseline:  cfg.Session.Baseline,
		Space:     space,
	})

	configureHTTP(ctx, cfg, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(s, events),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("driver", cfg.Driver).Str("version", version).Msg("rfidd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	if cfg.Session.AutoConnect {
		g.Go(func() error {
			if err := s.Connect(gctx); err != nil && gctx.Err() == nil {
				log.Error().Err(err).Msg("auto-connect failed")
			}
			return nil
		})
	}
	return g.Wait()
}
