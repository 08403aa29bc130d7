package session

import (
	"time"

	"github.com/rs/zerolog"

	"rfidd/internal/driver"
	"rfidd/internal/tuning"
)

// Defaults applied when corresponding Config fields are unset. They match
// the reader model the timings were measured on.
const (
	defaultOpTimeout        = 4000 * time.Millisecond
	defaultResumeGrace      = 1500 * time.Millisecond
	defaultMinStartInterval = 400 * time.Millisecond
	defaultFastRestart      = 80 * time.Millisecond
	defaultSlowRestart      = 800 * time.Millisecond
	defaultPresenceWindow   = 1500 * time.Millisecond
	defaultTuneCadence      = 1500 * time.Millisecond
	defaultQuietWindow      = 4000 * time.Millisecond
)

// Inventory command parameters.
const (
	inventorySession byte = 1
	inventoryTarget  byte = 1
	stateFresh       byte = 0
	stateContinue    byte = 1
)

// DefaultBaseline is applied right after connecting.
var DefaultBaseline = tuning.Candidate{
	Power:     30,
	Antenna:   1,
	Trigger:   false,
	Frequency: tuning.FrequencyPlan{Region: 2, Start: 0, End: 6},
}

// Timings groups the scheduling constants. Zero fields take the defaults.
type Timings struct {
	// OpTimeout bounds a tag read/write waiting for the reader.
	OpTimeout time.Duration
	// ResumeGrace delays the first tuning check after an operation resumes scanning.
	ResumeGrace time.Duration
	// MinStartInterval is the inventory start debounce window.
	MinStartInterval time.Duration
	FastRestart      time.Duration
	SlowRestart      time.Duration
	// PresenceWindow is how recent a tag must be to keep the fast restart.
	PresenceWindow time.Duration
	TuneCadence    time.Duration
	// QuietWindow is how long both tag silence and config stability must last
	// before the tuner moves on.
	QuietWindow time.Duration
}

func (t Timings) withDefaults() Timings {
	def := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&t.OpTimeout, defaultOpTimeout)
	def(&t.ResumeGrace, defaultResumeGrace)
	def(&t.MinStartInterval, defaultMinStartInterval)
	def(&t.FastRestart, defaultFastRestart)
	def(&t.SlowRestart, defaultSlowRestart)
	def(&t.PresenceWindow, defaultPresenceWindow)
	def(&t.TuneCadence, defaultTuneCadence)
	def(&t.QuietWindow, defaultQuietWindow)
	return t
}

// Config encapsulates everything New needs.
type Config struct {
	Driver driver.Driver
	// Clock defaults to the wall clock.
	Clock Clock
	// Executor defaults to a Dispatcher started by Run.
	Executor  Executor
	Publisher EventPublisher
	Logger    zerolog.Logger
	Timings   Timings
	// Baseline defaults to DefaultBaseline.
	Baseline *tuning.Candidate
	// Space defaults to tuning.DefaultSpace().
	Space tuning.Space
}

// New constructs a Session from Config.
func New(cfg Config) *Session {
	s := &Session{
		drv:      cfg.Driver,
		clock:    cfg.Clock,
		exec:     cfg.Executor,
		pub:      cfg.Publisher,
		log:      cfg.Logger.With().Str("component", "session").Logger(),
		timings:  cfg.Timings.withDefaults(),
		baseline: DefaultBaseline,
		space:    cfg.Space,
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.exec == nil {
		s.disp = NewDispatcher(defaultQueueDepth, s.log)
		s.exec = s.disp
	}
	if s.pub == nil {
		s.pub = noopPublisher{}
	}
	if cfg.Baseline != nil {
		s.baseline = *cfg.Baseline
	}
	if s.space.Len() == 0 {
		s.space = tuning.DefaultSpace()
	}
	s.listener = &listener{s: s}
	return s
}
