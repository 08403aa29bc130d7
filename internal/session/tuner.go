package session

import "time"

// scheduleTuning (re)arms the tuning check after delay. Earlier schedules
// are invalidated through the generation counter.
func (s *Session) scheduleTuning(delay time.Duration) {
	stopTimer(s.tuneTimer)
	s.tuneGen++
	gen := s.tuneGen
	s.tuneTimer = s.after(delay, func() { s.tuneTick(gen) })
}

func (s *Session) cancelTuning() {
	stopTimer(s.tuneTimer)
	s.tuneTimer = nil
	s.tuneGen++
}

// tuneTick moves to the next radio configuration once both the reader has
// been silent and the current configuration has been tried for longer than
// the quiet window. It reschedules itself while scanning.
func (s *Session) tuneTick(gen uint64) {
	if gen != s.tuneGen || !s.scanning || s.link != linkUp || s.pending != nil {
		return
	}
	now := s.clock.Now()
	noTag := now.Sub(s.lastTagSeen)
	sinceChange := now.Sub(s.lastConfigChange)
	if noTag > s.timings.QuietWindow && sinceChange > s.timings.QuietWindow {
		s.cursor = s.space.Next(s.cursor)
		c := s.space.At(s.cursor)
		s.applyConfig(c, "tuning")
		s.lastConfigChange = now
		s.tuningSteps++
		tuningStepsTotal.Inc()
		s.publish(EventTuningApplied, map[string]any{
			"index":     s.cursor,
			"power":     c.Power,
			"antenna":   c.Antenna,
			"trigger":   c.Trigger,
			"region":    c.Frequency.Region,
			"start":     c.Frequency.Start,
			"end":       c.Frequency.End,
			"silent_ms": noTag.Milliseconds(),
		})
		s.startInventory(stateFresh)
	}
	s.scheduleTuning(s.timings.TuneCadence)
}
