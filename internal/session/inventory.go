package session

import "rfidd/internal/driver"

// startInventory issues a driver inventory start, debounced by
// MinStartInterval. Calls inside the window collapse into one deferred retry
// that uses the most recently requested state. It returns the driver status
// and whether the command was issued now.
func (s *Session) startInventory(state byte) (int, bool) {
	if s.link != linkUp || !s.scanning {
		return 0, false
	}
	now := s.clock.Now()
	if !s.lastStart.IsZero() {
		if wait := s.timings.MinStartInterval - now.Sub(s.lastStart); wait > 0 {
			s.retryState = state
			inventoryStartsTotal.WithLabelValues("coalesced").Inc()
			if s.pendingRetry {
				return 0, false
			}
			s.pendingRetry = true
			s.retryTimer = s.after(wait, s.retryInventory)
			return 0, false
		}
	}
	s.lastStart = now
	st := s.drv.StartInventory(s.handle, inventorySession, state, inventoryTarget)
	s.inventoryStarts++
	if st < 0 {
		inventoryStartsTotal.WithLabelValues(resultRejected).Inc()
		s.log.Warn().Str("event", "inventory_start").Uint8("state", state).Int("status", st).Msg("inventory start rejected")
	} else {
		inventoryStartsTotal.WithLabelValues(resultOK).Inc()
		s.log.Debug().Str("event", "inventory_start").Uint8("state", state).Int("status", st).Msg("inventory started")
	}
	return st, true
}

func (s *Session) retryInventory() {
	if !s.pendingRetry {
		return
	}
	s.pendingRetry = false
	s.retryTimer = nil
	s.startInventory(s.retryState)
}

// onRoundEnd schedules the next round: fast while tags are around, slow
// over an empty field.
func (s *Session) onRoundEnd(end driver.RoundEnd) {
	if s.link != linkUp || !s.scanning {
		s.log.Debug().Str("event", "round_end").Int("tags", end.TagCount).Msg("round end ignored")
		return
	}
	delay := s.timings.FastRestart
	if end.TagCount <= 0 && s.clock.Now().Sub(s.lastTagSeen) > s.timings.PresenceWindow {
		delay = s.timings.SlowRestart
	}
	stopTimer(s.roundTimer)
	s.roundTimer = s.after(delay, func() {
		if s.link != linkUp || !s.scanning {
			return
		}
		s.startInventory(stateContinue)
	})
}

// cancelInventoryTimers drops the pending round restart and debounce retry.
func (s *Session) cancelInventoryTimers() {
	stopTimer(s.roundTimer)
	s.roundTimer = nil
	stopTimer(s.retryTimer)
	s.retryTimer = nil
	s.pendingRetry = false
}
