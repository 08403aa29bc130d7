package session

import (
	"rfidd/internal/driver"
	"rfidd/internal/tagevent"
)

// listener marshals driver callbacks onto the execution queue. The driver
// calls it from its own goroutines.
type listener struct{ s *Session }

var _ driver.Listener = (*listener)(nil)

func (l *listener) OnInventoryTag(t driver.RawTag) {
	l.s.exec.Post(func() { l.s.onInventoryTag(t) })
}

func (l *listener) OnInventoryEnd(e driver.RoundEnd) {
	l.s.exec.Post(func() { l.s.onRoundEnd(e) })
}

func (l *listener) OnOperationTag(o driver.OperationTag) {
	l.s.exec.Post(func() { l.s.onOperationTag(o) })
}

func (l *listener) OnCommandStatus(cmd, status byte) {
	l.s.exec.Post(func() { l.s.onCommandStatus(cmd, status) })
}

func (l *listener) OnSettingsRefreshed() {
	l.s.exec.Post(func() {
		l.s.log.Debug().Str("event", "settings_refreshed").Msg("reader settings refreshed")
	})
}

// onInventoryTag records tag presence and forwards the normalized read.
func (s *Session) onInventoryTag(raw driver.RawTag) {
	if s.link != linkUp {
		s.log.Debug().Str("event", "stray_tag").Msg("tag event while disconnected")
		return
	}
	// presence counts even when the event cannot be normalized
	s.lastTagSeen = s.clock.Now()
	tr, ok := tagevent.Normalize(tagevent.Fields{
		Prefix:   raw.Prefix,
		EPC:      raw.EPC,
		RSSI:     raw.RSSI,
		TID:      raw.TID,
		UserData: raw.UserData,
	})
	if !ok {
		s.log.Debug().Str("event", "tag_dropped").Uint8("antenna", raw.Antenna).Msg("tag event without identifier")
		return
	}
	s.tagsRead++
	tagsReadTotal.Inc()
	s.log.Debug().Str("event", EventTagRead).Str("epc", tr.EPC).Int("rssi", tr.RSSI).Msg("tag read")
	s.publish(EventTagRead, map[string]any{"epc": tr.EPC, "tid": tr.TID, "rssi": tr.RSSI})
}
