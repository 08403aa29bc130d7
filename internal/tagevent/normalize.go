// Package tagevent turns the loosely populated fields of a driver tag event
// into a canonical tag read.
//
// Reader firmware does not agree on which slot carries the EPC: depending on
// tag type the identifier can show up in the PC/prefix slot, the EPC slot, the
// RSSI slot or the user-data slot, and the numeric RSSI tends to arrive in the
// TID slot. Normalize picks the most identifier-looking field.
package tagevent

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultRSSI is reported when the RSSI slot does not hold an integer.
const DefaultRSSI = -70

// rssiOffset converts the unsigned RSSI byte the reader reports to dBm.
const rssiOffset = 129

var (
	// two or more whitespace-separated groups, each made of whole hex bytes
	spacedHex  = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2})+(?:\s+(?:[0-9A-Fa-f]{2})+)+$`)
	compactHex = regexp.MustCompile(`^[0-9A-Fa-f]{8,}$`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Fields is the raw string payload of one tag-seen event. Absent fields are
// empty strings.
type Fields struct {
	Prefix   string
	EPC      string
	RSSI     string
	TID      string
	UserData string
}

// TagRead is the canonical read handed to the host.
type TagRead struct {
	EPC  string `json:"epc"`
	TID  string `json:"tid"`
	RSSI int    `json:"rssi"`
}

// LooksLikeHex reports whether v (trimmed) resembles a hex tag identifier.
func LooksLikeHex(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	return spacedHex.MatchString(v) || compactHex.MatchString(v)
}

// Normalize selects the EPC among f's fields and maps the RSSI. ok is false
// when no field yields a non-empty EPC; the event should then be dropped.
func Normalize(f Fields) (TagRead, bool) {
	epc := stripSpaces(selectEPC(f))
	if epc == "" {
		return TagRead{}, false
	}
	return TagRead{EPC: epc, TID: f.TID, RSSI: ParseRSSI(f.TID)}, true
}

func selectEPC(f Fields) string {
	best := ""
	bestLen := -1
	for _, v := range []string{f.Prefix, f.EPC, f.RSSI, f.UserData} {
		v = strings.TrimSpace(v)
		if !LooksLikeHex(v) {
			continue
		}
		// strict comparison keeps the earliest field on ties
		if n := len(stripSpaces(v)); n > bestLen {
			best, bestLen = v, n
		}
	}
	if bestLen >= 0 {
		return best
	}
	for _, v := range []string{f.RSSI, f.EPC, f.Prefix} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ParseRSSI maps the reader's RSSI slot to a signed value. Integers in
// [0,255] are unsigned offsets and become v-129; other integers pass through;
// anything else yields DefaultRSSI.
func ParseRSSI(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultRSSI
	}
	if v >= 0 && v <= 255 {
		return v - rssiOffset
	}
	return v
}

func stripSpaces(s string) string { return spaces.ReplaceAllString(s, "") }
