// Package tuning enumerates the radio configurations the auto-tuner walks
// when inventory stops producing tags.
package tuning

import "fmt"

// FrequencyPlan selects a regulatory region and a channel window within it.
type FrequencyPlan struct {
	Region byte `json:"region" yaml:"region" toml:"region"`
	Start  byte `json:"start" yaml:"start" toml:"start"`
	End    byte `json:"end" yaml:"end" toml:"end"`
}

// Candidate is one point of the configuration space.
type Candidate struct {
	Power     byte          `json:"power" yaml:"power" toml:"power"`
	Antenna   byte          `json:"antenna" yaml:"antenna" toml:"antenna"`
	Trigger   bool          `json:"trigger" yaml:"trigger" toml:"trigger"`
	Frequency FrequencyPlan `json:"frequency" yaml:"frequency" toml:"frequency"`
}

func (c Candidate) String() string {
	return fmt.Sprintf("power=%d ant=%d trig=%t region=%d start=%d end=%d",
		c.Power, c.Antenna, c.Trigger, c.Frequency.Region, c.Frequency.Start, c.Frequency.End)
}

// Space is the cartesian product of four candidate lists. Power varies
// fastest, then antenna, then trigger, then frequency plan.
type Space struct {
	powers      []byte
	antennas    []byte
	triggers    []bool
	frequencies []FrequencyPlan
}

// NewSpace builds a space from the given lists. Every list must be non-empty.
func NewSpace(powers, antennas []byte, triggers []bool, frequencies []FrequencyPlan) (Space, error) {
	if len(powers) == 0 || len(antennas) == 0 || len(triggers) == 0 || len(frequencies) == 0 {
		return Space{}, fmt.Errorf("tuning space: every candidate list must be non-empty (powers=%d antennas=%d triggers=%d frequencies=%d)",
			len(powers), len(antennas), len(triggers), len(frequencies))
	}
	return Space{
		powers:      append([]byte(nil), powers...),
		antennas:    append([]byte(nil), antennas...),
		triggers:    append([]bool(nil), triggers...),
		frequencies: append([]FrequencyPlan(nil), frequencies...),
	}, nil
}

// DefaultSpace is the reference deployment: 2 powers x 2 antennas x
// 2 trigger modes x 4 frequency plans.
func DefaultSpace() Space {
	s, _ := NewSpace(
		[]byte{30, 33},
		[]byte{0, 1},
		[]bool{false, true},
		[]FrequencyPlan{
			{Region: 0, Start: 0, End: 6},
			{Region: 1, Start: 0, End: 10},
			{Region: 2, Start: 0, End: 6},
			{Region: 3, Start: 0, End: 52},
		},
	)
	return s
}

// Len is the number of combinations.
func (s Space) Len() int {
	return len(s.powers) * len(s.antennas) * len(s.triggers) * len(s.frequencies)
}

// At returns the candidate for index. Indexes wrap modulo Len, negative
// indexes included.
func (s Space) At(index int) Candidate {
	n := s.Len()
	if n == 0 {
		return Candidate{}
	}
	index = ((index % n) + n) % n
	p := len(s.powers)
	a := len(s.antennas)
	t := len(s.triggers)
	f := len(s.frequencies)
	return Candidate{
		Power:     s.powers[index%p],
		Antenna:   s.antennas[(index/p)%a],
		Trigger:   s.triggers[(index/(p*a))%t],
		Frequency: s.frequencies[(index/(p*a*t))%f],
	}
}

// Next returns the index after i, wrapping to 0 past the last combination.
func (s Space) Next(i int) int {
	n := s.Len()
	if n == 0 {
		return 0
	}
	return (((i + 1) % n) + n) % n
}
