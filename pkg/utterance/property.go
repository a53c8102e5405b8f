package utterance

import (
	"fmt"
	"math"
)

// Property identifies one observable attribute of an [Utterance].
type Property uint8

const (
	PropertyText Property = iota + 1
	PropertyPitch
	PropertyRate
	PropertyVolume
	PropertyVoice
)

// Properties lists every property in declaration order.
var Properties = []Property{PropertyText, PropertyPitch, PropertyRate, PropertyVolume, PropertyVoice}

func (p Property) String() string {
	switch p {
	case PropertyText:
		return "text"
	case PropertyPitch:
		return "pitch"
	case PropertyRate:
		return "rate"
	case PropertyVolume:
		return "volume"
	case PropertyVoice:
		return "voice"
	default:
		return fmt.Sprintf("property(%d)", uint8(p))
	}
}

func (p Property) bit() uint8 { return 1 << p }

// Range is the closed domain of a prosody parameter.
type Range struct {
	Min, Max, Default float64
}

// Prosody domains.
var (
	PitchRange  = Range{Min: 0, Max: 2, Default: 1}
	RateRange   = Range{Min: 0.1, Max: 10, Default: 1}
	VolumeRange = Range{Min: 0, Max: 1, Default: 1}
)

// RangeOf returns the domain of a prosody property. ok is false for text
// and voice.
func RangeOf(p Property) (r Range, ok bool) {
	switch p {
	case PropertyPitch:
		return PitchRange, true
	case PropertyRate:
		return RateRange, true
	case PropertyVolume:
		return VolumeRange, true
	}
	return Range{}, false
}

// Contains reports whether v lies within [Min, Max]. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp returns v limited to [Min, Max]. NaN is returned unchanged.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Min(math.Max(v, r.Min), r.Max)
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Policy selects how out-of-domain prosody values are handled. NaN is
// rejected under every policy.
type Policy uint8

const (
	// PolicyClamp stores the nearest bound.
	PolicyClamp Policy = iota

	// PolicyReject fails the mutation with ErrInvalidArgument.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicyClamp:
		return "clamp"
	case PolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy parses "clamp" or "reject". The empty string selects
// PolicyClamp.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "clamp":
		return PolicyClamp, nil
	case "reject":
		return PolicyReject, nil
	}
	return 0, fmt.Errorf("utterance: unknown policy %q; valid values: clamp, reject", s)
}

// Change is a single property-change notification. Value holds the new
// value: a string for text, a float64 for prosody, a [Voice] (possibly nil)
// for voice.
type Change struct {
	Property Property
	Value    any
}

// Observer receives change notifications. It is called synchronously after
// the new value is visible through the utterance's accessors. If an
// observer changes the same property again, the remaining observers skip
// the older change and receive only the newer one.
type Observer func(u *Utterance, c Change)
