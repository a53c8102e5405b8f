package utterance

import (
	"fmt"
	"unicode/utf8"
)

// Spec is a declarative description of an utterance or of an edit to one,
// decodable from YAML. Nil fields are left unchanged by [Spec.Apply].
type Spec struct {
	Text   *string  `yaml:"text,omitempty"`
	Pitch  *float64 `yaml:"pitch,omitempty"`
	Rate   *float64 `yaml:"rate,omitempty"`
	Volume *float64 `yaml:"volume,omitempty"`

	// Voice is a voice ID looked up through a [VoiceResolver].
	Voice string `yaml:"voice,omitempty"`
}

// VoiceResolver looks up voices by ID. The returned voice is borrowed; the
// utterance retains it when selecting it.
type VoiceResolver interface {
	ResolveVoice(id string) (Voice, bool)
}

// VoiceResolverFunc adapts a function to [VoiceResolver].
type VoiceResolverFunc func(id string) (Voice, bool)

// ResolveVoice calls f(id).
func (f VoiceResolverFunc) ResolveVoice(id string) (Voice, bool) { return f(id) }

// FromSpec builds an utterance from s. A nil s.Text fails with
// ErrInvalidArgument. Every field is checked before the utterance is opened,
// so an invalid spec notifies no observer and records only the rejection.
// On any failure no utterance is returned and no voice reference is kept.
func FromSpec(s Spec, voices VoiceResolver, opts ...Option) (*Utterance, error) {
	if s.Text == nil {
		return nil, &ArgumentError{Property: PropertyText, Reason: ReasonMissing}
	}
	u := build(opts)
	if _, err := s.check(u, voices); err != nil {
		return nil, err
	}
	u.open(*s.Text)
	if err := s.Apply(u, voices); err != nil {
		_ = u.Close()
		return nil, err
	}
	return u, nil
}

// Apply sets every non-nil field of s on u, in the order text, pitch, rate,
// volume, voice. All values are checked against u's policy first, so on
// error u is left unchanged.
func (s Spec) Apply(u *Utterance, voices VoiceResolver) error {
	if u.closed {
		return ErrClosed
	}
	v, err := s.check(u, voices)
	if err != nil {
		return err
	}

	// Observers run between the steps below and may close u.
	if s.Text != nil {
		if err := u.SetText(*s.Text); err != nil {
			return err
		}
	}
	if s.Pitch != nil {
		if err := u.SetPitch(*s.Pitch); err != nil {
			return err
		}
	}
	if s.Rate != nil {
		if err := u.SetRate(*s.Rate); err != nil {
			return err
		}
	}
	if s.Volume != nil {
		if err := u.SetVolume(*s.Volume); err != nil {
			return err
		}
	}
	if v != nil {
		return u.SetVoice(v)
	}
	return nil
}

// check validates every non-nil field of s against u's policy without
// changing u, and returns the resolved voice.
func (s Spec) check(u *Utterance, voices VoiceResolver) (Voice, error) {
	v, err := resolve(voices, s.Voice)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if err := u.checkVoice(v); err != nil {
			return nil, err
		}
	}
	if s.Text != nil && !utf8.ValidString(*s.Text) {
		return nil, u.reject(PropertyText, *s.Text, ReasonInvalidUTF8)
	}
	prosody := []struct {
		p   Property
		val *float64
	}{
		{PropertyPitch, s.Pitch},
		{PropertyRate, s.Rate},
		{PropertyVolume, s.Volume},
	}
	for _, f := range prosody {
		if f.val == nil {
			continue
		}
		if _, reason := u.coerce(f.p, *f.val); reason != "" {
			return nil, u.reject(f.p, *f.val, reason)
		}
	}
	return v, nil
}

// SpecOf returns a Spec describing u's current state. The voice is
// described by voiceID, since utterances do not know voice IDs.
func SpecOf(u *Utterance, voiceID string) Spec {
	text, pitch, rate, volume := u.text, u.pitch, u.rate, u.volume
	return Spec{Text: &text, Pitch: &pitch, Rate: &rate, Volume: &volume, Voice: voiceID}
}

func resolve(voices VoiceResolver, id string) (Voice, error) {
	if id == "" {
		return nil, nil
	}
	if voices == nil {
		return nil, fmt.Errorf("%w: %q (no voices available)", ErrUnknownVoice, id)
	}
	v, ok := voices.ResolveVoice(id)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, id)
	}
	return v, nil
}
