// Package utterance models a single unit of speech synthesis work: the text
// to speak plus the prosody parameters (pitch, rate, volume) and voice that
// control how it is spoken.
//
// An [Utterance] is built with [New] or [FromSpec], read through its
// accessors and changed through one mutator per property. Every mutation
// that changes a value emits exactly one [Change] to subscribed observers,
// after the new value is readable. Writing a value equal to the current one
// is a no-op and emits nothing.
//
// Prosody values are kept inside their domains ([PitchRange], [RateRange],
// [VolumeRange]). Under the default [PolicyClamp] out-of-domain input is
// clamped to the nearest bound; under [PolicyReject] it fails with
// [ErrInvalidArgument]. NaN always fails.
//
// The utterance holds a strong reference to its voice and releases it when
// the voice is replaced or the utterance is closed.
//
// An Utterance is not safe for concurrent use. Callers serialize access, or
// hand a [Params] value from [Utterance.Snapshot] to other goroutines.
package utterance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"unicode/utf8"

	"github.com/MrWong99/spiel/internal/observe"
)

// Voice is an externally owned, reference-counted voice descriptor. The
// utterance never inspects it beyond identity. Implementations must be
// comparable, which in practice means pointer types; [Utterance.SetVoice]
// rejects others with ErrInvalidArgument.
type Voice interface {
	Retain()
	Release()
}

// Params is a value copy of an utterance's state.
type Params struct {
	Text   string
	Pitch  float64
	Rate   float64
	Volume float64

	// Voice is borrowed from the utterance; Retain it to keep it past the
	// utterance's next voice change or Close.
	Voice Voice
}

type subscription struct {
	id   uint64
	fn   Observer
	mask uint8
}

// Utterance is a text plus prosody and voice selection.
type Utterance struct {
	text   string
	pitch  float64
	rate   float64
	volume float64
	voice  Voice

	policy  Policy
	logger  *slog.Logger
	metrics *observe.Metrics

	subs   []subscription
	nextID uint64
	seq    [PropertyVoice + 1]uint64
	closed bool
}

// Option configures an [Utterance] at construction.
type Option func(*Utterance)

// WithPolicy sets the out-of-domain policy for prosody values.
func WithPolicy(p Policy) Option {
	return func(u *Utterance) { u.policy = p }
}

// WithLogger sets the logger used for clamp and rejection debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(u *Utterance) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithMetrics records changes, rejections, clamps and voice references on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(u *Utterance) { u.metrics = m }
}

// WithObserver subscribes fn before the text is assigned, so it also sees
// the initial text change. See [Utterance.Subscribe] for props.
func WithObserver(fn Observer, props ...Property) Option {
	return func(u *Utterance) { u.subscribe(fn, props) }
}

// New returns an utterance speaking text with pitch, rate and volume at 1.0
// and no voice. text must be valid UTF-8.
func New(text string, opts ...Option) (*Utterance, error) {
	u := build(opts)
	if !utf8.ValidString(text) {
		return nil, u.reject(PropertyText, text, ReasonInvalidUTF8)
	}
	u.open(text)
	return u, nil
}

// build returns a configured utterance that has not been opened: nothing
// has been emitted or counted yet.
func build(opts []Option) *Utterance {
	u := &Utterance{
		pitch:  PitchRange.Default,
		rate:   RateRange.Default,
		volume: VolumeRange.Default,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// open assigns the initial text, which must be valid.
func (u *Utterance) open(text string) {
	u.metrics.UtteranceOpened(context.Background())
	u.text = text
	u.emit(PropertyText, text)
}

// Text returns the text to be spoken.
func (u *Utterance) Text() string { return u.text }

// Pitch returns the pitch, within [PitchRange].
func (u *Utterance) Pitch() float64 { return u.pitch }

// Rate returns the speaking rate, within [RateRange].
func (u *Utterance) Rate() float64 { return u.rate }

// Volume returns the volume, within [VolumeRange].
func (u *Utterance) Volume() float64 { return u.volume }

// Voice returns the selected voice, or nil. The reference is borrowed.
func (u *Utterance) Voice() Voice { return u.voice }

// Policy returns the out-of-domain policy in effect.
func (u *Utterance) Policy() Policy { return u.policy }

// Closed reports whether Close has been called.
func (u *Utterance) Closed() bool { return u.closed }

// Snapshot returns a copy of the current state.
func (u *Utterance) Snapshot() Params {
	return Params{
		Text:   u.text,
		Pitch:  u.pitch,
		Rate:   u.rate,
		Volume: u.volume,
		Voice:  u.voice,
	}
}

// SetText replaces the text. The empty string is allowed; invalid UTF-8
// fails with ErrInvalidArgument.
func (u *Utterance) SetText(text string) error {
	if u.closed {
		return ErrClosed
	}
	if !utf8.ValidString(text) {
		return u.reject(PropertyText, text, ReasonInvalidUTF8)
	}
	if text == u.text {
		return nil
	}
	u.text = text
	u.emit(PropertyText, text)
	return nil
}

// SetPitch sets the pitch. See the package documentation for out-of-domain
// handling.
func (u *Utterance) SetPitch(pitch float64) error {
	return u.setProsody(PropertyPitch, &u.pitch, pitch)
}

// SetRate sets the speaking rate.
func (u *Utterance) SetRate(rate float64) error {
	return u.setProsody(PropertyRate, &u.rate, rate)
}

// SetVolume sets the volume.
func (u *Utterance) SetVolume(volume float64) error {
	return u.setProsody(PropertyVolume, &u.volume, volume)
}

// SetVoice selects v, retaining it and releasing the previous voice before
// observers are notified. A nil v clears the voice. Setting the voice that
// is already selected is a no-op.
func (u *Utterance) SetVoice(v Voice) error {
	if u.closed {
		return ErrClosed
	}
	if v != nil {
		if err := u.checkVoice(v); err != nil {
			return err
		}
	}
	if v == u.voice {
		return nil
	}
	ctx := context.Background()
	if v != nil {
		v.Retain()
		u.metrics.RecordVoiceRetain(ctx)
	}
	old := u.voice
	u.voice = v
	if old != nil {
		old.Release()
		u.metrics.RecordVoiceRelease(ctx)
	}
	u.emit(PropertyVoice, v)
	return nil
}

// Subscribe registers fn for changes to props, or to every property when
// props is empty. Observers run in subscription order. The returned cancel
// function is idempotent; cancelling or subscribing from inside an observer
// takes effect from the next change.
func (u *Utterance) Subscribe(fn Observer, props ...Property) (cancel func()) {
	if u.closed {
		return func() {}
	}
	id := u.subscribe(fn, props)
	return func() {
		u.subs = slices.DeleteFunc(slices.Clone(u.subs), func(s subscription) bool {
			return s.id == id
		})
	}
}

// Close releases the voice reference, if any, and drops all observers.
// Further mutators fail with ErrClosed; accessors keep returning the last
// text and prosody. Close is idempotent and always returns nil.
func (u *Utterance) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.subs = nil
	ctx := context.Background()
	if u.voice != nil {
		u.voice.Release()
		u.voice = nil
		u.metrics.RecordVoiceRelease(ctx)
	}
	u.metrics.UtteranceClosed(ctx)
	return nil
}

// LogValue implements [slog.LogValuer].
func (u *Utterance) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("text", u.text),
		slog.Float64("pitch", u.pitch),
		slog.Float64("rate", u.rate),
		slog.Float64("volume", u.volume),
		slog.Bool("voice", u.voice != nil),
	)
}

func (u *Utterance) subscribe(fn Observer, props []Property) uint64 {
	var mask uint8
	for _, p := range props {
		mask |= p.bit()
	}
	u.nextID++
	u.subs = append(u.subs, subscription{id: u.nextID, fn: fn, mask: mask})
	return u.nextID
}

// emit notifies a snapshot of the current subscribers. A nested change of
// the same property supersedes this one: the remaining subscribers only
// see the newer value.
func (u *Utterance) emit(p Property, value any) {
	u.metrics.RecordChange(context.Background(), p.String())
	u.seq[p]++
	gen := u.seq[p]
	subs := u.subs
	for _, s := range subs {
		if u.closed || u.seq[p] != gen {
			return
		}
		if s.mask != 0 && s.mask&p.bit() == 0 {
			continue
		}
		s.fn(u, Change{Property: p, Value: value})
	}
}

func (u *Utterance) setProsody(p Property, field *float64, v float64) error {
	if u.closed {
		return ErrClosed
	}
	v, err := u.checkProsody(p, v)
	if err != nil {
		return err
	}
	if v == *field {
		return nil
	}
	*field = v
	u.emit(p, v)
	return nil
}

// checkProsody applies the policy to v and returns the value to store.
func (u *Utterance) checkProsody(p Property, v float64) (float64, error) {
	c, reason := u.coerce(p, v)
	if reason != "" {
		return 0, u.reject(p, v, reason)
	}
	if c != v {
		u.logger.Debug("utterance: prosody value clamped",
			"property", p.String(), "value", v, "bound", c)
		u.metrics.RecordClamp(context.Background(), p.String())
	}
	return c, nil
}

// coerce is checkProsody without side effects. A non-empty reason means v
// is refused.
func (u *Utterance) coerce(p Property, v float64) (float64, string) {
	r, _ := RangeOf(p)
	switch {
	case math.IsNaN(v):
		return 0, ReasonNaN
	case r.Contains(v):
		return v, ""
	case u.policy == PolicyReject:
		return 0, ReasonOutOfRange
	}
	return r.Clamp(v), ""
}

// checkVoice refuses voices whose dynamic type cannot be compared with ==.
func (u *Utterance) checkVoice(v Voice) error {
	if reflect.TypeOf(v).Comparable() {
		return nil
	}
	return u.reject(PropertyVoice, fmt.Sprintf("%T", v), ReasonUncomparable)
}

func (u *Utterance) reject(p Property, value any, reason string) error {
	u.logger.Debug("utterance: value rejected",
		"property", p.String(), "value", value, "reason", reason)
	u.metrics.RecordRejection(context.Background(), p.String(), reason)
	return &ArgumentError{Property: p, Value: value, Reason: reason}
}
