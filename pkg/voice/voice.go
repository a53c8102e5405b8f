// Package voice provides a reference-counted voice descriptor.
//
// A [Voice] identifies a synthesis voice. It is shared between whoever
// produced it (a catalogue, a config file) and every utterance that selects
// it, so its lifetime is that of the longest holder: each holder calls
// [Voice.Retain] when it takes a reference and [Voice.Release] when it drops
// it. The creator owns the initial reference.
//
// Reference counting is atomic; a Voice may be retained and released from
// any goroutine. The descriptor fields must not be modified after the voice
// has been shared.
package voice

import (
	"fmt"
	"sync/atomic"
)

// Voice is a reference-counted voice descriptor.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider names the synthesis backend that owns this voice.
	Provider string

	// Languages lists BCP 47 language tags the voice can speak.
	Languages []string

	// Metadata holds provider-specific attributes (gender, age, accent...).
	Metadata map[string]string

	refs       atomic.Int64
	onFinalize func(*Voice)
}

// Option configures a [Voice] at construction.
type Option func(*Voice)

// WithOnFinalize registers fn to run once, when the last reference is
// released.
func WithOnFinalize(fn func(*Voice)) Option {
	return func(v *Voice) {
		v.onFinalize = fn
	}
}

// WithLanguages sets the languages the voice speaks.
func WithLanguages(langs ...string) Option {
	return func(v *Voice) {
		v.Languages = append([]string(nil), langs...)
	}
}

// WithMetadata sets provider-specific attributes.
func WithMetadata(md map[string]string) Option {
	return func(v *Voice) {
		v.Metadata = md
	}
}

// New returns a voice holding one reference, owned by the caller.
func New(id, name, provider string, opts ...Option) *Voice {
	v := &Voice{ID: id, Name: name, Provider: provider}
	for _, opt := range opts {
		opt(v)
	}
	v.refs.Store(1)
	return v
}

// Retain takes an additional strong reference. Retaining a finalized voice
// panics.
func (v *Voice) Retain() {
	if v.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("voice: retain of finalized voice %q", v.ID))
	}
}

// Release drops one strong reference. The finalize hook runs when the count
// reaches zero. Releasing more references than were taken panics.
func (v *Voice) Release() {
	n := v.refs.Add(-1)
	switch {
	case n == 0:
		if v.onFinalize != nil {
			v.onFinalize(v)
		}
	case n < 0:
		panic(fmt.Sprintf("voice: release of finalized voice %q", v.ID))
	}
}

// Refs returns the current number of strong references.
func (v *Voice) Refs() int64 {
	return v.refs.Load()
}

// Alive reports whether at least one reference is held.
func (v *Voice) Alive() bool {
	return v.refs.Load() > 0
}

// String returns "name (id)".
func (v *Voice) String() string {
	if v.Name == "" {
		return v.ID
	}
	return v.Name + " (" + v.ID + ")"
}
