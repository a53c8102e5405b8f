// Package mock provides test doubles for utterance observers and voices.
//
// Use Recorder to capture change notifications in order, and Voice to count
// the references an utterance takes and drops:
//
//	rec := &mock.Recorder{}
//	v := &mock.Voice{ID: "v1"}
//	u, _ := utterance.New("hi", utterance.WithObserver(rec.Observe))
//	_ = u.SetVoice(v)
//	// rec.Changes() has text then voice; v.Retains() == 1
package mock

import (
	"sync"

	"github.com/MrWong99/spiel/pkg/utterance"
)

// Observation records a single notification together with the state the
// observer could read at that moment.
type Observation struct {
	// Change is the notification as delivered.
	Change utterance.Change

	// Seen is the utterance state read from inside the observer.
	Seen utterance.Params
}

// Recorder is an utterance.Observer that records every call.
type Recorder struct {
	mu           sync.Mutex
	observations []Observation

	// OnChange, if set, runs after the notification is recorded.
	OnChange func(u *utterance.Utterance, c utterance.Change)
}

// Observe records c and the state of u. Its signature matches
// utterance.Observer.
func (r *Recorder) Observe(u *utterance.Utterance, c utterance.Change) {
	r.mu.Lock()
	r.observations = append(r.observations, Observation{Change: c, Seen: u.Snapshot()})
	fn := r.OnChange
	r.mu.Unlock()
	if fn != nil {
		fn(u, c)
	}
}

// Observations returns a copy of everything recorded so far.
func (r *Recorder) Observations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Observation, len(r.observations))
	copy(out, r.observations)
	return out
}

// Changes returns the recorded notifications in delivery order.
func (r *Recorder) Changes() []utterance.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]utterance.Change, len(r.observations))
	for i, o := range r.observations {
		out[i] = o.Change
	}
	return out
}

// Properties returns the property of each recorded notification in order.
func (r *Recorder) Properties() []utterance.Property {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]utterance.Property, len(r.observations))
	for i, o := range r.observations {
		out[i] = o.Change.Property
	}
	return out
}

// Reset clears all recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = nil
}

// Voice is a reference-counting utterance.Voice that only counts calls.
// Use a pointer; the zero value is ready to use.
type Voice struct {
	// ID identifies the voice in test output.
	ID string

	mu       sync.Mutex
	retains  int
	releases int
}

// Retain records a retain call.
func (v *Voice) Retain() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.retains++
}

// Release records a release call.
func (v *Voice) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.releases++
}

// Retains returns the number of Retain calls.
func (v *Voice) Retains() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.retains
}

// Releases returns the number of Release calls.
func (v *Voice) Releases() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.releases
}

// Held returns Retains minus Releases.
func (v *Voice) Held() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.retains - v.releases
}

// Resolver is a utterance.VoiceResolver over a fixed map.
type Resolver map[string]*Voice

// ResolveVoice returns the voice registered under id.
func (r Resolver) ResolveVoice(id string) (utterance.Voice, bool) {
	v, ok := r[id]
	if !ok {
		return nil, false
	}
	return v, true
}

var (
	_ utterance.Voice         = (*Voice)(nil)
	_ utterance.VoiceResolver = Resolver(nil)
	_ utterance.Observer      = (*Recorder)(nil).Observe
)
