package voice

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/spiel/pkg/utterance"
)

var _ utterance.VoiceResolver = (*Set)(nil)

// ErrDuplicateID is returned by [Set.Add] when a voice with the same ID is
// already present.
var ErrDuplicateID = errors.New("voice: duplicate id")

// Set is an ID-keyed collection of voices. It owns one reference to every
// voice it holds and releases them on [Set.Close]. Safe for concurrent use.
type Set struct {
	mu     sync.RWMutex
	voices map[string]*Voice
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{voices: make(map[string]*Voice)}
}

// Add transfers the caller's reference to v into the set.
func (s *Set) Add(v *Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.voices[v.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, v.ID)
	}
	s.voices[v.ID] = v
	return nil
}

// Get returns a borrowed voice. Callers that keep it must Retain it.
func (s *Set) Get(id string) (*Voice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voices[id]
	return v, ok
}

// ResolveVoice implements [utterance.VoiceResolver]. The voice is borrowed;
// the utterance selecting it takes its own reference.
func (s *Set) ResolveVoice(id string) (utterance.Voice, bool) {
	v, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return v, true
}

// IDs returns the sorted voice IDs.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.voices))
	for id := range s.voices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of voices in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.voices)
}

// Close releases the set's reference to every voice and empties it.
// Voices still retained elsewhere stay alive.
func (s *Set) Close() {
	s.mu.Lock()
	voices := s.voices
	s.voices = make(map[string]*Voice)
	s.mu.Unlock()

	for _, v := range voices {
		v.Release()
	}
}
