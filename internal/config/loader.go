package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/spiel/pkg/utterance"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	policy, err := utterance.ParsePolicy(cfg.Policy)
	if err != nil {
		errs = append(errs, fmt.Errorf("policy %q is invalid; valid values: clamp, reject", cfg.Policy))
	}

	voiceIDs := make(map[string]int, len(cfg.Voices))
	for i, v := range cfg.Voices {
		prefix := fmt.Sprintf("voices[%d]", i)
		if v.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
			continue
		}
		if prev, ok := voiceIDs[v.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of voices[%d]", prefix, v.ID, prev))
			continue
		}
		voiceIDs[v.ID] = i
	}

	for i, u := range cfg.Utterances {
		prefix := fmt.Sprintf("utterances[%d]", i)
		if u.Text == nil {
			errs = append(errs, fmt.Errorf("%s.text is required", prefix))
		}
		errs = append(errs, validateSpec(prefix, u.Spec, voiceIDs, policy)...)
		for j, e := range u.Edits {
			errs = append(errs, validateSpec(fmt.Sprintf("%s.edits[%d]", prefix, j), e, voiceIDs, policy)...)
		}
	}

	if len(cfg.Utterances) == 0 {
		slog.Warn("config declares no utterances; nothing will be built")
	}

	return errors.Join(errs...)
}

func validateSpec(prefix string, s utterance.Spec, voiceIDs map[string]int, policy utterance.Policy) []error {
	var errs []error
	if s.Voice != "" {
		if _, ok := voiceIDs[s.Voice]; !ok {
			errs = append(errs, fmt.Errorf("%s.voice %q is not declared in voices", prefix, s.Voice))
		}
	}
	prosody := []struct {
		p   utterance.Property
		val *float64
	}{
		{utterance.PropertyPitch, s.Pitch},
		{utterance.PropertyRate, s.Rate},
		{utterance.PropertyVolume, s.Volume},
	}
	for _, f := range prosody {
		if f.val == nil {
			continue
		}
		r, _ := utterance.RangeOf(f.p)
		switch {
		case math.IsNaN(*f.val):
			errs = append(errs, fmt.Errorf("%s.%s is not a number", prefix, f.p))
		case policy == utterance.PolicyReject && !r.Contains(*f.val):
			errs = append(errs, fmt.Errorf("%s.%s %g is out of range %s", prefix, f.p, *f.val, r))
		case !r.Contains(*f.val):
			slog.Warn("prosody value will be clamped", "field", prefix+"."+f.p.String(), "value", *f.val, "range", r.String())
		}
	}
	return errs
}
