package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/spiel/internal/config"
	"github.com/MrWong99/spiel/internal/observe"
	"github.com/MrWong99/spiel/pkg/utterance"
	"github.com/MrWong99/spiel/pkg/voice"
)

// result is one built utterance as printed to stdout.
type result struct {
	utterance.Spec `yaml:",inline"`

	// Changes is the number of change notifications the utterance emitted.
	Changes int `yaml:"changes"`
}

// loadVoices builds a voice set from the declared voices. The set owns one
// reference to each voice.
func loadVoices(cfgs []config.VoiceConfig) (*voice.Set, error) {
	set := voice.NewSet()
	for _, vc := range cfgs {
		v := voice.New(vc.ID, vc.Name, vc.Provider,
			voice.WithLanguages(vc.Languages...),
			voice.WithMetadata(vc.Metadata),
			voice.WithOnFinalize(func(v *voice.Voice) {
				slog.Debug("voice finalized", "voice", v.String())
			}),
		)
		if err := set.Add(v); err != nil {
			set.Close()
			return nil, err
		}
	}
	return set, nil
}

// runScript builds every scripted utterance, applies its edits, writes the
// resulting states to out as YAML and releases everything it created.
func runScript(ctx context.Context, cfg *config.Config, m *observe.Metrics, out io.Writer) error {
	set, err := loadVoices(cfg.Voices)
	if err != nil {
		return fmt.Errorf("load voices: %w", err)
	}
	defer set.Close()

	results := make([]result, 0, len(cfg.Utterances))
	for i, uc := range cfg.Utterances {
		res, err := buildOne(ctx, i, uc, cfg.ProsodyPolicy(), set, m)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return enc.Close()
}

func buildOne(ctx context.Context, i int, uc config.UtteranceConfig, policy utterance.Policy, voices utterance.VoiceResolver, m *observe.Metrics) (result, error) {
	ctx, span := observe.StartUtteranceSpan(ctx, i, policy.String())
	defer span.End()
	log := observe.Logger(ctx).With("utterance", i)

	changes := 0
	u, err := utterance.FromSpec(uc.Spec, voices,
		utterance.WithPolicy(policy),
		utterance.WithLogger(log),
		utterance.WithMetrics(m),
		utterance.WithObserver(func(_ *utterance.Utterance, c utterance.Change) {
			changes++
			observe.ChangeEvent(ctx, c.Property.String(), describe(c.Value))
			log.Info("utterance changed", "property", c.Property.String(), "value", describe(c.Value))
		}),
	)
	if err != nil {
		observe.Fail(span, err)
		return result{}, fmt.Errorf("utterances[%d]: %w", i, err)
	}
	defer u.Close()

	for j, edit := range uc.Edits {
		if err := edit.Apply(u, voices); err != nil {
			observe.Fail(span, err)
			return result{}, fmt.Errorf("utterances[%d].edits[%d]: %w", i, j, err)
		}
	}

	log.Debug("utterance built", "state", u)
	return result{Spec: utterance.SpecOf(u, voiceID(u.Voice())), Changes: changes}, nil
}

// describe renders a change value for logging.
func describe(v any) any {
	switch v := v.(type) {
	case nil:
		return "none"
	case *voice.Voice:
		return v.String()
	default:
		return v
	}
}

func voiceID(v utterance.Voice) string {
	if vv, ok := v.(*voice.Voice); ok {
		return vv.ID
	}
	return ""
}
