// Package config provides the configuration schema and loader for spiel:
// logging, the prosody validation policy, declared voices and a script of
// utterances to build.
package config

import (
	"log/slog"

	"github.com/MrWong99/spiel/pkg/utterance"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a [slog.Level]. Unknown or empty levels map to Info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// Policy selects out-of-domain prosody handling: "clamp" (default) or
	// "reject".
	Policy string `yaml:"policy"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `yaml:"metrics_addr"`

	// Voices declares the voices utterances may select by ID.
	Voices []VoiceConfig `yaml:"voices"`

	// Utterances is the script of utterances to build.
	Utterances []UtteranceConfig `yaml:"utterances"`
}

// VoiceConfig declares one voice.
type VoiceConfig struct {
	// ID is the identifier utterances refer to. Required and unique.
	ID string `yaml:"id"`

	// Name is the human-readable voice name.
	Name string `yaml:"name"`

	// Provider names the synthesis backend owning the voice.
	Provider string `yaml:"provider"`

	// Languages lists BCP 47 tags the voice speaks.
	Languages []string `yaml:"languages"`

	// Metadata holds free-form provider attributes.
	Metadata map[string]string `yaml:"metadata"`
}

// UtteranceConfig is an utterance description plus edits applied in order
// after it is built.
type UtteranceConfig struct {
	utterance.Spec `yaml:",inline"`

	// Edits are applied one by one; text may be omitted in each.
	Edits []utterance.Spec `yaml:"edits"`
}

// ProsodyPolicy returns the parsed [Config.Policy]. Validate has already
// rejected unknown values for configs returned by Load.
func (c *Config) ProsodyPolicy() utterance.Policy {
	p, err := utterance.ParsePolicy(c.Policy)
	if err != nil {
		return utterance.PolicyClamp
	}
	return p
}
