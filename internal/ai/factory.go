package ai

import (
	"fmt"
	"strings"
)

// ProviderType identifies an AI backend in settings
type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderGemini     ProviderType = "gemini"
)

// ProviderTypes lists every supported backend
var ProviderTypes = []ProviderType{ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// DisplayName is the vendor name used in user-facing messages
func (t ProviderType) DisplayName() string {
	switch t {
	case ProviderOpenRouter:
		return "OpenRouter"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(t)
	}
}

// ParseProviderType validates a provider identifier
func ParseProviderType(s string) (ProviderType, error) {
	t := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ProviderTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown provider: %s", s)
}

// New constructs the provider for t. Options apply to whichever backend is chosen.
func New(t ProviderType, keys KeyStore, opts ...Option) (Provider, error) {
	switch t {
	case ProviderOpenRouter:
		return NewOpenRouter(keys, opts...), nil
	case ProviderOpenAI:
		return NewOpenAI(keys, opts...), nil
	case ProviderAnthropic:
		return NewAnthropic(keys, opts...), nil
	case ProviderGemini:
		return NewGemini(keys, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", t)
	}
}

// Factory builds providers with per-type options, e.g. configured model names
type Factory struct {
	Keys    KeyStore
	Options map[ProviderType][]Option
}

// Provider returns the backend for t
func (f *Factory) Provider(t ProviderType) (Provider, error) {
	return New(t, f.Keys, f.Options[t]...)
}
