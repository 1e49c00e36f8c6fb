package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-sonnet-4-5-20250929"
	defaultAnthropicVersion = "2023-06-01"
)

// Anthropic implements the Provider interface using the Anthropic Messages API
type Anthropic struct {
	keys KeyStore
	opts options
}

// NewAnthropic creates a new Anthropic provider reading its key from keys
func NewAnthropic(keys KeyStore, opts ...Option) *Anthropic {
	return &Anthropic{
		keys: keys,
		opts: newOptions(defaultAnthropicURL, defaultAnthropicModel, opts),
	}
}

// anthropicRequest is the Messages API request body
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

// anthropicMessage content is either a string or a slice of anthropicBlock
type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// anthropicResponse is the subset of the Messages API response we read
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Name returns the display name
func (a *Anthropic) Name() string { return "Anthropic Claude" }

// AnalyzeBill analyzes a bill photograph
func (a *Anthropic) AnalyzeBill(ctx context.Context, imageBase64 string) (*BillAnalysisResponse, error) {
	content := []anthropicBlock{
		{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: "image/jpeg",
				Data:      imageBase64,
			},
		},
		{Type: "text", Text: billAnalysisPrompt + jsonOnlySuffix},
	}

	var out BillAnalysisResponse
	if err := a.complete(ctx, content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateScript writes a negotiation script for the given findings
func (a *Anthropic) GenerateScript(ctx context.Context, providerName string, findings []Finding, totalSavings int) (*ScriptGenerationResponse, error) {
	prompt, err := renderScriptPrompt(providerName, findings, totalSavings)
	if err != nil {
		return nil, err
	}
	var out ScriptGenerationResponse
	if err := a.complete(ctx, prompt+jsonOnlySuffix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Anthropic) complete(ctx context.Context, content any, out any) error {
	name := ProviderAnthropic.DisplayName()
	apiKey, err := lookupKey(a.keys, ProviderAnthropic)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.timeout)
	defer cancel()

	req, err := a.newRequest(ctx, apiKey, anthropicRequest{
		Model:     a.opts.model,
		MaxTokens: defaultMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		return err
	}

	body, err := send(ctx, a.opts.client, req, name)
	if err != nil {
		return err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding %s response: %w", name, err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return &EmptyResponseError{Provider: name}
	}

	return decodeCompletion(name, resp.Content[0].Text, out)
}

func (a *Anthropic) newRequest(ctx context.Context, apiKey string, body anthropicRequest) (*http.Request, error) {
	req, err := newJSONRequest(ctx, a.opts.baseURL+"/messages", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", defaultAnthropicVersion)
	return req, nil
}

// ValidateKey sends a one-token message with the candidate key
func (a *Anthropic) ValidateKey(ctx context.Context, apiKey string) KeyCheck {
	if apiKey == "" {
		return KeyCheck{OK: false, Message: "No key provided"}
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.validationTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, apiKey, anthropicRequest{
		Model:     a.opts.model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		return KeyCheck{OK: false, Message: "Connection failed"}
	}
	return checkKey(ctx, a.opts.client, req)
}
