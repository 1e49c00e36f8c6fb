package ai

import (
	"context"
	"net/http"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o"
)

// OpenAI implements the Provider interface using the OpenAI chat completions API
type OpenAI struct {
	keys KeyStore
	opts options
}

// NewOpenAI creates a new OpenAI provider reading its key from keys
func NewOpenAI(keys KeyStore, opts ...Option) *OpenAI {
	return &OpenAI{
		keys: keys,
		opts: newOptions(defaultOpenAIURL, defaultOpenAIModel, opts),
	}
}

// Name returns the display name
func (o *OpenAI) Name() string { return "OpenAI GPT-4o" }

// AnalyzeBill analyzes a bill photograph
func (o *OpenAI) AnalyzeBill(ctx context.Context, imageBase64 string) (*BillAnalysisResponse, error) {
	var out BillAnalysisResponse
	if err := o.complete(ctx, visionMessages(billAnalysisPrompt, imageBase64), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateScript writes a negotiation script for the given findings
func (o *OpenAI) GenerateScript(ctx context.Context, providerName string, findings []Finding, totalSavings int) (*ScriptGenerationResponse, error) {
	prompt, err := renderScriptPrompt(providerName, findings, totalSavings)
	if err != nil {
		return nil, err
	}
	var out ScriptGenerationResponse
	if err := o.complete(ctx, textMessages(prompt), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OpenAI) complete(ctx context.Context, messages []chatMessage, out any) error {
	name := ProviderOpenAI.DisplayName()
	apiKey, err := lookupKey(o.keys, ProviderOpenAI)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.timeout)
	defer cancel()

	req, err := newJSONRequest(ctx, o.opts.baseURL+"/chat/completions", chatRequest{
		Model:          o.opts.model,
		ResponseFormat: &responseFormat{Type: "json_object"},
		MaxTokens:      defaultMaxTokens,
		Messages:       messages,
	})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	body, err := send(ctx, o.opts.client, req, name)
	if err != nil {
		return err
	}
	text, err := chatCompletionText(name, body)
	if err != nil {
		return err
	}
	return decodeCompletion(name, text, out)
}

// ValidateKey lists models with the candidate key
func (o *OpenAI) ValidateKey(ctx context.Context, apiKey string) KeyCheck {
	return validateBearer(ctx, o.opts, "/models", apiKey, nil)
}

// validateBearer issues GET {base}{path} with a bearer token
func validateBearer(ctx context.Context, opts options, path, apiKey string, header http.Header) KeyCheck {
	if apiKey == "" {
		return KeyCheck{OK: false, Message: "No key provided"}
	}
	ctx, cancel := context.WithTimeout(ctx, opts.validationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.baseURL+path, nil)
	if err != nil {
		return KeyCheck{OK: false, Message: "Connection failed"}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return checkKey(ctx, opts.client, req)
}
