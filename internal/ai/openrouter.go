package ai

import (
	"context"
	"net/http"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "openai/gpt-4o"

	openRouterReferer = "https://billbuster.app"
	openRouterTitle   = "BillBuster"
)

// OpenRouter implements the Provider interface using OpenRouter's OpenAI-compatible API
type OpenRouter struct {
	keys KeyStore
	opts options
}

// NewOpenRouter creates a new OpenRouter provider reading its key from keys
func NewOpenRouter(keys KeyStore, opts ...Option) *OpenRouter {
	return &OpenRouter{
		keys: keys,
		opts: newOptions(defaultOpenRouterURL, defaultOpenRouterModel, opts),
	}
}

// Name returns the display name
func (o *OpenRouter) Name() string { return "OpenRouter" }

// AnalyzeBill analyzes a bill photograph
func (o *OpenRouter) AnalyzeBill(ctx context.Context, imageBase64 string) (*BillAnalysisResponse, error) {
	var out BillAnalysisResponse
	if err := o.callAPI(ctx, visionMessages(billAnalysisPrompt, imageBase64), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateScript writes a negotiation script for the given findings
func (o *OpenRouter) GenerateScript(ctx context.Context, providerName string, findings []Finding, totalSavings int) (*ScriptGenerationResponse, error) {
	prompt, err := renderScriptPrompt(providerName, findings, totalSavings)
	if err != nil {
		return nil, err
	}
	var out ScriptGenerationResponse
	if err := o.callAPI(ctx, textMessages(prompt), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OpenRouter) callAPI(ctx context.Context, messages []chatMessage, out any) error {
	name := ProviderOpenRouter.DisplayName()
	apiKey, err := lookupKey(o.keys, ProviderOpenRouter)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.timeout)
	defer cancel()

	// No response_format here: not every routed model honours it
	req, err := newJSONRequest(ctx, o.opts.baseURL+"/chat/completions", chatRequest{
		Model:     o.opts.model,
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
	})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterTitle)

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
func (o *OpenRouter) ValidateKey(ctx context.Context, apiKey string) KeyCheck {
	return validateBearer(ctx, o.opts, "/models", apiKey, http.Header{
		"HTTP-Referer": {openRouterReferer},
		"X-Title":      {openRouterTitle},
	})
}
