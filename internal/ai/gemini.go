package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-pro"

// Gemini implements the Provider interface using Google Gemini
type Gemini struct {
	keys KeyStore
	opts options
}

// NewGemini creates a new Gemini provider reading its key from keys.
// WithBaseURL maps to the client endpoint; WithHTTPClient is not used.
func NewGemini(keys KeyStore, opts ...Option) *Gemini {
	return &Gemini{
		keys: keys,
		opts: newOptions("", defaultGeminiModel, opts),
	}
}

// Name returns the display name
func (g *Gemini) Name() string { return "Google Gemini" }

func (g *Gemini) newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if g.opts.baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(g.opts.baseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return client, nil
}

// AnalyzeBill analyzes a bill photograph
func (g *Gemini) AnalyzeBill(ctx context.Context, imageBase64 string) (*BillAnalysisResponse, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	// genai.ImageData expects just the format suffix, not the full MIME type
	var out BillAnalysisResponse
	if err := g.generate(ctx, &out, genai.ImageData("jpeg", imageData), genai.Text(billAnalysisPrompt+jsonOnlySuffix)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateScript writes a negotiation script for the given findings
func (g *Gemini) GenerateScript(ctx context.Context, providerName string, findings []Finding, totalSavings int) (*ScriptGenerationResponse, error) {
	prompt, err := renderScriptPrompt(providerName, findings, totalSavings)
	if err != nil {
		return nil, err
	}
	var out ScriptGenerationResponse
	if err := g.generate(ctx, &out, genai.Text(prompt+jsonOnlySuffix)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gemini) generate(ctx context.Context, out any, parts ...genai.Part) error {
	name := ProviderGemini.DisplayName()
	apiKey, err := lookupKey(g.keys, ProviderGemini)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.timeout)
	defer cancel()

	client, err := g.newClient(ctx, apiKey)
	if err != nil {
		return err
	}
	defer client.Close()

	model := client.GenerativeModel(g.opts.model)
	model.SetMaxOutputTokens(defaultMaxTokens)

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		if isTimeout(ctx, err) {
			return &TimeoutError{Provider: name}
		}
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPCode() > 0 {
			return &RemoteError{Provider: name, StatusCode: apiErr.HTTPCode(), Body: apiErr.Error()}
		}
		return fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return &EmptyResponseError{Provider: name}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	if responseText.Len() == 0 {
		return &EmptyResponseError{Provider: name}
	}

	return decodeCompletion(name, responseText.String(), out)
}

// ValidateKey lists models with the candidate key
func (g *Gemini) ValidateKey(ctx context.Context, apiKey string) KeyCheck {
	if apiKey == "" {
		return KeyCheck{OK: false, Message: "No key provided"}
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.validationTimeout)
	defer cancel()

	client, err := g.newClient(ctx, apiKey)
	if err != nil {
		return KeyCheck{OK: false, Message: "Connection failed"}
	}
	defer client.Close()

	_, err = client.ListModels(ctx).Next()
	if err == nil || errors.Is(err, iterator.Done) {
		return KeyCheck{OK: true, Message: "Key is valid"}
	}
	if isTimeout(ctx, err) {
		return KeyCheck{OK: false, Message: "Timed out"}
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Reason() == "API_KEY_INVALID" || apiErr.HTTPCode() == 401 {
			return KeyCheck{OK: false, Message: "Invalid key"}
		}
		if apiErr.HTTPCode() > 0 {
			return KeyCheck{OK: false, Message: fmt.Sprintf("Error %d", apiErr.HTTPCode())}
		}
	}
	return KeyCheck{OK: false, Message: "Connection failed"}
}
