package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	requestTimeout    = 60 * time.Second
	validationTimeout = 10 * time.Second
	defaultMaxTokens  = 4096
)

// options holds the settings shared by every provider
type options struct {
	baseURL           string
	model             string
	client            *http.Client
	timeout           time.Duration
	validationTimeout time.Duration
}

// Option configures a provider
type Option func(*options)

// WithBaseURL overrides the vendor API base URL
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel overrides the model name sent to the vendor
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client (useful for testing)
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithTimeout overrides the timeout applied to analysis and script requests
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithValidationTimeout overrides the timeout applied to key validation pings
func WithValidationTimeout(d time.Duration) Option {
	return func(o *options) { o.validationTimeout = d }
}

func newOptions(baseURL, model string, opts []Option) options {
	o := options{
		baseURL:           baseURL,
		model:             model,
		client:            &http.Client{},
		timeout:           requestTimeout,
		validationTimeout: validationTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// lookupKey fetches the provider key and turns absence into a ConfigurationError
func lookupKey(keys KeyStore, t ProviderType) (string, error) {
	key, err := keys.ProviderKey(string(t))
	if err != nil {
		return "", fmt.Errorf("reading %s api key: %w", t, err)
	}
	if key == "" {
		return "", &ConfigurationError{Provider: t.DisplayName()}
	}
	return key, nil
}

// newJSONRequest builds a POST carrying body as JSON
func newJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// send executes req and returns the body of a 2xx response. Timeouts become
// TimeoutError and other statuses become RemoteError with the raw body.
func send(ctx context.Context, client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{Provider: provider}
		}
		return nil, fmt.Errorf("calling %s API: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{Provider: provider}
		}
		return nil, fmt.Errorf("reading %s response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// checkKey turns a validation ping outcome into a KeyCheck
func checkKey(ctx context.Context, client *http.Client, req *http.Request) KeyCheck {
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return KeyCheck{OK: false, Message: "Timed out"}
		}
		return KeyCheck{OK: false, Message: "Connection failed"}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return KeyCheck{OK: true, Message: "Key is valid"}
	case resp.StatusCode == http.StatusUnauthorized:
		return KeyCheck{OK: false, Message: "Invalid key"}
	default:
		return KeyCheck{OK: false, Message: fmt.Sprintf("Error %d", resp.StatusCode)}
	}
}
