package ai

import (
	"encoding/json"
	"fmt"
)

// chatRequest is the OpenAI chat completions request body, also spoken by OpenRouter
type chatRequest struct {
	Model          string          `json:"model"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens"`
	Messages       []chatMessage   `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatMessage content is either a string or a slice of chatPart
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

// chatResponse is the subset of the chat completions response we read
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// visionMessages puts the prompt first and the bill photograph second, as a data URL
func visionMessages(prompt, imageBase64 string) []chatMessage {
	return []chatMessage{
		{
			Role: "user",
			Content: []chatPart{
				{Type: "text", Text: prompt},
				{
					Type: "image_url",
					ImageURL: &chatImageURL{
						URL:    "data:image/jpeg;base64," + imageBase64,
						Detail: "high",
					},
				},
			},
		},
	}
}

func textMessages(prompt string) []chatMessage {
	return []chatMessage{{Role: "user", Content: prompt}}
}

// chatCompletionText pulls choices[0].message.content out of a response body
func chatCompletionText(provider string, body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", provider, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &EmptyResponseError{Provider: provider}
	}
	return resp.Choices[0].Message.Content, nil
}
