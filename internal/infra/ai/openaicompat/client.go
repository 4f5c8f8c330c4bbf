package openaicompat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/friendlens/internal/domain/analysis"
	"github.com/bryanwahyu/friendlens/internal/infra/ai/prompt"
)

// Client runs the analysis through an OpenAI-compatible chat completions
// endpoint with vision parts. Alternative backend to the ark client for
// deployments that front an OpenAI-style gateway instead.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient builds the client; with an empty apiKey it stays unconfigured
// and Analyze returns ErrNotConfigured.
func NewClient(apiKey, baseURL, model string) *Client {
	var c *openai.Client
	if apiKey != "" {
		config := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			config.BaseURL = baseURL
		}
		c = openai.NewClientWithConfig(config)
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &Client{client: c, model: model}
}

// Analyze implements analysis.Client.
func (c *Client) Analyze(ctx context.Context, images []domain.Image) (string, error) {
	if c.client == nil {
		return "", domain.ErrNotConfigured
	}

	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt.GetUserPrompt(),
	})
	for _, img := range images {
		contentType := img.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(img.Data)),
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", upstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.UpstreamError{Status: http.StatusBadGateway, Body: "empty response from upstream"}
	}
	return resp.Choices[0].Message.Content, nil
}

// upstreamError translates an SDK failure into an UpstreamError. APIError
// statuses below 100 (the SDK uses 0 for non-HTTP failures) become 502,
// since they have no HTTP status worth forwarding.
func upstreamError(err error) *domain.UpstreamError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		if status < 100 {
			status = http.StatusBadGateway
		}
		return &domain.UpstreamError{Status: status, Body: apiErr.Message}
	}
	return &domain.UpstreamError{Status: http.StatusBadGateway, Body: err.Error()}
}
