package ark

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/bryanwahyu/friendlens/internal/domain/analysis"
	"github.com/bryanwahyu/friendlens/internal/infra/ai/prompt"
)

const (
	// DefaultEndpoint is the Volcano Ark responses API.
	DefaultEndpoint = "https://ark.cn-beijing.volces.com/api/v3/responses"
	// DefaultModel used when the config leaves the model empty.
	DefaultModel = "doubao-seed-1.6-thinking"
	// DefaultTimeout bounds the upstream call; a hit maps to the
	// upstream-error path, not a distinct failure mode.
	DefaultTimeout = 120 * time.Second
)

// Client talks to an Ark-style responses endpoint. If apiKey is empty the
// client is created anyway and Analyze fails with ErrNotConfigured.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

func NewClient(apiKey, endpoint, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
	}
}

// Request payload types for the responses API.

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type inputBlock struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type requestPayload struct {
	Model string       `json:"model"`
	Input []inputBlock `json:"input"`
}

// buildRequest assembles the system block and the user block: the fixed
// prompt text first, then one input_image data URI per image in batch order.
func (c *Client) buildRequest(images []domain.Image) requestPayload {
	userContent := make([]contentPart, 0, len(images)+1)
	userContent = append(userContent, contentPart{Type: "input_text", Text: prompt.GetUserPrompt()})
	for _, img := range images {
		contentType := img.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		userContent = append(userContent, contentPart{
			Type:     "input_image",
			ImageURL: fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(img.Data)),
		})
	}
	return requestPayload{
		Model: c.model,
		Input: []inputBlock{
			{Role: "system", Content: []contentPart{{Type: "input_text", Text: prompt.GetSystemPrompt()}}},
			{Role: "user", Content: userContent},
		},
	}
}

// Analyze implements analysis.Client.
func (c *Client) Analyze(ctx context.Context, images []domain.Image) (string, error) {
	if c.apiKey == "" {
		return "", domain.ErrNotConfigured
	}

	body, err := json.Marshal(c.buildRequest(images))
	if err != nil {
		return "", fmt.Errorf("failed to encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.UpstreamError{Status: http.StatusBadGateway, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UpstreamError{Status: http.StatusBadGateway, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	return extractText(raw), nil
}

// Response shape is not contractually fixed. Prefer the consolidated
// output_text field, then the output item list, then fall back to the raw
// serialization so callers always have something to display.

type responseEnvelope struct {
	OutputText *string      `json:"output_text"`
	Output     []outputItem `json:"output"`
}

type outputItem struct {
	Content []outputPart `json:"content"`
}

type outputPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func extractText(raw []byte) string {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return string(raw)
	}

	var buf bytes.Buffer
	if env.OutputText != nil {
		buf.WriteString(*env.OutputText)
	} else {
		for _, item := range env.Output {
			for _, part := range item.Content {
				if part.Type == "output_text" && part.Text != "" {
					buf.WriteString(part.Text)
				}
			}
		}
	}
	if buf.Len() > 0 {
		return buf.String()
	}
	return string(raw)
}
