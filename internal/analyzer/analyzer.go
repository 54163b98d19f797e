// Package analyzer calls the OpenAI chat completions API with image
// input to produce a description and keyword tags for a photo.
package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/ai-image-analyzer/internal/model"
)

// ErrBadAnalysis indicates the model's response could not be parsed as
// the expected {description, tags} structure.
var ErrBadAnalysis = errors.New("analyzer returned malformed analysis")

const (
	defaultBaseURL = "https://api.openai.com/v1"

	maxTokens = 300

	systemPrompt = "You are a world-class visual analyst. Always respond with valid JSON only."

	userPrompt = "You are assisting with an AI-powered photo gallery. " +
		"Describe the image in one concise, vivid sentence (max 35 words). " +
		"Return 5-10 short keyword tags (single or double words) describing the most important concepts. " +
		"Respond strictly as valid JSON with keys: description (string) and tags (array of strings)."
)

// Client is a vision model API client.
type Client struct {
	apiKey      string
	visionModel string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates a Client for the given API key and vision model.
// The timeout bounds each analysis call end to end.
func NewClient(apiKey, visionModel string, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		visionModel: visionModel,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// analysisPayload is the strict response schema. Pointers distinguish
// missing keys from empty values; either missing is a bad analysis.
type analysisPayload struct {
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// Analyze sends the image to the vision model and returns the parsed
// description and tags. Any structural deviation in the model's reply
// is reported as ErrBadAnalysis rather than coerced.
func (c *Client) Analyze(ctx context.Context, data []byte) (model.Analysis, error) {
	zlog.Logger.Info().Str("model", c.visionModel).Msg("starting AI analysis")

	body, err := json.Marshal(chatRequest{
		Model: c.visionModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL(data)}},
			}},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return model.Analysis{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return model.Analysis{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("vision API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Analysis{}, fmt.Errorf("vision API returned status %d: %s", resp.StatusCode, msg)
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return model.Analysis{}, fmt.Errorf("failed to decode vision API response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return model.Analysis{}, fmt.Errorf("%w: response contains no choices", ErrBadAnalysis)
	}

	return parseAnalysis(completion.Choices[0].Message.Content)
}

// parseAnalysis validates the model's reply against the strict schema.
func parseAnalysis(content string) (model.Analysis, error) {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return model.Analysis{}, fmt.Errorf("%w: %v", ErrBadAnalysis, err)
	}

	if payload.Description == nil {
		return model.Analysis{}, fmt.Errorf("%w: missing description", ErrBadAnalysis)
	}
	if payload.Tags == nil {
		return model.Analysis{}, fmt.Errorf("%w: missing tags", ErrBadAnalysis)
	}

	tags := make([]string, 0, len(*payload.Tags))
	for _, tag := range *payload.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	return model.Analysis{
		Description: *payload.Description,
		Tags:        tags,
	}, nil
}

// dataURL encodes the image as a base64 data URL, sniffing the MIME
// type and falling back to JPEG.
func dataURL(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
