package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/idphoto/pkg/types"
)

// SegmentPrompt asks the vision model for a subject outline it can express
// without pixel access: a closed polygon plus a tight bounding box, all
// normalized to [0,1].
const SegmentPrompt = `You are a person-segmentation assistant for ID photos.

Return JSON only:
{
  "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
  "outline": [{"x": 0.0, "y": 0.0}],
  "confidence": 0.0
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- "outline" is a closed polygon of 12-32 points tracing the person's head,
  hair and shoulders, clockwise, starting at the top of the head.
- "box" is the tight bounding box of the outline.
- If no person is visible, return:
  {"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5},"outline":[],"confidence":0.0}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Base URL only; paths like /api/chat are added by the SDK.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// SimpleQuery performs a simple query with an image without expecting JSON
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %v", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %v", err)
	}

	return responseContent, nil
}

// SegmentSubject asks the vision model to trace the photographic subject and
// returns the parsed outline result.
func (c *Client) SegmentSubject(ctx context.Context, model, imgB64 string) (*types.SegmentResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %v", err)
	}

	streamFalse := false
	options := map[string]any{}

	// Low temperature keeps the outline geometry stable between calls.
	options["temperature"] = 0.1
	options["top_p"] = 0.8

	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: SegmentPrompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &streamFalse,
		Options: options,
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %v", err)
	}

	if responseContent == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	return parseSegmentResult(responseContent)
}

// parseSegmentResult parses the JSON response from the vision model. A
// response the model mangled yields a zero-confidence result rather than an
// error; the adapter treats zero confidence as unavailable.
func parseSegmentResult(raw string) (*types.SegmentResult, error) {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return &types.SegmentResult{
			Box:        types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			Confidence: 0,
		}, nil
	}

	var result types.SegmentResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start >= 0 && end > start {
			if err2 := json.Unmarshal([]byte(raw[start:end+1]), &result); err2 != nil {
				return &types.SegmentResult{
					Box:        types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
					Confidence: 0,
				}, nil
			}
		} else {
			return &types.SegmentResult{
				Box:        types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
				Confidence: 0,
			}, nil
		}
	}

	result.Box = result.Box.Clamped()
	for i, p := range result.Outline {
		result.Outline[i] = types.Point{
			X: types.Clamp(p.X, 0, 1),
			Y: types.Clamp(p.Y, 0, 1),
		}
	}
	return &result, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
