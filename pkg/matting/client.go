// Package matting talks to a dedicated alpha-matting server over HTTP. The
// server receives a base64 image and answers with a grayscale PNG matte of
// the same dimensions, which makes it the highest-quality segmentation
// backend when one is deployed.
package matting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/idphoto/pkg/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// segmentRequest is the wire format of the matting endpoint.
type segmentRequest struct {
	Model string `json:"model,omitempty"`
	Image string `json:"image"`
}

type segmentResponse struct {
	Mask       string  `json:"mask"`
	Inverted   bool    `json:"inverted,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:7878"
	}

	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// SegmentSubject submits the image and decodes the returned matte.
func (c *Client) SegmentSubject(ctx context.Context, model, imgB64 string) (*types.SegmentResult, error) {
	req := segmentRequest{Model: model, Image: imgB64}

	respBody, err := c.sendRequest(ctx, "/v1/segment", req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}

	var resp segmentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("matting server error: %s", resp.Error)
	}
	if resp.Mask == "" {
		return nil, fmt.Errorf("empty mask in response")
	}

	maskPNG, err := base64.StdEncoding.DecodeString(resp.Mask)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask: %v", err)
	}

	conf := resp.Confidence
	if conf == 0 {
		// Servers that omit confidence are trusted; a real zero would have
		// come back as an error.
		conf = 1.0
	}

	return &types.SegmentResult{
		MaskPNG:    maskPNG,
		Confidence: conf,
		Inverted:   resp.Inverted,
	}, nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
