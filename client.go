package hoopgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/hoopgate/codec"
	"github.com/layer-3/hoopgate/core"
)

// HTTPClient talks to a gate over HTTP
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the gate at baseURL
func NewClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) Init(ctx context.Context, linkID, slug string) (core.PublicChallenge, error) {
	var out core.PublicChallenge
	err := c.post(ctx, "/api/basketball/init", map[string]string{"linkId": linkID, "slug": slug}, &out)
	return out, err
}

func (c *HTTPClient) ValidateStepOne(ctx context.Context, ch core.PublicChallenge, sessionToken string, a core.Attempt) (StepOneResponse, error) {
	blob, err := codec.Encode(a, sessionToken, ch.Nonce)
	if err != nil {
		return StepOneResponse{}, err
	}

	var out StepOneResponse
	err = c.post(ctx, "/api/basketball/validate", map[string]string{
		"challengeId":  ch.ID,
		"sessionToken": sessionToken,
		"v":            blob,
	}, &out)
	return out, err
}

func (c *HTTPClient) ValidateStepTwo(ctx context.Context, ch core.PublicChallenge, linkID string, a core.Attempt) (string, error) {
	blob, err := codec.Encode(a, linkID, ch.Nonce)
	if err != nil {
		return "", err
	}

	var out struct {
		Destination string `json:"destination"`
	}
	err = c.post(ctx, "/api/step2/validate", map[string]string{
		"challengeId": ch.ID,
		"linkId":      linkID,
		"v":           blob,
	}, &out)
	if apiErr, ok := err.(*APIError); ok && apiErr.Message == "Verification failed" {
		return "", ErrMiss
	}
	return out.Destination, err
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
