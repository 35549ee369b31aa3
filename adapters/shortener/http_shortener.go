package shortener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

const defaultTimeout = 10 * time.Second

// HTTPShortener calls a shortener exposing GET /api?api=<token>&url=<long>
type HTTPShortener struct {
	client   *http.Client
	endpoint string
	apiToken string
}

type response struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      string `json:"message"`
}

// NewHTTPShortener targets https://<site>/api; site may also carry a scheme
func NewHTTPShortener(client *http.Client, apiToken, site string) *HTTPShortener {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	endpoint := strings.TrimRight(site, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return &HTTPShortener{
		client:   client,
		endpoint: endpoint + "/api",
		apiToken: apiToken,
	}
}

// Shorten returns the short URL, or longURL itself for local addresses
func (s *HTTPShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	if isLocal(longURL) {
		return longURL, nil
	}

	q := url.Values{}
	q.Set("api", s.apiToken)
	q.Set("url", longURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrShortenerFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrShortenerFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrShortenerFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", core.ErrShortenerFailed, resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrShortenerFailed, err)
	}
	if out.ShortenedURL == "" {
		msg := out.Message
		if msg == "" {
			msg = "empty shortened url"
		}
		return "", fmt.Errorf("%w: %s", core.ErrShortenerFailed, msg)
	}

	return out.ShortenedURL, nil
}

func isLocal(u string) bool {
	return strings.Contains(u, "localhost") || strings.Contains(u, "127.0.0.1")
}

// Fallback returns the long URL whenever the wrapped shortener fails
type Fallback struct {
	next ports.Shortener
}

func NewFallback(next ports.Shortener) ports.Shortener {
	return &Fallback{next: next}
}

func (f *Fallback) Shorten(ctx context.Context, longURL string) (string, error) {
	short, err := f.next.Shorten(ctx, longURL)
	if err != nil {
		return longURL, nil
	}
	return short, nil
}

// Factory builds shorteners for caller-supplied credentials sharing one client
type Factory struct {
	client *http.Client
}

func NewFactory(client *http.Client) ports.ShortenerFactory {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Factory{client: client}
}

func (f *Factory) For(apiToken, site string) ports.Shortener {
	return NewHTTPShortener(f.client, apiToken, site)
}
