package ports

import "context"

// Shortener wraps a long URL with an external link shortener
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// ShortenerFactory builds a shortener for caller-supplied credentials
type ShortenerFactory interface {
	For(apiToken, site string) Shortener
}
