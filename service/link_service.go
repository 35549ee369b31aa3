package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/internal/logger"
	"github.com/layer-3/hoopgate/internal/metrics"
	"github.com/layer-3/hoopgate/ports"
)

const (
	linkIDLength = 6
	slugLength   = 12
)

type GenerateRequest struct {
	TargetURL string
	MinWait   time.Duration // Zero uses the default
	BaseURL   string        // Scheme and host the generated URLs point at
}

// DynamicGenerateRequest shortens through a caller-supplied shortener account
type DynamicGenerateRequest struct {
	GenerateRequest
	APIToken string
	Site     string
}

// GeneratedLink is the public view of a new link
type GeneratedLink struct {
	LinkID        string `json:"linkId"`
	MainLink      string `json:"mainLink"`
	Step2Link     string `json:"step2Link"`
	ShortenedLink string `json:"shortenedLink"`
	TargetURL     string `json:"targetUrl"`
	MinWaitTime   int    `json:"minWaitTime"` // Seconds
}

// LinkService creates gated links
type LinkService struct {
	links     ports.LinkRepository
	shortener ports.Shortener
	factory   ports.ShortenerFactory
	metrics   *metrics.Metrics

	defaultMinWait time.Duration
	now            func() time.Time
}

// NewLinkService creates a link service. shortener must not fail (wrap it in a
// fallback); shortening through factory reports failures.
func NewLinkService(
	links ports.LinkRepository,
	shortener ports.Shortener,
	factory ports.ShortenerFactory,
	m *metrics.Metrics,
	defaultMinWait time.Duration,
) *LinkService {
	return &LinkService{
		links:          links,
		shortener:      shortener,
		factory:        factory,
		metrics:        m,
		defaultMinWait: defaultMinWait,
		now:            time.Now,
	}
}

// Generate creates a link shortened with the default shortener
func (s *LinkService) Generate(ctx context.Context, req GenerateRequest) (*GeneratedLink, error) {
	return s.generate(ctx, req, "default", s.shortener)
}

// GenerateDynamic creates a link shortened with the caller's shortener account
func (s *LinkService) GenerateDynamic(ctx context.Context, req DynamicGenerateRequest) (*GeneratedLink, error) {
	return s.generate(ctx, req.GenerateRequest, "dynamic", s.factory.For(req.APIToken, req.Site))
}

func (s *LinkService) generate(ctx context.Context, req GenerateRequest, mode string, shortener ports.Shortener) (*GeneratedLink, error) {
	base := strings.TrimRight(req.BaseURL, "/")
	minWait := req.MinWait
	if minWait <= 0 {
		minWait = s.defaultMinWait
	}

	link := &core.Link{
		ID:        newID(linkIDLength),
		TargetURL: req.TargetURL,
		Slug:      newID(slugLength),
		MinWait:   minWait,
		CreatedAt: s.now(),
	}
	step2 := fmt.Sprintf("%s/final.html?id=%s", base, link.ID)

	short, err := shortener.Shorten(ctx, step2)
	if err != nil {
		s.metrics.LinkGenerated(mode, false)
		return nil, fmt.Errorf("failed to shorten link: %w", err)
	}
	link.ShortLink = short

	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	s.metrics.LinkGenerated(mode, short != step2)
	logger.From(ctx).Info("link generated", logger.LinkID(link.ID))

	return &GeneratedLink{
		LinkID:        link.ID,
		MainLink:      fmt.Sprintf("%s/?s=%s", base, link.Slug),
		Step2Link:     step2,
		ShortenedLink: short,
		TargetURL:     link.TargetURL,
		MinWaitTime:   int(minWait / time.Second),
	}, nil
}

// newID returns n characters of a fresh shortuuid
func newID(n int) string {
	id := shortuuid.New()
	for len(id) < n {
		id += shortuuid.New()
	}
	return id[:n]
}
