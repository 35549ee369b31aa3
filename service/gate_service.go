package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/layer-3/hoopgate/behavior"
	"github.com/layer-3/hoopgate/codec"
	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/internal/logger"
	"github.com/layer-3/hoopgate/internal/metrics"
	"github.com/layer-3/hoopgate/physics"
	"github.com/layer-3/hoopgate/ports"
)

const (
	stepOne = "one"
	stepTwo = "two"

	targetSkins = 10
)

// IssueRequest selects the link a new challenge is bound to.
// LinkID wins over Slug; an unknown slug yields an anonymous challenge.
type IssueRequest struct {
	LinkID string
	Slug   string
}

// Session is what the landing page hands to the browser
type Session struct {
	Token     string
	Challenge core.PublicChallenge
}

type StepOneRequest struct {
	ChallengeID  string
	Payload      string
	SessionToken string
	IP           string
	UserAgent    string
}

type StepOneResult struct {
	Verdict  core.Verdict
	Redirect string // Set on HIT
}

type StepTwoRequest struct {
	ChallengeID string
	LinkID      string
	Payload     string
	IP          string
}

type StepTwoResult struct {
	Verdict     core.Verdict
	Destination string // Set on HIT
}

// PreviewRequest asks for the cosmetic flight of a shot
type PreviewRequest struct {
	ChallengeID  string
	Angle        float64
	Power        float64
	ScreenWidth  float64
	ScreenHeight float64
}

// GateService runs the challenge lifecycle of the two-step gate
type GateService struct {
	store     ports.Store
	links     ports.LinkRepository
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	validator *behavior.Validator
	metrics   *metrics.Metrics

	secret           []byte
	challengeTTL     time.Duration
	grantTTL         time.Duration
	receiptTTL       time.Duration
	defaultMinWait   time.Duration
	fallbackRedirect string

	now   func() time.Time
	rngMu sync.Mutex
	rng   *mrand.Rand
}

// Option configures a GateService
type Option func(*GateService)

func WithTTLs(challenge, grant, receipt time.Duration) Option {
	return func(s *GateService) {
		s.challengeTTL = challenge
		s.grantTTL = grant
		s.receiptTTL = receipt
	}
}

// WithDefaultMinWait applies to links stored without a minimum wait
func WithDefaultMinWait(d time.Duration) Option {
	return func(s *GateService) { s.defaultMinWait = d }
}

// WithFallbackRedirect is where step one sends clients that have no short link
func WithFallbackRedirect(url string) Option {
	return func(s *GateService) { s.fallbackRedirect = url }
}

func WithThresholds(t behavior.Thresholds) Option {
	return func(s *GateService) { s.validator = behavior.NewValidator(t) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GateService) { s.metrics = m }
}

// WithClock replaces time.Now; stores must share the same clock
func WithClock(now func() time.Time) Option {
	return func(s *GateService) { s.now = now }
}

// WithRand replaces the source of hoop placement and visual physics
func WithRand(r *mrand.Rand) Option {
	return func(s *GateService) { s.rng = r }
}

// NewGateService creates the gate. secret keys the hidden physics derivation.
func NewGateService(
	store ports.Store,
	links ports.LinkRepository,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	secret []byte,
	opts ...Option,
) *GateService {
	s := &GateService{
		store:            store,
		links:            links,
		tokenizer:        tokenizer,
		eventPub:         eventPub,
		validator:        behavior.NewValidator(behavior.DefaultThresholds()),
		secret:           secret,
		challengeTTL:     15 * time.Minute,
		grantTTL:         10 * time.Minute,
		receiptTTL:       15 * time.Minute,
		defaultMinWait:   10 * time.Second,
		fallbackRedirect: "https://www.google.com",
		now:              time.Now,
		rng:              mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a grant for the client and issues its first challenge,
// both bound to the link behind slug when it exists.
func (s *GateService) StartSession(ctx context.Context, ip, slug string) (*Session, error) {
	linkID, err := s.resolveLink(ctx, IssueRequest{Slug: slug})
	if err != nil {
		return nil, err
	}

	now := s.now()
	grant := &core.AccessGrant{
		ID:        uuid.New().String(),
		IP:        ip,
		LinkID:    linkID,
		Status:    core.GrantStarted,
		CreatedAt: now,
		ExpiresAt: now.Add(s.grantTTL),
	}

	token, err := s.tokenizer.GrantToToken(grant)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	if err := s.store.SaveGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to save grant: %w", err)
	}

	challenge, err := s.issue(ctx, linkID)
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Debug("session started",
		logger.GrantID(grant.ID), logger.LinkID(linkID), logger.ChallengeID(challenge.ID))

	return &Session{Token: token, Challenge: challenge.Public()}, nil
}

// Issue creates a fresh challenge with new hidden physics
func (s *GateService) Issue(ctx context.Context, req IssueRequest) (core.PublicChallenge, error) {
	linkID, err := s.resolveLink(ctx, req)
	if err != nil {
		return core.PublicChallenge{}, err
	}

	challenge, err := s.issue(ctx, linkID)
	if err != nil {
		return core.PublicChallenge{}, err
	}
	return challenge.Public(), nil
}

func (s *GateService) issue(ctx context.Context, linkID string) (*core.Challenge, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	s.rngMu.Lock()
	hoop := core.Hoop{X: s.rng.Float64(), Y: s.rng.Float64()}
	targetID := s.rng.IntN(targetSkins)
	visual := physics.RandomVisual(s.rng)
	s.rngMu.Unlock()

	id := uuid.New().String()
	now := s.now()
	challenge := &core.Challenge{
		ID:        id,
		Nonce:     hex.EncodeToString(nonce),
		Hoop:      hoop,
		TargetID:  targetID,
		Visual:    visual,
		Hidden:    physics.Hidden(visual, physics.Derive(id, s.secret)),
		LinkID:    linkID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.challengeTTL),
	}

	if err := s.store.SaveChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}

	s.metrics.Issued()
	return challenge, nil
}

func (s *GateService) resolveLink(ctx context.Context, req IssueRequest) (string, error) {
	if req.LinkID != "" {
		return req.LinkID, nil
	}
	if req.Slug == "" {
		return "", nil
	}

	link, err := s.links.BySlug(ctx, req.Slug)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve slug: %w", err)
	}
	return link.ID, nil
}

// SubmitStepOne verifies a first-stage shot. A miss is a MISS verdict, not an error.
func (s *GateService) SubmitStepOne(ctx context.Context, req StepOneRequest) (*StepOneResult, error) {
	log := logger.From(ctx).With(logger.Step(stepOne), logger.ChallengeID(req.ChallengeID), logger.ClientIP(req.IP))

	challenge, err := s.store.ConsumeChallenge(ctx, req.ChallengeID)
	if err != nil {
		s.metrics.Attempt(stepOne, "expired")
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	attempt, ok := codec.Decode(req.Payload, req.SessionToken, challenge.Nonce)
	if !ok {
		s.metrics.Attempt(stepOne, "handshake_failed")
		return nil, core.ErrHandshakeFailed
	}

	if reason := s.validator.Classify(attempt.DragPath, attempt.DragDuration); reason != behavior.ReasonNone {
		s.metrics.Rejected(string(reason))
		s.metrics.Attempt(stepOne, "abnormal")
		log.Info("drag rejected", logger.Reason(string(reason)))
		return nil, core.ErrAbnormalBehavior
	}

	if !s.hit(challenge, attempt) {
		s.metrics.Attempt(stepOne, "miss")
		log.Debug("shot missed", logger.Verdict(string(core.VerdictMiss)))
		return &StepOneResult{Verdict: core.VerdictMiss}, nil
	}

	linkID := challenge.LinkID
	if linkID == "" && req.SessionToken != "" {
		linkID = s.sessionLink(ctx, req.SessionToken, req.IP)
	}

	redirect := s.fallbackRedirect
	if linkID != "" {
		link, err := s.links.ByID(ctx, linkID)
		switch {
		case err == nil && link.ShortLink != "":
			redirect = link.ShortLink
		case err != nil && !errors.Is(err, core.ErrNotFound):
			return nil, fmt.Errorf("failed to load link: %w", err)
		}
	}

	now := s.now()
	receipt := &core.StepOneReceipt{
		IP:        req.IP,
		LinkID:    linkID,
		UserAgent: req.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.receiptTTL),
	}
	if err := s.store.SaveReceipt(ctx, receipt); err != nil {
		return nil, fmt.Errorf("failed to save receipt: %w", err)
	}

	if err := s.eventPub.PublishStepOnePassed(ctx, challenge.ID, linkID, req.IP); err != nil {
		log.Warn("failed to publish step one event", zap.Error(err))
	}

	s.metrics.Attempt(stepOne, "hit")
	log.Info("step one passed", logger.LinkID(linkID))

	return &StepOneResult{Verdict: core.VerdictHit, Redirect: redirect}, nil
}

// sessionLink returns the link of the live grant behind token when it belongs to ip
func (s *GateService) sessionLink(ctx context.Context, token, ip string) string {
	claimed, err := s.tokenizer.TokenToGrant(token)
	if err != nil {
		return ""
	}
	grant, err := s.store.GetGrant(ctx, claimed.ID)
	if err != nil || grant.IP != ip {
		return ""
	}
	return grant.LinkID
}

// SubmitStepTwo verifies the final shot and releases the destination
func (s *GateService) SubmitStepTwo(ctx context.Context, req StepTwoRequest) (*StepTwoResult, error) {
	log := logger.From(ctx).With(logger.Step(stepTwo), logger.ChallengeID(req.ChallengeID),
		logger.LinkID(req.LinkID), logger.ClientIP(req.IP))

	challenge, err := s.store.ConsumeChallenge(ctx, req.ChallengeID)
	if err != nil {
		s.metrics.Attempt(stepTwo, "expired")
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	if challenge.LinkID != req.LinkID {
		s.metrics.Attempt(stepTwo, "handshake_failed")
		log.Info("challenge bound to another link", zap.String("bound_link_id", challenge.LinkID))
		return nil, core.ErrHandshakeFailed
	}

	attempt, ok := codec.Decode(req.Payload, req.LinkID, challenge.Nonce)
	if !ok {
		s.metrics.Attempt(stepTwo, "handshake_failed")
		return nil, core.ErrHandshakeFailed
	}

	grant, err := s.store.FindGrant(ctx, req.IP, req.LinkID)
	if errors.Is(err, core.ErrNotFound) || (err == nil && grant.Status != core.GrantStarted) {
		s.metrics.Attempt(stepTwo, "session_expired")
		return nil, core.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grant: %w", err)
	}

	if _, err := s.store.FindReceipt(ctx, req.IP, req.LinkID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.metrics.Attempt(stepTwo, "no_receipt")
			return nil, core.ErrPrerequisiteMissing
		}
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}

	link, err := s.links.ByID(ctx, req.LinkID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}

	minWait := link.MinWait
	if minWait <= 0 {
		minWait = s.defaultMinWait
	}
	if elapsed := s.now().Sub(grant.CreatedAt); elapsed < minWait {
		s.metrics.Rejected("too_fast")
		s.metrics.Attempt(stepTwo, "abnormal")
		log.Info("step two too fast", logger.Duration(elapsed))
		return nil, core.ErrAbnormalBehavior
	}

	if reason := s.validator.Classify(attempt.DragPath, attempt.DragDuration); reason != behavior.ReasonNone {
		s.metrics.Rejected(string(reason))
		s.metrics.Attempt(stepTwo, "abnormal")
		log.Info("drag rejected", logger.Reason(string(reason)))
		return nil, core.ErrAbnormalBehavior
	}

	if !s.hit(challenge, attempt) {
		s.metrics.Attempt(stepTwo, "miss")
		log.Debug("shot missed", logger.Verdict(string(core.VerdictMiss)))
		return &StepTwoResult{Verdict: core.VerdictMiss}, nil
	}

	if err := s.store.DeleteReceipt(ctx, req.IP, req.LinkID); err != nil {
		return nil, fmt.Errorf("failed to delete receipt: %w", err)
	}

	grant.Status = core.GrantCompleted
	if err := s.store.SaveGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to complete grant: %w", err)
	}

	if err := s.eventPub.PublishGrantCompleted(ctx, grant.ID, link.ID, req.IP); err != nil {
		log.Warn("failed to publish grant event", zap.Error(err))
	}

	s.metrics.Attempt(stepTwo, "hit")
	log.Info("grant completed", logger.GrantID(grant.ID))

	return &StepTwoResult{Verdict: core.VerdictHit, Destination: link.TargetURL}, nil
}

// CheckStepTwoAccess guards the step-two page: step one must have passed
// for the (IP, link) pair. userAgent is advisory and only logged on mismatch.
func (s *GateService) CheckStepTwoAccess(ctx context.Context, ip, linkID, userAgent string) error {
	receipt, err := s.store.FindReceipt(ctx, ip, linkID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrPrerequisiteMissing
	}
	if err != nil {
		return fmt.Errorf("failed to load receipt: %w", err)
	}

	if receipt.UserAgent != userAgent {
		logger.From(ctx).Debug("step two user agent changed", logger.LinkID(linkID), logger.UserAgent(userAgent))
	}
	return nil
}

// Preview draws the shot under the challenge's visual physics. It never
// consumes the challenge and has no bearing on the verdict.
func (s *GateService) Preview(ctx context.Context, req PreviewRequest) (physics.Path, error) {
	challenge, err := s.store.GetChallenge(ctx, req.ChallengeID)
	if err != nil {
		return physics.Path{}, fmt.Errorf("failed to load challenge: %w", err)
	}

	return physics.Preview(
		challenge.Hoop,
		physics.Shot{Angle: req.Angle, Power: req.Power},
		physics.Screen{Width: req.ScreenWidth, Height: req.ScreenHeight},
		challenge.Visual,
	), nil
}

func (s *GateService) hit(c *core.Challenge, a core.Attempt) bool {
	return physics.Simulate(
		c.Hoop,
		physics.Shot{Angle: a.Angle, Power: a.Power},
		physics.Screen{Width: a.ScreenWidth, Height: a.ScreenHeight},
		c.Hidden,
	)
}
