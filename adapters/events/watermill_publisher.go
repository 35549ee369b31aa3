package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/hoopgate/ports"
)

const (
	TopicStepOnePassed  = "gate.step_one.passed"
	TopicGrantCompleted = "gate.grant.completed"
)

// StepOnePassedEvent is published when a first-stage shot hits
type StepOnePassedEvent struct {
	ChallengeID string    `json:"challenge_id"`
	LinkID      string    `json:"link_id,omitempty"`
	IP          string    `json:"ip"`
	At          time.Time `json:"at"`
}

// GrantCompletedEvent is published when a grant passes the second stage
type GrantCompletedEvent struct {
	GrantID string    `json:"grant_id"`
	LinkID  string    `json:"link_id"`
	IP      string    `json:"ip"`
	At      time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishStepOnePassed publishes a step-one event
func (p *WatermillPublisher) PublishStepOnePassed(ctx context.Context, challengeID, linkID, ip string) error {
	return p.publish(ctx, TopicStepOnePassed, StepOnePassedEvent{
		ChallengeID: challengeID,
		LinkID:      linkID,
		IP:          ip,
		At:          time.Now().UTC(),
	})
}

// PublishGrantCompleted publishes a grant completion event
func (p *WatermillPublisher) PublishGrantCompleted(ctx context.Context, grantID, linkID, ip string) error {
	return p.publish(ctx, TopicGrantCompleted, GrantCompletedEvent{
		GrantID: grantID,
		LinkID:  linkID,
		IP:      ip,
		At:      time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishStepOnePassed(context.Context, string, string, string) error  { return nil }
func (NopPublisher) PublishGrantCompleted(context.Context, string, string, string) error { return nil }
