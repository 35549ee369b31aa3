package ports

import "context"

// EventPublisher publishes gate progress so other instances and auditors can follow it
type EventPublisher interface {
	PublishStepOnePassed(ctx context.Context, challengeID, linkID, ip string) error
	PublishGrantCompleted(ctx context.Context, grantID, linkID, ip string) error
}
