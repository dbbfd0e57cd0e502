package ports

import "context"

// EventPublisher notifies other instances about session revocations so they
// can drop any cached state for the address.
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, address, sessionID, reason string) error
}
