package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/rangda/ports"
)

// SessionRevokedTopic carries session revocation notifications.
const SessionRevokedTopic = "rangda.session.revoked"

// Revocation reasons.
const (
	ReasonLogout        = "logout"
	ReasonReplaced      = "replaced"
	ReasonOwnershipLost = "ownership_lost"
)

// SessionRevokedEvent tells other instances to drop cached state for an
// address.
type SessionRevokedEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements ports.EventPublisher using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a publisher for session lifecycle events.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishSessionRevoked publishes a revocation event.
func (p *WatermillPublisher) PublishSessionRevoked(ctx context.Context, address, sessionID, reason string) error {
	event := SessionRevokedEvent{
		Address:   address,
		SessionID: sessionID,
		Reason:    reason,
		At:        time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(sessionID, payload)
	if err := p.publisher.Publish(SessionRevokedTopic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)
