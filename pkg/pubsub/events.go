package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 10 * time.Second

// EventType names an assignment event published to the assignment topic.
type EventType string

const (
	EventOrderAssigned           EventType = "order.assigned"
	EventOrderAssignmentFallback EventType = "order.assignment_fallback"
	EventOrderUnassignable       EventType = "order.unassignable"
)

// AssignmentEvent is the JSON payload of an assignment event.
type AssignmentEvent struct {
	EventID        string     `json:"eventId"`
	Type           EventType  `json:"type"`
	OrderID        uuid.UUID  `json:"orderId"`
	OrderNumber    string     `json:"orderNumber"`
	AgentID        *uuid.UUID `json:"agentId,omitempty"`
	Reason         string     `json:"reason"`
	Fallback       bool       `json:"fallback"`
	CandidateCount int        `json:"candidateCount"`
	Trigger        string     `json:"trigger"`
	OccurredAt     time.Time  `json:"occurredAt"`
}

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// AssignmentPublisher publishes assignment events and waits for the server ack.
type AssignmentPublisher struct {
	pub     publisher
	timeout time.Duration
	now     func() time.Time
}

// NewAssignmentPublisher wraps a topic publisher with per-order message
// ordering enabled. A nil publisher is rejected.
func NewAssignmentPublisher(p *pubsub.Publisher) (*AssignmentPublisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	p.EnableMessageOrdering = true
	return newAssignmentPublisher(&gcpPublisher{Publisher: p}), nil
}

func newAssignmentPublisher(p publisher) *AssignmentPublisher {
	return &AssignmentPublisher{
		pub:     p,
		timeout: defaultPublishTimeout,
		now:     time.Now,
	}
}

// Publish sends evt, filling EventID and OccurredAt when unset, and returns
// the server message id.
func (p *AssignmentPublisher) Publish(ctx context.Context, evt AssignmentEvent) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("assignment publisher not initialized")
	}
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = p.now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal assignment event: %w", err)
	}
	attrs := map[string]string{
		"event_id":     evt.EventID,
		"event_type":   string(evt.Type),
		"order_id":     evt.OrderID.String(),
		"order_number": evt.OrderNumber,
		"occurred_at":  evt.OccurredAt.Format(time.RFC3339Nano),
	}
	if evt.AgentID != nil {
		attrs["agent_id"] = evt.AgentID.String()
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: evt.OrderNumber,
	})
	if result == nil {
		return "", errors.New("publisher returned nil result")
	}
	id, err := result.Get(publishCtx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return id, nil
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
