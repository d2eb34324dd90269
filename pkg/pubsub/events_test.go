package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) { return r.id, r.err }

type fakePublisher struct {
	msgs   []*pubsub.Message
	result publishResult
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.msgs = append(f.msgs, msg)
	return f.result
}

func TestAssignmentPublisherPublish(t *testing.T) {
	fake := &fakePublisher{result: fakeResult{id: "msg-1"}}
	p := newAssignmentPublisher(fake)
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	agentID := uuid.New()
	orderID := uuid.New()
	id, err := p.Publish(context.Background(), AssignmentEvent{
		Type:           EventOrderAssigned,
		OrderID:        orderID,
		OrderNumber:    "1001",
		AgentID:        &agentID,
		Reason:         "strict",
		CandidateCount: 2,
		Trigger:        "webhook",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, fake.msgs, 1)

	msg := fake.msgs[0]
	assert.Equal(t, "order.assigned", msg.Attributes["event_type"])
	assert.Equal(t, agentID.String(), msg.Attributes["agent_id"])
	assert.Equal(t, "1001", msg.OrderingKey)
	assert.NotEmpty(t, msg.Attributes["event_id"])

	var decoded AssignmentEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, orderID, decoded.OrderID)
	assert.True(t, decoded.OccurredAt.Equal(fixed))
}

func TestAssignmentPublisherUnassignableOmitsAgent(t *testing.T) {
	fake := &fakePublisher{result: fakeResult{id: "msg-2"}}
	p := newAssignmentPublisher(fake)

	_, err := p.Publish(context.Background(), AssignmentEvent{
		Type:        EventOrderUnassignable,
		OrderID:     uuid.New(),
		OrderNumber: "1002",
		Reason:      "unassignable",
	})
	require.NoError(t, err)
	_, ok := fake.msgs[0].Attributes["agent_id"]
	assert.False(t, ok)
}

func TestAssignmentPublisherErrors(t *testing.T) {
	p := newAssignmentPublisher(&fakePublisher{result: fakeResult{err: errors.New("unavailable")}})
	_, err := p.Publish(context.Background(), AssignmentEvent{Type: EventOrderAssigned})
	assert.ErrorContains(t, err, "unavailable")

	p = newAssignmentPublisher(&fakePublisher{})
	_, err = p.Publish(context.Background(), AssignmentEvent{Type: EventOrderAssigned})
	assert.Error(t, err)

	var nilPublisher *AssignmentPublisher
	_, err = nilPublisher.Publish(context.Background(), AssignmentEvent{})
	assert.Error(t, err)

	_, err = NewAssignmentPublisher(nil)
	assert.Error(t, err)
}

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p/topics/t", topicResourceName("p", "t"))
	assert.Equal(t, "projects/x/topics/y", topicResourceName("p", "projects/x/topics/y"))
	assert.Equal(t, "", topicResourceName("", "t"))
	assert.Equal(t, "", topicResourceName("p", " "))
}
