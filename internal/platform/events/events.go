package events

import (
	"context"
	"time"
)

type EventType string

const (
	RequestCreated  EventType = "request.created"
	RequestApproved EventType = "request.approved"
	RequestRejected EventType = "request.rejected"
	RequestDeleted  EventType = "request.deleted"
	RequestAssigned EventType = "request.assigned"
	EmployeeDeleted EventType = "employee.deleted"
)

// Event describes a request or employee lifecycle change. It is published after the
// database write has committed.
type Event struct {
	Type       EventType `json:"type"`
	Kind       string    `json:"kind"`
	EntityID   string    `json:"entityId"`
	EmployeeID string    `json:"employeeId"`
	ActorID    string    `json:"actorId"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Noop discards events; used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
