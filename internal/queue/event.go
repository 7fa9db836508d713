// Package queue defines the activity events exchanged over the message
// broker and the consumer that records them.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event types published by the API.
const (
	GuestInvitationToggled = "guest.invitation_toggled"
	GuestInvitationsBulk   = "guests.invitations_bulk_updated"
	ExpenseStatusChanged   = "expense.status_changed"
	RequirementCompleted   = "requirement.completed"
	AccountDeleted         = "account.deleted"
)

// ActivityEvent describes something a user did that downstream consumers
// may want to log or analyse without querying the primary database.
type ActivityEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	ResourceID string    `json:"resourceId,omitempty"`
	Count      int64     `json:"count,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewActivityEvent stamps an event with the current time.
func NewActivityEvent(typ, userID, resourceID string) ActivityEvent {
	return ActivityEvent{
		Type:       typ,
		UserID:     userID,
		ResourceID: resourceID,
		OccurredAt: time.Now().UTC(),
	}
}

func (e ActivityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ActivityEventFromJSON decodes and validates a message body.
func ActivityEventFromJSON(body []byte) (ActivityEvent, error) {
	var ev ActivityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.UserID == "" {
		return ev, errors.New("event type and userId are required")
	}
	return ev, nil
}
