package notification

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame type discriminators used on the push channel.
const (
	FrameNotification = "notification"
	FrameAuthSuccess  = "auth_success"
	FrameAuthError    = "auth_error"
)

// Payload is the wire shape of a notification, shared by the push channel
// and the REST list/detail endpoints.
type Payload struct {
	ID         int            `json:"id"`
	Type       string         `json:"notification_type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Priority   string         `json:"priority"`
	IsRead     bool           `json:"is_read"`
	CreatedAt  string         `json:"created_at"`
	ActionURL  string         `json:"action_url,omitempty"`
	ActionText string         `json:"action_text,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Frame is an inbound push channel frame.
type Frame struct {
	Type         string   `json:"type"`
	Notification *Payload `json:"notification,omitempty"`
	UnreadCount  int      `json:"unread_count"`
	ErrorMessage string   `json:"message,omitempty"`
}

// DecodeFrame parses a raw push frame. The returned frame still carries the
// wire payload; use Payload.ToNotification for the domain entity.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case FrameNotification:
		if f.Notification == nil {
			return Frame{}, fmt.Errorf("decode frame: notification frame without payload")
		}
	case FrameAuthSuccess, FrameAuthError:
	default:
		return Frame{}, fmt.Errorf("decode frame: unknown frame type %q", f.Type)
	}
	return f, nil
}

// ToNotification converts the wire payload into a validated domain entity.
func (p Payload) ToNotification() (Notification, error) {
	typ, err := ParseType(p.Type)
	if err != nil {
		return Notification{}, err
	}
	prio, err := ParsePriority(p.Priority)
	if err != nil {
		return Notification{}, err
	}
	createdAt, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("invalid created_at timestamp: %w", err)
	}
	n := Notification{
		ID:         p.ID,
		Type:       typ,
		Title:      p.Title,
		Message:    p.Message,
		Priority:   prio,
		Read:       p.IsRead,
		CreatedAt:  createdAt,
		ActionURL:  p.ActionURL,
		ActionText: p.ActionText,
		Metadata:   p.Metadata,
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// FromNotification converts a domain entity back into its wire shape.
func FromNotification(n Notification) Payload {
	return Payload{
		ID:         n.ID,
		Type:       n.Type.String(),
		Title:      n.Title,
		Message:    n.Message,
		Priority:   n.Priority.String(),
		IsRead:     n.Read,
		CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339),
		ActionURL:  n.ActionURL,
		ActionText: n.ActionText,
		Metadata:   n.Metadata,
	}
}
