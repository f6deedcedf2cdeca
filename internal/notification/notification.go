// Package notification provides the domain model for portal notifications.
// It contains the notification entity, its closed type and priority enums,
// and ordering helpers.
package notification

import (
	"fmt"
	"sort"
	"time"
)

// Notification represents a single notification entity.
type Notification struct {
	ID         int
	Type       Type
	Title      string
	Message    string
	Priority   Priority
	Read       bool
	CreatedAt  time.Time
	ActionURL  string
	ActionText string
	Metadata   map[string]any
}

// Type represents the category of a notification.
type Type string

const (
	TypeTaskAssigned       Type = "task_assigned"
	TypeTaskUpdated        Type = "task_updated"
	TypeDeliverableDue     Type = "deliverable_due"
	TypePaymentReceived    Type = "payment_received"
	TypePaymentDue         Type = "payment_due"
	TypeMeetingScheduled   Type = "meeting_scheduled"
	TypeMessageReceived    Type = "message_received"
	TypeSystemAnnouncement Type = "system_announcement"
)

// IsValid checks if the notification type is valid.
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskAssigned, TypeTaskUpdated, TypeDeliverableDue,
		TypePaymentReceived, TypePaymentDue, TypeMeetingScheduled,
		TypeMessageReceived, TypeSystemAnnouncement:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Priority represents the urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is valid.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsAlertworthy reports whether the priority warrants a local alert.
func (p Priority) IsAlertworthy() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Validate validates the notification and returns an error if invalid.
func (n *Notification) Validate() error {
	if n.ID <= 0 {
		return fmt.Errorf("invalid notification ID: %d", n.ID)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("invalid notification type: %s", n.Type)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("invalid notification priority: %s", n.Priority)
	}
	if n.Title == "" {
		return fmt.Errorf("notification title cannot be empty")
	}
	if n.CreatedAt.IsZero() {
		return fmt.Errorf("notification creation time cannot be zero")
	}
	return nil
}

// ParseType parses a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid notification type: %s", s)
	}
	return t, nil
}

// ParsePriority parses a string into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid notification priority: %s", s)
	}
	return p, nil
}

// SortForDisplay sorts notifications newest-first, breaking ties by ID
// descending so ordering is stable across refreshes.
func SortForDisplay(notifications []Notification) {
	sort.SliceStable(notifications, func(i, j int) bool {
		if notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].ID > notifications[j].ID
		}
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
}
