package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/campusdesk/notisync/internal/notification"
)

// REST endpoints of the notification service.
const (
	EndpointList         = "/notifications/"
	EndpointUnreadCount  = "/notifications/unread-count/"
	EndpointMarkAllRead  = "/notifications/mark-all-read/"
	EndpointCreate       = "/notifications/create/"
	EndpointCheckProfile = "/notifications/check-profile/"
)

// ListParams are the supported list filters. Zero values mean "no filter".
type ListParams struct {
	Page     int
	IsRead   *bool
	Type     notification.Type
	Priority notification.Priority
}

// ListResult is one page of the notification list.
type ListResult struct {
	Count         int
	Next          string
	Previous      string
	Notifications []notification.Notification
}

// listResponse is the paginated wire shape of the list endpoint.
type listResponse struct {
	Count    int                    `json:"count"`
	Next     string                 `json:"next"`
	Previous string                 `json:"previous"`
	Results  []notification.Payload `json:"results"`
}

// unreadCountResponse is the wire shape of the unread-count endpoint.
type unreadCountResponse struct {
	TotalUnread int `json:"total_unread"`
}

// CreateRequest is the body of the privileged create endpoint. RecipientID
// zero with Broadcast set fans out to every user.
type CreateRequest struct {
	RecipientID int                   `json:"recipient_id,omitempty"`
	Broadcast   bool                  `json:"broadcast,omitempty"`
	Type        notification.Type     `json:"notification_type"`
	Title       string                `json:"title"`
	Message     string                `json:"message"`
	Priority    notification.Priority `json:"priority"`
	ActionURL   string                `json:"action_url,omitempty"`
	ActionText  string                `json:"action_text,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
}

// List fetches one page of notifications. Entries that fail domain
// validation are logged and dropped instead of failing the whole page.
func (g *Gateway) List(ctx context.Context, p ListParams) (ListResult, error) {
	params := url.Values{}
	if p.Page > 0 {
		params.Set("page", strconv.Itoa(p.Page))
	}
	if p.IsRead != nil {
		params.Set("is_read", strconv.FormatBool(*p.IsRead))
	}
	if p.Type != "" {
		params.Set("notification_type", p.Type.String())
	}
	if p.Priority != "" {
		params.Set("priority", p.Priority.String())
	}

	payload, err := g.Get(ctx, EndpointList, params)
	if err != nil {
		return ListResult{}, err
	}

	var resp listResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return ListResult{}, fmt.Errorf("gateway: decode list: %w", err)
	}

	result := ListResult{
		Count:         resp.Count,
		Next:          resp.Next,
		Previous:      resp.Previous,
		Notifications: make([]notification.Notification, 0, len(resp.Results)),
	}
	for _, raw := range resp.Results {
		n, err := raw.ToNotification()
		if err != nil {
			g.log.Warn("gateway: dropping malformed notification", "id", raw.ID, "error", err)
			continue
		}
		result.Notifications = append(result.Notifications, n)
	}
	return result, nil
}

// ListAll walks every page of the filtered list.
func (g *Gateway) ListAll(ctx context.Context, p ListParams) ([]notification.Notification, error) {
	var all []notification.Notification
	p.Page = 1
	for {
		page, err := g.List(ctx, p)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Notifications...)
		if page.Next == "" {
			return all, nil
		}
		p.Page++
	}
}

// FetchAll retrieves the complete unfiltered notification list.
func (g *Gateway) FetchAll(ctx context.Context) ([]notification.Notification, error) {
	return g.ListAll(ctx, ListParams{})
}

// Notification fetches a single notification by ID.
func (g *Gateway) Notification(ctx context.Context, id int) (notification.Notification, error) {
	payload, err := g.Get(ctx, fmt.Sprintf("/notifications/%d/", id), nil)
	if err != nil {
		return notification.Notification{}, err
	}
	var raw notification.Payload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return notification.Notification{}, fmt.Errorf("gateway: decode notification: %w", err)
	}
	return raw.ToNotification()
}

// UnreadCount fetches the server's authoritative unread count.
func (g *Gateway) UnreadCount(ctx context.Context) (int, error) {
	payload, err := g.Get(ctx, EndpointUnreadCount, nil)
	if err != nil {
		return 0, err
	}
	var resp unreadCountResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return 0, fmt.Errorf("gateway: decode unread count: %w", err)
	}
	return resp.TotalUnread, nil
}

// MarkRead confirms a single mark-read on the server. Idempotent server-side.
func (g *Gateway) MarkRead(ctx context.Context, id int) error {
	_, err := g.Post(ctx, fmt.Sprintf("/notifications/%d/mark-read/", id), nil)
	return err
}

// MarkAllRead confirms a bulk mark-read on the server.
func (g *Gateway) MarkAllRead(ctx context.Context) error {
	_, err := g.Post(ctx, EndpointMarkAllRead, nil)
	return err
}

// Create creates a notification for one user or broadcasts it. Privileged.
func (g *Gateway) Create(ctx context.Context, req CreateRequest) error {
	_, err := g.Post(ctx, EndpointCreate, req)
	return err
}

// CheckProfile asks the server to emit a profile-completeness notification if
// the profile is incomplete.
func (g *Gateway) CheckProfile(ctx context.Context) error {
	_, err := g.Get(ctx, EndpointCheckProfile, nil)
	return err
}
