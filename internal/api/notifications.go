package api

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/mrd/ca-drive/internal/models"
)

// ListNotifications returns the logged-in user's notifications, newest first as sent by the backend.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var result struct {
		Data []models.Notification `json:"data"`
	}
	if err := c.getJSON(ctx, "/notifications", "list notifications", &result); err != nil {
		return nil, err
	}
	for i := range result.Data {
		if err := validateNotification(&result.Data[i]); err != nil {
			return nil, malformed("list notifications", fmt.Errorf("data[%d]: %w", i, err))
		}
	}
	return result.Data, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return invalid("mark read", fmt.Errorf("id is required"))
	}
	return c.callJSON(ctx, nethttp.MethodPatch, "/notifications/"+escape(id)+"/read", nil, "mark read", nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.callJSON(ctx, nethttp.MethodPatch, "/notifications/mark-all-read", nil, "mark all read", nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if id == "" {
		return invalid("delete notification", fmt.Errorf("id is required"))
	}
	return c.callJSON(ctx, nethttp.MethodDelete, "/notifications/"+escape(id), nil, "delete notification", nil)
}
