package models

import "time"

// Notification is an in-app message for the logged-in CA.
type Notification struct {
	ID        string               `json:"_id" yaml:"id"`
	Title     string               `json:"title" yaml:"title"`
	Message   string               `json:"message" yaml:"message"`
	IsRead    bool                 `json:"isRead" yaml:"isRead"`
	CreatedAt time.Time            `json:"createdAt" yaml:"createdAt"`
	Metadata  NotificationMetadata `json:"metadata,omitzero" yaml:"metadata,omitempty"`
}

// NotificationMetadata links a notification to the client it concerns.
type NotificationMetadata struct {
	ClientID string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
}

// UnreadCount counts notifications not yet marked read.
func UnreadCount(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.IsRead {
			n++
		}
	}
	return n
}
