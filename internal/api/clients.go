package api

import (
	"context"
	"fmt"

	"github.com/mrd/ca-drive/internal/models"
)

// ListClients returns every client of the logged-in CA firm.
func (c *Client) ListClients(ctx context.Context) ([]models.Client, error) {
	var result struct {
		Data []models.Client `json:"data"`
	}
	if err := c.getJSON(ctx, "/client/view", "list clients", &result); err != nil {
		return nil, err
	}
	for i := range result.Data {
		if err := validateClient(&result.Data[i]); err != nil {
			return nil, malformed("list clients", fmt.Errorf("data[%d]: %w", i, err))
		}
	}
	return result.Data, nil
}

// GetClient finds one client by id. The backend has no single-client route,
// so this filters the full list.
func (c *Client) GetClient(ctx context.Context, clientID string) (*models.Client, error) {
	clients, err := c.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		if clients[i].ID == clientID {
			return &clients[i], nil
		}
	}
	return nil, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
}
