package api

import (
	"context"
	"fmt"

	"github.com/mrd/ca-drive/internal/models"
)

// ListActivity returns the firm's activity log.
func (c *Client) ListActivity(ctx context.Context) ([]models.ActivityEntry, error) {
	var result struct {
		Data []models.ActivityEntry `json:"data"`
	}
	if err := c.getJSON(ctx, "/activity", "list activity", &result); err != nil {
		return nil, err
	}
	for i := range result.Data {
		if err := validateActivity(&result.Data[i]); err != nil {
			return nil, malformed("list activity", fmt.Errorf("data[%d]: %w", i, err))
		}
	}
	return result.Data, nil
}
