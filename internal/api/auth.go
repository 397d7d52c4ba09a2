package api

import (
	"context"
	nethttp "net/http"
	"strings"

	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/models"
)

// Login exchanges CA credentials for a bearer token and installs it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	req := models.LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Role:     constants.CALoginRole,
	}
	if err := validateLoginRequest(&req); err != nil {
		return nil, invalid("login", err)
	}

	var resp models.LoginResponse
	if err := c.callJSON(ctx, nethttp.MethodPost, "/auth/ca-login", req, "login", &resp); err != nil {
		return nil, err
	}
	if err := validateLoginResponse(&resp); err != nil {
		return nil, malformed("login", err)
	}

	c.SetToken(resp.Token)
	return &resp, nil
}
