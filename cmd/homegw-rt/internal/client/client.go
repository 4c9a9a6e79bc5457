// Package client talks to a running daemon over its unix socket.
package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/homegw/homegw-rt/internal/api/models"
	"github.com/homegw/homegw-rt/pkg/render"
)

// The host part is ignored by the unix dialer but required by net/http.
const baseURL = "http://homegw-rt"

// DefaultTimeout bounds a whole request, including the time spent queued
// behind other resets on the daemon side.
const DefaultTimeout = 10 * time.Second

type Client struct {
	http *http.Client
}

// New returns a client dialing socketPath.
func New(socketPath string) *Client {
	var d net.Dialer
	return NewWithHTTPClient(&http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	})
}

func NewWithHTTPClient(c *http.Client) *Client {
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return render.DecodeResponse(resp, v)
}

// Reset asks the daemon to pulse the reset line of pin.
func (c *Client) Reset(ctx context.Context, pin string) (models.ResetResponse, error) {
	var resp models.ResetResponse
	err := c.do(ctx, http.MethodPost, "/v1/pins/"+url.PathEscape(pin)+"/reset", &resp)
	if err != nil {
		return models.ResetResponse{}, fmt.Errorf("reset %s: %w", pin, err)
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context) (models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", &resp); err != nil {
		return models.StatusResponse{}, fmt.Errorf("status: %w", err)
	}
	return resp, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var resp models.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/version", &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}
