// Package client talks to a running pcran daemon over its unix socket or TCP
// address.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pcran/pcran/pkg/api"
)

// Client is a struct for communicating with the pcran daemon
type Client struct {
	listen     string
	httpClient *http.Client
}

// NewClient creates a Client for a listen address as accepted by the daemon,
// e.g. "unix:///tmp/pcran.sock" or "127.0.0.1:8787".
func NewClient(listen string) (*Client, error) {
	network, address, err := api.ParseListen(listen)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{}
	return &Client{
		listen: listen,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					conn, err := dialer.DialContext(ctx, network, address)
					if err != nil {
						if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
							return nil, ErrDaemonNotRunning
						}
						if errors.Is(err, os.ErrPermission) {
							return nil, ErrPermissionDenied
						}
						logrus.Errorf("failed to connect to %s: %v", listen, err)
						return nil, err
					}
					return conn, nil
				},
			},
		},
	}, nil
}

// Send sends a request with a JSON body to the daemon and returns the
// response body. Non-2xx responses are turned into errors; analysis failures
// come back as *pcrerr.Error.
func (c *Client) Send(ctx context.Context, method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"listen": c.listen,
	}).Debug("sending request")

	req, err := http.NewRequestWithContext(ctx, method, "http://pcran"+path, strings.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	body := string(b)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", responseError(resp.StatusCode, b)
	}

	return body, nil
}

func responseError(status int, body []byte) error {
	var er api.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		if status == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("got %d: %s", status, strings.TrimSpace(string(body)))
	}
	if er.Kind != "" {
		return er.Err()
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, er.Error)
	}
	return fmt.Errorf("got %d: %s", status, er.Error)
}

// Get sends a GET request to the daemon
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	return c.Send(ctx, http.MethodGet, path, "")
}

// Post sends a POST request to the daemon
func (c *Client) Post(ctx context.Context, path string, data string) (string, error) {
	return c.Send(ctx, http.MethodPost, path, data)
}
