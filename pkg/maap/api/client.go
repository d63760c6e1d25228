// Copyright 2019-2025 The Liqo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/liqotech/maap/pkg/maap"
)

// StatusError is returned by the client when the server answered with an error.
type StatusError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// IsNotFound returns whether the error reports a missing port or range.
func IsNotFound(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == http.StatusNotFound
}

// Client talks to the management API of a daemon.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the server listening at the given address. Addresses without a scheme are
// served over plain HTTP.
func NewClient(address string, timeout time.Duration) *Client {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &Client{
		base: strings.TrimSuffix(address, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Ports lists the ports served by the daemon.
func (c *Client) Ports(ctx context.Context) ([]PortInfo, error) {
	var ports []PortInfo
	if err := c.do(ctx, http.MethodGet, PortsURI, nil, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}

// Ranges lists the ranges held or requested on a port.
func (c *Client) Ranges(ctx context.Context, port string) ([]maap.SessionStatus, error) {
	var statuses []maap.SessionStatus
	if err := c.do(ctx, http.MethodGet, rangesPath(port), nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Range returns the status of a single range.
func (c *Client) Range(ctx context.Context, port, id string) (*maap.SessionStatus, error) {
	var status maap.SessionStatus
	if err := c.do(ctx, http.MethodGet, rangePath(port, id), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Acquire requests a new range on a port.
func (c *Client) Acquire(ctx context.Context, port string, req *AcquireRequest) (*AcquireResponse, error) {
	var resp AcquireResponse
	if err := c.do(ctx, http.MethodPost, rangesPath(port), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Release releases a range, or withdraws a pending request.
func (c *Client) Release(ctx context.Context, port, id string) error {
	return c.do(ctx, http.MethodDelete, rangePath(port, id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode the request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build the request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to contact %s", c.base)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read the response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "failed to decode the response")
}

func rangesPath(port string) string {
	return fmt.Sprintf("/v1/ports/%s/ranges", url.PathEscape(port))
}

func rangePath(port, id string) string {
	return fmt.Sprintf("/v1/ports/%s/ranges/%s", url.PathEscape(port), url.PathEscape(id))
}
