/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package client is a Go SDK for the xbridge HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jerry-enebeli/xbridge/internal/request"
	"github.com/jerry-enebeli/xbridge/model"
)

const keyHeader = "X-Bridge-Key"

// Error is a non-2xx answer of the bridge.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge answered %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// Client talks to one bridge. Key is the reporter's (or the operator's) API key.
type Client struct {
	baseURL string
	key     string
}

func New(baseURL, key string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), key: key}
}

func (c *Client) do(ctx context.Context, method, path string, body, response interface{}) error {
	var payload io.Reader
	if body != nil {
		buf, err := request.ToJsonReq(body)
		if err != nil {
			return err
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set(keyHeader, c.key)
	}

	_, err = request.Call(req, response)
	var statusErr *request.StatusError
	if errors.As(err, &statusErr) {
		return &Error{StatusCode: statusErr.StatusCode, Message: errorMessage(statusErr.Body)}
	}
	return err
}

func errorMessage(body []byte) string {
	var parsed struct {
		Error  string `json:"error"`
		Errors string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Errors != "" {
			return parsed.Errors
		}
	}
	return string(bytes.TrimSpace(body))
}

func listQuery(unexpiredOnly bool) string {
	if !unexpiredOnly {
		return ""
	}
	return "?" + url.Values{"unexpired": {"true"}}.Encode()
}

func (c *Client) Settings(ctx context.Context) (*model.Settings, error) {
	var settings model.Settings
	if err := c.do(ctx, http.MethodGet, "/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) Fees(ctx context.Context) (*model.FeeState, error) {
	var fees model.FeeState
	if err := c.do(ctx, http.MethodGet, "/fees", nil, &fees); err != nil {
		return nil, err
	}
	return &fees, nil
}

func (c *Client) Reporters(ctx context.Context) ([]model.Reporter, error) {
	var reporters []model.Reporter
	err := c.do(ctx, http.MethodGet, "/reporters", nil, &reporters)
	return reporters, err
}

func (c *Client) Transfers(ctx context.Context, unexpiredOnly bool) ([]model.Transfer, error) {
	var transfers []model.Transfer
	err := c.do(ctx, http.MethodGet, "/transfers"+listQuery(unexpiredOnly), nil, &transfers)
	return transfers, err
}

func (c *Client) Reports(ctx context.Context, unexpiredOnly bool) ([]model.Report, error) {
	var reports []model.Report
	err := c.do(ctx, http.MethodGet, "/reports"+listQuery(unexpiredOnly), nil, &reports)
	return reports, err
}

func (c *Client) SubmitReport(ctx context.Context, claim model.Transfer) (*model.Report, error) {
	var report model.Report
	if err := c.do(ctx, http.MethodPost, "/reports", map[string]interface{}{"transfer": claim}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) Execute(ctx context.Context, reportID uint64) (*model.Report, error) {
	var report model.Report
	if err := c.do(ctx, http.MethodPost, "/reports/"+strconv.FormatUint(reportID, 10)+"/execute", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) MarkFailed(ctx context.Context, reportID uint64) (*model.Report, error) {
	var report model.Report
	if err := c.do(ctx, http.MethodPost, "/reports/"+strconv.FormatUint(reportID, 10)+"/fail", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) DistributeFees(ctx context.Context) (*model.Distribution, error) {
	var dist model.Distribution
	if err := c.do(ctx, http.MethodPost, "/fees/distribute", nil, &dist); err != nil {
		return nil, err
	}
	return &dist, nil
}
