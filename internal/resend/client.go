// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resend implements a client for the Resend inbound-email API.
// The webhook payload's embedded attachment list is not authoritative, so
// the pipeline re-lists attachments by email ID to obtain fresh,
// byte-fetchable download URLs.
package resend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/receiptbox/ingestion/internal/models"
)

// DefaultBaseURL is the root of the Resend REST API.
const DefaultBaseURL = "https://api.resend.com"

// Client talks to the Resend API. The authed client must already carry the
// API key (built via oauth2.NewClient with a static token source); the plain
// client fetches attachment download URLs, which are pre-signed and must not
// receive the API key.
type Client struct {
	authed  *http.Client
	plain   *http.Client
	baseURL string
}

// NewClient creates a Resend client.
func NewClient(authed, plain *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		authed:  authed,
		plain:   plain,
		baseURL: baseURL,
	}
}

// attachmentList mirrors the Resend list response envelope.
type attachmentList struct {
	Object  string              `json:"object"`
	Data    []models.Attachment `json:"data"`
	HasMore bool                `json:"has_more"`
}

// ListAttachments returns the current attachments for an email, in provider
// order. An email with no attachments yields an empty slice, not an error.
func (c *Client) ListAttachments(ctx context.Context, emailID string) ([]models.Attachment, error) {
	url := fmt.Sprintf("%s/emails/receiving/%s/attachments", c.baseURL, emailID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.authed.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("resend API returned HTTP %d for email %s: %s",
			resp.StatusCode, emailID, string(body))
	}

	var list attachmentList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode attachment list: %w", err)
	}

	return list.Data, nil
}

// Download fetches the raw bytes behind a short-lived attachment URL.
// A non-2xx status is an error carrying the status code; the caller skips
// the attachment rather than retrying — the URL may already have expired.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("attachment download returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}

	return data, nil
}
