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

// Package storage uploads attachment bytes to a Google Cloud Storage bucket
// via the JSON API. Objects are made publicly readable on insert so the
// listing UI can render the stored receipt image from a stable URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultUploadBaseURL is the GCS JSON API media-upload root.
	DefaultUploadBaseURL = "https://storage.googleapis.com/upload/storage/v1"
	// publicBaseURL is the canonical public-object host.
	publicBaseURL = "https://storage.googleapis.com"
)

// Client uploads objects to a single bucket. The httpClient must already
// handle authentication (e.g. an oauth2 token source for the service
// account).
type Client struct {
	httpClient    *http.Client
	uploadBaseURL string
	bucket        string
}

// NewClient creates a storage client for the given bucket.
func NewClient(httpClient *http.Client, uploadBaseURL, bucket string) *Client {
	if uploadBaseURL == "" {
		uploadBaseURL = DefaultUploadBaseURL
	}
	return &Client{
		httpClient:    httpClient,
		uploadBaseURL: uploadBaseURL,
		bucket:        bucket,
	}
}

// ObjectKey builds a collision-resistant object path for an attachment.
// The millisecond timestamp prefix keeps same-named attachments from
// distinct emails apart.
func ObjectKey(filename string, now time.Time) string {
	return fmt.Sprintf("receipts/%d_%s", now.UnixMilli(), filename)
}

// Upload stores data under key, marks it publicly readable, and returns the
// canonical public URL.
func (c *Client) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	u := fmt.Sprintf("%s/b/%s/o?uploadType=media&name=%s&predefinedAcl=publicRead",
		c.uploadBaseURL, url.PathEscape(c.bucket), url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage API returned HTTP %d for %s: %s",
			resp.StatusCode, key, string(body))
	}

	return fmt.Sprintf("%s/%s/%s", publicBaseURL, c.bucket, key), nil
}
