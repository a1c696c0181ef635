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

// Package upstage implements clients for the Upstage document-digitization
// (OCR) and solar chat-completion APIs. Both share the same API key and
// base URL; the pipeline uses document parse to turn receipt images into
// markdown and the chat API to extract structured fields from it.
package upstage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// DefaultBaseURL is the root of the Upstage API.
const DefaultBaseURL = "https://api.upstage.ai/v1"

// parseModel pins the document-parse model revision.
const parseModel = "document-parse-250618"

// Client talks to the Upstage API. The httpClient must already handle
// authentication (e.g. via an oauth2 static token source).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an Upstage client.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Content holds the rendered text of a parsed document or element.
type Content struct {
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
}

// Element is one layout element recognised in the document.
type Element struct {
	Category    string      `json:"category"`
	Content     Content     `json:"content"`
	Coordinates [][]float64 `json:"coordinates"`
	ID          int         `json:"id"`
	Page        int         `json:"page"`
}

// ParseResult is the document-digitization response.
type ParseResult struct {
	Content  Content   `json:"content"`
	Elements []Element `json:"elements"`
	Model    string    `json:"model,omitempty"`
	MimeType string    `json:"mimetype,omitempty"`
}

// ParseDocument submits raw document bytes for OCR, requesting HTML and
// markdown renderings plus chart recognition and layout coordinates.
func (c *Client) ParseDocument(ctx context.Context, filename, contentType string, data []byte) (*ParseResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := createDocumentPart(w, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("create document part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write document part: %w", err)
	}

	fields := map[string]string{
		"model":             parseModel,
		"ocr":               "auto",
		"chart_recognition": "true",
		"coordinates":       "true",
		"output_formats":    `["html","markdown"]`,
		"base64_encoding":   `["figure"]`,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.baseURL + "/document-digitization"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document parse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upstage API returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result ParseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode parse result: %w", err)
	}

	return &result, nil
}

// createDocumentPart builds the file part with the attachment's own content
// type instead of the multipart default of application/octet-stream.
func createDocumentPart(w *multipart.Writer, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		return w.CreateFormFile("document", filename)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="document"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	return w.CreatePart(h)
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
