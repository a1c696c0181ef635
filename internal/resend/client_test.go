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

package resend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestListAttachments verifies the list endpoint path and response decoding.
func TestListAttachments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails/receiving/email-1/attachments" {
			t.Errorf("path = %q, want the receiving attachments path", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"data": [
				{
					"id": "att-1",
					"filename": "receipt.png",
					"content_type": "image/png",
					"content_disposition": "attachment",
					"download_url": "https://files.example.com/att-1"
				}
			],
			"has_more": false
		}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.Client(), server.URL)

	attachments, err := c.ListAttachments(context.Background(), "email-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}
	att := attachments[0]
	if att.ID != "att-1" || att.Filename != "receipt.png" {
		t.Errorf("attachment = %+v", att)
	}
	if att.DownloadURL != "https://files.example.com/att-1" {
		t.Errorf("download_url = %q", att.DownloadURL)
	}
}

// TestListAttachments_Empty verifies an email without attachments yields an
// empty slice, not an error.
func TestListAttachments_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object": "list", "data": [], "has_more": false}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.Client(), server.URL)

	attachments, err := c.ListAttachments(context.Background(), "email-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attachments) != 0 {
		t.Errorf("attachments = %d, want 0", len(attachments))
	}
}

// TestListAttachments_ProviderError verifies the error carries the status
// code and body text.
func TestListAttachments_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message": "try again later"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.Client(), server.URL)

	_, err := c.ListAttachments(context.Background(), "email-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "try again later") {
		t.Errorf("error = %v, want status and body", err)
	}
}

// TestDownload verifies raw byte retrieval from a pre-signed URL.
func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("pre-signed download must not carry the API key, got %q", auth)
		}
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.Client(), server.URL)

	data, err := c.Download(context.Background(), server.URL+"/files/att-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q, want png-bytes", data)
	}
}

// TestDownload_NonSuccessStatus verifies expired URLs surface as errors the
// pipeline can log and skip.
func TestDownload_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.Client(), server.URL)

	_, err := c.Download(context.Background(), server.URL+"/files/expired")
	if err == nil {
		t.Fatal("expected error for 404 download")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want the status code", err)
	}
}
