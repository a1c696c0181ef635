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

package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestUpload verifies the media-upload request shape and the returned
// public URL.
func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/b/test-bucket/o" {
			t.Errorf("path = %q, want /b/test-bucket/o", r.URL.Path)
		}

		q := r.URL.Query()
		if q.Get("uploadType") != "media" {
			t.Errorf("uploadType = %q, want media", q.Get("uploadType"))
		}
		if q.Get("name") != "receipts/1700000000000_receipt.png" {
			t.Errorf("name = %q", q.Get("name"))
		}
		if q.Get("predefinedAcl") != "publicRead" {
			t.Errorf("predefinedAcl = %q, want publicRead", q.Get("predefinedAcl"))
		}

		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %q, want image/png", ct)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != "png-bytes" {
			t.Errorf("body = %q", data)
		}

		w.Write([]byte(`{"name": "receipts/1700000000000_receipt.png"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, "test-bucket")

	url, err := c.Upload(context.Background(), "receipts/1700000000000_receipt.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "https://storage.googleapis.com/test-bucket/receipts/1700000000000_receipt.png"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

// TestUpload_DefaultContentType verifies the octet-stream fallback.
func TestUpload_DefaultContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("content type = %q, want application/octet-stream", ct)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, "test-bucket")

	if _, err := c.Upload(context.Background(), "receipts/1_file", "", []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestUpload_APIError verifies the error carries the status and body.
func TestUpload_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "insufficient permissions"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, "test-bucket")

	_, err := c.Upload(context.Background(), "receipts/1_file", "image/png", []byte("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "insufficient permissions") {
		t.Errorf("error = %v, want status and body", err)
	}
}

// TestObjectKey verifies the timestamp-prefixed key format.
func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	key := ObjectKey("receipt.png", now)
	if key != "receipts/1700000000000_receipt.png" {
		t.Errorf("key = %q", key)
	}

	// Same filename at a different instant must not collide.
	other := ObjectKey("receipt.png", now.Add(time.Millisecond))
	if other == key {
		t.Error("keys for distinct instants should differ")
	}
}
