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

package upstage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode chat request: %v", err)
		}
		if req.Model != "solar-pro2" {
			t.Errorf("model = %q, want solar-pro2", req.Model)
		}
		if req.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Temperature)
		}
		if req.MaxTokens != 16384 {
			t.Errorf("max_tokens = %d, want 16384", req.MaxTokens)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Error("response_format should constrain to a JSON schema")
		} else if req.ResponseFormat.JSONSchema.Name != "receipt_extraction" {
			t.Errorf("schema name = %q, want receipt_extraction", req.ResponseFormat.JSONSchema.Name)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v, want a single user message", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
}

// TestExtractReceipt verifies a structured completion decodes into the
// extracted fields.
func TestExtractReceipt(t *testing.T) {
	server := chatServer(t, `{
		"choices": [
			{"message": {"content": "{\"merchant_name\": \"Store ABC\", \"total_amount\": 1200}"}}
		]
	}`)
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	extracted, err := c.ExtractReceipt(context.Background(), "Extract the receipt details")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted == nil {
		t.Fatal("expected a result")
	}
	if extracted.MerchantName != "Store ABC" || extracted.TotalAmount != 1200 {
		t.Errorf("extracted = %+v", extracted)
	}
}

// TestExtractReceipt_Refusal verifies a refusal yields no result and no
// error.
func TestExtractReceipt_Refusal(t *testing.T) {
	server := chatServer(t, `{
		"choices": [
			{"message": {"content": "", "refusal": "I can't help with that"}}
		]
	}`)
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	extracted, err := c.ExtractReceipt(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted != nil {
		t.Errorf("refusal should yield nil, got %+v", extracted)
	}
}

// TestExtractReceipt_EmptyContent verifies an empty completion yields no
// result and no error.
func TestExtractReceipt_EmptyContent(t *testing.T) {
	server := chatServer(t, `{"choices": [{"message": {"content": "  "}}]}`)
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	extracted, err := c.ExtractReceipt(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted != nil {
		t.Errorf("empty content should yield nil, got %+v", extracted)
	}
}

// TestExtractReceipt_APIError verifies transport-level failures are errors,
// unlike refusals.
func TestExtractReceipt_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	_, err := c.ExtractReceipt(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want the status code", err)
	}
}

// TestParseExtraction covers fenced and unfenced completion content.
func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantMerchant string
		wantAmount   float64
		wantError    bool
	}{
		{
			name:         "plain JSON",
			content:      `{"merchant_name": "Store ABC", "total_amount": 1200}`,
			wantMerchant: "Store ABC",
			wantAmount:   1200,
		},
		{
			name:         "fenced JSON",
			content:      "```json\n{\"merchant_name\": \"Cafe XYZ\", \"total_amount\": 800}\n```",
			wantMerchant: "Cafe XYZ",
			wantAmount:   800,
		},
		{
			name:      "not JSON",
			content:   "the merchant is Store ABC",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extracted, err := parseExtraction(tt.content)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if extracted.MerchantName != tt.wantMerchant {
				t.Errorf("merchant = %q, want %q", extracted.MerchantName, tt.wantMerchant)
			}
			if extracted.TotalAmount != tt.wantAmount {
				t.Errorf("amount = %v, want %v", extracted.TotalAmount, tt.wantAmount)
			}
		})
	}
}
