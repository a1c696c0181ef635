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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/receiptbox/ingestion/internal/models"
)

const chatModel = "solar-pro2"

// chatRequest is the OpenAI-compatible chat completion request the solar
// API accepts.
type chatRequest struct {
	Model           string          `json:"model"`
	Messages        []chatMessage   `json:"messages"`
	Stream          bool            `json:"stream"`
	Temperature     float64         `json:"temperature"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	ResponseFormat  *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// receiptSchema constrains the model to exactly the two extracted fields.
var receiptSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"merchant_name": {"type": "string", "description": "store or merchant name"},
		"total_amount": {"type": "number", "description": "total amount on the receipt"}
	},
	"required": ["merchant_name", "total_amount"],
	"additionalProperties": false
}`)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractReceipt submits an extraction prompt to the chat completion API and
// returns the structured result. A refusal or empty completion yields
// (nil, nil) — "no data extracted" is not an error; the caller applies
// sentinel defaults instead of dropping the attachment.
func (c *Client) ExtractReceipt(ctx context.Context, prompt string) (*models.ExtractedReceipt, error) {
	reqBody := chatRequest{
		Model: chatModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Stream:          false,
		Temperature:     0.7,
		ReasoningEffort: "high",
		MaxTokens:       16384,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   "receipt_extraction",
				Strict: true,
				Schema: receiptSchema,
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upstage API returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("chat response contained no choices")
	}

	msg := cr.Choices[0].Message
	if msg.Refusal != "" {
		slog.Warn("model refused extraction", "refusal", msg.Refusal)
		return nil, nil
	}
	if strings.TrimSpace(msg.Content) == "" {
		slog.Warn("empty content in chat response")
		return nil, nil
	}

	extracted, err := parseExtraction(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	return extracted, nil
}

// parseExtraction unmarshals the completion content. Models occasionally
// wrap structured output in markdown fences even under a JSON schema, so
// strip them before decoding.
func parseExtraction(content string) (*models.ExtractedReceipt, error) {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var extracted models.ExtractedReceipt
	if err := json.Unmarshal([]byte(text), &extracted); err != nil {
		return nil, fmt.Errorf("unmarshal extraction JSON: %w", err)
	}

	return &extracted, nil
}
