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

// Package webhook handles inbound email-received events. When the mail
// provider receives an email it POSTs an event to the registered webhook
// URL; this handler runs the receipt pipeline over the email's attachments
// and reports the aggregate outcome.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/receiptbox/ingestion/internal/metrics"
	"github.com/receiptbox/ingestion/internal/models"
	"github.com/receiptbox/ingestion/internal/receipts"
)

// Processor runs the attachment pipeline for one inbound email event.
type Processor interface {
	Process(ctx context.Context, event *models.InboundEmailEvent) error
}

// ReceiptLister serves the read side: receipts newest-first.
type ReceiptLister interface {
	ListRecent(ctx context.Context, limit int) ([]receipts.Record, error)
}

// Credentials are the provider secrets the pipeline cannot run without.
// They are validated at startup, and re-checked per request so a delivery
// arriving with the environment in a bad state fails fast with a 500
// before any provider call.
type Credentials struct {
	ResendAPIKey  string
	UpstageAPIKey string
}

// Handler processes inbound webhook deliveries.
type Handler struct {
	processor Processor
	lister    ReceiptLister
	creds     Credentials
	metrics   *metrics.Metrics
}

// NewHandler creates a webhook handler.
func NewHandler(processor Processor, lister ReceiptLister, creds Credentials, m *metrics.Metrics) *Handler {
	return &Handler{
		processor: processor,
		lister:    lister,
		creds:     creds,
		metrics:   m,
	}
}

// response is the webhook's JSON reply envelope.
type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ServeWebhook handles inbound email-received events.
//
//   - non-POST → 405, no body processing
//   - malformed JSON → 400
//   - unrecognised event type → 200 (filtering, not an error)
//   - missing credentials → 500 before any provider call
//   - listing failure → 500 with the error message
//   - loop completion → 200 regardless of per-attachment outcomes
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	deliveryID := uuid.New().String()

	var event models.InboundEmailEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		slog.Error("failed to decode webhook payload",
			"delivery_id", deliveryID,
			"error", err,
		)
		h.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalid JSON payload"})
		return
	}

	if event.Type != models.EventTypeEmailReceived {
		slog.Info("ignoring non-email event",
			"delivery_id", deliveryID,
			"type", event.Type,
		)
		h.metrics.WebhookEvents.WithLabelValues("filtered").Inc()
		writeJSON(w, http.StatusOK, response{Success: true})
		return
	}

	if h.creds.ResendAPIKey == "" || h.creds.UpstageAPIKey == "" {
		slog.Error("missing required API keys", "delivery_id", deliveryID)
		h.metrics.WebhookEvents.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Error: "missing required API keys"})
		return
	}

	slog.Info("webhook delivery received",
		"delivery_id", deliveryID,
		"email_id", event.Data.EmailID,
		"from", event.Data.From,
		"created_at", event.Data.CreatedAt,
		"subject", event.Data.Subject,
	)

	if err := h.processor.Process(r.Context(), &event); err != nil {
		slog.Error("email processing failed",
			"delivery_id", deliveryID,
			"email_id", event.Data.EmailID,
			"error", err,
		)
		h.metrics.WebhookEvents.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Error: err.Error()})
		return
	}

	h.metrics.WebhookEvents.WithLabelValues("processed").Inc()
	writeJSON(w, http.StatusOK, response{Success: true})
}

// ServeReceipts lists stored receipts ordered by creation time descending.
func (h *Handler) ServeReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.lister.ListRecent(r.Context(), 100)
	if err != nil {
		slog.Error("failed to list receipts", "error", err)
		http.Error(w, "failed to list receipts", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []receipts.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		slog.Error("failed to encode receipts", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
