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

// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline. Per-attachment failures never surface in the webhook response,
// so these counters are the only aggregate failure signal.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	WebhookEvents        *prometheus.CounterVec
	AttachmentsProcessed *prometheus.CounterVec
	ReceiptsStored       prometheus.Counter
	ProcessingTime       prometheus.Histogram
}

// New creates the pipeline metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_webhook_events_total",
			Help: "Webhook deliveries received, by outcome (processed, filtered, rejected, error)",
		}, []string{"outcome"}),
		AttachmentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_attachments_processed_total",
			Help: "Attachments handled by the pipeline, by outcome (stored, skipped, failed)",
		}, []string{"outcome"}),
		ReceiptsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_stored_total",
			Help: "Receipt rows inserted",
		}),
		ProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipts_attachment_processing_duration_seconds",
			Help:    "Time spent processing a single attachment end to end",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.AttachmentsProcessed,
		m.ReceiptsStored,
		m.ProcessingTime,
	)

	return m
}
