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

// Package models defines the data structures shared across the ingestion service.
package models

// EventTypeEmailReceived is the only webhook event type this service acts on.
// All other types are filtered, not rejected.
const EventTypeEmailReceived = "email.received"

// InboundEmailEvent represents one webhook delivery from the mail provider.
type InboundEmailEvent struct {
	Type      string    `json:"type"`
	CreatedAt string    `json:"created_at"`
	Data      EmailData `json:"data"`
}

// EmailData carries the email described by an inbound event. The embedded
// attachment list is informational only — the pipeline re-lists attachments
// by EmailID to obtain fresh download URLs.
type EmailData struct {
	EmailID     string       `json:"email_id"`
	CreatedAt   string       `json:"created_at"`
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc"`
	Bcc         []string     `json:"bcc"`
	MessageID   string       `json:"message_id"`
	Subject     string       `json:"subject"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment represents a file attached to an email. DownloadURL is
// short-lived and must be fetched promptly, never cached.
type Attachment struct {
	ID                 string `json:"id"`
	Filename           string `json:"filename"`
	ContentType        string `json:"content_type"`
	ContentDisposition string `json:"content_disposition"`
	ContentID          string `json:"content_id,omitempty"`
	DownloadURL        string `json:"download_url"`
}
