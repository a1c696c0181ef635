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

// Package pipeline processes the attachments of one inbound email:
// download, OCR, structured extraction, storage upload, and one receipt
// row per attachment. Attachments are processed sequentially and
// independently — one attachment's failure never aborts its siblings.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/receiptbox/ingestion/internal/metrics"
	"github.com/receiptbox/ingestion/internal/models"
	"github.com/receiptbox/ingestion/internal/receipts"
	"github.com/receiptbox/ingestion/internal/storage"
	"github.com/receiptbox/ingestion/internal/upstage"
)

// MailProvider lists an email's attachments and downloads their bytes.
type MailProvider interface {
	ListAttachments(ctx context.Context, emailID string) ([]models.Attachment, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// DocumentParser runs OCR over raw attachment bytes.
type DocumentParser interface {
	ParseDocument(ctx context.Context, filename, contentType string, data []byte) (*upstage.ParseResult, error)
}

// Extractor turns OCR text into structured receipt fields. A nil result
// with a nil error means the model refused or returned nothing.
type Extractor interface {
	ExtractReceipt(ctx context.Context, prompt string) (*models.ExtractedReceipt, error)
}

// ObjectStore persists the original attachment bytes and returns a public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ReceiptStore inserts one receipt row per processed attachment.
type ReceiptStore interface {
	Insert(ctx context.Context, r receipts.Record) (int64, error)
}

// ReplayFilter reports whether an email/attachment pair is new. Optional —
// without one, redelivered webhooks produce duplicate rows.
type ReplayFilter interface {
	IsNew(ctx context.Context, emailID, attachmentID string) (bool, error)
}

// Pipeline wires the collaborators for one deployment. All fields except
// Filter are required.
type Pipeline struct {
	mail    MailProvider
	parser  DocumentParser
	extract Extractor
	objects ObjectStore
	store   ReceiptStore
	filter  ReplayFilter
	metrics *metrics.Metrics
}

// Config collects the pipeline's collaborators.
type Config struct {
	Mail    MailProvider
	Parser  DocumentParser
	Extract Extractor
	Objects ObjectStore
	Store   ReceiptStore
	Filter  ReplayFilter // nil disables replay filtering
	Metrics *metrics.Metrics
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		mail:    cfg.Mail,
		parser:  cfg.Parser,
		extract: cfg.Extract,
		objects: cfg.Objects,
		store:   cfg.Store,
		filter:  cfg.Filter,
		metrics: cfg.Metrics,
	}
}

// Process ingests every attachment of the email named by event. A listing
// failure aborts the whole request; everything past the listing is
// best-effort per attachment, logged and counted but never propagated.
func (p *Pipeline) Process(ctx context.Context, event *models.InboundEmailEvent) error {
	emailID := event.Data.EmailID

	slog.Info("processing email",
		"email_id", emailID,
		"from", event.Data.From,
		"subject", event.Data.Subject,
		"attachment_count", len(event.Data.Attachments),
	)

	attachments, err := p.mail.ListAttachments(ctx, emailID)
	if err != nil {
		return fmt.Errorf("list attachments for %s: %w", emailID, err)
	}

	if len(attachments) == 0 {
		slog.Warn("no attachments found", "email_id", emailID)
		return nil
	}

	for _, att := range attachments {
		start := time.Now()

		outcome, err := p.processAttachment(ctx, emailID, att)
		if err != nil {
			slog.Error("failed to process attachment",
				"email_id", emailID,
				"filename", att.Filename,
				"error", err,
			)
		}

		p.metrics.AttachmentsProcessed.WithLabelValues(outcome).Inc()
		p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}

	return nil
}

// Attachment outcomes recorded in metrics.
const (
	outcomeStored  = "stored"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// processAttachment runs one attachment through download, OCR, extraction,
// upload, and insert. Any error aborts only this attachment.
func (p *Pipeline) processAttachment(ctx context.Context, emailID string, att models.Attachment) (string, error) {
	slog.Info("processing attachment",
		"email_id", emailID,
		"filename", att.Filename,
		"content_type", att.ContentType,
	)

	if p.filter != nil {
		isNew, err := p.filter.IsNew(ctx, emailID, att.ID)
		if err != nil {
			// Replay filtering is advisory — process anyway.
			slog.Warn("replay check failed, proceeding", "error", err)
		} else if !isNew {
			slog.Info("skipping already-processed attachment",
				"email_id", emailID,
				"attachment_id", att.ID,
			)
			return outcomeSkipped, nil
		}
	}

	data, err := p.mail.Download(ctx, att.DownloadURL)
	if err != nil {
		return outcomeFailed, fmt.Errorf("download: %w", err)
	}

	ocr, err := p.parser.ParseDocument(ctx, att.Filename, att.ContentType, data)
	if err != nil {
		return outcomeFailed, fmt.Errorf("ocr: %w", err)
	}
	slog.Info("ocr completed",
		"filename", att.Filename,
		"text_length", len(ocr.Content.Markdown),
	)

	extracted, err := p.extract.ExtractReceipt(ctx, buildPrompt(ocr.Content.Markdown))
	if err != nil {
		return outcomeFailed, fmt.Errorf("extraction: %w", err)
	}

	merchant := models.UnknownMerchant
	amount := models.UnknownAmount
	if extracted != nil {
		if extracted.MerchantName != "" {
			merchant = extracted.MerchantName
		}
		if extracted.TotalAmount != 0 {
			amount = extracted.TotalAmount
		}
	}

	key := storage.ObjectKey(att.Filename, time.Now())
	imageURL, err := p.objects.Upload(ctx, key, att.ContentType, data)
	if err != nil {
		return outcomeFailed, fmt.Errorf("storage upload: %w", err)
	}

	id, err := p.store.Insert(ctx, receipts.Record{
		MerchantName: merchant,
		TotalAmount:  amount,
		ImageURL:     imageURL,
		EmailID:      emailID,
		AttachmentID: att.ID,
		Filename:     att.Filename,
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("insert receipt: %w", err)
	}

	p.metrics.ReceiptsStored.Inc()
	slog.Info("receipt stored",
		"receipt_id", id,
		"merchant_name", merchant,
		"total_amount", amount,
		"image_url", imageURL,
	)

	return outcomeStored, nil
}

// buildPrompt embeds the OCR markdown into the fixed extraction template.
func buildPrompt(markdown string) string {
	return fmt.Sprintf(`Extract the receipt details from the following OCR output.
Fields to extract:
- merchant_name: the store or merchant name
- total_amount: the total amount on the receipt

OCR output:
%s
`, markdown)
}
