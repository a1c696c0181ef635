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

// Package receipts provides a Postgres-backed store for processed receipt
// records. Rows are written exactly once per successfully processed
// attachment and never updated or deleted by the pipeline.
package receipts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record represents a single stored receipt.
//
// MerchantName and TotalAmount carry the sentinel values "unknown" / -1
// when extraction returned no result; a sentinel row still means the
// attachment itself was readable and stored.
type Record struct {
	ID           int64     `json:"id"`
	MerchantName string    `json:"merchant_name"`
	TotalAmount  float64   `json:"total_amount"`
	ImageURL     string    `json:"image_url"`
	EmailID      string    `json:"email_id"`
	AttachmentID string    `json:"attachment_id"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store provides receipt persistence in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a receipt store backed by the given Postgres pool.
// It ensures the receipts table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure receipts schema: %w", err)
	}
	slog.Info("receipt store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS receipts (
			id            BIGSERIAL PRIMARY KEY,
			merchant_name TEXT NOT NULL DEFAULT '',
			total_amount  DOUBLE PRECISION NOT NULL DEFAULT -1,
			image_url     TEXT NOT NULL DEFAULT '',
			email_id      TEXT NOT NULL DEFAULT '',
			attachment_id TEXT NOT NULL DEFAULT '',
			filename      TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_receipts_created ON receipts(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_receipts_email ON receipts(email_id);
	`)
	return err
}

// Insert writes one receipt record and returns its assigned ID. created_at
// is server-assigned.
func (s *Store) Insert(ctx context.Context, r Record) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO receipts
			(merchant_name, total_amount, image_url, email_id, attachment_id, filename)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.MerchantName, r.TotalAmount, r.ImageURL, r.EmailID, r.AttachmentID, r.Filename).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert receipt: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit receipts ordered by creation time
// descending. This is the read contract consumed by the listing UI.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, merchant_name, total_amount, image_url,
		       email_id, attachment_id, filename, created_at
		FROM receipts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.MerchantName, &r.TotalAmount, &r.ImageURL,
			&r.EmailID, &r.AttachmentID, &r.Filename, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
