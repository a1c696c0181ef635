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

// Receiptbox — Ingestion Service
//
// Entry point for the receipt ingestion service. It:
//  1. Loads configuration and provider secrets
//  2. Connects to PostgreSQL (and Redis when replay filtering is enabled)
//  3. Builds authenticated HTTP clients for the mail, OCR, and storage APIs
//  4. Serves the inbound webhook, receipt listing, health, and metrics
//     endpoints
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/receiptbox/ingestion/internal/config"
	"github.com/receiptbox/ingestion/internal/dedup"
	"github.com/receiptbox/ingestion/internal/metrics"
	"github.com/receiptbox/ingestion/internal/pipeline"
	"github.com/receiptbox/ingestion/internal/receipts"
	"github.com/receiptbox/ingestion/internal/resend"
	"github.com/receiptbox/ingestion/internal/storage"
	"github.com/receiptbox/ingestion/internal/upstage"
	"github.com/receiptbox/ingestion/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting receiptbox ingestion service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"bucket", cfg.StorageBucket,
		"dedup", cfg.DedupEnabled,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	store, err := receipts.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise receipt store", "error", err)
		os.Exit(1)
	}

	// --- Replay Filter (optional) ---
	var filter *dedup.Filter
	var rdb *redis.Client
	if cfg.DedupEnabled && cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)

		filter = dedup.NewFilter(rdb)
		if err := filter.Ping(ctx); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis, replay filtering enabled")
	}

	// --- Build authenticated provider clients ---
	// Bearer-key APIs get an oauth2 static token source so every request
	// carries the right Authorization header without per-call plumbing.
	resendClient := resend.NewClient(
		bearerClient(ctx, cfg.ResendAPIKey),
		&http.Client{Timeout: 60 * time.Second},
		cfg.ResendBaseURL,
	)
	upstageClient := upstage.NewClient(bearerClient(ctx, cfg.UpstageAPIKey), cfg.UpstageBaseURL)
	storageClient := storage.NewClient(
		bearerClient(ctx, cfg.StorageToken),
		cfg.StorageUploadURL,
		cfg.StorageBucket,
	)

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// --- Pipeline ---
	pipeCfg := pipeline.Config{
		Mail:    resendClient,
		Parser:  upstageClient,
		Extract: upstageClient,
		Objects: storageClient,
		Store:   store,
		Metrics: m,
	}
	if filter != nil {
		pipeCfg.Filter = filter
	}
	pipe := pipeline.New(pipeCfg)

	// --- HTTP Server ---
	handler := webhook.NewHandler(pipe, store, webhook.Credentials{
		ResendAPIKey:  cfg.ResendAPIKey,
		UpstageAPIKey: cfg.UpstageAPIKey,
	}, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/resend", handler.ServeWebhook)
	mux.HandleFunc("/receipts", handler.ServeReceipts)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pgPool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
			return
		}
		if filter != nil {
			if err := filter.Ping(r.Context()); err != nil {
				http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Attachments move through download, OCR, extraction, and upload
		// sequentially inside one request; allow several minutes.
		WriteTimeout: 9 * time.Minute,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		if rdb != nil {
			rdb.Close()
		}
		pgPool.Close()
	}()

	slog.Info("ingestion service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("ingestion service stopped")
}

// bearerClient builds an *http.Client whose requests carry the given token
// as an Authorization: Bearer header.
func bearerClient(ctx context.Context, token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = 5 * time.Minute
	return client
}
