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

// Package config loads configuration from config.yaml and environment
// variables. Secrets come from the environment only — never from the YAML
// file itself, though the YAML may reference them as ${VAR}.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ingestion service.
type Config struct {
	// Provider secrets, environment-only.
	ResendAPIKey  string
	UpstageAPIKey string

	// Provider endpoints, overridable for testing.
	ResendBaseURL  string
	UpstageBaseURL string

	// Object storage
	StorageBucket    string
	StorageUploadURL string
	StorageToken     string

	// Postgres
	DatabaseURL string

	// Redis replay filter. Empty RedisURL or DedupEnabled=false disables it;
	// disabled is the default and redelivered webhooks then produce
	// duplicate rows.
	RedisURL     string
	DedupEnabled bool

	// HTTP server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL   string `yaml:"url"`
		Dedup bool   `yaml:"dedup"`
	} `yaml:"redis"`
	Storage struct {
		Bucket    string `yaml:"bucket"`
		UploadURL string `yaml:"upload_url"`
	} `yaml:"storage"`
	Providers struct {
		ResendBaseURL  string `yaml:"resend_base_url"`
		UpstageBaseURL string `yaml:"upstage_base_url"`
	} `yaml:"providers"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. Missing provider secrets are a fatal condition.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	if data, err := os.ReadFile(configPath); err == nil {
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		UpstageAPIKey:    os.Getenv("UPSTAGE_API_KEY"),
		ResendBaseURL:    firstNonEmpty(raw.Providers.ResendBaseURL, os.Getenv("RESEND_BASE_URL")),
		UpstageBaseURL:   firstNonEmpty(raw.Providers.UpstageBaseURL, os.Getenv("UPSTAGE_BASE_URL")),
		StorageBucket:    firstNonEmpty(raw.Storage.Bucket, os.Getenv("STORAGE_BUCKET")),
		StorageUploadURL: firstNonEmpty(raw.Storage.UploadURL, os.Getenv("STORAGE_UPLOAD_URL")),
		StorageToken:     os.Getenv("STORAGE_API_TOKEN"),
		DatabaseURL:      firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:         firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		DedupEnabled:     raw.Redis.Dedup || envBool("DEDUP_ENABLED"),
		Port:             firstNonZero(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
	}

	var missing []string
	if cfg.ResendAPIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if cfg.UpstageAPIKey == "" {
		missing = append(missing, "UPSTAGE_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required API keys: %s", strings.Join(missing, ", "))
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StorageBucket == "" {
		return nil, fmt.Errorf("storage bucket is required — set storage.bucket or STORAGE_BUCKET")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
