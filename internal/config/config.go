// Package config loads runtime configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all tunables for the trail recorder core. Values come from
// TRAILCORE_* environment variables with sensible offline-first defaults.
type Config struct {
	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	// Remote backend (row store + blob storage). Empty base URL leaves the
	// device in permanent offline mode; everything still works locally.
	RemoteBaseURL  string `envconfig:"REMOTE_BASE_URL"`
	RemoteAPIKey   string `envconfig:"REMOTE_API_KEY"`
	POIBucket      string `envconfig:"POI_BUCKET" default:"poi-assets"`
	BrochureBucket string `envconfig:"BROCHURE_BUCKET" default:"brochure-assets"`

	// Sync behaviour.
	SyncInterval   time.Duration `envconfig:"SYNC_INTERVAL" default:"5m"`
	QueueBatchSize int           `envconfig:"QUEUE_BATCH_SIZE" default:"25"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// Connectivity probe.
	ProbeInterval time.Duration `envconfig:"PROBE_INTERVAL" default:"30s"`

	// Local status API.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8099"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("trailcore", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
