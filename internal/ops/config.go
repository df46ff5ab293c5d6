package ops

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Broker  BrokerConfig  `json:"broker"`
	Archive ArchiveConfig `json:"archive"`
	Profile ProfileConfig `json:"profile"`
}

// BrokerConfig describes the endpoint and credentials.
type BrokerConfig struct {
	Endpoint         string   `json:"endpoint"`
	Login            string   `json:"login"`
	Passcode         string   `json:"passcode"`
	Destination      string   `json:"destination"`
	CallDestination  string   `json:"callDestination"`
	HeartbeatSeconds int      `json:"heartbeatSeconds"`
	AnchorFiles      []string `json:"anchorFiles"`
}

// ArchiveConfig describes the optional frame archive sink.
type ArchiveConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// ProfileConfig describes optional continuous profiling.
type ProfileConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
}

// Load reads and validates a JSON config file.
func Load(path string) (FileConfig, error) {
	var cfg FileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (cfg FileConfig) Validate() error {
	if cfg.Broker.Endpoint == "" {
		return fmt.Errorf("config: broker.endpoint is required")
	}
	if cfg.Broker.HeartbeatSeconds < 0 {
		return fmt.Errorf("config: broker.heartbeatSeconds must not be negative")
	}
	if cfg.Archive.Enabled && cfg.Archive.Database == "" {
		return fmt.Errorf("config: archive.database is required when archive is enabled")
	}
	if cfg.Profile.Enabled && cfg.Profile.ServerAddress == "" {
		return fmt.Errorf("config: profile.serverAddress is required when profiling is enabled")
	}
	return nil
}

// Heartbeat resolves the configured heartbeat interval, zero when
// unset (the client default applies).
func (cfg BrokerConfig) Heartbeat() time.Duration {
	return time.Duration(cfg.HeartbeatSeconds) * time.Second
}

// LoadAnchors reads PEM files into trust anchor certificates.
func (cfg BrokerConfig) LoadAnchors() ([]*x509.Certificate, error) {
	var anchors []*x509.Certificate
	for _, path := range cfg.AnchorFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read anchor %s: %w", path, err)
		}
		for len(raw) > 0 {
			var block *pem.Block
			block, raw = pem.Decode(raw)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse anchor %s: %w", path, err)
			}
			anchors = append(anchors, cert)
		}
	}
	return anchors, nil
}
