// Package config loads dmarc-reporter configuration files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultPort    = 993
	DefaultMailbox = "INBOX"

	// DefaultMemoryBytes is the soft limit handed to the runtime, matching
	// the 128 MiB ceiling the tool has always run under.
	DefaultMemoryBytes = 1 << 27

	// DefaultReportBytes caps a single decompressed report stream.
	DefaultReportBytes = 20 << 20
)

// IMAP holds mailbox connection settings.
type IMAP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
	// Subject restricts the search to messages whose Subject header
	// contains this string. Empty means every message in the mailbox.
	Subject string `yaml:"subject"`
}

// Limits holds resource ceilings for report processing.
type Limits struct {
	MemoryBytes int64 `yaml:"memory_bytes"`
	ReportBytes int64 `yaml:"report_bytes"`
}

// Config is the top-level configuration.
type Config struct {
	IMAP   IMAP   `yaml:"imap"`
	Limits Limits `yaml:"limits"`
}

// Load reads and validates a YAML configuration file, filling defaults for
// unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IMAP.Port == 0 {
		c.IMAP.Port = DefaultPort
	}
	if c.IMAP.Mailbox == "" {
		c.IMAP.Mailbox = DefaultMailbox
	}
	if c.Limits.MemoryBytes == 0 {
		c.Limits.MemoryBytes = DefaultMemoryBytes
	}
	if c.Limits.ReportBytes == 0 {
		c.Limits.ReportBytes = DefaultReportBytes
	}
}

func (c *Config) validate() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap.username is required")
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port %d out of range", c.IMAP.Port)
	}
	if c.Limits.ReportBytes < 0 || c.Limits.MemoryBytes < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}
