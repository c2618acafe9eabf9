package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the on-disk configuration for coworkd.
type Config struct {
	// ListenAddr is the host:port the HTTP API binds to.
	// If empty, it defaults to 127.0.0.1:8787.
	ListenAddr string `json:"listen_addr,omitempty"`

	// StateDir holds the SQLite database and other local state.
	// If empty, it defaults to ~/.coworkd.
	StateDir string `json:"state_dir,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `json:"log_level,omitempty"`

	// QuestionTimeoutSec is the per-question wait before a blocked run fails
	// with a timeout. When zero, it defaults to 5 minutes.
	QuestionTimeoutSec int `json:"question_timeout_sec,omitempty"`
	// QuestionMaxAgeSec is the sweep-based upper bound on a pending question's
	// lifetime. When zero, it defaults to 10 minutes.
	QuestionMaxAgeSec int `json:"question_max_age_sec,omitempty"`
	// QuestionSweepSec is the interval between sweep passes.
	// When zero, it defaults to 5 minutes.
	QuestionSweepSec int `json:"question_sweep_sec,omitempty"`

	// AgentRetentionSec controls how long finished sub-agent runtime entries
	// are kept in memory for inspection. When zero, it defaults to 30 minutes.
	AgentRetentionSec int `json:"agent_retention_sec,omitempty"`

	// AgentRunTimeoutSec caps a delegated sub-agent's wall time. The result
	// rendezvous lives at least this long so a run can never be starved by a
	// shorter delivery window. When zero, it defaults to 10 minutes.
	AgentRunTimeoutSec int `json:"agent_run_timeout_sec,omitempty"`
}

const (
	DefaultListenAddr = "127.0.0.1:8787"

	defaultQuestionTimeout = 5 * time.Minute
	defaultQuestionMaxAge  = 10 * time.Minute
	defaultQuestionSweep   = 5 * time.Minute
	defaultAgentRetention  = 30 * time.Minute
	defaultAgentRunTimeout = 10 * time.Minute
)

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if addr := strings.TrimSpace(c.ListenAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid listen_addr: %w", err)
		}
	}
	switch strings.TrimSpace(c.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	switch strings.TrimSpace(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	if c.QuestionTimeoutSec < 0 || c.QuestionMaxAgeSec < 0 || c.QuestionSweepSec < 0 || c.AgentRetentionSec < 0 || c.AgentRunTimeoutSec < 0 {
		return errors.New("durations must not be negative")
	}
	if c.QuestionTimeoutSec > 0 && c.QuestionMaxAgeSec > 0 && c.QuestionMaxAgeSec < c.QuestionTimeoutSec {
		return errors.New("question_max_age_sec must be >= question_timeout_sec")
	}
	return nil
}

func (c *Config) Addr() string {
	if c == nil {
		return DefaultListenAddr
	}
	if addr := strings.TrimSpace(c.ListenAddr); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

func (c *Config) ResolveStateDir() string {
	if c != nil {
		if dir := strings.TrimSpace(c.StateDir); dir != "" {
			return filepath.Clean(dir)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".coworkd"
	}
	return filepath.Join(home, ".coworkd")
}

func (c *Config) QuestionTimeout() time.Duration {
	if c != nil && c.QuestionTimeoutSec > 0 {
		return time.Duration(c.QuestionTimeoutSec) * time.Second
	}
	return defaultQuestionTimeout
}

func (c *Config) QuestionMaxAge() time.Duration {
	if c != nil && c.QuestionMaxAgeSec > 0 {
		return time.Duration(c.QuestionMaxAgeSec) * time.Second
	}
	return defaultQuestionMaxAge
}

func (c *Config) QuestionSweepInterval() time.Duration {
	if c != nil && c.QuestionSweepSec > 0 {
		return time.Duration(c.QuestionSweepSec) * time.Second
	}
	return defaultQuestionSweep
}

func (c *Config) AgentRetention() time.Duration {
	if c != nil && c.AgentRetentionSec > 0 {
		return time.Duration(c.AgentRetentionSec) * time.Second
	}
	return defaultAgentRetention
}

func (c *Config) AgentRunTimeout() time.Duration {
	if c != nil && c.AgentRunTimeoutSec > 0 {
		return time.Duration(c.AgentRunTimeoutSec) * time.Second
	}
	return defaultAgentRunTimeout
}

// DefaultConfigPath returns the default config path:
//
//	~/.coworkd/config.json
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "coworkd.config.json"
	}
	return filepath.Join(home, ".coworkd", "config.json")
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	if c == nil {
		return errors.New("nil config")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}

// NewLogger builds the process logger from log_format/log_level.
func NewLogger(c *Config) *slog.Logger {
	format := "text"
	level := slog.LevelInfo
	if c != nil {
		if f := strings.TrimSpace(c.LogFormat); f != "" {
			format = f
		}
		switch strings.TrimSpace(c.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
