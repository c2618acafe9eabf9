package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "bad addr", cfg: Config{ListenAddr: "not-an-addr"}},
		{name: "bad format", cfg: Config{LogFormat: "yaml"}},
		{name: "bad level", cfg: Config{LogLevel: "trace"}},
		{name: "negative timeout", cfg: Config{QuestionTimeoutSec: -1}},
		{name: "negative run timeout", cfg: Config{AgentRunTimeoutSec: -1}},
		{name: "max age below timeout", cfg: Config{QuestionTimeoutSec: 600, QuestionMaxAgeSec: 60}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate()=nil, want error")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate()=%v, want nil", err)
	}
	if got := c.Addr(); got != DefaultListenAddr {
		t.Fatalf("Addr()=%q, want %q", got, DefaultListenAddr)
	}
	if got := c.QuestionTimeout(); got != 5*time.Minute {
		t.Fatalf("QuestionTimeout()=%v, want 5m", got)
	}
	if got := c.QuestionMaxAge(); got != 10*time.Minute {
		t.Fatalf("QuestionMaxAge()=%v, want 10m", got)
	}
	if got := c.QuestionSweepInterval(); got != 5*time.Minute {
		t.Fatalf("QuestionSweepInterval()=%v, want 5m", got)
	}
	if got := c.AgentRunTimeout(); got != 10*time.Minute {
		t.Fatalf("AgentRunTimeout()=%v, want 10m", got)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	in := &Config{
		ListenAddr:         "127.0.0.1:9999",
		LogFormat:          "json",
		LogLevel:           "debug",
		QuestionTimeoutSec: 30,
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.ListenAddr != in.ListenAddr || out.LogFormat != in.LogFormat || out.QuestionTimeoutSec != in.QuestionTimeoutSec {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
