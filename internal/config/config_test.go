package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cfguard/internal/models"
)

func TestParseKeyValue(t *testing.T) {
	in := []byte(`# cf guard
ZONE_ID=abc123
CF_API_TOKEN="tok en"
LOAD_THRESHOLD = 4.5   # inline comment
LOW_LOAD_MODE='high'
export COOLDOWN_HOURS=1.5
ALERT_COMMAND="notify #MSG# now"
not a setting
`)
	got, err := parseKeyValue(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{
		"ZONE_ID":        "abc123",
		"CF_API_TOKEN":   "tok en",
		"LOAD_THRESHOLD": "4.5",
		"LOW_LOAD_MODE":  "high",
		"COOLDOWN_HOURS": "1.5",
		"ALERT_COMMAND":  "notify #MSG# now",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys %v, want %d", len(got), got, len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestFromSourceDefaults(t *testing.T) {
	cfg, err := fromSource(source{file: map[string]string{"ZONE_ID": "z", "CF_API_TOKEN": "t"}})
	if err != nil {
		t.Fatalf("fromSource: %v", err)
	}
	if cfg.Threshold != 7.0 {
		t.Fatalf("threshold = %v, want 7", cfg.Threshold)
	}
	if cfg.LowLoadMode != models.ModeMedium {
		t.Fatalf("low load mode = %q", cfg.LowLoadMode)
	}
	if cfg.Cooldown != 3*time.Hour {
		t.Fatalf("cooldown = %v", cfg.Cooldown)
	}
	if cfg.Alert.Mode != AlertNone || cfg.Alert.Cooldown != 30*time.Minute {
		t.Fatalf("alert = %+v", cfg.Alert)
	}
	if !cfg.Alert.SlackBlocks {
		t.Fatal("slack blocks should default to true")
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("api timeout = %v", cfg.APITimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	env := map[string]string{"LOAD_THRESHOLD": "9", "CF_API_TOKEN": "from-env"}
	cfg, err := fromSource(source{
		file: map[string]string{"ZONE_ID": "z", "CF_API_TOKEN": "from-file", "LOAD_THRESHOLD": "2"},
		env: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	})
	if err != nil {
		t.Fatalf("fromSource: %v", err)
	}
	if cfg.Threshold != 9 || cfg.APIToken != "from-env" {
		t.Fatalf("env override not applied: threshold=%v token=%q", cfg.Threshold, cfg.APIToken)
	}
}

func TestValidationErrors(t *testing.T) {
	base := map[string]string{"ZONE_ID": "z", "CF_API_TOKEN": "t"}
	cases := []struct {
		name  string
		extra map[string]string
		key   string
	}{
		{"missing zone", map[string]string{"ZONE_ID": ""}, "ZONE_ID"},
		{"missing token", map[string]string{"CF_API_TOKEN": ""}, "CF_API_TOKEN"},
		{"bad threshold", map[string]string{"LOAD_THRESHOLD": "abc"}, "LOAD_THRESHOLD"},
		{"zero threshold", map[string]string{"LOAD_THRESHOLD": "0"}, "LOAD_THRESHOLD"},
		{"nan threshold", map[string]string{"LOAD_THRESHOLD": "NaN"}, "LOAD_THRESHOLD"},
		{"infinite threshold", map[string]string{"LOAD_THRESHOLD": "+Inf"}, "LOAD_THRESHOLD"},
		{"bad bool", map[string]string{"ALERT_ON_FAILURE": "maybe"}, "ALERT_ON_FAILURE"},
		{"low mode under attack", map[string]string{"LOW_LOAD_MODE": "under_attack"}, "LOW_LOAD_MODE"},
		{"unknown low mode", map[string]string{"LOW_LOAD_MODE": "extreme"}, "LOW_LOAD_MODE"},
		{"unknown alert", map[string]string{"ALERT_MODE": "pager"}, "ALERT_MODE"},
		{"slack without webhook", map[string]string{"ALERT_MODE": "slack"}, "ALERT_SLACK_WEBHOOK"},
		{"email without to", map[string]string{"ALERT_MODE": "email"}, "ALERT_EMAIL_TO"},
		{"command without command", map[string]string{"ALERT_MODE": "command"}, "ALERT_COMMAND"},
		{"telegram bad chat", map[string]string{"ALERT_MODE": "telegram", "ALERT_TELEGRAM_TOKEN": "x", "ALERT_TELEGRAM_CHAT_ID": "chat"}, "ALERT_TELEGRAM_CHAT_ID"},
		{"bad duration", map[string]string{"LOOP_INTERVAL": "soon"}, "LOOP_INTERVAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file := map[string]string{}
			for k, v := range base {
				file[k] = v
			}
			for k, v := range tc.extra {
				file[k] = v
			}
			_, err := fromSource(source{file: file})
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want *config.Error", err)
			}
			if cerr.Key != tc.key {
				t.Fatalf("key = %q, want %q", cerr.Key, tc.key)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *config.Error", err)
	}
}

func TestLoadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "guard.yaml")
	body := "ZONE_ID: zone\nCF_API_TOKEN: secret\nLOAD_THRESHOLD: 5.5\nalert_mode: command\nALERT_COMMAND: logger -t cf\n"
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LOAD_THRESHOLD", "")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Threshold != 5.5 {
		t.Fatalf("threshold = %v", cfg.Threshold)
	}
	if cfg.Alert.Mode != AlertCommand || cfg.Alert.Command != "logger -t cf" {
		t.Fatalf("alert = %+v", cfg.Alert)
	}
}
