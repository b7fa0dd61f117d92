package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMergesDefaultOntoNamedAccount(t *testing.T) {
	path := writeConfig(t, `
accounts:
  default:
    host: imap.example.com
    port: 993
    encryption: ssl
    auth: login
    username: shared-user
  work:
    username: work-user
    password: s3cr3t
`)
	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	work := cfg.Accounts["work"]
	if work.Host != "imap.example.com" {
		t.Errorf("Host = %q, want inherited from default", work.Host)
	}
	if work.Username != "work-user" {
		t.Errorf("Username = %q, want work-user override", work.Username)
	}
	if work.Password != "s3cr3t" {
		t.Errorf("Password = %q", work.Password)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Options.ConnectTimeoutSec != 30 {
		t.Errorf("ConnectTimeoutSec = %d, want default 30", cfg.Options.ConnectTimeoutSec)
	}
}

func TestResolvedPasswordFallsBackToInline(t *testing.T) {
	path := writeConfig(t, `
accounts:
  default:
    host: imap.example.com
  work:
    password: plain-password
`)
	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pw, err := cfg.ResolvedPassword("work")
	if err != nil {
		t.Fatalf("ResolvedPassword: %v", err)
	}
	if pw != "plain-password" {
		t.Errorf("got %q, want inline fallback", pw)
	}
}
