package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oakmoss/imapkit/internal/wire"
)

func TestLoadFixtureDefaultsFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.yaml")
	body := "name: work\nhost: imap.example.com\nport: 993\nencryption: ssl\nusername: me\npassword: secret\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := loadFixture(path)
	if err != nil {
		t.Fatalf("loadFixture: %v", err)
	}
	if f.Folder != "INBOX" {
		t.Errorf("Folder = %q, want INBOX default", f.Folder)
	}
	if f.Host != "imap.example.com" {
		t.Errorf("Host = %q", f.Host)
	}
}

func TestLoadFixtureExplicitFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.yaml")
	body := "host: imap.example.com\nfolder: Archive\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := loadFixture(path)
	if err != nil {
		t.Fatalf("loadFixture: %v", err)
	}
	if f.Folder != "Archive" {
		t.Errorf("Folder = %q, want Archive", f.Folder)
	}
}

func TestEncryptionFromString(t *testing.T) {
	cases := map[string]wire.Encryption{
		"none":     wire.EncryptionNone,
		"starttls": wire.EncryptionStartTLS,
		"ssl":      wire.EncryptionSSL,
		"":         wire.EncryptionSSL,
		"SSL":      wire.EncryptionSSL,
	}
	for in, want := range cases {
		if got := encryptionFromString(in); got != want {
			t.Errorf("encryptionFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
