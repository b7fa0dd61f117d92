package uidcache

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutAndLookup(t *testing.T) {
	db := openTestDB(t)
	db.SetUIDValidity("INBOX", 100)
	db.Put("INBOX", 1, 1001)
	db.Put("INBOX", 2, 1002)

	if uid, ok := db.UIDForMSN("INBOX", 1); !ok || uid != 1001 {
		t.Fatalf("UIDForMSN(1) = %d, %v", uid, ok)
	}
	if msn, ok := db.MSNForUID("INBOX", 1002); !ok || msn != 2 {
		t.Fatalf("MSNForUID(1002) = %d, %v", msn, ok)
	}
	if _, ok := db.UIDForMSN("INBOX", 99); ok {
		t.Fatal("UIDForMSN(99) should miss")
	}
}

func TestUIDValidityChangeFlushes(t *testing.T) {
	db := openTestDB(t)
	db.SetUIDValidity("INBOX", 100)
	db.Put("INBOX", 1, 1001)

	db.SetUIDValidity("INBOX", 200)
	if _, ok := db.UIDForMSN("INBOX", 1); ok {
		t.Fatal("expected mapping to be flushed after UIDVALIDITY change")
	}
}

func TestFlush(t *testing.T) {
	db := openTestDB(t)
	db.SetUIDValidity("INBOX", 1)
	db.Put("INBOX", 1, 1)
	db.Flush("INBOX")
	if _, ok := db.UIDForMSN("INBOX", 1); ok {
		t.Fatal("expected empty cache after Flush")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.sqlite")

	db1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db1.SetUIDValidity("INBOX", 1)
	db1.Put("INBOX", 1, 42)
	db1.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if uid, ok := db2.UIDForMSN("INBOX", 1); !ok || uid != 42 {
		t.Fatalf("UIDForMSN after reopen = %d, %v", uid, ok)
	}
}
