package blobstore

import (
	"context"
	"errors"
	"testing"
)

func TestFSStorePutGet(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	content := []byte("decoded attachment bytes")
	if err := store.Put(42, "2", content); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(42, "2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: expected ok=true")
	}
	if string(got) != string(content) {
		t.Errorf("Get: got %q, want %q", got, content)
	}
}

func TestFSStoreMiss(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	_, ok, err := store.Get(1, "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get: expected ok=false for uncached part")
	}
}

func TestFSStoreRootPartNumber(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if err := store.Put(7, "", []byte("whole message")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(7, "")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "whole message" {
		t.Errorf("got %q", got)
	}
}

// TestS3StoreRetrieve verifies Put and Get against an S3-compatible store
// (e.g. MinIO). Run MinIO first, then:
//
//	S3_ENDPOINT=http://localhost:9900 S3_ACCESS_KEY_ID=minioadmin \
//	S3_SECRET_ACCESS_KEY=minioadmin S3_BUCKET=imapkit-test S3_USE_SSL=false \
//	go test -v ./blobstore/ -run TestS3StoreRetrieve
func TestS3StoreRetrieve(t *testing.T) {
	cfg := S3ConfigFromEnv()
	if cfg == nil {
		t.Skip("S3_ENDPOINT not set, skipping integration test")
	}

	client, err := NewS3Client(cfg)
	if err != nil {
		t.Fatalf("NewS3Client: %v", err)
	}
	ctx := context.Background()
	if err := client.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}

	store := NewS3Store(client, "test")
	content := []byte("decoded attachment bytes")
	if err := store.Put(99, "1.2", content); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(99, "1.2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: expected ok=true")
	}
	if string(got) != string(content) {
		t.Errorf("got %q, want %q", got, content)
	}
}

func TestS3StoreMiss(t *testing.T) {
	cfg := S3ConfigFromEnv()
	if cfg == nil {
		t.Skip("S3_ENDPOINT not set, skipping integration test")
	}
	client, err := NewS3Client(cfg)
	if err != nil {
		t.Fatalf("NewS3Client: %v", err)
	}
	store := NewS3Store(client, "test")
	_, ok, err := store.Get(1, "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false")
	}
	if !errors.Is(err, ErrNotFound) && err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
