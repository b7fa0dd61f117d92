// Package blobstore provides ContentStore implementations for cached
// attachment bytes: a filesystem-backed store for local use, and an
// S3-compatible store (AWS S3, MinIO) for shared deployments. Both satisfy
// imapkit.ContentStore via structural typing, without importing the root
// package.
package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when a key has no cached object, which a
// ContentStore caller treats as a cache miss rather than a failure.
var ErrNotFound = errors.New("blobstore: not found")

// keyFor builds the storage key for one attachment's cached bytes. uid and
// partNumber together are unique within a folder; the caller is
// responsible for namespacing by folder if a ContentStore is shared
// across folders or accounts.
func keyFor(uid uint32, partNumber string) string {
	if partNumber == "" {
		partNumber = "root"
	}
	return filepath.ToSlash(filepath.Join(
		formatUID(uid), partNumber,
	))
}

func formatUID(uid uint32) string {
	const digits = "0123456789"
	if uid == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for uid > 0 {
		i--
		buf[i] = digits[uid%10]
		uid /= 10
	}
	return string(buf[i:])
}

// FSStore caches attachment bytes on the local filesystem, one file per
// (uid, part number) under root.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed store rooted at dir, creating it
// if necessary.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: filepath.Clean(dir)}, nil
}

// Get implements imapkit.ContentStore.
func (s *FSStore) Get(uid uint32, partNumber string) ([]byte, bool, error) {
	path := filepath.Join(s.root, filepath.FromSlash(keyFor(uid, partNumber)))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put implements imapkit.ContentStore.
func (s *FSStore) Put(uid uint32, partNumber string, data []byte) error {
	path := filepath.Join(s.root, filepath.FromSlash(keyFor(uid, partNumber)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// S3Store caches attachment bytes in S3-compatible object storage,
// keyed the same way as FSStore.
type S3Store struct {
	client *S3Client
	prefix string
}

// NewS3Store creates an S3-backed store with an optional key prefix
// (e.g. to namespace by account).
func NewS3Store(client *S3Client, prefix string) *S3Store {
	return &S3Store{client: client, prefix: prefix}
}

// Get implements imapkit.ContentStore.
func (s *S3Store) Get(uid uint32, partNumber string) ([]byte, bool, error) {
	data, err := s.client.Get(context.Background(), s.fullKey(uid, partNumber))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put implements imapkit.ContentStore.
func (s *S3Store) Put(uid uint32, partNumber string, data []byte) error {
	return s.client.PutBytes(context.Background(), s.fullKey(uid, partNumber), data)
}

func (s *S3Store) fullKey(uid uint32, partNumber string) string {
	if s.prefix == "" {
		return keyFor(uid, partNumber)
	}
	return s.prefix + "/" + keyFor(uid, partNumber)
}
