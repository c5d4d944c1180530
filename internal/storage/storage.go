// Package storage defines the blob storage contract used to persist snapshot
// files. Implementations live in the local, gcs and memory subpackages.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned by GetObject when the object does not exist.
var ErrNotFound = errors.New("object not found")

// BlobStore stores named objects.
type BlobStore interface {
	// PutObject writes data under path and returns a URI for it.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the content stored under path, or ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
	// Exists reports whether path holds an object.
	Exists(ctx context.Context, path string) (bool, error)
}

// Tee writes to a primary store and then to every secondary store. Reads are
// served by the primary only.
type Tee struct {
	primary     BlobStore
	secondaries []BlobStore
}

// NewTee builds a Tee.
func NewTee(primary BlobStore, secondaries ...BlobStore) *Tee {
	return &Tee{primary: primary, secondaries: secondaries}
}

// PutObject writes to the primary first; a primary failure aborts. Secondary
// failures are joined into the returned error without undoing the primary
// write. The returned URI is the primary's.
func (t *Tee) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	uri, err := t.primary.PutObject(ctx, path, contentType, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	var errs []error
	for _, s := range t.secondaries {
		if _, err := s.PutObject(ctx, path, contentType, bytes.NewReader(payload)); err != nil {
			errs = append(errs, err)
		}
	}
	return uri, errors.Join(errs...)
}

// GetObject reads from the primary.
func (t *Tee) GetObject(ctx context.Context, path string) ([]byte, error) {
	return t.primary.GetObject(ctx, path)
}

// Exists checks the primary.
func (t *Tee) Exists(ctx context.Context, path string) (bool, error) {
	return t.primary.Exists(ctx, path)
}
