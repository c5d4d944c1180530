// Package snapshot persists monthly tournament lists as static JSON files
// named tournaments-<year>-<month>.json.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/tournament-scraper/internal/metrics"
	"github.com/JakeFAU/tournament-scraper/internal/storage"
	"github.com/JakeFAU/tournament-scraper/internal/tournament"
)

// ContentType is attached to every written snapshot.
const ContentType = "application/json"

// FileName returns the snapshot file name for a month. The month is not
// zero padded.
func FileName(year, month int) string {
	return fmt.Sprintf("tournaments-%d-%d.json", year, month)
}

// Encode renders tournaments as an indented JSON array without a trailing
// newline. Nil entries are dropped and nil player lists render as [].
func Encode(list []*tournament.Tournament) ([]byte, error) {
	out := make([]*tournament.Tournament, 0, len(list))
	for _, t := range list {
		if t == nil {
			continue
		}
		if t.Players == nil {
			c := *t
			c.Players = []tournament.Player{}
			t = &c
		}
		out = append(out, t)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a snapshot file.
func Decode(data []byte) ([]*tournament.Tournament, error) {
	var list []*tournament.Tournament
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if list == nil {
		list = []*tournament.Tournament{}
	}
	return list, nil
}

// Store reads and writes snapshots through a blob store.
type Store struct {
	blobs  storage.BlobStore
	logger *zap.Logger
}

// NewStore wraps blobs.
func NewStore(blobs storage.BlobStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{blobs: blobs, logger: logger}
}

// Write encodes list and replaces the month's snapshot.
func (s *Store) Write(ctx context.Context, year, month int, list []*tournament.Tournament) error {
	data, err := Encode(list)
	if err != nil {
		return err
	}
	return s.put(ctx, year, month, data, "scrape")
}

// WriteRaw stores already encoded snapshot bytes as-is.
func (s *Store) WriteRaw(ctx context.Context, year, month int, data []byte) error {
	return s.put(ctx, year, month, data, "mirror")
}

func (s *Store) put(ctx context.Context, year, month int, data []byte, origin string) error {
	name := FileName(year, month)
	uri, err := s.blobs.PutObject(ctx, name, ContentType, bytes.NewReader(data))
	if uri == "" && err != nil {
		return fmt.Errorf("write snapshot %s: %w", name, err)
	}
	metrics.ObserveSnapshot(origin)
	if err != nil {
		// The primary copy landed; a secondary copy did not.
		s.logger.Warn("snapshot replica write failed", zap.String("file", name), zap.Error(err))
		return fmt.Errorf("replicate snapshot %s: %w", name, err)
	}
	s.logger.Debug("snapshot written",
		zap.String("file", name),
		zap.String("uri", uri),
		zap.String("origin", origin),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Read returns the month's tournaments, or an empty list when no snapshot
// exists.
func (s *Store) Read(ctx context.Context, year, month int) ([]*tournament.Tournament, error) {
	name := FileName(year, month)
	data, err := s.blobs.GetObject(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []*tournament.Tournament{}, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	return Decode(data)
}

// Exists reports whether the month has a snapshot.
func (s *Store) Exists(ctx context.Context, year, month int) (bool, error) {
	ok, err := s.blobs.Exists(ctx, FileName(year, month))
	if err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return ok, nil
}
