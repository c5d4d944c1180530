// Package publisher announces written snapshots to downstream consumers.
package publisher

import "context"

// Publisher sends a payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SnapshotWritten is published after a month's snapshot has been stored.
type SnapshotWritten struct {
	RunID string `json:"run_id,omitempty"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	File  string `json:"file"`
	Count int    `json:"count"`
}
