// Package memory records snapshot notifications in memory so tests can assert
// on what would have been announced.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/tournament-scraper/internal/publisher"
)

// ErrUnexpectedPayload is returned for payloads other than
// publisher.SnapshotWritten.
var ErrUnexpectedPayload = errors.New("payload is not a snapshot notification")

// Notification is one recorded snapshot announcement.
type Notification struct {
	ID       string
	Topic    string
	Snapshot publisher.SnapshotWritten
}

// Publisher implements publisher.Publisher for snapshot notifications.
type Publisher struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Fail makes every later Publish return err. A nil err restores delivery.
func (p *Publisher) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish records payload, which must be a publisher.SnapshotWritten value or
// pointer. IDs are "<topic>/<year>-<month>/<sequence>".
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	var snap publisher.SnapshotWritten
	switch v := payload.(type) {
	case publisher.SnapshotWritten:
		snap = v
	case *publisher.SnapshotWritten:
		if v == nil {
			return "", ErrUnexpectedPayload
		}
		snap = *v
	default:
		return "", fmt.Errorf("%w: %T", ErrUnexpectedPayload, payload)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	id := fmt.Sprintf("%s/%d-%d/%d", topic, snap.Year, snap.Month, len(p.sent)+1)
	p.sent = append(p.sent, Notification{ID: id, Topic: topic, Snapshot: snap})
	return id, nil
}

// Notifications returns the recorded announcements in publish order.
func (p *Publisher) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.sent...)
}

// Files returns the snapshot file names announced on topic.
func (p *Publisher) Files(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, n := range p.sent {
		if n.Topic == topic {
			out = append(out, n.Snapshot.File)
		}
	}
	return out
}
