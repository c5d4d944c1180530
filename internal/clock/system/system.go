// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/tournament-scraper/internal/clock"
)

var _ clock.Clock = Clock{}

// Clock reads the local wall clock. Batch months are planned in local time.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
