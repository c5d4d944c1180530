// Package clock abstracts the current time so batch planning can be tested.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Fixed always reports the same instant.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
