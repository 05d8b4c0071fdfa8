package ingest

import "time"

// Backoff is the polling schedule for one project: the interval doubles
// while passes find nothing new and snaps back to Min as soon as data
// arrives. Pure value type so the step function is testable without
// timers.
type Backoff struct {
	Min      time.Duration
	Max      time.Duration
	Interval time.Duration
	LastData time.Time
}

// NewBackoff starts at the minimum interval.
func NewBackoff(min, max time.Duration) Backoff {
	if max < min {
		max = min
	}
	return Backoff{Min: min, Max: max, Interval: min}
}

// Next returns the schedule after one poll. foundNew resets the interval
// and records when data was last seen; otherwise the interval doubles up
// to Max.
func (b Backoff) Next(foundNew bool, now time.Time) Backoff {
	if foundNew {
		b.Interval = b.Min
		b.LastData = now
		return b
	}
	next := b.Interval * 2
	if next > b.Max {
		next = b.Max
	}
	b.Interval = next
	return b
}
