package progress

import (
	"errors"
	"fmt"
)

// Status is a learner's position on a single node.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Event drives a status transition.
type Event string

const (
	EventChallenge Event = "challenge"
	EventPass      Event = "pass"
	EventFail      Event = "fail"
	EventRemediate Event = "remediate"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// DefaultCeiling is the number of failed attempts that blocks a node.
const DefaultCeiling = 3

// Next applies the transition table. attempts is the count after the
// attempt being graded has been added; it only matters for EventFail.
//
//	not_started --challenge--> in_progress
//	in_progress --pass-------> completed
//	in_progress --fail-------> in_progress   (attempts < ceiling)
//	in_progress --fail-------> blocked       (attempts >= ceiling)
//	blocked     --remediate--> not_started
//
// A challenge on a node that has already left not_started leaves the status
// unchanged. Everything else is rejected.
func Next(from Status, ev Event, attempts, ceiling int) (Status, error) {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	switch ev {
	case EventChallenge:
		if from == StatusNotStarted {
			return StatusInProgress, nil
		}
		if from.Valid() {
			return from, nil
		}
	case EventPass:
		if from == StatusInProgress {
			return StatusCompleted, nil
		}
	case EventFail:
		if from == StatusInProgress {
			if attempts >= ceiling {
				return StatusBlocked, nil
			}
			return StatusInProgress, nil
		}
	case EventRemediate:
		if from == StatusBlocked {
			return StatusNotStarted, nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}
