// Package observe defines the instrumentation hook injected into the
// curriculum components. Components call it around operations and at
// notable domain events; the hook never influences their behavior.
package observe

import (
	"context"
	"fmt"
)

// Event names reported by the curriculum components.
const (
	EventAttemptRecorded    = "attempt_recorded"
	EventRemediationApplied = "remediation_applied"
	EventRemediationAbandon = "remediation_abandoned"
	EventGatewayDegraded    = "gateway_degraded"
	EventChallengeIssued    = "challenge_issued"
	EventPathCreated        = "path_created"
	EventDagQuality         = "dag_quality"
	EventConcurrentRetry    = "concurrent_modification_retry"
)

// Attr is a key/value annotation on an operation or event.
type Attr struct {
	Key   string
	Value any
}

func String(key, value string) Attr    { return Attr{Key: key, Value: value} }
func Int(key string, value int) Attr   { return Attr{Key: key, Value: value} }
func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }
func Float(key string, value float64) Attr {
	return Attr{Key: key, Value: value}
}

// Lookup returns the value of key as a string, or "" if absent.
func Lookup(attrs []Attr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return fmt.Sprint(a.Value)
		}
	}
	return ""
}

// LookupFloat returns the value of key as a float64. Int values convert.
func LookupFloat(attrs []Attr, key string) (float64, bool) {
	for _, a := range attrs {
		if a.Key != key {
			continue
		}
		switch v := a.Value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
		return 0, false
	}
	return 0, false
}

// Finish ends an operation started with Observer.Start.
type Finish func(err error)

// Observer receives operation spans and domain events.
type Observer interface {
	// Start marks the beginning of op. The returned context carries any
	// span state and must be used for nested work.
	Start(ctx context.Context, op string, attrs ...Attr) (context.Context, Finish)

	// Event reports a point-in-time domain event.
	Event(ctx context.Context, name string, attrs ...Attr)
}

type nop struct{}

// Nop returns an Observer that does nothing.
func Nop() Observer { return nop{} }

func (nop) Start(ctx context.Context, _ string, _ ...Attr) (context.Context, Finish) {
	return ctx, func(error) {}
}

func (nop) Event(context.Context, string, ...Attr) {}

type multi []Observer

// Multi fans out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return Nop()
	case 1:
		return m[0]
	}
	return m
}

func (m multi) Start(ctx context.Context, op string, attrs ...Attr) (context.Context, Finish) {
	finishes := make([]Finish, len(m))
	for i, o := range m {
		ctx, finishes[i] = o.Start(ctx, op, attrs...)
	}
	return ctx, func(err error) {
		for i := len(finishes) - 1; i >= 0; i-- {
			finishes[i](err)
		}
	}
}

func (m multi) Event(ctx context.Context, name string, attrs ...Attr) {
	for _, o := range m {
		o.Event(ctx, name, attrs...)
	}
}

// OrNop returns o, or Nop if o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop()
	}
	return o
}
