// ABOUTME: Synchronous observer list delivering events in registration order
// ABOUTME: Every listener sees every event; failures are collected, never rolled back

package changefeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Listener applies an event and acknowledges it by returning nil
type Listener interface {
	Apply(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, ev Event) error

// Apply implements Listener
func (f ListenerFunc) Apply(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// ListenerFailure records one listener's error
type ListenerFailure struct {
	Position int // registration position at delivery time
	Err      error
}

// PropagationError reports the listeners that failed to apply an event.
// It matches ErrPropagation with errors.Is.
type PropagationError struct {
	Event    Event
	Failures []ListenerFailure
}

func (e *PropagationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("listener %d: %v", f.Position, f.Err)
	}
	return fmt.Sprintf("%v: %s: %s", ErrPropagation, Describe(e.Event), strings.Join(parts, "; "))
}

// Is matches ErrPropagation
func (e *PropagationError) Is(target error) bool {
	return target == ErrPropagation
}

// Unwrap exposes the listener errors
func (e *PropagationError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

type subscription struct {
	id int
	l  Listener
}

// Dispatcher fans events out to subscribed listeners
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

// NewDispatcher creates a dispatcher with no listeners
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers l and returns a function that removes it
func (d *Dispatcher) Subscribe(l Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, l: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of listeners
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Publish delivers ev to every listener in registration order.
// A failing listener does not stop delivery to later ones.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	var failures []ListenerFailure
	for i, s := range subs {
		if err := s.l.Apply(ctx, ev); err != nil {
			failures = append(failures, ListenerFailure{Position: i, Err: err})
		}
	}
	if len(failures) > 0 {
		return &PropagationError{Event: ev, Failures: failures}
	}
	return nil
}

// AsPropagationError extracts a *PropagationError from err
func AsPropagationError(err error) (*PropagationError, bool) {
	var pe *PropagationError
	ok := errors.As(err, &pe)
	return pe, ok
}
