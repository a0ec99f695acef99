package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrUnknownEventType is wrapped by DecodeError when no concrete type has
// been registered for a type tag.
var ErrUnknownEventType = errors.New("unknown event type")

// DecodeError reports a payload that does not match the registered schema.
// Unknown fields are rejected rather than silently dropped so schema drift
// surfaces at the boundary instead of downstream.
type DecodeError struct {
	EventType string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("events: decode %s: %v", e.EventType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Registry maps event type tags to their concrete Go types for decoding.
// It is an explicit instance handed to whoever decodes, not process state.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewRegistry(evts ...Event) *Registry {
	r := &Registry{types: make(map[string]reflect.Type)}
	r.Register(evts...)
	return r
}

// Register records the concrete type behind each event's type tag.
// Registering the same tag again replaces the previous type.
func (r *Registry) Register(evts ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range evts {
		t := reflect.TypeOf(e)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		r.types[e.EventType()] = t
	}
}

// Known reports whether a type tag has a registered concrete type.
func (r *Registry) Known(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.types[eventType]
	return ok
}

// Decode unmarshals data into a fresh instance of the concrete event
// registered for eventType. Fields not present in the registered schema
// fail the decode with a *DecodeError.
func (r *Registry) Decode(eventType string, data []byte) (Event, error) {
	r.mu.RLock()
	t, ok := r.types[eventType]
	r.mu.RUnlock()

	if !ok {
		return nil, &DecodeError{EventType: eventType, Err: ErrUnknownEventType}
	}

	v := reflect.New(t)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v.Interface()); err != nil {
		return nil, &DecodeError{EventType: eventType, Err: err}
	}

	evt := v.Interface().(Event)
	EnsureMeta(evt)

	return evt, nil
}
