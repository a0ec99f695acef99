package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSource tags events whose producer did not set one.
const DefaultSource = "platform"

// Meta is the envelope carried by every event. It is created once, when the
// event is first touched, and preserved verbatim across serialization.
type Meta struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EventVersion  string    `json:"event_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
	Source        string    `json:"source"`
	TenantID      string    `json:"tenant_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
}

func NewMeta(eventType, version string) *Meta {
	return &Meta{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: version,
		Timestamp:    time.Now().UTC(),
		Source:       DefaultSource,
	}
}

// Event is a typed domain fact. Concrete events embed Base and declare their
// type tag, a dot-separated string whose first segment is the routing domain.
type Event interface {
	EventType() string
	EventVersion() string
	Meta() *Meta

	setMeta(*Meta)
}

// Base carries the envelope for concrete event types. Tags set through the
// fluent setters before the envelope exists are buffered and applied the
// moment it is attached, so producers can tag an event at construction and
// publish it without touching Meta themselves.
type Base struct {
	Metadata *Meta `json:"meta,omitempty"`

	staged *stagedTags
}

// stagedTags holds fluent-setter values applied before the envelope exists.
type stagedTags struct {
	correlationID string
	causationID   string
	tenantID      string
	userID        string
	source        string
}

func (s *stagedTags) applyTo(m *Meta) {
	if s.correlationID != "" {
		m.CorrelationID = s.correlationID
	}
	if s.causationID != "" {
		m.CausationID = s.causationID
	}
	if s.tenantID != "" {
		m.TenantID = s.tenantID
	}
	if s.userID != "" {
		m.UserID = s.userID
	}
	if s.source != "" {
		m.Source = s.source
	}
}

func (b *Base) Meta() *Meta { return b.Metadata }

func (b *Base) setMeta(m *Meta) {
	if b.staged != nil {
		b.staged.applyTo(m)
		b.staged = nil
	}
	b.Metadata = m
}

func (b *Base) EventVersion() string { return "1.0" }

func (b *Base) stage() *stagedTags {
	if b.staged == nil {
		b.staged = &stagedTags{}
	}
	return b.staged
}

// WithCorrelation links the event into a causal chain. The fluent setters
// mutate in place and chain, whether or not the envelope exists yet.
func (b *Base) WithCorrelation(id string) *Base {
	if b.Metadata != nil {
		b.Metadata.CorrelationID = id
	} else {
		b.stage().correlationID = id
	}
	return b
}

func (b *Base) WithCausation(id string) *Base {
	if b.Metadata != nil {
		b.Metadata.CausationID = id
	} else {
		b.stage().causationID = id
	}
	return b
}

func (b *Base) WithTenant(id string) *Base {
	if b.Metadata != nil {
		b.Metadata.TenantID = id
	} else {
		b.stage().tenantID = id
	}
	return b
}

func (b *Base) WithUser(id string) *Base {
	if b.Metadata != nil {
		b.Metadata.UserID = id
	} else {
		b.stage().userID = id
	}
	return b
}

func (b *Base) WithSource(source string) *Base {
	if b.Metadata != nil {
		b.Metadata.Source = source
	} else {
		b.stage().source = source
	}
	return b
}

// EnsureMeta populates the envelope from the event's static type tag if and
// only if it has not already been supplied (e.g. on deserialization). The
// envelope is never regenerated once set.
func EnsureMeta(e Event) *Meta {
	if m := e.Meta(); m != nil {
		return m
	}
	m := NewMeta(e.EventType(), e.EventVersion())
	e.setMeta(m)
	return m
}

// Marshal encodes the event with its envelope under "meta", touching the
// envelope first so the type tag and id are always present.
func Marshal(e Event) ([]byte, error) {
	EnsureMeta(e)
	return json.Marshal(e)
}

// Domain returns the routing domain of a type tag: its first dot-segment.
func Domain(eventType string) string {
	if i := strings.IndexByte(eventType, '.'); i >= 0 {
		return eventType[:i]
	}
	return eventType
}
