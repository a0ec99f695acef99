package streams

import (
	"context"
	"errors"
	"time"
)

// Record is the flat string-keyed map appended to a stream. The wire shape
// is fixed for interop with pre-existing stream state: the event type tag,
// the event id, and the serialized event under "data".
type Record map[string]string

const (
	FieldEventType = "event_type"
	FieldEventID   = "event_id"
	FieldData      = "data"
)

// Entry is one appended record with its store-assigned id.
type Entry struct {
	ID     string
	Record Record
}

// PendingInfo describes an entry delivered to a consumer but not yet
// acknowledged.
type PendingInfo struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	RetryCount int64
}

// StreamInfo is read-only stream introspection.
type StreamInfo struct {
	Length       int64
	Groups       int64
	FirstEntryID string
	LastEntryID  string
}

var (
	// ErrGroupExists is returned by EnsureGroup when the consumer group has
	// already been created, an expected race between concurrent startups.
	ErrGroupExists = errors.New("streams: consumer group already exists")

	// ErrStreamNotFound is returned by Info for a topic nothing has been
	// published to yet.
	ErrStreamNotFound = errors.New("streams: stream does not exist")
)

// Store is the ordered, durable log capability the bus runs on. It owns all
// group bookkeeping: cursors, pending entries and ownership live server
// side, so a single Store client is safe to share between the publisher and
// any number of consumer identities.
type Store interface {
	// EnsureGroup creates the consumer group at the start of the stream,
	// creating the stream itself if needed. Returns ErrGroupExists when the
	// group is already present.
	EnsureGroup(ctx context.Context, topic, group string) error

	// Append adds a record to the topic's log and returns its assigned id.
	// When maxLen > 0 the stream is trimmed to approximately that length;
	// trimming is approximate for throughput, never exact.
	Append(ctx context.Context, topic string, rec Record, maxLen int64) (string, error)

	// ReadGroup hands up to count new entries per topic to the consumer,
	// blocking up to block when nothing is available. An empty result is a
	// valid, non-error outcome. Delivered entries become pending until
	// acknowledged.
	ReadGroup(ctx context.Context, group, consumer string, topics []string, count int64, block time.Duration) (map[string][]Entry, error)

	// ReadBacklog returns the consumer's own pending entries, previously
	// delivered or claimed but not yet acknowledged. Never blocks.
	ReadBacklog(ctx context.Context, group, consumer string, topics []string, count int64) (map[string][]Entry, error)

	// Ack removes an entry from the group's pending list.
	Ack(ctx context.Context, topic, group, id string) error

	// PendingEntries lists up to count pending entries for the group,
	// oldest first. A non-positive count lists a store-chosen page.
	PendingEntries(ctx context.Context, topic, group string, count int64) ([]PendingInfo, error)

	// Claim reassigns the given pending entries to consumer, skipping any
	// whose idle time is below minIdle. Claiming resets the entry's idle
	// clock and bumps its delivery count.
	Claim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, ids []string) error

	// Info returns stream introspection, or ErrStreamNotFound for a topic
	// that does not exist yet.
	Info(ctx context.Context, topic string) (StreamInfo, error)
}

func topicName(prefix, domain string) string {
	if prefix == "" {
		return domain
	}
	return prefix + ":" + domain
}
