package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/golly-go/streams/events"
)

// Publisher appends domain events to their topic streams. Each publish is a
// single durable append; it buffers nothing and introduces no delay.
type Publisher struct {
	store  Store
	prefix string
	maxLen int64
	logger *logrus.Entry
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	cfg := applyOptions(opts...)

	return &Publisher{
		store:  store,
		prefix: cfg.Prefix,
		maxLen: cfg.MaxLen,
		logger: cfg.logger(),
	}
}

// Publish routes the event to its domain topic and appends it, returning the
// store-assigned entry id. The envelope is populated here if the producer
// has not already touched it.
func (p *Publisher) Publish(ctx context.Context, event events.Event) (string, error) {
	meta := events.EnsureMeta(event)

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("streams: encode %s: %w", meta.EventType, err)
	}

	topic := topicName(p.prefix, events.Domain(meta.EventType))
	rec := Record{
		FieldEventType: meta.EventType,
		FieldEventID:   meta.EventID,
		FieldData:      string(data),
	}

	id, err := p.store.Append(ctx, topic, rec, p.maxLen)
	if err != nil {
		return "", fmt.Errorf("streams: append to %s: %w", topic, err)
	}

	p.logger.WithFields(logrus.Fields{
		"stream":     topic,
		"entry_id":   id,
		"event_type": meta.EventType,
		"event_id":   meta.EventID,
	}).Info("event published")

	return id, nil
}

// PublishBatch publishes the events sequentially in the given order. It is
// not atomic: on failure the returned ids cover the prefix that was durably
// published, and the remainder was not. Consumers must tolerate partial
// batches.
func (p *Publisher) PublishBatch(ctx context.Context, evts []events.Event) ([]string, error) {
	ids := make([]string, 0, len(evts))
	for _, e := range evts {
		id, err := p.Publish(ctx, e)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// StreamInfo returns introspection for a domain's topic. A topic nothing has
// been published to yet yields a zero StreamInfo, not an error.
func (p *Publisher) StreamInfo(ctx context.Context, domain string) (StreamInfo, error) {
	info, err := p.store.Info(ctx, topicName(p.prefix, domain))
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return StreamInfo{}, nil
		}
		return StreamInfo{}, err
	}
	return info, nil
}
