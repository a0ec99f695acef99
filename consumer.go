package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is the consumer runtime lifecycle. Stopped is terminal: a fresh
// Consumer must be created to resume consuming.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Consumer is one named identity within a consumer group. It holds no
// durable state of its own: cursors, pending entries and ownership all live
// in the Store, so a crashed consumer can restart under the same or a
// different name with no warm-up beyond re-registering handlers.
type Consumer struct {
	store    Store
	registry *HandlerRegistry

	group string
	name  string

	prefix    string
	batchSize int64
	block     time.Duration
	backoff   time.Duration
	ackPolicy AckPolicy

	state   atomic.Int32
	claimed atomic.Int64

	logger *logrus.Entry
}

func NewConsumer(store Store, group, name string, registry *HandlerRegistry, opts ...Option) *Consumer {
	cfg := applyOptions(opts...)

	if name == "" {
		name = "consumer-" + uuid.NewString()
	}
	if registry == nil {
		registry = NewHandlerRegistry()
	}

	return &Consumer{
		store:     store,
		registry:  registry,
		group:     group,
		name:      name,
		prefix:    cfg.Prefix,
		batchSize: cfg.BatchSize,
		block:     cfg.Block,
		backoff:   cfg.Backoff,
		ackPolicy: cfg.AckPolicy,
		logger: cfg.logger().WithFields(logrus.Fields{
			"group":    group,
			"consumer": name,
		}),
	}
}

func (c *Consumer) Group() string              { return c.group }
func (c *Consumer) Name() string               { return c.name }
func (c *Consumer) Registry() *HandlerRegistry { return c.registry }

func (c *Consumer) State() State { return State(c.state.Load()) }

// Consume runs the pull-dispatch-ack loop over the given domains until Stop
// is called or the context is cancelled. It blocks for the lifetime of the
// consumer and runs at most once per Consumer.
func (c *Consumer) Consume(ctx context.Context, domains ...string) error {
	if len(domains) == 0 {
		return fmt.Errorf("streams: consume requires at least one domain")
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("streams: consumer is %s; create a new one to consume again", c.State())
	}
	defer c.state.Store(int32(StateStopped))

	topics := make([]string, len(domains))
	for i, d := range domains {
		topics[i] = topicName(c.prefix, d)
	}

	// Group creation races between concurrent consumer startups are
	// expected; anything else is fatal to startup.
	for _, topic := range topics {
		if err := c.store.EnsureGroup(ctx, topic, c.group); err != nil && !errors.Is(err, ErrGroupExists) {
			return fmt.Errorf("streams: create group %q on %q: %w", c.group, topic, err)
		}
	}

	c.logger.Infof("starting consumer for streams %v", topics)

	// Entries this identity was delivered before a previous crash are still
	// pending under its name; drain them before asking for new work.
	backlog := true

	for c.State() == StateRunning {
		if ctx.Err() != nil {
			c.logger.Info("consumer cancelled")
			return nil
		}

		if c.claimed.Swap(0) > 0 {
			backlog = true
		}

		var results map[string][]Entry
		var err error

		fromBacklog := backlog
		if backlog {
			results, err = c.store.ReadBacklog(ctx, c.group, c.name, topics, c.batchSize)
			if err == nil && len(results) == 0 {
				backlog = false
				continue
			}
		} else {
			results, err = c.store.ReadGroup(ctx, c.group, c.name, topics, c.batchSize, c.block)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("consumer cancelled")
				return nil
			}
			c.logger.WithError(err).Error("consumer read failed")
			c.sleep(ctx)
			continue
		}

		// A zero-result read is the idle path, not an error.
		var acked int
		for topic, entries := range results {
			for _, entry := range entries {
				if c.process(ctx, topic, entry) {
					acked++
				}
			}
		}

		// A backlog pass that acked nothing would return the same pending
		// entries on the next read; stop redelivering and let the reclaim
		// sweep put them back into circulation once they idle out.
		if fromBacklog && acked == 0 {
			backlog = false
		}
	}

	c.logger.Info("consumer stopped")
	return nil
}

// Stop asynchronously requests shutdown. An in-flight batch finishes
// dispatching and acking before the consumer transitions to Stopped; nothing
// is interrupted mid-handler.
func (c *Consumer) Stop() {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		c.logger.Info("stopping consumer")
	}
}

// ClaimPending reassigns entries that have sat unacknowledged in the group
// for at least minIdle to this consumer, up to count entries, and returns
// how many were claimed. Claimed entries are redelivered through the normal
// read path on the consumer's next iteration. The owner is not consulted:
// entries this consumer already holds are claimable once they idle out,
// which is how its own unacked work gets requeued. Errors are logged and
// the count claimed before the error is returned; it never fails upward.
func (c *Consumer) ClaimPending(ctx context.Context, domain string, minIdle time.Duration, count int64) int64 {
	topic := topicName(c.prefix, domain)

	pending, err := c.store.PendingEntries(ctx, topic, c.group, count)
	if err != nil {
		c.logger.WithError(err).WithField("stream", topic).Error("failed to list pending entries")
		return 0
	}

	var claimed int64
	for _, p := range pending {
		if p.Idle < minIdle {
			continue
		}
		if err := c.store.Claim(ctx, topic, c.group, c.name, minIdle, []string{p.ID}); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"stream":   topic,
				"entry_id": p.ID,
			}).Error("failed to claim pending entry")
			break
		}
		claimed++
	}

	if claimed > 0 {
		c.claimed.Add(claimed)
	}
	return claimed
}

// process dispatches one entry and reports whether it was acknowledged.
func (c *Consumer) process(ctx context.Context, topic string, entry Entry) bool {
	eventType := entry.Record[FieldEventType]

	log := c.logger.WithFields(logrus.Fields{
		"stream":     topic,
		"entry_id":   entry.ID,
		"event_type": eventType,
	})

	var payload map[string]any
	if err := json.Unmarshal([]byte(entry.Record[FieldData]), &payload); err != nil {
		// A malformed entry can never be fixed by redelivery; ack it so it
		// does not block the stream.
		log.WithError(err).Error("discarding undecodable entry")
		c.ack(ctx, topic, entry.ID, log)
		return true
	}

	handlers := c.registry.Resolve(eventType)
	if len(handlers) == 0 {
		log.Debug("no handlers registered")
		c.ack(ctx, topic, entry.ID, log)
		return true
	}

	var failed int
	for _, handler := range handlers {
		if err := c.invoke(ctx, handler, payload); err != nil {
			failed++
			log.WithError(err).Error("handler failed")
		}
	}

	if failed > 0 && c.ackPolicy == AckOnSuccess {
		// Left pending; a reclaim will put it back into circulation.
		return false
	}
	c.ack(ctx, topic, entry.ID, log)
	return true
}

func (c *Consumer) invoke(ctx context.Context, handler Handler, payload map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("streams: handler panic recovered: %v", r)
		}
	}()
	return handler(ctx, payload)
}

func (c *Consumer) ack(ctx context.Context, topic, id string, log *logrus.Entry) {
	if err := c.store.Ack(ctx, topic, c.group, id); err != nil {
		log.WithError(err).Error("ack failed")
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
