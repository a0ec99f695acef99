package streams

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with full consumer-group bookkeeping:
// per-group cursors, pending entries, idle clocks and claims. It exists for
// tests and local development; it is not durable and never will be.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
	notify  chan struct{}

	// AppendErr, when set, fails every Append. Test hook.
	AppendErr error
}

type memoryStream struct {
	seq     int64
	entries []memoryEntry
	groups  map[string]*memoryGroup
}

type memoryEntry struct {
	seq int64
	id  string
	rec Record
}

type memoryGroup struct {
	cursor  int64 // seq of the last entry handed to some consumer
	pending map[string]*memoryPending
}

type memoryPending struct {
	seq           int64
	consumer      string
	deliveryCount int64
	lastDelivery  time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string]*memoryStream),
		notify:  make(chan struct{}),
	}
}

func (s *MemoryStore) EnsureGroup(ctx context.Context, topic, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	str := s.stream(topic)
	if _, ok := str.groups[group]; ok {
		return ErrGroupExists
	}
	str.groups[group] = &memoryGroup{pending: make(map[string]*memoryPending)}
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, topic string, rec Record, maxLen int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		return "", s.AppendErr
	}

	str := s.stream(topic)
	str.seq++
	id := fmt.Sprintf("%d-0", str.seq)
	str.entries = append(str.entries, memoryEntry{seq: str.seq, id: id, rec: rec})

	if maxLen > 0 && int64(len(str.entries)) > maxLen {
		str.entries = str.entries[int64(len(str.entries))-maxLen:]

		// Pending references to trimmed entries can never be redelivered;
		// drop them so they stop surfacing in sweeps.
		minSeq := str.entries[0].seq
		for _, g := range str.groups {
			for pid, p := range g.pending {
				if p.seq < minSeq {
					delete(g.pending, pid)
				}
			}
		}
	}

	close(s.notify)
	s.notify = make(chan struct{})

	return id, nil
}

func (s *MemoryStore) ReadGroup(ctx context.Context, group, consumer string, topics []string, count int64, block time.Duration) (map[string][]Entry, error) {
	deadline := time.Now().Add(block)

	for {
		s.mu.Lock()

		out := make(map[string][]Entry)
		for _, topic := range topics {
			g, err := s.group(topic, group)
			if err != nil {
				s.mu.Unlock()
				return nil, err
			}

			var entries []Entry
			for _, e := range s.streams[topic].entries {
				if e.seq <= g.cursor {
					continue
				}
				if count > 0 && int64(len(entries)) >= count {
					break
				}
				entries = append(entries, Entry{ID: e.id, Record: e.rec})
				g.cursor = e.seq
				g.pending[e.id] = &memoryPending{
					seq:           e.seq,
					consumer:      consumer,
					deliveryCount: 1,
					lastDelivery:  time.Now(),
				}
			}
			if len(entries) > 0 {
				out[topic] = entries
			}
		}

		ch := s.notify
		s.mu.Unlock()

		if len(out) > 0 {
			return out, nil
		}
		if block < 0 {
			return nil, nil
		}

		if block == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ch:
			}
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		t := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
			return nil, nil
		case <-ch:
			t.Stop()
		}
	}
}

func (s *MemoryStore) ReadBacklog(ctx context.Context, group, consumer string, topics []string, count int64) (map[string][]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]Entry)
	for _, topic := range topics {
		g, err := s.group(topic, group)
		if err != nil {
			return nil, err
		}

		owned := make([]*memoryPending, 0, len(g.pending))
		byID := make(map[int64]string, len(g.pending))
		for id, p := range g.pending {
			if p.consumer == consumer {
				owned = append(owned, p)
				byID[p.seq] = id
			}
		}
		sort.Slice(owned, func(i, j int) bool { return owned[i].seq < owned[j].seq })

		var entries []Entry
		for _, p := range owned {
			if count > 0 && int64(len(entries)) >= count {
				break
			}
			if e, ok := s.entry(topic, p.seq); ok {
				entries = append(entries, Entry{ID: byID[p.seq], Record: e.rec})
			}
		}
		if len(entries) > 0 {
			out[topic] = entries
		}
	}
	return out, nil
}

func (s *MemoryStore) Ack(ctx context.Context, topic, group, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(topic, group)
	if err != nil {
		return err
	}
	delete(g.pending, id)
	return nil
}

func (s *MemoryStore) PendingEntries(ctx context.Context, topic, group string, count int64) ([]PendingInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(topic, group)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.pending[ids[i]].seq < g.pending[ids[j]].seq })

	out := make([]PendingInfo, 0, len(ids))
	for _, id := range ids {
		if count > 0 && int64(len(out)) >= count {
			break
		}
		p := g.pending[id]
		out = append(out, PendingInfo{
			ID:         id,
			Consumer:   p.consumer,
			Idle:       time.Since(p.lastDelivery),
			RetryCount: p.deliveryCount,
		})
	}
	return out, nil
}

func (s *MemoryStore) Claim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(topic, group)
	if err != nil {
		return err
	}

	for _, id := range ids {
		p, ok := g.pending[id]
		if !ok || time.Since(p.lastDelivery) < minIdle {
			continue
		}
		p.consumer = consumer
		p.deliveryCount++
		p.lastDelivery = time.Now()
	}
	return nil
}

func (s *MemoryStore) Info(ctx context.Context, topic string) (StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	str, ok := s.streams[topic]
	if !ok {
		return StreamInfo{}, ErrStreamNotFound
	}

	info := StreamInfo{
		Length: int64(len(str.entries)),
		Groups: int64(len(str.groups)),
	}
	if len(str.entries) > 0 {
		info.FirstEntryID = str.entries[0].id
		info.LastEntryID = str.entries[len(str.entries)-1].id
	}
	return info, nil
}

// stream returns the named stream, creating it if needed. Callers hold mu.
func (s *MemoryStore) stream(topic string) *memoryStream {
	str, ok := s.streams[topic]
	if !ok {
		str = &memoryStream{groups: make(map[string]*memoryGroup)}
		s.streams[topic] = str
	}
	return str
}

// group looks up group state without creating anything. Callers hold mu.
func (s *MemoryStore) group(topic, group string) (*memoryGroup, error) {
	str, ok := s.streams[topic]
	if !ok {
		return nil, fmt.Errorf("streams: no such stream %q", topic)
	}
	g, ok := str.groups[group]
	if !ok {
		return nil, fmt.Errorf("streams: no such group %q for stream %q", group, topic)
	}
	return g, nil
}

func (s *MemoryStore) entry(topic string, seq int64) (memoryEntry, bool) {
	for _, e := range s.streams[topic].entries {
		if e.seq == seq {
			return e, true
		}
	}
	return memoryEntry{}, false
}

var _ Store = (*MemoryStore)(nil)
