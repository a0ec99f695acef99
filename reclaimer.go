package streams

import (
	"context"
	"sync"
	"time"
)

// Reclaimer periodically sweeps the group's pending entries for the given
// domains and claims any idle past the configured threshold, recovering work
// that was assigned to a consumer that has since crashed.
type Reclaimer struct {
	consumer *Consumer
	domains  []string

	interval time.Duration
	minIdle  time.Duration
	batch    int64

	quit chan struct{}
	once sync.Once
}

func NewReclaimer(consumer *Consumer, domains []string, opts ...Option) *Reclaimer {
	cfg := applyOptions(opts...)

	return &Reclaimer{
		consumer: consumer,
		domains:  append([]string(nil), domains...),
		interval: cfg.ClaimInterval,
		minIdle:  cfg.ClaimMinIdle,
		batch:    cfg.ClaimBatch,
		quit:     make(chan struct{}),
	}
}

// Run blocks, sweeping every interval until the context is cancelled or Stop
// is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.quit:
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reclamation pass over all domains and returns the total
// number of entries claimed.
func (r *Reclaimer) Sweep(ctx context.Context) int64 {
	var total int64
	for _, domain := range r.domains {
		n := r.consumer.ClaimPending(ctx, domain, r.minIdle, r.batch)
		if n > 0 {
			r.consumer.logger.WithField("domain", domain).
				Infof("reclaimed %d stalled entries", n)
		}
		total += n
	}
	return total
}

func (r *Reclaimer) Stop() {
	r.once.Do(func() { close(r.quit) })
}
