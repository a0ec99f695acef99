package streams

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Option func(*Config)

func applyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithConfig replaces the whole configuration; later options still apply on
// top of it.
func WithConfig(config Config) Option {
	return func(cfg *Config) { *cfg = config }
}

func WithURL(url string) Option {
	return func(cfg *Config) { cfg.URL = url }
}

func WithAddr(addr string) Option {
	return func(cfg *Config) { cfg.Addr = addr }
}

func WithPassword(password string) Option {
	return func(cfg *Config) { cfg.Password = password }
}

func WithDB(db int) Option {
	return func(cfg *Config) { cfg.DB = db }
}

func WithPrefix(prefix string) Option {
	return func(cfg *Config) { cfg.Prefix = prefix }
}

func WithMaxLen(maxLen int64) Option {
	return func(cfg *Config) { cfg.MaxLen = maxLen }
}

func WithGroup(group string) Option {
	return func(cfg *Config) { cfg.Group = group }
}

func WithConsumerName(name string) Option {
	return func(cfg *Config) { cfg.Consumer = name }
}

func WithDomains(domains ...string) Option {
	return func(cfg *Config) { cfg.Domains = append([]string(nil), domains...) }
}

func WithBatchSize(n int64) Option {
	return func(cfg *Config) { cfg.BatchSize = n }
}

func WithBlock(block time.Duration) Option {
	return func(cfg *Config) { cfg.Block = block }
}

func WithBackoff(backoff time.Duration) Option {
	return func(cfg *Config) { cfg.Backoff = backoff }
}

func WithAckPolicy(policy AckPolicy) Option {
	return func(cfg *Config) { cfg.AckPolicy = policy }
}

func WithClaimMinIdle(minIdle time.Duration) Option {
	return func(cfg *Config) { cfg.ClaimMinIdle = minIdle }
}

func WithClaimInterval(interval time.Duration) Option {
	return func(cfg *Config) { cfg.ClaimInterval = interval }
}

func WithClaimBatch(n int64) Option {
	return func(cfg *Config) { cfg.ClaimBatch = n }
}

func WithLogger(logger *logrus.Entry) Option {
	return func(cfg *Config) { cfg.Logger = logger }
}
