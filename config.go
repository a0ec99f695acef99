package streams

import (
	"time"

	"github.com/golly-go/golly"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AckPolicy decides when a delivered entry is acknowledged.
type AckPolicy int

const (
	// AckAlways acknowledges after all handlers have been attempted, even
	// when some failed. A failing handler's work is lost without
	// redelivery, but a poison handler can never block the stream.
	AckAlways AckPolicy = iota

	// AckOnSuccess withholds the acknowledgment when any handler fails,
	// leaving the entry pending for reclamation. Handlers must be
	// idempotent since the whole entry is redispatched.
	AckOnSuccess
)

// Config holds the bus configuration shared by the publisher, consumer and
// reclaimer. Zero values fall back to DefaultConfig.
type Config struct {
	// Connection, used when the Service builds its own client.
	URL      string // redis URL, takes precedence over Addr when set
	Addr     string
	Password string
	DB       int

	Prefix string // stream key prefix; topics are "<prefix>:<domain>"
	MaxLen int64  // approximate per-stream cap applied on append

	Group    string
	Consumer string
	Domains  []string

	BatchSize int64         // entries requested per topic per read
	Block     time.Duration // how long a read blocks when nothing is available
	Backoff   time.Duration // sleep after a loop-level error
	AckPolicy AckPolicy

	ClaimMinIdle  time.Duration // idle threshold before a pending entry is reclaimable
	ClaimInterval time.Duration // how often the reclaimer sweeps
	ClaimBatch    int64         // pending entries inspected per sweep per domain

	Logger *logrus.Entry
}

func DefaultConfig() Config {
	return Config{
		Addr:          "localhost:6379",
		Prefix:        "events",
		MaxLen:        10000,
		BatchSize:     10,
		Block:         5 * time.Second,
		Backoff:       time.Second,
		ClaimMinIdle:  60 * time.Second,
		ClaimInterval: 30 * time.Second,
		ClaimBatch:    10,
	}
}

func (c Config) logger() *logrus.Entry {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// ConfigFromViper reads the streams.* keys, leaving defaults in place for
// anything unset.
func ConfigFromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()

	if s := v.GetString("streams.url"); s != "" {
		cfg.URL = s
	}
	if s := v.GetString("streams.addr"); s != "" {
		cfg.Addr = s
	}
	if s := v.GetString("streams.password"); s != "" {
		cfg.Password = s
	}
	cfg.DB = v.GetInt("streams.db")

	if s := v.GetString("streams.prefix"); s != "" {
		cfg.Prefix = s
	}
	if n := v.GetInt64("streams.max_len"); n > 0 {
		cfg.MaxLen = n
	}

	if s := v.GetString("streams.group"); s != "" {
		cfg.Group = s
	}
	if s := v.GetString("streams.consumer"); s != "" {
		cfg.Consumer = s
	}
	if ds := v.GetStringSlice("streams.domains"); len(ds) > 0 {
		cfg.Domains = ds
	}

	if n := v.GetInt64("streams.batch_size"); n > 0 {
		cfg.BatchSize = n
	}
	if d := v.GetDuration("streams.block"); d > 0 {
		cfg.Block = d
	}
	if d := v.GetDuration("streams.backoff"); d > 0 {
		cfg.Backoff = d
	}
	if v.GetBool("streams.ack_on_success") {
		cfg.AckPolicy = AckOnSuccess
	}

	if d := v.GetDuration("streams.claim.min_idle"); d > 0 {
		cfg.ClaimMinIdle = d
	}
	if d := v.GetDuration("streams.claim.interval"); d > 0 {
		cfg.ClaimInterval = d
	}
	if n := v.GetInt64("streams.claim.batch"); n > 0 {
		cfg.ClaimBatch = n
	}

	return cfg
}

// ConfigFromApp reads the streams.* keys from a golly application's config.
func ConfigFromApp(app *golly.Application) Config {
	return ConfigFromViper(app.Config())
}
