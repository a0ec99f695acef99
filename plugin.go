package streams

import (
	"context"
	"fmt"

	"github.com/golly-go/golly"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const PluginName = "streams"

// Plugin implements the golly.Plugin interface. It owns the redis client and
// the bus components; the consume loop itself runs in the Service.
type Plugin struct {
	config   Config
	registry *HandlerRegistry

	client    *redis.Client
	store     Store
	publisher *Publisher
	consumer  *Consumer
	reclaimer *Reclaimer

	cfgFunc func(app *golly.Application) Config
}

func NewPlugin(opts ...Option) *Plugin {
	return &Plugin{
		config:   applyOptions(opts...),
		registry: NewHandlerRegistry(),
	}
}

// NewPluginWithConfigFunc defers configuration until the application is
// available, usually to read it via ConfigFromApp.
func NewPluginWithConfigFunc(cfgFunc func(app *golly.Application) Config) *Plugin {
	return &Plugin{
		config:   DefaultConfig(),
		registry: NewHandlerRegistry(),
		cfgFunc:  cfgFunc,
	}
}

func (p *Plugin) Name() string { return PluginName }

// Initialize builds the redis client, pings it, and wires the publisher,
// consumer and reclaimer. Nothing starts consuming until the Service does.
func (p *Plugin) Initialize(app *golly.Application) error {
	if p.cfgFunc != nil {
		p.config = p.cfgFunc(app)
	}

	app.Logger().Infof("Initializing streams connection to %s", p.config.Addr)

	opts := &redis.Options{
		Addr:     p.config.Addr,
		Password: p.config.Password,
		DB:       p.config.DB,
	}
	if p.config.URL != "" {
		parsed, err := redis.ParseURL(p.config.URL)
		if err != nil {
			return fmt.Errorf("streams: invalid redis URL: %w", err)
		}
		opts = parsed
	}

	p.client = redis.NewClient(opts)
	if _, err := p.client.Ping(context.Background()).Result(); err != nil {
		return fmt.Errorf("streams: failed to connect to redis: %w", err)
	}

	p.store = NewRedisStore(p.client)
	p.publisher = NewPublisher(p.store, WithConfig(p.config))
	p.consumer = NewConsumer(p.store, p.config.Group, p.config.Consumer, p.registry, WithConfig(p.config))
	p.reclaimer = NewReclaimer(p.consumer, p.config.Domains, WithConfig(p.config))

	return nil
}

func (p *Plugin) Deinitialize(app *golly.Application) error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Plugin) Commands() []*cobra.Command { return []*cobra.Command{} }

func (p *Plugin) Services() []golly.Service {
	return []golly.Service{NewService(p)}
}

// Registry is where handlers are subscribed before the application starts.
func (p *Plugin) Registry() *HandlerRegistry { return p.registry }

func (p *Plugin) Publisher() *Publisher { return p.publisher }
func (p *Plugin) Consumer() *Consumer   { return p.consumer }
func (p *Plugin) Reclaimer() *Reclaimer { return p.reclaimer }
func (p *Plugin) Store() Store          { return p.store }
func (p *Plugin) Client() *redis.Client { return p.client }

var _ golly.Plugin = (*Plugin)(nil)
