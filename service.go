package streams

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/golly-go/golly"
)

// Service implements the golly.Service interface, running the plugin's
// consumer-group loop and reclaim sweep for the configured domains.
type Service struct {
	plugin *Plugin

	cancel  context.CancelFunc
	running atomic.Bool
}

func NewService(plugin *Plugin) *Service {
	return &Service{plugin: plugin}
}

func (s *Service) Name() string { return "streams-consumer" }

func (s *Service) Description() string {
	return "event stream consumer group runtime"
}

func (s *Service) Initialize(app *golly.Application) error {
	if s.plugin == nil || s.plugin.consumer == nil {
		return fmt.Errorf("streams: plugin not initialized")
	}
	return nil
}

// Start begins consuming and blocks until Stop is called. The framework
// runs this in its own goroutine.
func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.running.Store(true)
	defer s.running.Store(false)

	go s.plugin.reclaimer.Run(ctx)

	return s.plugin.consumer.Consume(ctx, s.plugin.config.Domains...)
}

// Stop gracefully drains the consumer and halts the reclaimer.
func (s *Service) Stop() error {
	s.plugin.consumer.Stop()
	s.plugin.reclaimer.Stop()

	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *Service) IsRunning() bool { return s.running.Load() }
