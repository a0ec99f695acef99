package streams

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/golly-go/streams/events"
)

// orderPlaced exercises a second domain alongside the built-in user events.
type orderPlaced struct {
	events.Base

	OrderID string  `json:"order_id"`
	Total   float64 `json:"total"`
}

func (orderPlaced) EventType() string { return "order.placed" }

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
