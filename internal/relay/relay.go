package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jpalmerr/liveboard/internal/hub"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "liveboard.panels"

// resubscribeWait paces [Relay.Follow] when subscriptions keep closing.
const resubscribeWait = 100 * time.Millisecond

// ErrEventsClosed is returned by [Relay.Run] when the event channel closes
// while its context is still live, as when the hub drops a slow subscriber.
var ErrEventsClosed = errors.New("relay event stream closed")

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Config describes the NATS connection.
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
}

// Connect dials NATS with reconnects enabled and connection state changes logged.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("liveboard"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Relay publishes hub events to NATS subjects.
type Relay struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// New creates a [Relay] publishing under prefix.
func New(pub Publisher, prefix string, logger *slog.Logger) *Relay {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{pub: pub, prefix: prefix, logger: logger}
}

// Subject returns the subject events for panel are published on.
func (r *Relay) Subject(panel string) string {
	return r.prefix + "." + subjectToken(panel)
}

// Run publishes every event from events until the channel closes or ctx is
// done. Publish failures are logged and do not stop the relay.
//
// Run returns ctx.Err() once ctx is done, and [ErrEventsClosed] if the
// channel closes first.
func (r *Relay) Run(ctx context.Context, events <-chan hub.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.logger.Warn("relay event stream closed")
				return ErrEventsClosed
			}
			r.publish(e)
		}
	}
}

// Follow runs the relay on a subscription from subscribe and takes a new
// one whenever the current one closes, until ctx is done. Events published
// between a drop and the resubscribe are not relayed.
func (r *Relay) Follow(ctx context.Context, subscribe func() *hub.Subscription) error {
	for {
		sub := subscribe()
		err := r.Run(ctx, sub.C())
		sub.Close()
		if !errors.Is(err, ErrEventsClosed) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeWait):
		}
		r.logger.Warn("relay resubscribing, updates published while dropped were missed")
	}
}

func (r *Relay) publish(e hub.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("relay encode failed", "panel", e.Panel, "error", err)
		return
	}
	subject := r.Subject(e.Panel)
	if err := r.pub.Publish(subject, data); err != nil {
		r.logger.Warn("relay publish failed", "subject", subject, "error", err)
		return
	}
	r.logger.Debug("relayed panel update", "subject", subject)
}

// subjectToken turns a panel name into a single NATS subject token.
func subjectToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}
