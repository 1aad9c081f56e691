package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
)

const (
	exchangeKind = "topic"
	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
)

// Config describes the AMQP connection.
type Config struct {
	URL         string
	Exchange    string
	ConnTimeout time.Duration
	Logger      *slog.Logger
}

// reconnectingSender keeps one channel open and redials with jittered
// exponential backoff whenever the connection drops.
type reconnectingSender struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	ready chan struct{} // closed while ch is usable

	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func newReconnectingSender(cfg Config) *reconnectingSender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rs := &reconnectingSender{
		cfg:    cfg,
		logger: logger.With("component", "rabbitmq"),
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go rs.run()

	return rs
}

func (rs *reconnectingSender) Publish(ctx context.Context, m PubMsg) error {
	for {
		rs.mu.RLock()
		ch, ready := rs.ch, rs.ready
		rs.mu.RUnlock()

		if ch != nil {
			return ch.PublishWithContext(ctx, m.Exchange, m.RoutingKey, false, false, amqpPublishing(m))
		}

		select {
		case <-ready:
		case <-rs.closed:
			return fmt.Errorf("%w: rabbitmq publisher closed", berr.ErrPublishFailed)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rs *reconnectingSender) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(rs.cfg.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": "scg-recommender"},
		Dial:       amqp.DefaultDial(rs.cfg.ConnTimeout),
	})
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	if err := ch.ExchangeDeclare(rs.cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, nil, err
	}

	return conn, ch, nil
}

func (rs *reconnectingSender) run() {
	defer close(rs.done)

	backoff := minBackoff

	for {
		conn, ch, err := rs.dial()
		if err != nil {
			sleep := min(backoff+rand.N(backoff/2), maxBackoff) //nolint:gosec // jitter only
			rs.logger.Warn("rabbitmq connect failed", "error", err, "retry_in", sleep)

			t := time.NewTimer(sleep)
			select {
			case <-rs.closed:
				t.Stop()
				return
			case <-t.C:
			}

			backoff = min(backoff*2, maxBackoff)

			continue
		}

		backoff = minBackoff
		notify := conn.NotifyClose(make(chan *amqp.Error, 1))

		rs.mu.Lock()
		rs.conn, rs.ch = conn, ch
		close(rs.ready)
		rs.mu.Unlock()

		rs.logger.Info("rabbitmq connected", "exchange", rs.cfg.Exchange)

		select {
		case <-rs.closed:
			rs.reset(make(chan struct{}))
			return
		case amqpErr := <-notify:
			rs.logger.Warn("rabbitmq connection lost", "error", amqpErr)
			rs.reset(make(chan struct{}))
		}
	}
}

// reset closes the current channel and connection and installs a fresh, open ready channel.
func (rs *reconnectingSender) reset(ready chan struct{}) {
	rs.mu.Lock()
	ch, conn := rs.ch, rs.conn
	rs.ch, rs.conn = nil, nil
	rs.ready = ready
	rs.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}

	if conn != nil {
		_ = conn.Close()
	}
}

func (rs *reconnectingSender) close() {
	rs.closeOnce.Do(func() { close(rs.closed) })
	<-rs.done
}

// NewWithAMQPConn starts a reconnecting AMQP sender and returns a Publisher and a
// cleanup that stops the reconnect loop and closes the connection. Publishes made
// before the first connect wait for it, bounded by their context.
func NewWithAMQPConn(cfg Config, hp cbus.HeaderPropagator) (*Publisher, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrPublishFailed)
	}

	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}

	rs := newReconnectingSender(cfg)

	return New(rs, cfg.Exchange, hp), rs.close, nil
}
