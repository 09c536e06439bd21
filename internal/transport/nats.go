// Package transport serializes telemetry records and moves them over a NATS
// subject. Delivery is core NATS: at most once, no retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"plantmon-sim/internal/telemetry"
)

// Defaults for Config fields left empty.
const (
	DefaultURL            = nats.DefaultURL
	DefaultSubject        = "plant_monitoring.readings"
	DefaultConnectTimeout = 2 * time.Second
)

var (
	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("not connected to broker")
	// ErrConnectionLost is reported when the broker drops the connection
	// without saying why.
	ErrConnectionLost = errors.New("connection to broker lost")
)

// Config describes how to reach the broker.
type Config struct {
	URL            string
	Subject        string
	ClientName     string
	ConnectTimeout time.Duration
	// OnConnectionLost is called when an established connection drops
	// without a Close. It runs on a NATS callback goroutine.
	OnConnectionLost func(error)
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// endpoint holds the connection shared by Publisher and Subscriber.
type endpoint struct {
	cfg Config
	mu  sync.RWMutex
	nc  *nats.Conn
	// closing is set for nc before we close it ourselves
	closing *atomic.Bool
}

// connect makes a single attempt to reach the broker.
func (e *endpoint) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := e.cfg.ConnectTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}

	closing := &atomic.Bool{}
	opts := []nats.Option{
		nats.Name(e.cfg.ClientName),
		nats.Timeout(timeout),
		nats.NoReconnect(),
	}
	if lost := e.cfg.OnConnectionLost; lost != nil {
		// without reconnects a server-side drop closes the connection, and
		// err is usually nil then, same as for our own Close
		opts = append(opts, nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if closing.Load() {
				return
			}
			lost(lostReason(nc, err))
		}))
	}

	nc, err := nats.Connect(e.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", e.cfg.URL, err)
	}

	e.mu.Lock()
	old, oldClosing := e.nc, e.closing
	e.nc, e.closing = nc, closing
	e.mu.Unlock()
	if old != nil {
		oldClosing.Store(true)
		old.Close()
	}
	return nil
}

func lostReason(nc *nats.Conn, err error) error {
	if err != nil {
		return err
	}
	if nc != nil {
		if last := nc.LastError(); last != nil {
			return last
		}
	}
	return ErrConnectionLost
}

func (e *endpoint) current() (*nats.Conn, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.nc == nil || !e.nc.IsConnected() {
		return nil, ErrNotConnected
	}
	return e.nc, nil
}

// Connected reports whether the connection is currently usable.
func (e *endpoint) Connected() bool {
	_, err := e.current()
	return err == nil
}

// URL returns the broker address.
func (e *endpoint) URL() string { return e.cfg.URL }

// Subject returns the subject records travel on.
func (e *endpoint) Subject() string { return e.cfg.Subject }

// Close shuts the connection down. It is safe to call more than once.
func (e *endpoint) Close() error {
	e.mu.Lock()
	nc, closing := e.nc, e.closing
	e.nc, e.closing = nil, nil
	e.mu.Unlock()
	if nc != nil {
		closing.Store(true)
		nc.Close()
	}
	return nil
}

// Publisher sends records to the configured subject.
type Publisher struct {
	endpoint
}

// NewPublisher creates an unconnected publisher.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{endpoint: endpoint{cfg: cfg.withDefaults()}}
}

// Connect opens the broker connection.
func (p *Publisher) Connect(ctx context.Context) error {
	return p.connect(ctx)
}

// Publish encodes rec and hands it to the broker.
func (p *Publisher) Publish(ctx context.Context, rec telemetry.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := p.current()
	if err != nil {
		return err
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := nc.Publish(p.cfg.Subject, data); err != nil {
		return fmt.Errorf("publish record %d: %w", rec.ID, err)
	}
	return nil
}

// Subscriber delivers raw payloads from the configured subject.
type Subscriber struct {
	endpoint
	sub *nats.Subscription
}

// NewSubscriber creates an unconnected subscriber.
func NewSubscriber(cfg Config) *Subscriber {
	return &Subscriber{endpoint: endpoint{cfg: cfg.withDefaults()}}
}

// Connect opens the broker connection.
func (s *Subscriber) Connect(ctx context.Context) error {
	return s.connect(ctx)
}

// Subscribe registers handler for every message on the subject. Messages are
// handed over one at a time, in arrival order, on a single goroutine.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(data []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := s.current()
	if err != nil {
		return err
	}
	sub, err := nc.Subscribe(s.cfg.Subject, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	// make sure the server knows about the interest before returning
	if err := nc.FlushTimeout(s.cfg.ConnectTimeout); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Close removes the subscription and closes the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	s.sub = nil
	s.mu.Unlock()
	return s.endpoint.Close()
}
