// Package events relays realtime envelopes to RabbitMQ so out-of-process
// consumers see the same stream as websocket clients. Publishing is
// best-effort: failures are logged and counted, never returned to callers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/metrics"
)

const (
	bufferSize     = 1024
	publishTimeout = 5 * time.Second
)

var retryDelay = 5 * time.Second

// Channel is the part of *amqp.Channel the relay uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel with queue declared, plus the connection to close with it.
type Dialer func(url, queue string) (Channel, func() error, error)

type envelope struct {
	msgType string
	body    []byte
	at      time.Time
}

// Relay buffers envelopes and publishes them from a single goroutine over one
// long-lived connection, reconnecting after failures.
type Relay struct {
	url   string
	queue string
	dial  Dialer

	buf  chan envelope
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

// NewRelay returns a relay for queue on the broker at url. Call Start to begin publishing.
func NewRelay(url, queue string) *Relay {
	return NewRelayWithDialer(url, queue, DialAMQP)
}

func NewRelayWithDialer(url, queue string, dial Dialer) *Relay {
	return &Relay{
		url:   url,
		queue: queue,
		dial:  dial,
		buf:   make(chan envelope, bufferSize),
		done:  make(chan struct{}),
		log:   logger.Component("events"),
	}
}

// DialAMQP connects to RabbitMQ and declares a durable queue.
func DialAMQP(url, queue string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return ch, conn.Close, nil
}

// Publish queues an envelope. It never blocks; when the buffer is full the
// envelope is dropped.
func (r *Relay) Publish(msgType string, data []byte) {
	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.buf <- envelope{msgType: msgType, body: data, at: time.Now().UTC()}:
	default:
		metrics.EventsRelayed.WithLabelValues("dropped").Inc()
	}
}

// Start runs the publish loop until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Relay) loop(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })

	var (
		ch        Channel
		closeConn func() error
	)
	disconnect := func() {
		if ch != nil {
			_ = ch.Close()
			ch = nil
		}
		if closeConn != nil {
			_ = closeConn()
			closeConn = nil
		}
	}
	defer disconnect()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Event relay stopped")
			return

		case env := <-r.buf:
			if ch == nil {
				var err error
				ch, closeConn, err = r.dial(r.url, r.queue)
				if err != nil {
					r.log.Warn().Err(err).Msg("Broker unavailable, dropping event")
					metrics.EventsRelayed.WithLabelValues("failed").Inc()
					if !sleepCtx(ctx, retryDelay) {
						return
					}
					continue
				}
				r.log.Info().Str("queue", r.queue).Msg("✅ Connected to RabbitMQ")
			}

			if err := r.publish(ctx, ch, env); err != nil {
				r.log.Warn().Err(err).Str("type", env.msgType).Msg("Publish failed")
				metrics.EventsRelayed.WithLabelValues("failed").Inc()
				disconnect()
				continue
			}
			metrics.EventsRelayed.WithLabelValues("published").Inc()
		}
	}
}

func (r *Relay) publish(ctx context.Context, ch Channel, env envelope) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(pubCtx,
		"",      // default exchange
		r.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         env.msgType,
			Timestamp:    env.at,
			Body:         env.body,
		},
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
