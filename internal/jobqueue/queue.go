// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jobqueue implements the Job Queue (C3): at-least-once hand-off of
// job identifiers to background workers over NATS JetStream, via Watermill.
package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dailyrecap/pipeline/internal/metrics"
)

// queueDepth tracks outstanding (enqueued, not yet handled) jobs across
// every Publisher/Subscriber pair in this process, since the embedded
// broker has no separate process to query for stream depth.
var queueDepth int64

// JobsTopic is the single subject job identifiers are handed off on.
const JobsTopic = "daily-recap.jobs"

// PublisherConfig configures the enqueue side.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	TrackMsgID      bool
}

// SubscriberConfig configures the dequeue side.
type SubscriberConfig struct {
	URL              string
	StreamName       string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	MaxReconnects    int
	ReconnectWait    time.Duration
	MaxDeliver       int
	MaxAckPending    int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
}

// Publisher hands job identifiers off to the queue with circuit-breaker
// protection around the underlying NATS connection.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[any]
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher creates a resilient Watermill NATS JetStream publisher.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter, cb *gobreaker.CircuitBreaker[any]) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    cfg.TrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: create publisher: %w", err)
	}

	return &Publisher{publisher: pub, circuitBreaker: cb, logger: logger}, nil
}

// Enqueue hands jobID off to the queue. Delivery is at-least-once: the
// worker side must treat the Job State Store, not message delivery, as
// authoritative for status.
func (p *Publisher) Enqueue(ctx context.Context, jobID string) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("jobqueue: publisher is closed")
	}
	p.mu.RUnlock()

	msg := message.NewMessage(jobID, []byte(jobID))
	msg.Metadata.Set(natsgo.MsgIdHdr, jobID)

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(JobsTopic, msg)
		})
	} else {
		err = p.publisher.Publish(JobsTopic, msg)
	}
	if err == nil {
		metrics.UpdateJobQueueDepth(atomic.AddInt64(&queueDepth, 1))
	}
	return err
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// Subscriber dequeues job identifiers for worker consumption.
type Subscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable JetStream subscriber bound to a queue
// group so multiple worker instances load-balance job consumption.
func NewSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("jobqueue subscriber disconnected", err, nil)
			}
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverAll(),
	}

	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: create subscriber: %w", err)
	}
	return &Subscriber{subscriber: sub, logger: logger}, nil
}

// Consume calls handle for every job ID delivered until ctx is canceled.
// handle's error, if any, nacks the message for redelivery; success acks it.
func (s *Subscriber) Consume(ctx context.Context, handle func(ctx context.Context, jobID string) error) error {
	messages, err := s.subscriber.Subscribe(ctx, JobsTopic)
	if err != nil {
		return fmt.Errorf("jobqueue: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			jobID := string(msg.Payload)
			if err := handle(ctx, jobID); err != nil {
				s.logger.Error("job handling failed", err, watermill.LogFields{"job_id": jobID})
				msg.Nack()
				continue
			}
			msg.Ack()
			metrics.UpdateJobQueueDepth(atomic.AddInt64(&queueDepth, -1))
		}
	}
}

// Close gracefully shuts down the subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
