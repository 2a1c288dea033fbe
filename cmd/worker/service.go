package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/lvollmer/bazaarnode/internal/messages"
	"github.com/lvollmer/bazaarnode/internal/protocol"
	"github.com/lvollmer/bazaarnode/pkg/config"
	"github.com/lvollmer/bazaarnode/pkg/db/models"
	pkgerrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
	"github.com/lvollmer/bazaarnode/pkg/metrics"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultSendTimeout  = 15 * time.Second
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type pinger interface {
	Ping(context.Context) error
}

type messageProcessor interface {
	Process(ctx context.Context, msg messages.ActionMessage) (*protocol.ProcessResult, error)
	RetryPending(ctx context.Context, batchSize int, maxAge time.Duration) (int, error)
}

type subscriber interface {
	Receive(ctx context.Context, fn func(context.Context, *gcppubsub.Message)) error
}

type broadcastClient interface {
	pinger
	MarketSubscription() *gcppubsub.Subscriber
	MarketPublisher() *gcppubsub.Publisher
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	Broadcast broadcastClient
	Processor messageProcessor
	Codec     *messages.Codec
	Outbound  protocol.OutboundRepository
	Metrics   *metrics.ProtocolMetrics

	// Publisher overrides the broadcast publisher in tests.
	Publisher publisher
}

// Service runs the node's background loops: the inbound consumer, the
// pending retry sweep and the outbound publisher.
type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	db        pinger
	redis     pinger
	broadcast broadcastClient
	processor messageProcessor
	codec     *messages.Codec
	outbound  protocol.OutboundRepository
	metrics   *metrics.ProtocolMetrics
	publisher publisher

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	sendTimeout  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Broadcast == nil {
		return nil, errors.New("broadcast client is required")
	}
	if params.Processor == nil {
		return nil, errors.New("message processor is required")
	}
	if params.Outbound == nil {
		return nil, errors.New("outbound repository is required")
	}

	codec := params.Codec
	if codec == nil {
		codec = messages.NewCodec(nil)
	}

	pub := params.Publisher
	if pub == nil {
		pub = newGCPPublisher(params.Broadcast.MarketPublisher())
	}

	pollInterval := params.Config.Outbound.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	sendTimeout := params.Config.Outbound.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		redis:        params.Redis,
		broadcast:    params.Broadcast,
		processor:    params.Processor,
		codec:        codec,
		outbound:     params.Outbound,
		metrics:      params.Metrics,
		publisher:    pub,
		batchSize:    params.Config.Outbound.BatchSize,
		maxAttempts:  params.Config.Outbound.MaxAttempts,
		pollInterval: pollInterval,
		sendTimeout:  sendTimeout,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.broadcast.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- s.consumeInbound(runCtx)
	}()
	go func() {
		errCh <- s.retryLoop(runCtx)
	}()
	go func() {
		errCh <- s.publishLoop(runCtx)
	}()

	var combined error
	for i := 0; i < 3; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(runCtx, "worker loop stopped unexpectedly", err)
			combined = multierr.Append(combined, err)
		}
		cancel()
	}
	if combined != nil {
		return combined
	}
	return ctx.Err()
}

// consumeInbound pulls peer messages off the node subscription and feeds
// them through the processor.
func (s *Service) consumeInbound(ctx context.Context) error {
	sub := s.broadcast.MarketSubscription()
	if sub == nil {
		return errors.New("market subscription not configured")
	}
	return s.receive(ctx, sub)
}

func (s *Service) receive(ctx context.Context, sub subscriber) error {
	return sub.Receive(ctx, func(ctx context.Context, m *gcppubsub.Message) {
		if recipient := m.Attributes["recipient"]; recipient != "" && recipient != s.cfg.Protocol.NodeAddress {
			// the subscription filter should make this unreachable
			m.Ack()
			return
		}

		msg, err := s.codec.Decode(m.Data)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping undecodable inbound message")
			m.Ack()
			return
		}

		msgCtx := s.logg.WithMessageHash(ctx, msg.Hash)
		result, err := s.processor.Process(msgCtx, msg)
		if err != nil {
			if retryableInboundError(err) {
				s.logg.Warn(s.logg.WithField(msgCtx, "error", err.Error()), "inbound message deferred")
				m.Nack()
				return
			}
			// terminal rejects (bad hash, illegal transition) must not redeliver
			s.logg.Warn(s.logg.WithField(msgCtx, "error", err.Error()), "inbound message rejected")
			m.Ack()
			return
		}

		s.logg.Info(s.logg.WithField(msgCtx, "outcome", result.Outcome.String()), "inbound message processed")
		m.Ack()
	})
}

// retryableInboundError reports whether redelivery could succeed. State
// conflicts and corrupt messages never will; infrastructure errors might.
func retryableInboundError(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return true
	default:
		return false
	}
}

// retryLoop periodically replays parked messages whose references may have
// arrived, and drops those older than the configured max age.
func (s *Service) retryLoop(ctx context.Context) error {
	interval := s.cfg.Protocol.PendingRetryInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			applied, err := s.processor.RetryPending(ctx, s.cfg.Protocol.PendingBatchSize, s.cfg.Protocol.PendingMaxAge)
			if err != nil {
				s.logg.Error(ctx, "pending retry sweep failed", err)
				continue
			}
			if applied > 0 {
				s.logg.Info(s.logg.WithField(ctx, "applied", applied), "pending messages applied")
			}
		}
	}
}

// publishLoop drains the outbound queue onto the market topic.
func (s *Service) publishLoop(ctx context.Context) error {
	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		published, err := s.publishBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbound publish batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval
		if published {
			continue
		}
		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) publishBatch(ctx context.Context) (bool, error) {
	rows, err := s.outbound.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}

	for i := range rows {
		row := &rows[i]
		fields := map[string]any{
			"message_hash":  row.MessageHash,
			"kind":          row.Kind.String(),
			"recipient":     row.Recipient,
			"attempt_count": row.AttemptCount,
		}
		if err := s.publishRow(ctx, row); err != nil {
			s.incPublish("error")
			logCtx := s.logg.WithFields(ctx, fields)
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "outbound publish failed")
			if markErr := s.outbound.MarkFailed(ctx, row.ID, err.Error()); markErr != nil {
				return true, fmt.Errorf("mark failed %s: %w", row.MessageHash, markErr)
			}
			continue
		}

		if err := s.outbound.MarkPublished(ctx, row.ID, time.Now().UTC()); err != nil {
			return true, fmt.Errorf("mark published %s: %w", row.MessageHash, err)
		}
		s.incPublish("ok")
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbound message published")
	}
	return true, nil
}

func (s *Service) publishRow(ctx context.Context, row *models.OutboundMessage) error {
	if s.publisher == nil {
		return errors.New("market publisher not configured")
	}

	msg := &gcppubsub.Message{
		Data: row.Raw,
		Attributes: map[string]string{
			"message_hash": row.MessageHash,
			"kind":         row.Kind.String(),
			"recipient":    row.Recipient,
			"sender":       s.cfg.Protocol.NodeAddress,
			"created_at":   row.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	result := s.publisher.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

func (s *Service) incPublish(result string) {
	if s.metrics != nil {
		s.metrics.IncPublish(result)
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
