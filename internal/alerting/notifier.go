package alerting

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/health"
)

// Publisher publishes one alert payload. Satisfied by pubsubPublisher and
// mocked in tests.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// CriticalAlert is the payload dispatched for unhealthy snapshots.
type CriticalAlert struct {
	Level     string               `json:"level"`
	Status    health.ServiceStatus `json:"status"`
	Services  []string             `json:"services"`
	Timestamp time.Time            `json:"timestamp"`
}

// NotifierConfig holds configuration for the critical-alert notifier.
type NotifierConfig struct {
	Publisher Publisher
	Logger    zerolog.Logger

	// MaxElapsed bounds the publish retry window. Alert dispatch is not a
	// business operation, so a short retry here does not conflict with
	// the no-retry rule of the fallback layer. Default: 10 seconds.
	MaxElapsed time.Duration
}

// Notifier dispatches critical alerts, fire-and-forget.
type Notifier struct {
	pub        Publisher
	logger     zerolog.Logger
	maxElapsed time.Duration
}

// NewNotifier creates a notifier.
func NewNotifier(cfg NotifierConfig) *Notifier {
	maxElapsed := cfg.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = 10 * time.Second
	}
	return &Notifier{pub: cfg.Publisher, logger: cfg.Logger, maxElapsed: maxElapsed}
}

// Critical publishes a paging-level alert for the snapshot. On failure it
// logs and continues; it never returns an error to its caller.
func (n *Notifier) Critical(ctx context.Context, snapshot health.SystemHealth) {
	failing := make([]string, 0, len(snapshot.Services))
	for name, svc := range snapshot.Services {
		if svc.Status == health.StatusUnhealthy {
			failing = append(failing, string(name))
		}
	}

	payload, err := json.Marshal(CriticalAlert{
		Level:     "critical",
		Status:    snapshot.Status,
		Services:  failing,
		Timestamp: snapshot.Timestamp,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to encode critical alert")
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = n.maxElapsed

	publish := func() error {
		return n.pub.Publish(ctx, payload)
	}

	if err := backoff.Retry(publish, backoff.WithContext(bo, ctx)); err != nil {
		n.logger.Error().
			Err(err).
			Strs("services", failing).
			Msg("failed to dispatch critical alert")
	}
}

// pubsubPublisher adapts a Pub/Sub topic publisher to the Publisher
// contract.
type pubsubPublisher struct {
	publisher *pubsub.Publisher
}

// NewPubSubPublisher creates a Publisher backed by the given Pub/Sub
// topic.
func NewPubSubPublisher(client *pubsub.Client, topic string) Publisher {
	return &pubsubPublisher{publisher: client.Publisher(topic)}
}

// Publish sends the payload and waits for the server acknowledgement.
func (p *pubsubPublisher) Publish(ctx context.Context, data []byte) error {
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data})
	_, err := result.Get(ctx)
	return err
}
