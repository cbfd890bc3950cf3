package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/helm"
)

const eventChannelPrefix = "helm:events:"

func EventChannel(account string) string {
	return eventChannelPrefix + account
}

// SignalService fans lifecycle events out over redis pub/sub, one channel per account.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event helm.Event) error {
	event = stampEvent(event)

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, EventChannel(event.Account), jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "publish event")
	}

	return nil
}

// Realtime forwards the events of the accounts last received on input to output.
// It closes output when ctx ends or input is closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- helm.Event) {
	defer close(output)

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()
	messages := pubsub.Channel()

	var current []string
	for {
		select {
		case <-ctx.Done():
			return
		case accounts, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.WarnContext(ctx, "unsubscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
			current = current[:0]
			for _, account := range accounts {
				current = append(current, EventChannel(account))
			}
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.WarnContext(ctx, "subscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			event, err := decodeEvent(msg.Payload)
			if err != nil {
				slog.WarnContext(ctx, "dropping malformed event", slog.String("error", err.Error()), slog.String("module", "signal"))
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func decodeEvent(payload string) (helm.Event, error) {
	var event helm.Event
	err := json.Unmarshal([]byte(payload), &event)
	return event, err
}

func stampEvent(event helm.Event) helm.Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return event
}

// LogPublisher stands in for the signal bus when no redis is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event helm.Event) error {
	event = stampEvent(event)
	slog.DebugContext(
		ctx, "event",
		slog.String("id", event.ID),
		slog.String("type", event.Type),
		slog.String("account", event.Account),
		slog.String("module", "signal"),
	)
	return nil
}
