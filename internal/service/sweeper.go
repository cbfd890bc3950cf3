package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/usecase"
)

const (
	DefaultSweepCron  = "* * * * *"
	DefaultSweepBatch = 100
	EventContentDue   = "content.due"
)

type DueLister interface {
	ListDue(ctx context.Context, after usecase.DueCursor, until int64, limit int) ([]domain.Content, error)
}

// Sweeper announces approved contents whose scheduled time has come, once each per process.
// Delivery stays with the external publisher, which answers with a publish or fail operation.
type Sweeper struct {
	mu        sync.Mutex
	cursor    usecase.DueCursor
	contents  DueLister
	publisher usecase.EventPublisher
	clock     usecase.Clock
	metrics   *Metrics
	cron      string
	batch     int
}

func NewSweeper(contents DueLister, publisher usecase.EventPublisher, clock usecase.Clock, metrics *Metrics, cron string) (*Sweeper, error) {
	if cron == "" {
		cron = DefaultSweepCron
	}
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cron)
	}
	return &Sweeper{
		contents:  contents,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
		cron:      cron,
		batch:     DefaultSweepBatch,
	}, nil
}

// Run sweeps on every cron tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		now := s.clock.Now()
		next, err := gronx.NextTickAfter(s.cron, now, false)
		if err != nil {
			slog.ErrorContext(ctx, "sweeper next tick failed", slog.String("cron", s.cron), slog.String("error", err.Error()), slog.String("module", "sweeper"))
			return
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		n, err := s.Sweep(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()), slog.String("module", "sweeper"))
			continue
		}
		if n > 0 {
			slog.InfoContext(ctx, "announced due contents", slog.Int("count", n), slog.String("module", "sweeper"))
		}
	}
}

// Sweep publishes one content.due event per approved content that became due since the last
// sweep, paging through the listing in batches. A failed publish leaves the cursor on the last
// announced content so the next sweep resumes there.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().Unix()
	announced := 0
	defer func() {
		if s.metrics != nil && announced > 0 {
			s.metrics.Due(announced)
		}
	}()

	for {
		start := s.cursor
		due, err := s.contents.ListDue(ctx, start, now, s.batch)
		if err != nil {
			return announced, err
		}

		for _, content := range due {
			err := s.publisher.Publish(ctx, helm.Event{
				Type:      EventContentDue,
				Account:   content.Account.String(),
				Content:   content.Address.String(),
				Status:    string(content.Status),
				Actor:     content.Author.Hex(),
				Timestamp: now,
			})
			if err != nil {
				return announced, err
			}
			s.cursor = s.cursor.Next(content)
			announced++
		}

		if len(due) < s.batch || s.cursor == start {
			return announced, nil
		}
	}
}
