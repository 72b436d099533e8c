package pricer

import (
	"context"
	"fmt"
	"time"

	"tcg-pricer/internal/pricing"

	"github.com/rs/zerolog"
)

// Scheduler runs the daily price update for a set of games at a fixed local time.
type Scheduler struct {
	agg   *Aggregator
	games []pricing.Game
	at    string
	log   zerolog.Logger
	now   func() time.Time
}

// NewScheduler validates at ("HH:MM") and returns a scheduler.
func NewScheduler(agg *Aggregator, games []pricing.Game, at string, log zerolog.Logger) (*Scheduler, error) {
	if _, err := NextRun(time.Now(), at); err != nil {
		return nil, err
	}
	return &Scheduler{agg: agg, games: games, at: at, log: log.With().Str("component", "scheduler").Logger(), now: time.Now}, nil
}

// NextRun returns the first time at or after now whose clock reads at.
func NextRun(now time.Time, at string) (time.Time, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Run blocks until ctx is cancelled, updating every game once a day.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next, _ := NextRun(s.now(), s.at)
		s.log.Info().Time("next_run", next).Msg("waiting for next scheduled price update")
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.RunOnce(ctx, s.now())
	}
}

// RunOnce updates every configured game for the day of date.
func (s *Scheduler) RunOnce(ctx context.Context, date time.Time) {
	for _, g := range s.games {
		if ctx.Err() != nil {
			return
		}
		summary, err := s.agg.UpdateGame(ctx, g, date, RunOptions{})
		if err != nil {
			s.log.Error().Err(err).Str("game", string(g)).Msg("scheduled price update failed")
			continue
		}
		s.log.Info().Str("game", string(g)).Int("created", summary.Created).Int("failed", summary.Failed).Msg("scheduled price update done")
	}
}
