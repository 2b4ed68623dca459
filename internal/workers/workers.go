package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type KeyExpirer interface {
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper flips lapsed API keys to the expired status so the store
// reflects what validation already enforces at request time.
type ExpirySweeper struct {
	keys KeyExpirer
	now  func() time.Time
}

func NewExpirySweeper(keys KeyExpirer, now func() time.Time) *ExpirySweeper {
	return &ExpirySweeper{keys: keys, now: now}
}

// Sweep runs one pass and returns the number of keys expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.keys.ExpireBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("worker: expired api keys")
	}
	return n, nil
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("worker: api key expiry sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
