package orders

import (
	"context"
	"log/slog"
	"time"
)

// Expirer is the part of Service the sweeper drives.
type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// Sweeper periodically expires pending orders whose payment window has
// elapsed. Lazy expiry on read and write still applies without it.
type Sweeper struct {
	log       *slog.Logger
	expirer   Expirer
	interval  time.Duration
	batchSize int
}

func NewSweeper(log *slog.Logger, expirer Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{
		log:       log,
		expirer:   expirer,
		interval:  interval,
		batchSize: 100,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.expirer.ExpireStale(ctx, s.batchSize)
			if err != nil {
				s.log.Error("expiry sweep failed", "error", err, "expired", n)
				continue
			}
			if n > 0 {
				s.log.Info("expired stale orders", "count", n)
			}
		}
	}
}
