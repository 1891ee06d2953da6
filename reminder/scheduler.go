package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const DefaultInterval = time.Hour

// Scheduler runs a Scanner on a fixed interval as a supervised service.
type Scheduler struct {
	scanner  *Scanner
	interval time.Duration
	logger   *slog.Logger
	name     string
}

func NewScheduler(scanner *Scanner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		name:     "profile-reminder-scheduler",
	}
}

// Serve implements suture.Service. A failed scan is logged and retried on the
// next tick.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Started profile reminder scheduler", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, err := s.scanner.Scan(ctx)
			if errors.Is(err, ErrScanInProgress) {
				continue
			}
			if err != nil {
				s.logger.Error("Scheduled profile reminder scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Scheduler) String() string {
	return s.name
}
