package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanna-agency/workshop-registration/metrics"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/registration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/hanna-agency/workshop-registration/reminder")

const defaultConcurrency = 8

var ErrScanInProgress = errors.New("a profile reminder scan is already running")

type CandidateStore interface {
	// GetReminderCandidates returns paid registrations with an incomplete
	// profile created in (createdAfter, createdBefore].
	GetReminderCandidates(ctx context.Context, createdAfter, createdBefore time.Time) ([]registration.Registration, error)
}

type Sender interface {
	SendReminder(ctx context.Context, reg registration.Registration, emailType notification.EmailType, vars map[string]any) notification.Result
}

type ScanResult struct {
	Sent   int
	Failed int
	Total  int
}

type Scanner struct {
	store       CandidateStore
	log         notification.ReminderLog
	sender      Sender
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
	profileURL  string

	running sync.Mutex
}

type ScannerOption func(*Scanner)

func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) {
		s.now = now
	}
}

func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithProfileURL sets the base URL of the profile form; the registration id
// is appended to it.
func WithProfileURL(url string) ScannerOption {
	return func(s *Scanner) {
		s.profileURL = url
	}
}

func NewScanner(store CandidateStore, log notification.ReminderLog, sender Sender, logger *slog.Logger, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:       store,
		log:         log,
		sender:      sender,
		logger:      logger,
		now:         time.Now,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan sends at most one profile reminder per eligible registration. A
// failed send leaves the registration eligible for the next scan. Only a
// failure to load candidates fails the scan as a whole, and a call made while
// another scan is running returns ErrScanInProgress without doing anything.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	if !s.running.TryLock() {
		s.logger.Info("Skipping profile reminder scan, one is already running")
		return ScanResult{}, ErrScanInProgress
	}
	defer s.running.Unlock()

	ctx, span := tracer.Start(ctx, "ReminderScan")
	defer span.End()

	now := s.now().UTC()
	candidates, err := s.store.GetReminderCandidates(ctx, now.Add(-MaxAge), now.Add(-MinAge))
	if err != nil {
		s.logger.Error("Failed to load reminder candidates", slog.String("error", err.Error()))
		span.RecordError(err)
		metrics.RecordReminderScan(0, 0, err)
		return ScanResult{}, err
	}

	var sent, failed, total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, reg := range candidates {
		g.Go(func() error {
			outcome := s.remind(gctx, reg, now)
			switch outcome {
			case outcomeSent:
				total.Add(1)
				sent.Add(1)
			case outcomeFailed:
				total.Add(1)
				failed.Add(1)
			}
			// per-registration failures never cancel the group
			return nil
		})
	}
	_ = g.Wait()

	result := ScanResult{
		Sent:   int(sent.Load()),
		Failed: int(failed.Load()),
		Total:  int(total.Load()),
	}
	span.SetAttributes(
		attribute.Int("reminder.candidates", len(candidates)),
		attribute.Int("reminder.sent", result.Sent),
		attribute.Int("reminder.failed", result.Failed),
	)
	metrics.RecordReminderScan(result.Sent, result.Failed, nil)
	s.logger.Info("Finished profile reminder scan",
		slog.Int("candidates", len(candidates)),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

type remindOutcome int

const (
	outcomeSkipped remindOutcome = iota
	outcomeSent
	outcomeFailed
)

func (s *Scanner) remind(ctx context.Context, reg registration.Registration, now time.Time) remindOutcome {
	logger := s.logger.With(slog.String("registrationId", reg.ID.String()))

	latest, found, err := s.log.GetLatestReminder(ctx, reg.ID, notification.EMAIL_PROFILE_REMINDER)
	if err != nil {
		logger.Error("Failed to read reminder log", slog.String("error", err.Error()))
		return outcomeFailed
	}

	var lastSent *time.Time
	if found {
		lastSent = &latest.SentAt
	}
	if !Eligible(reg, lastSent, now) {
		return outcomeSkipped
	}

	vars := map[string]any{
		"hoursAfterPayment": int(reg.Age(now).Hours()),
	}
	if s.profileURL != "" {
		vars["profileLink"] = s.profileURL + reg.ID.String()
	}

	result := s.sender.SendReminder(ctx, reg, notification.EMAIL_PROFILE_REMINDER, vars)
	if notification.IsReason(result.Err, notification.REASON_REMINDER_TOO_SOON) {
		// another replica claimed it between our read and our write
		return outcomeSkipped
	}
	if !result.Success {
		logger.Warn("Profile reminder not sent, will retry next scan", slog.Any("error", result.Err))
		return outcomeFailed
	}
	return outcomeSent
}
