package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/navalmess/api/internal/model"
)

// sendTimeout bounds each outbound delivery attempt.
const sendTimeout = 8 * time.Second

type candidateStore interface {
	DeadlineNotificationCandidates(ctx context.Context, date time.Time) ([]model.User, error)
	MarkNotificationSent(ctx context.Context, userID uuid.UUID, date time.Time, kind model.NotificationKind) (bool, error)
}

type calendarService interface {
	Classify(ctx context.Context, date time.Time) (model.DayKind, error)
	DeadlineFor(date time.Time) (time.Time, bool)
}

// Scheduler is the timer-driven scan that warns each student at most once
// when the edit deadline for a date is approaching. One instance runs per
// process, driven by a cron "@every" schedule built from the configured
// scan interval.
type Scheduler struct {
	store       candidateStore
	calendar    calendarService
	channels    []Channel
	horizonDays int
	warnWindow  time.Duration
	interval    time.Duration
	now         func() time.Time
	log         zerolog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler builds the deadline-warning scheduler. warnHours and
// scanSeconds carry the NOTIF_WARN_HOURS / NOTIF_SCAN_SECONDS settings;
// horizonDays is the same DIAS_ANTECEDENCIA the Booking Service enforces.
func NewScheduler(store candidateStore, calendar calendarService, channels []Channel, horizonDays, warnHours, scanSeconds int, log zerolog.Logger) *Scheduler {
	if scanSeconds <= 0 {
		scanSeconds = 3600
	}
	return &Scheduler{
		store:       store,
		calendar:    calendar,
		channels:    channels,
		horizonDays: horizonDays,
		warnWindow:  time.Duration(warnHours) * time.Hour,
		interval:    time.Duration(scanSeconds) * time.Second,
		now:         time.Now,
		log:         log,
	}
}

// Start arms the periodic scan in a background goroutine. Returns
// immediately; call Stop to shut down.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %ds", int(s.interval.Seconds()))
	if _, err := s.cron.AddFunc(spec, func() { s.tick() }); err != nil {
		return fmt.Errorf("arm notification scan: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.log.Info().Dur("interval", s.interval).Msg("notification scheduler started")
	return nil
}

// Stop halts the periodic scan and waits for in-flight deliveries, each of
// which is already bounded by sendTimeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("notification scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	if err := s.Scan(ctx, s.now()); err != nil {
		s.log.Error().Err(err).Msg("notification scan failed")
	}
}

// Scan performs one pass over the dates in [today+1, today+horizon],
// skipping closed days and dates outside the warning window, and warns
// every remaining candidate at most once. It is also invoked directly by
// the avisos cron endpoint.
func (s *Scheduler) Scan(ctx context.Context, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for offset := 1; offset <= s.horizonDays; offset++ {
		date := today.AddDate(0, 0, offset)

		deadline, ok := s.calendar.DeadlineFor(date)
		if !ok {
			return nil // no deadline configured, nothing to warn about
		}
		if now.Before(deadline.Add(-s.warnWindow)) || !now.Before(deadline) {
			continue
		}
		kind, err := s.calendar.Classify(ctx, date)
		if err != nil {
			return err
		}
		if kind.Closed() {
			continue
		}

		candidates, err := s.store.DeadlineNotificationCandidates(ctx, date)
		if err != nil {
			return err
		}
		for _, u := range candidates {
			inserted, err := s.store.MarkNotificationSent(ctx, u.ID, date, model.NotificationDeadline)
			if err != nil {
				return err
			}
			if !inserted {
				continue
			}
			s.dispatch(u, date, deadline)
		}
	}
	return nil
}

// dispatch hands the warning to the first channel that accepts it, off the
// scan path so a slow provider never stalls the tick. A failed delivery
// does not retract the NotificationSent row.
func (s *Scheduler) dispatch(u model.User, date, deadline time.Time) {
	subject := "Meal booking deadline approaching"
	body := fmt.Sprintf("Your meal booking for %s can only be changed until %s.",
		date.Format("2006-01-02"), deadline.Format("2006-01-02 15:04"))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		for _, ch := range s.channels {
			to := contactFor(ch, u)
			if to == "" {
				continue
			}
			if ch.Send(ctx, to, subject, body) {
				s.log.Info().Str("channel", ch.Name()).Str("nii", u.NII).
					Str("date", date.Format("2006-01-02")).Msg("deadline warning delivered")
				return
			}
		}
		s.log.Warn().Str("nii", u.NII).Str("date", date.Format("2006-01-02")).
			Msg("deadline warning scheduled but no channel delivered it")
	}()
}

func contactFor(ch Channel, u model.User) string {
	switch ch.Name() {
	case "email":
		if u.Email != nil {
			return *u.Email
		}
	case "sms":
		if u.Phone != nil {
			return *u.Phone
		}
	}
	return ""
}
