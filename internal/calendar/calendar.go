// Package calendar classifies dates and resolves the self-edit deadline
// instant for a given booking date.
package calendar

import (
	"context"
	"time"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

// entryRepository is the narrow slice of the store this service depends on.
type entryRepository interface {
	GetCalendarEntry(ctx context.Context, date time.Time) (model.CalendarEntry, error)
	ListCalendarEntriesRange(ctx context.Context, from, to time.Time) (map[string]model.CalendarEntry, error)
	UpsertCalendarEntry(ctx context.Context, e model.CalendarEntry) error
	DeleteCalendarEntry(ctx context.Context, date time.Time) error
}

// Service classifies dates and resolves deadlines.
type Service struct {
	repo          entryRepository
	deadlineHours *int // nil = no deadline (PRAZO_HORAS unset/null)
}

// New builds a Calendar Service. deadlineHours mirrors config.Config's
// DeadlineHours: nil means no deadline is ever in effect.
func New(repo entryRepository, deadlineHours *int) *Service {
	return &Service{repo: repo, deadlineHours: deadlineHours}
}

// Classify returns the CalendarEntry kind for date, falling back to the
// weekend-default rule when no explicit entry exists.
func (s *Service) Classify(ctx context.Context, date time.Time) (model.DayKind, error) {
	entry, err := s.repo.GetCalendarEntry(ctx, date)
	if apperr.Is(err, apperr.NotFound) {
		return defaultKind(date), nil
	}
	if err != nil {
		return "", err
	}
	return entry.Kind, nil
}

// ClassifyRange resolves DayKind for every date in [from, to], batching the
// lookup into a single query for the self-service week view.
func (s *Service) ClassifyRange(ctx context.Context, from, to time.Time) (map[string]model.DayKind, error) {
	entries, err := s.repo.ListCalendarEntriesRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.DayKind)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if e, ok := entries[key]; ok {
			out[key] = e.Kind
		} else {
			out[key] = defaultKind(d)
		}
	}
	return out, nil
}

func defaultKind(date time.Time) model.DayKind {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return model.DayWeekend
	default:
		return model.DayNormal
	}
}

// DeadlineFor returns the latest instant at which a student may self-edit
// bookings for date, and false if no deadline is configured.
func (s *Service) DeadlineFor(date time.Time) (time.Time, bool) {
	if s.deadlineHours == nil {
		return time.Time{}, false
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(-time.Duration(*s.deadlineHours) * time.Hour), true
}

// SetEntry creates or replaces an admin-authored calendar classification.
func (s *Service) SetEntry(ctx context.Context, e model.CalendarEntry) error {
	return s.repo.UpsertCalendarEntry(ctx, e)
}

// DeleteEntry reverts date to the weekend-default classification.
func (s *Service) DeleteEntry(ctx context.Context, date time.Time) error {
	return s.repo.DeleteCalendarEntry(ctx, date)
}
