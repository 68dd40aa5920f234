// Package booking implements the edit-window state machine and the single
// (user, date) booking row write path.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
)

// State is the resolved edit-window state for one (user, date, actor)
// request.
type State string

const (
	SelfOpen        State = "self_open"
	SelfClosed      State = "self_closed"
	StaffOverride   State = "staff_override"
	KitchenMenuOnly State = "kitchen_menu_only"
	Forbidden       State = "forbidden"
)

type calendarService interface {
	Classify(ctx context.Context, date time.Time) (model.DayKind, error)
	DeadlineFor(date time.Time) (time.Time, bool)
}

type absenceChecker interface {
	IsAbsent(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error)
}

type txRunner interface {
	Tx(ctx context.Context, mode store.Mode, fn func(tx *sqlx.Tx) error) error
}

// Service drives the edit-window state machine and writes booking rows.
type Service struct {
	store       txRunner
	calendar    calendarService
	absence     absenceChecker
	horizonDays int
}

// New builds a Booking Service. horizonDays is DIAS_ANTECEDENCIA.
func New(store txRunner, calendar calendarService, absence absenceChecker, horizonDays int) *Service {
	return &Service{store: store, calendar: calendar, absence: absence, horizonDays: horizonDays}
}

// Fields is the caller's desired new content for the booking row.
type Fields struct {
	Breakfast             bool
	Snack                 bool
	LunchKind             model.MealKind
	DinnerKind            model.MealKind
	LeavesUnitAfterDinner bool
}

// EditRequest is the input to Edit.
type EditRequest struct {
	ActorID   uuid.UUID
	ActorNII  string
	ActorRole model.Role
	UserID    uuid.UUID // the booking's owner
	Date      time.Time
	Fields    Fields
	Override  bool // staff intent to bypass deadline/closed/horizon/absence
	Now       time.Time
}

// resolveState determines the edit-window state for the request, performing
// every check that does not need to be inside the write transaction.
func (s *Service) resolveState(ctx context.Context, req EditRequest) (State, error, error) {
	isSelf := req.ActorID == req.UserID

	if req.ActorRole.IsStaff() && req.Override {
		return StaffOverride, nil, nil
	}

	if isSelf && !req.Override {
		kind, err := s.calendar.Classify(ctx, req.Date)
		if err != nil {
			return SelfClosed, nil, err
		}
		today := truncateDay(req.Now)
		targetDay := truncateDay(req.Date)

		if targetDay.Before(today) || int(targetDay.Sub(today).Hours()/24) > s.horizonDays {
			return SelfClosed, apperr.New(apperr.OutOfHorizon, "date is outside the edit horizon"), nil
		}
		if kind.Closed() {
			return SelfClosed, apperr.New(apperr.DateClosed, "date is a holiday or exercise day"), nil
		}
		if deadline, ok := s.calendar.DeadlineFor(req.Date); ok && !req.Now.Before(deadline) {
			return SelfClosed, apperr.New(apperr.DeadlineExpired, "the edit deadline for this date has passed"), nil
		}
		absent, err := s.absence.IsAbsent(ctx, req.UserID, req.Date)
		if err != nil {
			return SelfClosed, nil, err
		}
		if absent {
			return SelfClosed, apperr.New(apperr.UserAbsent, "user is marked absent on this date"), nil
		}
		return SelfOpen, nil, nil
	}

	if req.ActorRole == model.RoleKitchen {
		return KitchenMenuOnly, apperr.New(apperr.NotAllowed, "kitchen role may only read bookings"), nil
	}
	if !isSelf && req.ActorRole.IsStaff() && !req.Override {
		return Forbidden, apperr.New(apperr.NotAllowed, "editing another user's booking requires override"), nil
	}
	return Forbidden, apperr.New(apperr.NotAllowed, "actor may not edit this booking"), nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Edit drives the state machine and, on success, performs the capacity
// check and the booking upsert plus its audit entries inside one write
// transaction, so two concurrent edits cannot both observe a free slot
// and both commit.
func (s *Service) Edit(ctx context.Context, req EditRequest) (model.Booking, error) {
	if !model.ValidMealKind(req.Fields.LunchKind) || !model.ValidMealKind(req.Fields.DinnerKind) {
		return model.Booking{}, apperr.New(apperr.BadInput, "invalid meal kind")
	}

	state, refusal, err := s.resolveState(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}
	if refusal != nil {
		return model.Booking{}, refusal
	}
	if state != SelfOpen && state != StaffOverride {
		return model.Booking{}, apperr.New(apperr.NotAllowed, "booking edit not permitted")
	}

	var result model.Booking
	err = s.store.Tx(ctx, store.Write, func(tx *sqlx.Tx) error {
		before, existed, err := store.GetBookingTx(ctx, tx, req.UserID, req.Date)
		if err != nil {
			return err
		}
		if !existed {
			before = model.Booking{UserID: req.UserID, Date: req.Date}
		}

		after := before
		after.Breakfast = req.Fields.Breakfast
		after.Snack = req.Fields.Snack
		after.LunchKind = req.Fields.LunchKind
		after.DinnerKind = req.Fields.DinnerKind
		after.LeavesUnitAfterDinner = req.Fields.LeavesUnitAfterDinner

		if err := checkCapacity(ctx, tx, req.Date, before, after); err != nil {
			return err
		}
		if err := store.UpsertBookingTx(ctx, tx, after); err != nil {
			return err
		}
		for _, change := range fieldChanges(before, after) {
			if err := store.InsertBookingLogTx(ctx, tx, model.BookingLogEntry{
				UserID: req.UserID, Date: req.Date,
				Field: change.field, ValueBefore: change.before, ValueAfter: change.after,
				Actor: req.ActorNII,
			}); err != nil {
				return err
			}
		}
		result = after
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	return result, nil
}

// checkCapacity enforces the net-delta cap for every meal whose occupancy
// contribution grows between before and after. Staff overrides still go
// through this check; override only bypasses the deadline, closed-day,
// horizon, and absence checks.
func checkCapacity(ctx context.Context, tx *sqlx.Tx, date time.Time, before, after model.Booking) error {
	deltas := map[model.Meal]int{
		model.MealBreakfast: boolDelta(before.Breakfast, after.Breakfast),
		model.MealSnack:     boolDelta(before.Snack, after.Snack),
		model.MealLunch:     kindDelta(before.LunchKind, after.LunchKind),
		model.MealDinner:    kindDelta(before.DinnerKind, after.DinnerKind),
	}
	for meal, delta := range deltas {
		if delta <= 0 {
			continue
		}
		cap, err := store.GetMealCapacityTx(ctx, tx, date, meal)
		if err != nil {
			return err
		}
		if cap.Unbounded() {
			continue
		}
		current, err := store.OccupancyTx(ctx, tx, date, meal)
		if err != nil {
			return err
		}
		if current+delta > cap.MaxTotal {
			return apperr.New(apperr.CapacityExceeded, fmt.Sprintf("%s capacity exceeded for %s", meal, date.Format("2006-01-02")))
		}
	}
	return nil
}

func boolDelta(before, after bool) int {
	return b2i(after) - b2i(before)
}

func kindDelta(before, after model.MealKind) int {
	return nonNone(after) - nonNone(before)
}

func nonNone(k model.MealKind) int {
	if k == model.MealNone {
		return 0
	}
	return 1
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

type fieldChange struct {
	field, before, after string
}

// fieldChanges reports only the fields whose stored value actually changed,
// so that e.g. Normal -> Vegetarian is logged as one field change, not two.
func fieldChanges(before, after model.Booking) []fieldChange {
	var out []fieldChange
	if before.Breakfast != after.Breakfast {
		out = append(out, fieldChange{"breakfast", boolStr(before.Breakfast), boolStr(after.Breakfast)})
	}
	if before.Snack != after.Snack {
		out = append(out, fieldChange{"snack", boolStr(before.Snack), boolStr(after.Snack)})
	}
	if before.LunchKind != after.LunchKind {
		out = append(out, fieldChange{"lunch_kind", string(before.LunchKind), string(after.LunchKind)})
	}
	if before.DinnerKind != after.DinnerKind {
		out = append(out, fieldChange{"dinner_kind", string(before.DinnerKind), string(after.DinnerKind)})
	}
	if before.LeavesUnitAfterDinner != after.LeavesUnitAfterDinner {
		out = append(out, fieldChange{"leaves_unit_after_dinner", boolStr(before.LeavesUnitAfterDinner), boolStr(after.LeavesUnitAfterDinner)})
	}
	return out
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
