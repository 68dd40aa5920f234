// Package model holds the entities shared across the booking and
// aggregation engine: users, bookings, absences, menus, capacities, the
// operational calendar, and the append-only logs.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's function within the system.
type Role string

const (
	RoleStudent       Role = "student"
	RoleKitchen       Role = "kitchen"
	RoleDutyOfficer   Role = "duty_officer"
	RoleYearCommander Role = "year_commander"
	RoleAdmin         Role = "admin"
)

// IsStaff reports whether the role may act as staff for override edits.
func (r Role) IsStaff() bool {
	return r == RoleDutyOfficer || r == RoleAdmin
}

// MealKind is the variant of a cooked meal a student may select.
type MealKind string

const (
	MealNone       MealKind = ""
	MealNormal     MealKind = "normal"
	MealVegetarian MealKind = "vegetarian"
	MealDiet       MealKind = "diet"
)

// ValidMealKind reports whether k is one of the allowed meal kinds.
func ValidMealKind(k MealKind) bool {
	switch k {
	case MealNone, MealNormal, MealVegetarian, MealDiet:
		return true
	default:
		return false
	}
}

// Meal names the Capacity Controller recognizes.
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealSnack     Meal = "snack"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
)

// DayKind classifies a calendar date.
type DayKind string

const (
	DayNormal   DayKind = "normal"
	DayWeekend  DayKind = "weekend"
	DayHoliday  DayKind = "holiday"
	DayExercise DayKind = "exercise"
	DayOther    DayKind = "other"
)

// Closed reports whether no self-edit is meaningful on a day of this kind.
func (k DayKind) Closed() bool {
	return k == DayHoliday || k == DayExercise
}

// User is a person known to the system: a student, kitchen staff, the
// duty officer, a year commander, or an administrator.
type User struct {
	ID                 uuid.UUID
	NII                string // stable public login identifier
	NI                 string // roster number
	FullName           string
	Year               int // 1-6 curricular, 7 foundation, 8 complementary, 0 concluded/inactive
	Role               Role
	PasswordHash       string
	MustChangePassword bool
	LockedUntil        *time.Time
	Email              *string
	Phone              *string
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Booking is the single per-(user, date) record of meal intent.
type Booking struct {
	UserID                uuid.UUID
	Date                  time.Time
	Breakfast             bool
	Snack                 bool
	LunchKind             MealKind
	DinnerKind            MealKind
	LeavesUnitAfterDinner bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsEmpty reports whether the booking represents "no meals".
func (b Booking) IsEmpty() bool {
	return !b.Breakfast && !b.Snack && b.LunchKind == MealNone && b.DinnerKind == MealNone && !b.LeavesUnitAfterDinner
}

// Absence is a date range during which a user's bookings are excluded from
// totals and occupancy without being deleted.
type Absence struct {
	ID        int64
	UserID    uuid.UUID
	FromDate  time.Time
	ToDate    time.Time
	Reason    string
	Author    string
	CreatedAt time.Time
}

// Covers reports whether the absence is active on date.
func (a Absence) Covers(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(a.FromDate)) && !d.After(truncateDay(a.ToDate))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyMenu is the kitchen's free-text menu for a single date.
type DailyMenu struct {
	Date         time.Time
	Breakfast    *string
	Snack        *string
	LunchNormal  *string
	LunchVeg     *string
	LunchDiet    *string
	DinnerNormal *string
	DinnerVeg    *string
	DinnerDiet   *string
}

// MealCapacity caps the total bookings for one meal on one date.
// MaxTotal < 0 means unbounded.
type MealCapacity struct {
	Date     time.Time
	Meal     Meal
	MaxTotal int
}

// Unbounded reports whether the capacity has no effective cap.
func (c MealCapacity) Unbounded() bool {
	return c.MaxTotal < 0
}

// CalendarEntry overrides the default weekday-based classification of a date.
type CalendarEntry struct {
	Date time.Time
	Kind DayKind
	Note string
}

// BookingLogEntry is one append-only record of a single field change.
type BookingLogEntry struct {
	ID          int64
	UserID      uuid.UUID
	Date        time.Time
	Field       string
	ValueBefore string
	ValueAfter  string
	Actor       string // NII of the actor
	At          time.Time
}

// LoginEvent is one append-only record of an authentication attempt.
type LoginEvent struct {
	ID      int64
	NII     string
	Success bool
	IP      string
	At      time.Time
}

// AdminAuditEntry is one append-only record of a significant admin action.
type AdminAuditEntry struct {
	ID     int64
	Actor  string
	Action string
	Detail string
	At     time.Time
}

// NotificationKind enumerates the kinds of at-most-once notifications.
type NotificationKind string

const NotificationDeadline NotificationKind = "deadline"

// NotificationSent marks that a (user, date, kind) warning was delivered.
type NotificationSent struct {
	UserID uuid.UUID
	Date   time.Time
	Kind   NotificationKind
	SentAt time.Time
}

// DayTotals is the Aggregator's per-day summary.
type DayTotals struct {
	Breakfast     int
	Snack         int
	LunchNormal   int
	LunchVeg      int
	LunchDiet     int
	DinnerNormal  int
	DinnerVeg     int
	DinnerDiet    int
	DinnerLeavers int
}

// RosterRow is one line of a per-year, per-date roster view.
type RosterRow struct {
	User    User
	Booking *Booking // nil if the user has no booking row for the date
	Absent  bool
}
