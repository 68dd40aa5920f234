package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/navalmess/api/internal/booking"
	"github.com/navalmess/api/internal/calendar"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
)

// BookingHandler serves the self-service booking routes and the staff
// override route.
type BookingHandler struct {
	bookings *booking.Service
	calendar *calendar.Service
	store    *store.Store
}

func NewBookingHandler(bookings *booking.Service, cal *calendar.Service, st *store.Store) *BookingHandler {
	return &BookingHandler{bookings: bookings, calendar: cal, store: st}
}

type bookingFields struct {
	Breakfast             bool   `json:"breakfast"`
	Snack                 bool   `json:"snack"`
	LunchKind             string `json:"lunch_kind"`
	DinnerKind            string `json:"dinner_kind"`
	LeavesUnitAfterDinner bool   `json:"leaves_unit_after_dinner"`
}

func (f bookingFields) toFields() booking.Fields {
	return booking.Fields{
		Breakfast:             f.Breakfast,
		Snack:                 f.Snack,
		LunchKind:             model.MealKind(f.LunchKind),
		DinnerKind:            model.MealKind(f.DinnerKind),
		LeavesUnitAfterDinner: f.LeavesUnitAfterDinner,
	}
}

type bookingView struct {
	Date                  string `json:"date"`
	Breakfast             bool   `json:"breakfast"`
	Snack                 bool   `json:"snack"`
	LunchKind             string `json:"lunch_kind"`
	DinnerKind            string `json:"dinner_kind"`
	LeavesUnitAfterDinner bool   `json:"leaves_unit_after_dinner"`
}

func toBookingView(b model.Booking) bookingView {
	return bookingView{
		Date:                  b.Date.Format(dateLayout),
		Breakfast:             b.Breakfast,
		Snack:                 b.Snack,
		LunchKind:             string(b.LunchKind),
		DinnerKind:            string(b.DinnerKind),
		LeavesUnitAfterDinner: b.LeavesUnitAfterDinner,
	}
}

// Edit handles the self-service booking edit for one date.
func (h *BookingHandler) Edit(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	var req bookingFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.bookings.Edit(r.Context(), booking.EditRequest{
		ActorID:   claims.UserID,
		ActorNII:  claims.NII,
		ActorRole: claims.Role,
		UserID:    claims.UserID,
		Date:      date,
		Fields:    req.toFields(),
		Now:       time.Now(),
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBookingView(result))
}

// Override handles a staff edit of another user's booking, bypassing the
// deadline, closed-day, horizon, and absence checks but not the cap.
func (h *BookingHandler) Override(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	target, err := h.store.GetUserByNII(r.Context(), chi.URLParam(r, "nii"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	var req bookingFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.bookings.Edit(r.Context(), booking.EditRequest{
		ActorID:   claims.UserID,
		ActorNII:  claims.NII,
		ActorRole: claims.Role,
		UserID:    target.ID,
		Date:      date,
		Fields:    req.toFields(),
		Override:  true,
		Now:       time.Now(),
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBookingView(result))
}

type weekDayView struct {
	Date    string       `json:"date"`
	Kind    string       `json:"kind"`
	Booking *bookingView `json:"booking,omitempty"`
	Menu    any          `json:"menu,omitempty"`
}

// Week returns the caller's bookings for seven days starting at ?start
// (default: today), joined with the day classification and the menu.
func (h *BookingHandler) Week(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	start := time.Now()
	if v := r.URL.Query().Get("start"); v != "" {
		var err error
		if start, err = parseDate(v); err != nil {
			respondAppError(w, err)
			return
		}
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	bookings, err := h.store.ListBookingsForUserRange(r.Context(), claims.UserID, start, end)
	if err != nil {
		respondAppError(w, err)
		return
	}
	byDate := make(map[string]model.Booking, len(bookings))
	for _, b := range bookings {
		byDate[b.Date.Format(dateLayout)] = b
	}
	menus, err := h.store.ListDailyMenusRange(r.Context(), start, end)
	if err != nil {
		respondAppError(w, err)
		return
	}
	menuByDate := make(map[string]model.DailyMenu, len(menus))
	for _, m := range menus {
		menuByDate[m.Date.Format(dateLayout)] = m
	}
	kinds, err := h.calendar.ClassifyRange(r.Context(), start, end)
	if err != nil {
		respondAppError(w, err)
		return
	}

	days := make([]weekDayView, 0, 7)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		day := weekDayView{Date: key, Kind: string(kinds[key])}
		if b, ok := byDate[key]; ok {
			v := toBookingView(b)
			day.Booking = &v
		}
		if m, ok := menuByDate[key]; ok {
			day.Menu = m
		}
		days = append(days, day)
	}
	respondJSON(w, http.StatusOK, map[string]any{"start": start.Format(dateLayout), "days": days})
}
