package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/navalmess/api/internal/aggregate"
	"github.com/navalmess/api/internal/capacity"
	"github.com/navalmess/api/internal/store"
)

// StaffHandler serves the kitchen/commander/duty-officer read panels:
// per-day totals, occupancy against caps, per-year rosters, and week
// reports.
type StaffHandler struct {
	aggregator *aggregate.Service
	capacities *capacity.Service
	store      *store.Store
}

func NewStaffHandler(agg *aggregate.Service, caps *capacity.Service, st *store.Store) *StaffHandler {
	return &StaffHandler{aggregator: agg, capacities: caps, store: st}
}

// DayPanel returns day_totals plus occupancy-vs-cap for one date. An
// optional ?year filter restricts the totals to one curricular year.
func (h *StaffHandler) DayPanel(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	var year *int
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid year parameter")
			return
		}
		year = &n
	}

	totals, err := h.aggregator.DayTotals(r.Context(), date, year)
	if err != nil {
		respondAppError(w, err)
		return
	}
	current, err := h.store.Occupancy(r.Context(), date)
	if err != nil {
		respondAppError(w, err)
		return
	}
	occupancy, err := h.capacities.Occupancy(r.Context(), date, current)
	if err != nil {
		respondAppError(w, err)
		return
	}

	occView := make(map[string]map[string]int, len(occupancy))
	for meal, o := range occupancy {
		occView[string(meal)] = map[string]int{"current": o.Current, "cap": o.Cap}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":      date.Format(dateLayout),
		"totals":    totals,
		"occupancy": occView,
	})
}

// WeekTotals returns day_totals for the seven days starting at {monday}.
func (h *StaffHandler) WeekTotals(w http.ResponseWriter, r *http.Request) {
	monday, err := parseDate(chi.URLParam(r, "monday"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	totals, err := h.aggregator.WeekTotals(r.Context(), monday)
	if err != nil {
		respondAppError(w, err)
		return
	}
	days := make([]map[string]any, 7)
	for i, t := range totals {
		days[i] = map[string]any{
			"date":   monday.AddDate(0, 0, i).Format(dateLayout),
			"totals": t,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"monday": monday.Format(dateLayout), "days": days})
}

type rosterRowView struct {
	NII      string       `json:"nii"`
	NI       string       `json:"ni"`
	FullName string       `json:"full_name"`
	Absent   bool         `json:"absent"`
	Booking  *bookingView `json:"booking,omitempty"`
}

// Roster returns one row per user of {year} on {date}.
func (h *StaffHandler) Roster(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid year")
		return
	}
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	rows, err := h.aggregator.Roster(r.Context(), year, date)
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := make([]rosterRowView, 0, len(rows))
	for _, row := range rows {
		v := rosterRowView{
			NII:      row.User.NII,
			NI:       row.User.NI,
			FullName: row.User.FullName,
			Absent:   row.Absent,
		}
		if row.Booking != nil {
			bv := toBookingView(*row.Booking)
			v.Booking = &bv
		}
		out = append(out, v)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"date":  date.Format(dateLayout),
		"users": out,
	})
}

// Menu returns the kitchen's menu for one date, readable by any
// authenticated user.
func (h *StaffHandler) Menu(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	menu, err := h.store.GetDailyMenu(r.Context(), date)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, menu)
}
