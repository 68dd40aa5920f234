package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/navalmess/api/internal/admin"
	"github.com/navalmess/api/internal/audit"
	"github.com/navalmess/api/internal/calendar"
	"github.com/navalmess/api/internal/capacity"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
)

// AdminHandler serves user management, menus, capacities, calendar edits,
// and the audit viewers.
type AdminHandler struct {
	users      *admin.Service
	audit      *audit.Service
	calendar   *calendar.Service
	capacities *capacity.Service
	store      *store.Store
}

func NewAdminHandler(users *admin.Service, auditService *audit.Service, cal *calendar.Service, caps *capacity.Service, st *store.Store) *AdminHandler {
	return &AdminHandler{users: users, audit: auditService, calendar: cal, capacities: caps, store: st}
}

func actorNII(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.NII
	}
	return ""
}

type userView struct {
	ID                 string  `json:"id"`
	NII                string  `json:"nii"`
	NI                 string  `json:"ni"`
	FullName           string  `json:"full_name"`
	Year               int     `json:"year"`
	Role               string  `json:"role"`
	MustChangePassword bool    `json:"must_change_password"`
	Email              *string `json:"email,omitempty"`
	Phone              *string `json:"phone,omitempty"`
	Active             bool    `json:"active"`
}

func toUserView(u model.User) userView {
	return userView{
		ID: u.ID.String(), NII: u.NII, NI: u.NI, FullName: u.FullName,
		Year: u.Year, Role: string(u.Role), MustChangePassword: u.MustChangePassword,
		Email: u.Email, Phone: u.Phone, Active: u.Active,
	}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		users, err := h.users.Search(r.Context(), q)
		if err != nil {
			respondAppError(w, err)
			return
		}
		respondUserList(w, users)
		return
	}
	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid year parameter")
			return
		}
		users, err := h.users.ListByYear(r.Context(), year)
		if err != nil {
			respondAppError(w, err)
			return
		}
		respondUserList(w, users)
		return
	}
	users, err := h.users.List(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondUserList(w, users)
}

func respondUserList(w http.ResponseWriter, users []model.User) {
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = toUserView(u)
	}
	respondJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	NII      string  `json:"nii" validate:"required"`
	NI       string  `json:"ni"`
	FullName string  `json:"full_name" validate:"required"`
	Year     int     `json:"year" validate:"min=0,max=8"`
	Role     string  `json:"role"`
	Password string  `json:"password"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "nii and full_name are required; year must be 0-8")
		return
	}
	u, err := h.users.CreateUser(r.Context(), admin.CreateInput{
		NII: req.NII, NI: req.NI, FullName: req.FullName, Year: req.Year,
		Role: model.Role(req.Role), Password: req.Password, Email: req.Email, Phone: req.Phone,
	}, actorNII(r))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserView(u))
}

type updateUserRequest struct {
	NI       *string `json:"ni"`
	FullName *string `json:"full_name"`
	Year     *int    `json:"year" validate:"omitempty,min=0,max=8"`
	Role     *string `json:"role"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	Active   *bool   `json:"active"`
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid field values")
		return
	}
	in := admin.UpdateInput{
		NI: req.NI, FullName: req.FullName, Year: req.Year,
		Email: req.Email, Phone: req.Phone, Active: req.Active,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		in.Role = &role
	}
	u, err := h.users.UpdateUser(r.Context(), id, in, actorNII(r))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(u))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.users.DeleteUser(r.Context(), id, actorNII(r)); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.users.ResetPassword(r.Context(), id, actorNII(r)); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}

// ImportUsers bulk-creates users from the comma-separated roster in the
// request body. Existing NIIs are skipped, not overwritten.
func (h *AdminHandler) ImportUsers(w http.ResponseWriter, r *http.Request) {
	result, err := h.users.ImportUsers(r.Context(), r.Body, actorNII(r))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type promoteRequest struct {
	Policy map[int]int `json:"policy"` // nil = default transition
}

func (h *AdminHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	n, err := h.users.Promote(r.Context(), req.Policy, actorNII(r))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"promoted": n})
}

type menuRequest struct {
	Breakfast    *string `json:"breakfast"`
	Snack        *string `json:"snack"`
	LunchNormal  *string `json:"lunch_normal"`
	LunchVeg     *string `json:"lunch_veg"`
	LunchDiet    *string `json:"lunch_diet"`
	DinnerNormal *string `json:"dinner_normal"`
	DinnerVeg    *string `json:"dinner_veg"`
	DinnerDiet   *string `json:"dinner_diet"`
}

func (h *AdminHandler) SetMenu(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err = h.store.UpsertDailyMenu(r.Context(), model.DailyMenu{
		Date: date, Breakfast: req.Breakfast, Snack: req.Snack,
		LunchNormal: req.LunchNormal, LunchVeg: req.LunchVeg, LunchDiet: req.LunchDiet,
		DinnerNormal: req.DinnerNormal, DinnerVeg: req.DinnerVeg, DinnerDiet: req.DinnerDiet,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "menu_saved"})
}

type capacityRequest struct {
	Meal     string `json:"meal" validate:"required,oneof=breakfast snack lunch dinner"`
	MaxTotal *int   `json:"max_total"` // nil or negative removes the cap
}

func (h *AdminHandler) SetCapacity(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "meal must be one of breakfast, snack, lunch, dinner")
		return
	}
	max := -1
	if req.MaxTotal != nil {
		max = *req.MaxTotal
	}
	if err := h.capacities.Set(r.Context(), date, model.Meal(req.Meal), max); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "capacity_saved"})
}

type calendarRequest struct {
	Kind string `json:"kind" validate:"required,oneof=normal weekend holiday exercise other"`
	Note string `json:"note"`
}

func (h *AdminHandler) SetCalendarEntry(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "kind must be one of normal, weekend, holiday, exercise, other")
		return
	}
	entry := model.CalendarEntry{Date: date, Kind: model.DayKind(req.Kind), Note: req.Note}
	if err := h.calendar.SetEntry(r.Context(), entry); err != nil {
		respondAppError(w, err)
		return
	}
	_ = h.audit.RecordAdminAction(r.Context(), actorNII(r), "calendar.set", date.Format(dateLayout)+" "+req.Kind)
	respondJSON(w, http.StatusOK, map[string]string{"status": "calendar_saved"})
}

func (h *AdminHandler) DeleteCalendarEntry(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	if err := h.calendar.DeleteEntry(r.Context(), date); err != nil {
		respondAppError(w, err)
		return
	}
	_ = h.audit.RecordAdminAction(r.Context(), actorNII(r), "calendar.delete", date.Format(dateLayout))
	respondJSON(w, http.StatusOK, map[string]string{"status": "calendar_entry_deleted"})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// BookingAudit returns a page of field-change entries for one user.
func (h *AdminHandler) BookingAudit(w http.ResponseWriter, r *http.Request) {
	target, err := h.store.GetUserByNII(r.Context(), chi.URLParam(r, "nii"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	limit, offset := pagination(r)
	entries, err := h.audit.BookingLog(r.Context(), target.ID, limit, offset)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// LoginAudit returns a page of authentication attempts for one NII.
func (h *AdminHandler) LoginAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	events, err := h.audit.LoginEvents(r.Context(), chi.URLParam(r, "nii"), limit, offset)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// AdminAudit returns a page of administrative action records.
func (h *AdminHandler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := h.audit.AdminActions(r.Context(), limit, offset)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
