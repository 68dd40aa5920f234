package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/navalmess/api/internal/absence"
	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
)

// AbsenceHandler serves the self-service and staff absence routes.
type AbsenceHandler struct {
	absences *absence.Service
	store    *store.Store
}

func NewAbsenceHandler(absences *absence.Service, st *store.Store) *AbsenceHandler {
	return &AbsenceHandler{absences: absences, store: st}
}

type absenceRequest struct {
	NII      string `json:"nii"` // staff only; empty = the caller themselves
	FromDate string `json:"from_date" validate:"required"`
	ToDate   string `json:"to_date" validate:"required"`
	Reason   string `json:"reason"`
}

func (h *AbsenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req absenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "from_date and to_date are required")
		return
	}
	from, err := parseDate(req.FromDate)
	if err != nil {
		respondAppError(w, err)
		return
	}
	to, err := parseDate(req.ToDate)
	if err != nil {
		respondAppError(w, err)
		return
	}

	targetID := claims.UserID
	if req.NII != "" && req.NII != claims.NII {
		if !claims.Role.IsStaff() && claims.Role != model.RoleYearCommander {
			respondAppError(w, apperr.New(apperr.NotAllowed, "only staff may create absences for others"))
			return
		}
		target, err := h.store.GetUserByNII(r.Context(), req.NII)
		if err != nil {
			respondAppError(w, err)
			return
		}
		targetID = target.ID
	}

	created, err := h.absences.Create(r.Context(), targetID, from, to, req.Reason, claims.NII)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *AbsenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid absence id")
		return
	}

	a, err := h.absences.Get(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if a.UserID != claims.UserID && !claims.Role.IsStaff() {
		respondAppError(w, apperr.New(apperr.NotAllowed, "only the owner or staff may delete an absence"))
		return
	}
	if err := h.absences.Delete(r.Context(), id); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListMine returns the caller's own absences.
func (h *AbsenceHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	absences, err := h.absences.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, absences)
}

// ListForUser returns another user's absences, for staff viewers.
func (h *AbsenceHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	target, err := h.store.GetUserByNII(r.Context(), chi.URLParam(r, "nii"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	absences, err := h.absences.ListForUser(r.Context(), target.ID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, absences)
}
