package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/navalmess/api/internal/auth"
	"github.com/navalmess/api/internal/model"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *AuthHandler
	Bookings *BookingHandler
	Absences *AbsenceHandler
	Staff    *StaffHandler
	Admin    *AdminHandler
	Cron     *CronHandler
	Health   *HealthHandler
}

// NewRouter assembles the full HTTP surface.
func NewRouter(h Handlers, jwt *auth.JWTManager, cronToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health.Health)
	r.Post("/login", h.Auth.Login)

	// Cron endpoints, authorised by the dedicated shared secret.
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireCronToken(cronToken))
		r.Get("/backup-cron", h.Cron.Backup)
		r.Get("/avisos-cron", h.Cron.Avisos)
	})

	// Everything else requires an authenticated identity.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwt))

		r.Post("/logout", h.Auth.Logout)
		r.Get("/me", h.Auth.Me)
		r.Post("/me/password", h.Auth.ChangePassword)
		r.Put("/me/contacts", h.Auth.UpdateContacts)

		// Self-service booking and absence routes.
		r.Get("/bookings/week", h.Bookings.Week)
		r.Put("/bookings/{date}", h.Bookings.Edit)
		r.Get("/menus/{date}", h.Staff.Menu)
		r.Get("/absences", h.Absences.ListMine)
		r.Post("/absences", h.Absences.Create)
		r.Delete("/absences/{id}", h.Absences.Delete)

		// Staff read panels: kitchen, commanders, duty officer, admin.
		staffRead := RequireRole(model.RoleKitchen, model.RoleDutyOfficer, model.RoleYearCommander, model.RoleAdmin)
		r.Group(func(r chi.Router) {
			r.Use(staffRead)
			r.Get("/staff/day/{date}", h.Staff.DayPanel)
			r.Get("/staff/week/{monday}", h.Staff.WeekTotals)
			r.Get("/staff/roster/{year}/{date}", h.Staff.Roster)
			r.Get("/staff/absences/{nii}", h.Absences.ListForUser)
		})

		// Exceptions: override bookings past the self-edit window.
		r.With(RequireRole(model.RoleDutyOfficer, model.RoleAdmin)).
			Put("/staff/bookings/{nii}/{date}", h.Bookings.Override)

		// Kitchen and admin author menus and capacities.
		kitchenWrite := RequireRole(model.RoleKitchen, model.RoleAdmin)
		r.With(kitchenWrite).Put("/menus/{date}", h.Admin.SetMenu)
		r.With(kitchenWrite).Put("/capacities/{date}", h.Admin.SetCapacity)

		// Admin-only management surface.
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(model.RoleAdmin))

			r.Get("/users", h.Admin.ListUsers)
			r.Post("/users", h.Admin.CreateUser)
			r.Post("/users/import", h.Admin.ImportUsers)
			r.Post("/users/promote", h.Admin.Promote)
			r.Patch("/users/{id}", h.Admin.UpdateUser)
			r.Delete("/users/{id}", h.Admin.DeleteUser)
			r.Post("/users/{id}/reset-password", h.Admin.ResetPassword)

			r.Put("/calendar/{date}", h.Admin.SetCalendarEntry)
			r.Delete("/calendar/{date}", h.Admin.DeleteCalendarEntry)

			r.Get("/audit/bookings/{nii}", h.Admin.BookingAudit)
			r.Get("/audit/logins/{nii}", h.Admin.LoginAudit)
			r.Get("/audit/actions", h.Admin.AdminAudit)
		})
	})

	return r
}
