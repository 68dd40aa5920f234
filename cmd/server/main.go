// Package main is the entry point for the mess booking API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/navalmess/api/internal/absence"
	"github.com/navalmess/api/internal/admin"
	"github.com/navalmess/api/internal/aggregate"
	"github.com/navalmess/api/internal/audit"
	"github.com/navalmess/api/internal/auth"
	"github.com/navalmess/api/internal/booking"
	"github.com/navalmess/api/internal/calendar"
	"github.com/navalmess/api/internal/capacity"
	"github.com/navalmess/api/internal/config"
	"github.com/navalmess/api/internal/httpapi"
	"github.com/navalmess/api/internal/notify"
	"github.com/navalmess/api/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Schema bootstrap and FTS repair run inside Open, before any request
	// is served.
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	jwtManager := auth.NewJWTManager([]byte(cfg.SecretKey), "navalmess-api", 12*time.Hour)

	calendarService := calendar.New(st, cfg.DeadlineHours)
	absenceService := absence.New(st)
	capacityService := capacity.New(st)
	bookingService := booking.New(st, calendarService, absenceService, cfg.EditHorizonDays)
	aggregatorService := aggregate.New(st)
	authService := auth.New(st, jwtManager, !cfg.IsProduction())
	auditService := audit.New(st)
	adminService := admin.New(st, auth.HashPassword)

	channels := []notify.Channel{
		notify.NewEmailChannel(cfg.Resend, log.Logger),
		notify.NewSMSChannel(cfg.Twilio, &http.Client{Timeout: 8 * time.Second}, log.Logger),
	}
	scheduler := notify.NewScheduler(st, calendarService, channels,
		cfg.EditHorizonDays, cfg.NotifWarnHours, cfg.NotifScanSeconds, log.Logger)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start notification scheduler")
	}
	defer scheduler.Stop()

	handlers := httpapi.Handlers{
		Auth:     httpapi.NewAuthHandler(authService),
		Bookings: httpapi.NewBookingHandler(bookingService, calendarService, st),
		Absences: httpapi.NewAbsenceHandler(absenceService, st),
		Staff:    httpapi.NewStaffHandler(aggregatorService, capacityService, st),
		Admin:    httpapi.NewAdminHandler(adminService, auditService, calendarService, capacityService, st),
		Cron:     httpapi.NewCronHandler(scheduler, st, cfg.DBPath, nil),
		Health:   httpapi.NewHealthHandler(st),
	}
	router := httpapi.NewRouter(handlers, jwtManager, cfg.CronAPIToken)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
