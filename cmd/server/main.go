package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"geo_attend/internal/attendance"
	"geo_attend/internal/config"
	"geo_attend/internal/controllers"
	"geo_attend/internal/events"
	"geo_attend/internal/geofence"
	"geo_attend/internal/location"
	"geo_attend/internal/logger"
	"geo_attend/internal/middleware"
	"geo_attend/internal/routes"
	"geo_attend/internal/store"
	"geo_attend/internal/tracking"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration.")
	}

	// Initialize structured logging to file
	logger.Setup(settings.LogFile, settings.LogLevel)

	db, err := config.InitDB(settings.DB)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to the database.")
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		logrus.WithError(err).Fatal("Auto-migration failed.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := geofence.NewRegistry(settings.MaxGeofenceRadius)
	fences, err := st.ListGeofences(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load geofences.")
	}
	if err := registry.Load(fences); err != nil {
		logrus.WithError(err).Warn("Some stored geofences were skipped.")
	}

	ledger := attendance.NewLedger(attendance.WithLedgerLocation(settings.AttendanceTZ))
	recent, err := st.RecordsSince(ctx, time.Now().AddDate(0, 0, -31))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load attendance records.")
	}
	for _, r := range recent {
		ledger.Append(r)
	}

	hub := events.NewHub(settings.EventBuffer)
	notifications := events.NewNotificationCenter()
	recorder := store.NewRecorder(st, settings.EventBuffer)
	dispatcher := events.NewDispatcher(settings.EventBuffer,
		events.LogSink{Logger: logrus.StandardLogger()},
		ledger,
		notifications,
		recorder,
		hub,
	)

	manager := tracking.NewManager(registry, dispatcher, tracking.Config{
		FixTimeout: settings.FixTimeout,
		Subscribe: location.SubscribeOptions{
			Interval:          settings.LocationInterval,
			MinDistanceMeters: settings.LocationMinDistance,
		},
		RequireInside: settings.RequireInside,
		Policy: attendance.Policy{
			LateAfter:  settings.LateAfter,
			Location:   settings.AttendanceTZ,
			OncePerDay: settings.OncePerDay,
		},
	}, tracking.WithMaxFixAge(settings.MaxFixAge))

	api := &controllers.API{
		Workers:       st,
		Geofences:     st,
		History:       st,
		Auth:          middleware.NewAuth(settings.JWTSecret),
		Registry:      registry,
		Tracking:      manager,
		Ledger:        ledger,
		Notifications: notifications,
		Hub:           hub,
		Location:      settings.AttendanceTZ,
	}

	srv := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           routes.SetupRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", settings.HTTPAddr).Info("Server running.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server failed.")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown did not complete.")
	}

	// Sessions publish their final state, so close them before the sinks.
	manager.Close()
	dispatcher.Close()
	recorder.Close()
	hub.Close()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
