package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"geo_attend/internal/attendance"
	"geo_attend/internal/models"
)

// Settings is everything the server reads from the environment.
type Settings struct {
	DB DBSettings

	HTTPAddr  string
	JWTSecret string

	LogFile  string
	LogLevel logrus.Level

	LateAfter    time.Duration
	AttendanceTZ *time.Location

	FixTimeout          time.Duration
	LocationInterval    time.Duration
	LocationMinDistance float64
	MaxFixAge           time.Duration
	MaxGeofenceRadius   float64
	RequireInside       bool
	OncePerDay          bool
	EventBuffer         int
}

type DBSettings struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN builds the libpq connection string.
func (d DBSettings) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

// Load reads .env (if present) and the environment.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}

	s := Settings{
		DB: DBSettings{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "attendance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		HTTPAddr:  getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		JWTSecret: getEnv("JWT_SECRET", "supersecret"),
		LogFile:   getEnv("LOG_FILE", "./logs/app.log"),
	}

	var errs []string
	collect := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}

	var err error
	s.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	collect("LOG_LEVEL", err)

	s.LateAfter, err = attendance.ParseClock(getEnv("LATE_THRESHOLD", "09:00"))
	collect("LATE_THRESHOLD", err)

	s.AttendanceTZ, err = time.LoadLocation(getEnv("ATTENDANCE_TZ", "Local"))
	collect("ATTENDANCE_TZ", err)

	s.FixTimeout, err = time.ParseDuration(getEnv("FIX_TIMEOUT", "3s"))
	collect("FIX_TIMEOUT", err)

	s.LocationInterval, err = time.ParseDuration(getEnv("LOCATION_INTERVAL", "2s"))
	collect("LOCATION_INTERVAL", err)

	s.LocationMinDistance, err = strconv.ParseFloat(getEnv("LOCATION_MIN_DISTANCE", "5"), 64)
	collect("LOCATION_MIN_DISTANCE", err)

	s.MaxFixAge, err = time.ParseDuration(getEnv("MAX_FIX_AGE", "10s"))
	collect("MAX_FIX_AGE", err)

	s.MaxGeofenceRadius, err = strconv.ParseFloat(getEnv("MAX_GEOFENCE_RADIUS", strconv.FormatFloat(models.DefaultMaxRadiusMeters, 'f', -1, 64)), 64)
	collect("MAX_GEOFENCE_RADIUS", err)

	s.RequireInside, err = strconv.ParseBool(getEnv("REQUIRE_INSIDE", "false"))
	collect("REQUIRE_INSIDE", err)

	s.OncePerDay, err = strconv.ParseBool(getEnv("ONE_CHECK_IN_PER_DAY", "false"))
	collect("ONE_CHECK_IN_PER_DAY", err)

	s.EventBuffer, err = strconv.Atoi(getEnv("EVENT_BUFFER", "256"))
	collect("EVENT_BUFFER", err)

	if len(errs) > 0 {
		return Settings{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}
