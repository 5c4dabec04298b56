package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"geo_attend/internal/logger"
)

// InitDB opens Postgres through lib/pq and wraps it in gorm.
func InitDB(d DBSettings) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", d.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.GormLogger(200 * time.Millisecond),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host": d.Host,
		"name": d.Name,
	}).Info("Connected to database.")
	return db, nil
}
