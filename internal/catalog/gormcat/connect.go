// Package gormcat is the GORM/Postgres implementation of catalog.Repository,
// grounded on the teacher's db/lumina_db.go connect-with-retry pattern and
// internal/repository/gorm_repo typed-repository style.
package gormcat

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"server/internal/catalog/model"
)

// DSN builds a Postgres connection string from discrete fields, matching the
// teacher's fmt.Sprintf DSN assembly in db/lumina_db.go.
func DSN(host, user, password, dbname, port, sslmode string) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)
}

// Connect opens the catalog database with retry logic (common in
// containerized environments, per the teacher's comment of the same name),
// issues SET statement_timeout once (it applies only to the pooled
// connection that runs it, not to every connection), and migrates the
// schema. The migrated schema declares no foreign-key constraints.
func Connect(log *zap.Logger, dsn string, maxOpenConns, maxIdleConns int) (*gorm.DB, error) {
	const maxRetries = 5
	const retryBaseDelay = 2 * time.Second

	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			var sqlDB *sql.DB
			sqlDB, err = db.DB()
			if err == nil {
				err = sqlDB.Ping()
			}
			if err == nil {
				sqlDB.SetMaxOpenConns(maxOpenConns)
				sqlDB.SetMaxIdleConns(maxIdleConns)

				// statement_timeout bounds a wedged query. db.Exec runs
				// on one pooled connection, so connections the pool
				// opens later do not get this setting.
				db.Exec("SET statement_timeout = '30s'")

				if err := db.AutoMigrate(model.All()...); err != nil {
					return nil, fmt.Errorf("catalog: automigrate: %w", err)
				}
				log.Info("catalog connected", zap.Int("attempt", i+1))
				return db, nil
			}
		}
		retryDelay := time.Duration(i+1) * retryBaseDelay
		log.Warn("catalog connect failed, retrying",
			zap.Error(err), zap.Duration("delay", retryDelay), zap.Int("attempt", i+1), zap.Int("max_retries", maxRetries))
		time.Sleep(retryDelay)
	}

	return nil, fmt.Errorf("catalog: failed to connect after %d attempts: %w", maxRetries, err)
}
