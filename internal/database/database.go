package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"order-system/internal/config"
	"order-system/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

//go:embed schema.sql
var schema string

// DB обёртка над пулом соединений
type DB struct {
	*sql.DB
}

// Connect открывает пул соединений PostgreSQL и проверяет доступность базы
func Connect(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"host":    cfg.Host,
		"port":    cfg.Port,
		"db_name": cfg.DBName,
	}).Info("Connected to database")

	return &DB{DB: sqlDB}, nil
}

// Health проверяет соединение с базой
func (db *DB) Health() error {
	if db == nil || db.DB == nil {
		return errors.New("database is not initialized")
	}
	return db.Ping()
}

// Close закрывает пул соединений
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Migrate создает таблицы, если их нет, и заполняет стартовые промокоды в пустой таблице
func (db *DB) Migrate(ctx context.Context, now time.Time) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return db.seedPromoCodes(ctx, now.UTC())
}

func (db *DB) seedPromoCodes(ctx context.Context, now time.Time) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM promo_codes`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count promo codes: %w", err)
	}
	if count > 0 {
		return nil
	}

	const insert = `
		INSERT INTO promo_codes (id, code, type, value, is_active, expires_at_utc, usage_limit, times_used, created_at_utc)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, 0, $7)
		ON CONFLICT (code) DO NOTHING`

	seeds := []struct {
		code      string
		kind      string
		value     string
		expiresAt time.Time
		limit     sql.NullInt64
	}{
		{code: "WELCOME10", kind: "Percent", value: "10", expiresAt: now.AddDate(0, 3, 0)},
		{code: "SAVE5", kind: "Fixed", value: "5", expiresAt: now.AddDate(0, 1, 0), limit: sql.NullInt64{Int64: 500, Valid: true}},
	}
	for _, s := range seeds {
		if _, err := db.ExecContext(ctx, insert, uuid.New(), s.code, s.kind, s.value, s.expiresAt, s.limit, now); err != nil {
			return fmt.Errorf("failed to seed promo code %s: %w", s.code, err)
		}
	}
	return nil
}

// IsUniqueViolation сообщает, нарушено ли ограничение уникальности
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
