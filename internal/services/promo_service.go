package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-system/internal/apperror"
	"order-system/internal/database"
	"order-system/internal/logger"
	"order-system/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const promoColumns = `id, code, type, value, is_active, expires_at_utc, usage_limit, times_used, created_at_utc`

// PromoService управляет промокодами и расчётом скидок.
type PromoService struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewPromoService создаёт сервис промокодов.
func NewPromoService(db *database.DB, log *logger.Logger) *PromoService {
	return &PromoService{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Validate рассчитывает скидку без списания использования.
func (s *PromoService) Validate(ctx context.Context, req *models.ValidatePromoCodeRequest) (*models.PromoCodeResult, error) {
	code := strings.TrimSpace(req.Code)
	promo, err := scanPromo(s.db.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(promo); err != nil {
		return nil, err
	}

	discount := calculateDiscount(promo.Type, promo.Value, req.Total)
	return &models.PromoCodeResult{
		Code:               promo.Code,
		Type:               promo.Type,
		Value:              promo.Value,
		DiscountAmount:     discount,
		TotalAfterDiscount: decimal.Max(decimal.Zero, req.Total.Sub(discount)),
	}, nil
}

// ApplyPromoWithTx рассчитывает скидку и списывает одно использование в рамках транзакции заказа.
// Пустой код означает заказ без промокода: возвращается (nil, 0) без обращения к базе.
func (s *PromoService) ApplyPromoWithTx(ctx context.Context, tx *sql.Tx, code *string, total decimal.Decimal) (*string, decimal.Decimal, error) {
	if code == nil || strings.TrimSpace(*code) == "" {
		return nil, decimal.Zero, nil
	}
	trimmed := strings.TrimSpace(*code)

	promo, err := scanPromo(tx.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 FOR UPDATE`, trimmed))
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := s.checkUsable(promo); err != nil {
		return nil, decimal.Zero, err
	}

	discount := calculateDiscount(promo.Type, promo.Value, total)

	// Условный инкремент не даёт счётчику превысить лимит даже без блокировки строки
	result, err := tx.ExecContext(ctx, `
		UPDATE promo_codes
		SET times_used = times_used + 1
		WHERE id = $1 AND (usage_limit IS NULL OR times_used < usage_limit)`, promo.ID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to update promo usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, decimal.Zero, apperror.Validation("Promo code usage limit reached", nil)
	}

	s.log.WithFields(map[string]interface{}{
		"promo_code": promo.Code,
		"discount":   discount.String(),
	}).Debug("Promo code applied")

	applied := promo.Code
	return &applied, discount, nil
}

// CreatePromoCode создаёт новый промокод.
func (s *PromoService) CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error) {
	if err := validatePromoCodePayload(req.Type, req.Value); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	promo := &models.PromoCode{
		ID:           uuid.New(),
		Code:         strings.TrimSpace(req.Code),
		Type:         req.Type,
		Value:        req.Value,
		IsActive:     req.IsActive,
		ExpiresAtUTC: req.ExpiresAtUTC,
		UsageLimit:   req.UsageLimit,
		CreatedAtUTC: s.now(),
	}

	query := `
		INSERT INTO promo_codes (id, code, type, value, is_active, expires_at_utc, usage_limit, times_used, created_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
	`
	_, err := s.db.ExecContext(ctx, query, promo.ID, promo.Code, promo.Type, promo.Value, promo.IsActive,
		nullTime(promo.ExpiresAtUTC), nullInt(promo.UsageLimit), promo.CreatedAtUTC)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Validation("Promo code already exists", err)
		}
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}

	s.log.WithField("promo_code", promo.Code).Info("Promo code created")
	return promo, nil
}

// UpdatePromoCode обновляет параметры промокода. Счётчик использований не сбрасывается.
func (s *PromoService) UpdatePromoCode(ctx context.Context, id uuid.UUID, req *models.UpdatePromoCodeRequest) (*models.PromoCode, error) {
	if err := validatePromoCodePayload(req.Type, req.Value); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	query := `
		UPDATE promo_codes
		SET code = $1, type = $2, value = $3, is_active = $4, expires_at_utc = $5, usage_limit = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query, strings.TrimSpace(req.Code), req.Type, req.Value, req.IsActive,
		nullTime(req.ExpiresAtUTC), nullInt(req.UsageLimit), id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Validation("Promo code already exists", err)
		}
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("Promo code not found", nil)
	}

	s.log.WithField("promo_id", id).Info("Promo code updated")
	return s.GetPromoCode(ctx, id)
}

// DeletePromoCode удаляет промокод. Уже оформленные заказы хранят код строкой и не затрагиваются.
func (s *PromoService) DeletePromoCode(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM promo_codes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete promo code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("Promo code not found", nil)
	}
	s.log.WithField("promo_id", id).Info("Promo code deleted")
	return nil
}

// GetPromoCode возвращает промокод по идентификатору.
func (s *PromoService) GetPromoCode(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return scanPromo(s.db.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id))
}

// ListPromoCodes возвращает все промокоды, новые первыми.
func (s *PromoService) ListPromoCodes(ctx context.Context) ([]*models.PromoCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at_utc DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	promos := make([]*models.PromoCode, 0)
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promo codes: %w", err)
	}
	return promos, nil
}

func (s *PromoService) checkUsable(promo *models.PromoCode) error {
	if !promo.IsActive {
		return apperror.Validation("Promo code is inactive", nil)
	}
	if promo.ExpiresAtUTC != nil && promo.ExpiresAtUTC.Before(s.now()) {
		return apperror.Validation("Promo code expired", nil)
	}
	if promo.UsageLimit != nil && promo.TimesUsed >= *promo.UsageLimit {
		return apperror.Validation("Promo code usage limit reached", nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPromo(row rowScanner) (*models.PromoCode, error) {
	var (
		p          models.PromoCode
		expiresAt  sql.NullTime
		usageLimit sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Type, &p.Value, &p.IsActive, &expiresAt, &usageLimit, &p.TimesUsed, &p.CreatedAtUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Promo code not found", err)
		}
		return nil, fmt.Errorf("failed to scan promo code: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		p.ExpiresAtUTC = &t
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		p.UsageLimit = &limit
	}
	return &p, nil
}

// calculateDiscount округляет скидку до копеек и никогда не возвращает её больше суммы или отрицательной.
func calculateDiscount(promoType models.PromoCodeType, value, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch promoType {
	case models.PromoCodeTypeFixed:
		discount = value
	case models.PromoCodeTypePercent:
		discount = total.Mul(value).Div(decimal.NewFromInt(100))
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(total, discount.Round(2))
}

func validatePromoCodePayload(promoType models.PromoCodeType, value decimal.Decimal) error {
	switch promoType {
	case models.PromoCodeTypeFixed:
		if value.IsNegative() {
			return fmt.Errorf("Value must be non-negative")
		}
	case models.PromoCodeTypePercent:
		if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("Percent value must be between 0 and 100")
		}
	default:
		return fmt.Errorf("Type must be Fixed or Percent")
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
