package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCodeType описывает тип скидки промокода.
type PromoCodeType string

const (
	PromoCodeTypeFixed   PromoCodeType = "Fixed"
	PromoCodeTypePercent PromoCodeType = "Percent"
)

// Valid сообщает, поддерживается ли тип
func (t PromoCodeType) Valid() bool {
	return t == PromoCodeTypeFixed || t == PromoCodeTypePercent
}

// PromoCode представляет промокод в системе.
type PromoCode struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Code         string          `json:"code" db:"code"`
	Type         PromoCodeType   `json:"type" db:"type"`
	Value        decimal.Decimal `json:"value" db:"value"`
	IsActive     bool            `json:"isActive" db:"is_active"`
	ExpiresAtUTC *time.Time      `json:"expiresAtUtc" db:"expires_at_utc"`
	UsageLimit   *int            `json:"usageLimit" db:"usage_limit"`
	TimesUsed    int             `json:"timesUsed" db:"times_used"`
	CreatedAtUTC time.Time       `json:"-" db:"created_at_utc"`
}

// CreatePromoCodeRequest описывает запрос на создание промокода.
type CreatePromoCodeRequest struct {
	Code         string          `json:"code" validate:"required,max=50"`
	Type         PromoCodeType   `json:"type" validate:"required,oneof=Fixed Percent"`
	Value        decimal.Decimal `json:"value" validate:"gte=0"`
	IsActive     bool            `json:"isActive"`
	ExpiresAtUTC *time.Time      `json:"expiresAtUtc,omitempty"`
	UsageLimit   *int            `json:"usageLimit,omitempty" validate:"omitempty,gte=0"` // nil = безлимит
}

// UpdatePromoCodeRequest описывает запрос на обновление промокода.
type UpdatePromoCodeRequest = CreatePromoCodeRequest

// ValidatePromoCodeRequest описывает проверку кода без списания
type ValidatePromoCodeRequest struct {
	Code  string          `json:"code" validate:"required,max=50"`
	Total decimal.Decimal `json:"total" validate:"gte=0"`
}

// PromoCodeResult результат проверки промокода
type PromoCodeResult struct {
	Code               string          `json:"code"`
	Type               PromoCodeType   `json:"type"`
	Value              decimal.Decimal `json:"value"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TotalAfterDiscount decimal.Decimal `json:"totalAfterDiscount"`
}
