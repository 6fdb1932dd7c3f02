package handlers

import (
	"context"
	"time"

	"order-system/internal/models"
	"order-system/internal/services"

	"github.com/google/uuid"
)

// ----- Cart -----

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

// ----- Orders -----

type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest, userID *uuid.UUID) (*models.OrderCreateResult, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.OrderSummary, error)
	GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderDetails, error)
	UpdateUserOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status models.OrderStatus) (*models.OrderDetails, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderDetails, error)
}

type AdminOrderService interface {
	ListOrders(ctx context.Context, page, pageSize int) (*models.OrderPage, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderDetails, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.OrderDetails, error)
}

// ----- Promo -----

type PromoValidator interface {
	Validate(ctx context.Context, req *models.ValidatePromoCodeRequest) (*models.PromoCodeResult, error)
}

type PromoAdminService interface {
	CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error)
	UpdatePromoCode(ctx context.Context, id uuid.UUID, req *models.UpdatePromoCodeRequest) (*models.PromoCode, error)
	DeletePromoCode(ctx context.Context, id uuid.UUID) error
	ListPromoCodes(ctx context.Context) ([]*models.PromoCode, error)
}

// ----- Rate limit -----

type MiddlewareLimiter interface {
	Allow(ctx context.Context, key string) (services.RateDecision, error)
	Enabled() bool
}

type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Limit() int64
	Usage(ctx context.Context, key string) (int64, int64, *time.Time, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
