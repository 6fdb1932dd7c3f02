package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "New"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Valid сообщает, относится ли статус к известным значениям
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order представляет заказ в системе
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OrderNumber     string          `json:"orderNumber" db:"order_number"`
	UserID          *uuid.UUID      `json:"userId,omitempty" db:"user_id"`
	CustomerEmail   string          `json:"customerEmail" db:"customer_email"`
	CustomerName    *string         `json:"customerName,omitempty" db:"customer_name"`
	CustomerPhone   *string         `json:"customerPhone,omitempty" db:"customer_phone"`
	ShippingAddress *string         `json:"shippingAddress,omitempty" db:"shipping_address"`
	Status          OrderStatus     `json:"status" db:"status"`
	TotalPrice      decimal.Decimal `json:"totalPrice" db:"total_price"`
	PromoCode       *string         `json:"promoCode,omitempty" db:"promo_code"`
	DiscountAmount  decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	CreatedAtUTC    time.Time       `json:"createdAtUtc" db:"created_at_utc"`
	Items           []OrderItem     `json:"items"`
}

// OrderItem представляет товар в заказе
type OrderItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"-" db:"order_id"`
	ProductID   uuid.UUID       `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
}

// CreateOrderRequest представляет запрос на оформление заказа
type CreateOrderRequest struct {
	CustomerEmail   string                   `json:"customerEmail" validate:"required,email,max=200"`
	CustomerName    *string                  `json:"customerName,omitempty" validate:"omitempty,max=200"`
	CustomerPhone   *string                  `json:"customerPhone,omitempty" validate:"omitempty,max=40"`
	ShippingAddress *string                  `json:"shippingAddress,omitempty" validate:"omitempty,max=400"`
	Items           []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PromoCode       *string                  `json:"promoCode,omitempty" validate:"omitempty,max=50"`
}

// CreateOrderItemRequest представляет позицию в запросе на оформление
type CreateOrderItemRequest struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName" validate:"required,max=200"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"gte=1"`
}

// OrderCreateResult возвращается клиенту после оформления
type OrderCreateResult struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	Status         OrderStatus     `json:"status"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	PromoCode      *string         `json:"promoCode"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CreatedAtUTC   time.Time       `json:"createdAtUtc"`
}

// OrderSummary краткое представление заказа для списков
type OrderSummary struct {
	ID           uuid.UUID       `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	Status       OrderStatus     `json:"status"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	CreatedAtUTC time.Time       `json:"createdAtUtc"`
}

// OrderDetails полное представление заказа
type OrderDetails struct {
	ID              uuid.UUID          `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	Status          OrderStatus        `json:"status"`
	TotalPrice      decimal.Decimal    `json:"totalPrice"`
	PromoCode       *string            `json:"promoCode"`
	DiscountAmount  decimal.Decimal    `json:"discountAmount"`
	CreatedAtUTC    time.Time          `json:"createdAtUtc"`
	CustomerEmail   string             `json:"customerEmail"`
	ShippingAddress *string            `json:"shippingAddress"`
	Items           []OrderItemDetails `json:"items"`
}

// OrderItemDetails позиция в полном представлении заказа
type OrderItemDetails struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

// OrderPage страница заказов для администратора
type OrderPage struct {
	Items      []OrderSummary `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalCount int            `json:"totalCount"`
}

// UpdateOrderStatusRequest представляет запрос на обновление статуса заказа
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=New Completed Cancelled"`
}

// Details строит полное представление заказа
func (o *Order) Details() *OrderDetails {
	items := make([]OrderItemDetails, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDetails{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return &OrderDetails{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		TotalPrice:      o.TotalPrice,
		PromoCode:       o.PromoCode,
		DiscountAmount:  o.DiscountAmount,
		CreatedAtUTC:    o.CreatedAtUTC,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		Items:           items,
	}
}
