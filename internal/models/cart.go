package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart представляет корзину пользователя. Items никогда не nil.
type Cart struct {
	Items []CartItem `json:"items"`
}

// CartItem представляет позицию корзины
type CartItem struct {
	ProductID   uuid.UUID       `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	ImageURL    *string         `json:"imageUrl" db:"image_url"`
}

// EmptyCart возвращает корзину без позиций
func EmptyCart() *Cart {
	return &Cart{Items: []CartItem{}}
}

// AddCartItemRequest представляет запрос на добавление товара в корзину
type AddCartItemRequest struct {
	ProductID   uuid.UUID       `json:"productId" validate:"required"`
	ProductName string          `json:"productName" validate:"required,max=200"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gte=0,lte=1000000"`
	Quantity    int             `json:"quantity" validate:"gte=1,lte=1000"`
	ImageURL    *string         `json:"imageUrl,omitempty" validate:"omitempty,max=500"`
}

// UpdateCartItemRequest задаёт новое абсолютное количество
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1,lte=1000"`
}
