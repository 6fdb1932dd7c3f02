package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType тип события в шине
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// Event конверт события, публикуемого в Kafka
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent упаковывает полезную нагрузку в конверт
func NewEvent(eventType EventType, payload interface{}, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: at.UTC(),
	}, nil
}

// OrderCreatedEvent публикуется после сохранения нового заказа
type OrderCreatedEvent struct {
	OrderID       uuid.UUID          `json:"orderId"`
	OrderNumber   string             `json:"orderNumber"`
	CustomerEmail string             `json:"customerEmail"`
	CustomerName  *string            `json:"customerName"`
	TotalPrice    decimal.Decimal    `json:"totalPrice"`
	CreatedAtUTC  time.Time          `json:"createdAtUtc"`
	Items         []OrderCreatedItem `json:"items"`
}

// OrderCreatedItem позиция события order.created
type OrderCreatedItem struct {
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

// OrderStatusChangedEvent публикуется после смены статуса
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID   `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	OldStatus   OrderStatus `json:"oldStatus"`
	NewStatus   OrderStatus `json:"newStatus"`
	ChangedAt   time.Time   `json:"changedAt"`
}

// NewOrderCreatedEvent строит событие из сохранённого заказа
func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	items := make([]OrderCreatedItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderCreatedItem{
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return OrderCreatedEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerEmail: o.CustomerEmail,
		CustomerName:  o.CustomerName,
		TotalPrice:    o.TotalPrice,
		CreatedAtUTC:  o.CreatedAtUTC,
		Items:         items,
	}
}
