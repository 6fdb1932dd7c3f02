package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-system/internal/apperror"
	"order-system/internal/config"
	"order-system/internal/database"
	"order-system/internal/logger"
	"order-system/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultOrderNumberAttempts = 25
	defaultMaxPageSize         = 50
	defaultPageSize            = 20
)

const orderColumns = `id, order_number, user_id, customer_email, customer_name, customer_phone, shipping_address,
	status, total_price, promo_code, discount_amount, created_at_utc`

// EventPublisher публикует события заказов после фиксации транзакции
type EventPublisher interface {
	PublishOrderCreated(order *models.Order) error
	PublishOrderStatusChanged(order *models.Order, oldStatus models.OrderStatus) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// OrderService представляет сервис для работы с заказами
type OrderService struct {
	db        *database.DB
	log       *logger.Logger
	promo     *PromoService
	publisher EventPublisher
	numbers   *OrderNumberGenerator
	now       func() time.Time

	numberAttempts  int
	maxPageSize     int
	defaultPageSize int
}

// NewOrderService создает новый экземпляр сервиса заказов. publisher может быть nil.
func NewOrderService(db *database.DB, log *logger.Logger, promo *PromoService, publisher EventPublisher, cfg *config.OrdersConfig) *OrderService {
	s := &OrderService{
		db:              db,
		log:             log,
		promo:           promo,
		publisher:       publisher,
		numbers:         NewOrderNumberGenerator(nil),
		now:             func() time.Time { return time.Now().UTC() },
		numberAttempts:  defaultOrderNumberAttempts,
		maxPageSize:     defaultMaxPageSize,
		defaultPageSize: defaultPageSize,
	}
	if cfg != nil {
		if cfg.OrderNumberAttempts > 0 {
			s.numberAttempts = cfg.OrderNumberAttempts
		}
		if cfg.MaxPageSize > 0 {
			s.maxPageSize = cfg.MaxPageSize
		}
		if cfg.DefaultPageSize > 0 {
			s.defaultPageSize = cfg.DefaultPageSize
		}
	}
	return s
}

// WithOrderNumbers подменяет генератор номеров
func (s *OrderService) WithOrderNumbers(g *OrderNumberGenerator) *OrderService {
	s.numbers = g
	return s
}

// MaxPageSize возвращает верхнюю границу размера страницы
func (s *OrderService) MaxPageSize() int {
	return s.maxPageSize
}

// DefaultPageSize возвращает размер страницы по умолчанию
func (s *OrderService) DefaultPageSize() int {
	return s.defaultPageSize
}

// CreateOrder оформляет заказ из переданных клиентом позиций. userID nil для гостевого заказа.
func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, userID *uuid.UUID) (*models.OrderCreateResult, error) {
	now := s.now()

	subtotal := decimal.Zero
	for _, item := range req.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	appliedCode, discount, err := s.promo.ApplyPromoWithTx(ctx, tx, req.PromoCode, subtotal)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Status:          models.OrderStatusNew,
		TotalPrice:      decimal.Max(decimal.Zero, subtotal.Sub(discount)),
		PromoCode:       appliedCode,
		DiscountAmount:  discount,
		CreatedAtUTC:    now,
	}

	if err := s.insertOrderWithUniqueNumber(ctx, tx, order); err != nil {
		return nil, err
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range req.Items {
		orderItem := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		}
		if _, err := tx.ExecContext(ctx, itemQuery, orderItem.ID, orderItem.OrderID, orderItem.ProductID,
			orderItem.ProductName, orderItem.UnitPrice, orderItem.Quantity); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		order.Items = append(order.Items, orderItem)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_price":  order.TotalPrice.String(),
		"promo_code":   appliedCode,
	}).Info("Order created successfully")

	// Заказ уже сохранён: ошибка публикации не отменяет его
	if s.publisher != nil {
		if err := s.publisher.PublishOrderCreated(order); err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order created event")
		}
	}

	return &models.OrderCreateResult{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		TotalPrice:     order.TotalPrice,
		PromoCode:      order.PromoCode,
		DiscountAmount: order.DiscountAmount,
		CreatedAtUTC:   order.CreatedAtUTC,
	}, nil
}

// insertOrderWithUniqueNumber подбирает свободный номер. Предварительная проверка лишь экономит
// попытки, окончательно уникальность решает ON CONFLICT по order_number.
func (s *OrderService) insertOrderWithUniqueNumber(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (id, order_number, user_id, customer_email, customer_name, customer_phone, shipping_address,
			status, total_price, promo_code, discount_amount, created_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (order_number) DO NOTHING
	`

	for attempt := 1; attempt <= s.numberAttempts; attempt++ {
		candidate := s.numbers.Next(order.CreatedAtUTC)

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`, candidate).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order number: %w", err)
		}
		if exists {
			continue
		}

		result, err := tx.ExecContext(ctx, query, order.ID, candidate, nullUUID(order.UserID), order.CustomerEmail,
			nullString(order.CustomerName), nullString(order.CustomerPhone), nullString(order.ShippingAddress),
			order.Status, order.TotalPrice, nullString(order.PromoCode), order.DiscountAmount, order.CreatedAtUTC)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 1 {
			order.OrderNumber = candidate
			return nil
		}

		s.log.WithFields(map[string]interface{}{
			"order_number": candidate,
			"attempt":      attempt,
		}).Warn("Order number collision on insert, retrying")
	}

	s.log.WithField("attempts", s.numberAttempts).Error("Order number generation exhausted")
	return apperror.Internal("Could not generate order number", nil)
}

// ListUserOrders возвращает заказы пользователя, новые первыми
func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.OrderSummary, error) {
	page, pageSize = s.clampPage(page, pageSize)

	query := `
		SELECT id, order_number, status, total_price, created_at_utc
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at_utc DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return s.querySummaries(ctx, query, userID, pageSize, (page-1)*pageSize)
}

// ListOrders возвращает страницу всех заказов для администратора
func (s *OrderService) ListOrders(ctx context.Context, page, pageSize int) (*models.OrderPage, error) {
	page, pageSize = s.clampPage(page, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `
		SELECT id, order_number, status, total_price, created_at_utc
		FROM orders
		ORDER BY created_at_utc DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	items, err := s.querySummaries(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	return &models.OrderPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}

// GetUserOrder возвращает заказ владельцу
func (s *OrderService) GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderDetails, error) {
	order, err := s.loadOrder(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(order, userID); err != nil {
		return nil, err
	}
	return order.Details(), nil
}

// GetOrder возвращает заказ без проверки владельца (администратор)
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderDetails, error) {
	order, err := s.loadOrder(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	return order.Details(), nil
}

// UpdateUserOrderStatus меняет статус заказа владельцем
func (s *OrderService) UpdateUserOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status models.OrderStatus) (*models.OrderDetails, error) {
	return s.changeStatus(ctx, orderID, func(order *models.Order) (models.OrderStatus, error) {
		if err := checkOwner(order, userID); err != nil {
			return "", err
		}
		return status, nil
	})
}

// CancelOrder отменяет заказ владельца, только из статуса New
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderDetails, error) {
	return s.changeStatus(ctx, orderID, func(order *models.Order) (models.OrderStatus, error) {
		if err := checkOwner(order, userID); err != nil {
			return "", err
		}
		if order.Status != models.OrderStatusNew {
			return "", apperror.Validation("Only new orders can be cancelled", nil)
		}
		return models.OrderStatusCancelled, nil
	})
}

// UpdateOrderStatus меняет статус без проверок владельца и текущего статуса (администратор)
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.OrderDetails, error) {
	return s.changeStatus(ctx, orderID, func(*models.Order) (models.OrderStatus, error) {
		return status, nil
	})
}

// changeStatus блокирует строку заказа, решает о новом статусе и публикует событие после коммита
func (s *OrderService) changeStatus(ctx context.Context, orderID uuid.UUID, decide func(*models.Order) (models.OrderStatus, error)) (*models.OrderDetails, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}

	newStatus, err := decide(order)
	if err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, apperror.Validation("Invalid order status", nil)
	}

	oldStatus := order.Status
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, newStatus, orderID); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	order.Status = newStatus

	s.log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"old_status": oldStatus,
		"new_status": newStatus,
	}).Info("Order status updated")

	if s.publisher != nil && oldStatus != newStatus {
		if err := s.publisher.PublishOrderStatusChanged(order, oldStatus); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Error("Failed to publish order status changed event")
		}
	}

	return order.Details(), nil
}

func (s *OrderService) loadOrder(ctx context.Context, q querier, orderID uuid.UUID, forUpdate bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		order     models.Order
		userID    uuid.NullUUID
		name      sql.NullString
		phone     sql.NullString
		address   sql.NullString
		promoCode sql.NullString
	)
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID, &order.OrderNumber, &userID, &order.CustomerEmail, &name, &phone, &address,
		&order.Status, &order.TotalPrice, &promoCode, &order.DiscountAmount, &order.CreatedAtUTC,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Order not found", err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if userID.Valid {
		id := userID.UUID
		order.UserID = &id
	}
	order.CustomerName = stringPtr(name)
	order.CustomerPhone = stringPtr(phone)
	order.ShippingAddress = stringPtr(address)
	order.PromoCode = stringPtr(promoCode)
	order.CreatedAtUTC = order.CreatedAtUTC.UTC()

	items, err := s.loadOrderItems(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (s *OrderService) loadOrderItems(ctx context.Context, q querier, orderID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return items, nil
}

func (s *OrderService) querySummaries(ctx context.Context, query string, args ...interface{}) ([]models.OrderSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.OrderSummary, 0)
	for rows.Next() {
		var o models.OrderSummary
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.TotalPrice, &o.CreatedAtUTC); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.CreatedAtUTC = o.CreatedAtUTC.UTC()
		summaries = append(summaries, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return summaries, nil
}

// clampPage: page < 1 -> 1, pageSize < 1 -> по умолчанию, pageSize > max -> max
func (s *OrderService) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	return page, pageSize
}

func checkOwner(order *models.Order, userID uuid.UUID) error {
	if order.UserID == nil || *order.UserID != userID {
		return apperror.Forbidden("Forbidden", nil)
	}
	return nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
