package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-system/internal/apperror"
	"order-system/internal/database"
	"order-system/internal/logger"
	"order-system/internal/models"

	"github.com/google/uuid"
)

// CartService управляет корзинами пользователей.
// Каждая мутация возвращает корзину целиком, чтобы клиент синхронизировался с сервером.
type CartService struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewCartService создаёт сервис корзины.
func NewCartService(db *database.DB, log *logger.Logger) *CartService {
	return &CartService{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GetCart возвращает корзину пользователя; пустую, если корзина ещё не создана.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	query := `
		SELECT i.product_id, i.product_name, i.unit_price, i.quantity, i.image_url
		FROM cart_items i
		JOIN carts c ON c.id = i.cart_id
		WHERE c.user_id = $1
		ORDER BY i.created_at_utc, i.product_id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	defer rows.Close()

	cart := models.EmptyCart()
	for rows.Next() {
		var (
			item     models.CartItem
			imageURL sql.NullString
		)
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity, &imageURL); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.ImageURL = stringPtr(imageURL)
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}
	return cart, nil
}

// AddItem добавляет товар: количество суммируется, цена, название и картинка берутся из последнего запроса.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.Cart, error) {
	cartID, err := s.getOrCreateCartID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Атомарный upsert: параллельные добавления одного товара не теряют количество
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, product_name, unit_price, quantity, image_url, created_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price,
			product_name = EXCLUDED.product_name,
			image_url = EXCLUDED.image_url
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.New(), cartID, req.ProductID, req.ProductName, req.UnitPrice,
		req.Quantity, nullString(req.ImageURL), s.now()); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":    userID,
		"product_id": req.ProductID,
		"quantity":   req.Quantity,
	}).Debug("Cart item added")

	return s.GetCart(ctx, userID)
}

// UpdateItem задаёт абсолютное количество. Отсутствующая позиция не создаётся.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	query := `
		UPDATE cart_items
		SET quantity = $1
		WHERE product_id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $3)
	`
	result, err := s.db.ExecContext(ctx, query, quantity, productID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("Cart item not found", nil)
	}

	return s.GetCart(ctx, userID)
}

// RemoveItem удаляет позицию; отсутствие позиции не считается ошибкой.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	query := `
		DELETE FROM cart_items
		WHERE product_id = $1 AND cart_id = (SELECT id FROM carts WHERE user_id = $2)
	`
	if _, err := s.db.ExecContext(ctx, query, productID, userID); err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}
	return s.GetCart(ctx, userID)
}

// ClearCart удаляет все позиции корзины пользователя.
func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	query := `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}
	return s.GetCart(ctx, userID)
}

// getOrCreateCartID лениво создаёт корзину. При гонке первой записи побеждает чужая строка.
func (s *CartService) getOrCreateCartID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	cartID, err := s.findCartID(ctx, userID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, err
	}

	cartID = uuid.New()
	_, err = s.db.ExecContext(ctx, `INSERT INTO carts (id, user_id, created_at_utc) VALUES ($1, $2, $3)`, cartID, userID, s.now())
	if err == nil {
		return cartID, nil
	}
	if !database.IsUniqueViolation(err) {
		return uuid.Nil, fmt.Errorf("failed to create cart: %w", err)
	}

	s.log.WithField("user_id", userID).Debug("Concurrent cart creation detected, using existing cart")
	existing, findErr := s.findCartID(ctx, userID)
	if findErr != nil {
		return uuid.Nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return existing, nil
}

func (s *CartService) findCartID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("failed to find cart: %w", err)
	}
	return cartID, nil
}
