package handlers

import (
	"net/http"

	"order-system/internal/auth"
	"order-system/internal/logger"
	"order-system/internal/models"
)

// CartHandler обслуживает корзину текущего пользователя
type CartHandler struct {
	service CartService
	log     *logger.Logger
}

// NewCartHandler создает обработчик корзины
func NewCartHandler(service CartService, log *logger.Logger) *CartHandler {
	return &CartHandler{service: service, log: log}
}

// GetCart возвращает корзину
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get cart")
		return
	}
	writeJSONResponse(w, http.StatusOK, cart)
}

// AddItem добавляет товар или увеличивает количество существующей позиции
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	var req models.AddCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, err := h.service.AddItem(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add cart item")
		return
	}
	writeJSONResponse(w, http.StatusOK, cart)
}

// UpdateItem задаёт новое количество позиции
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	productID, err := uuidParam(r, "productId")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req models.UpdateCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update cart item")
		return
	}
	writeJSONResponse(w, http.StatusOK, cart)
}

// RemoveItem удаляет позицию; отсутствие позиции не ошибка
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	productID, err := uuidParam(r, "productId")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to remove cart item")
		return
	}
	writeJSONResponse(w, http.StatusOK, cart)
}

// ClearCart очищает корзину
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	cart, err := h.service.ClearCart(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to clear cart")
		return
	}
	writeJSONResponse(w, http.StatusOK, cart)
}
