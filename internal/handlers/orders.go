package handlers

import (
	"net/http"

	"order-system/internal/auth"
	"order-system/internal/logger"
	"order-system/internal/models"

	"github.com/google/uuid"
)

// OrderHandler представляет обработчик заказов покупателя
type OrderHandler struct {
	service  OrderService
	log      *logger.Logger
	pageSize int
}

// NewOrderHandler создает новый обработчик заказов. pageSize используется для /api/orders/my без параметров.
func NewOrderHandler(service OrderService, log *logger.Logger, pageSize int) *OrderHandler {
	return &OrderHandler{service: service, log: log, pageSize: pageSize}
}

// CreateOrder оформляет заказ. Токен необязателен: без него заказ гостевой.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var userID *uuid.UUID
	if identity := auth.FromContext(r.Context()); identity != nil {
		id := identity.UserID
		userID = &id
	}

	result, err := h.service.CreateOrder(r.Context(), &req, userID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create order")
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// ListMyOrders возвращает заказы текущего пользователя
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", h.pageSize)

	orders, err := h.service.ListUserOrders(r.Context(), userID, page, pageSize)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get orders")
		return
	}
	writeJSONResponse(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ владельцу
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	details, err := h.service.GetUserOrder(r.Context(), userID, orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}
	writeJSONResponse(w, http.StatusOK, details)
}

// UpdateOrderStatus меняет статус собственного заказа
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.service.UpdateUserOrderStatus(r.Context(), userID, orderID, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update order status")
		return
	}
	writeJSONResponse(w, http.StatusOK, details)
}

// CancelOrder отменяет собственный заказ в статусе New
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	details, err := h.service.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to cancel order")
		return
	}
	writeJSONResponse(w, http.StatusOK, details)
}

// AdminOrderHandler обслуживает административные операции с заказами
type AdminOrderHandler struct {
	service AdminOrderService
	log     *logger.Logger
}

// NewAdminOrderHandler создает обработчик заказов для администратора
func NewAdminOrderHandler(service AdminOrderService, log *logger.Logger) *AdminOrderHandler {
	return &AdminOrderHandler{service: service, log: log}
}

// ListOrders возвращает страницу всех заказов
func (h *AdminOrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListOrders(r.Context(), queryInt(r, "page", 1), queryInt(r, "pageSize", 0))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get orders")
		return
	}
	writeJSONResponse(w, http.StatusOK, page)
}

// GetOrder возвращает любой заказ
func (h *AdminOrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	details, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}
	writeJSONResponse(w, http.StatusOK, details)
}

// UpdateOrderStatus меняет статус любого заказа
func (h *AdminOrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.service.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update order status")
		return
	}

	h.log.WithField("order_id", orderID).WithField("new_status", req.Status).Info("Order status updated by admin")
	writeJSONResponse(w, http.StatusOK, details)
}
