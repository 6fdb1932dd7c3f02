package handlers

import (
	"net/http"

	"order-system/internal/logger"
	"order-system/internal/models"
)

// PromoHandler проверяет промокоды для покупателей.
type PromoHandler struct {
	service PromoValidator
	log     *logger.Logger
}

// NewPromoHandler создаёт новый обработчик промокодов.
func NewPromoHandler(service PromoValidator, log *logger.Logger) *PromoHandler {
	return &PromoHandler{service: service, log: log}
}

// Validate рассчитывает скидку, не расходуя использование кода.
func (h *PromoHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidatePromoCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Validate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to validate promo code")
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// AdminPromoHandler управляет промокодами.
type AdminPromoHandler struct {
	service PromoAdminService
	log     *logger.Logger
}

// NewAdminPromoHandler создаёт обработчик администрирования промокодов.
func NewAdminPromoHandler(service PromoAdminService, log *logger.Logger) *AdminPromoHandler {
	return &AdminPromoHandler{service: service, log: log}
}

// ListPromoCodes возвращает все промокоды, новые первыми.
func (h *AdminPromoHandler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	promos, err := h.service.ListPromoCodes(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list promo codes")
		return
	}
	writeJSONResponse(w, http.StatusOK, promos)
}

// CreatePromoCode создаёт промокод.
func (h *AdminPromoHandler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePromoCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promo, err := h.service.CreatePromoCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create promo code")
		return
	}
	writeJSONResponse(w, http.StatusOK, promo)
}

// UpdatePromoCode обновляет промокод.
func (h *AdminPromoHandler) UpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid promo code ID")
		return
	}

	var req models.UpdatePromoCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promo, err := h.service.UpdatePromoCode(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update promo code")
		return
	}
	writeJSONResponse(w, http.StatusOK, promo)
}

// DeletePromoCode удаляет промокод. Успешный ответ без тела.
func (h *AdminPromoHandler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid promo code ID")
		return
	}

	if err := h.service.DeletePromoCode(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete promo code")
		return
	}
	w.WriteHeader(http.StatusOK)
}
