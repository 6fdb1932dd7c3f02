package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"order-system/internal/apperror"
	"order-system/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCartHandler_GetEmptyCart(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()

	rr := api.do(t, http.MethodGet, "/api/cart", "", signToken(t, userID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if body := rr.Body.String(); body != "{\"items\":[]}\n" {
		t.Fatalf("unexpected body %q", body)
	}
	if api.cart.userID != userID {
		t.Fatalf("cart resolved for wrong user: %s", api.cart.userID)
	}
}

func TestCartHandler_AddItem(t *testing.T) {
	api := newTestAPI(t)
	productID := uuid.New()
	api.cart.cart = &models.Cart{Items: []models.CartItem{{
		ProductID: productID, ProductName: "Lamp", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 2,
	}}}

	body := `{"productId":"` + productID.String() + `","productName":"Lamp","unitPrice":19.99,"quantity":2}`
	rr := api.do(t, http.MethodPost, "/api/cart/items", body, signToken(t, uuid.New()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}

	var cart struct {
		Items []struct {
			ProductID string      `json:"productId"`
			UnitPrice json.Number `json:"unitPrice"`
			Quantity  int         `json:"quantity"`
			ImageURL  *string     `json:"imageUrl"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].UnitPrice.String() != "19.99" || cart.Items[0].ImageURL != nil {
		t.Fatalf("unexpected cart: %s", rr.Body.String())
	}
	if api.cart.addedRequest == nil || api.cart.addedRequest.ProductID != productID {
		t.Fatalf("request not passed to service: %+v", api.cart.addedRequest)
	}
}

func TestCartHandler_AddItemValidation(t *testing.T) {
	api := newTestAPI(t)
	token := signToken(t, uuid.New())
	productID := uuid.NewString()
	longName := make([]byte, 201)
	for i := range longName {
		longName[i] = 'a'
	}

	cases := []struct {
		body string
		msg  string
	}{
		{``, "Request body is required"},
		{`{"productId":`, "Invalid request body"},
		{`{"productName":"Lamp","unitPrice":1,"quantity":1}`, "productId is required"},
		{`{"productId":"` + productID + `","unitPrice":1,"quantity":1}`, "productName is required"},
		{`{"productId":"` + productID + `","productName":"` + string(longName) + `","unitPrice":1,"quantity":1}`, "productName must be at most 200 characters"},
		{`{"productId":"` + productID + `","productName":"Lamp","unitPrice":-1,"quantity":1}`, "unitPrice must be greater than or equal to 0"},
		{`{"productId":"` + productID + `","productName":"Lamp","unitPrice":1000001,"quantity":1}`, "unitPrice must be less than or equal to 1000000"},
		{`{"productId":"` + productID + `","productName":"Lamp","unitPrice":1,"quantity":0}`, "quantity must be greater than or equal to 1"},
		{`{"productId":"` + productID + `","productName":"Lamp","unitPrice":1,"quantity":1001}`, "quantity must be less than or equal to 1000"},
	}
	for _, c := range cases {
		expectError(t, api.do(t, http.MethodPost, "/api/cart/items", c.body, token), http.StatusBadRequest, c.msg)
	}
	if api.cart.addedRequest != nil {
		t.Fatalf("invalid requests must not reach the service")
	}
}

func TestCartHandler_UpdateItem(t *testing.T) {
	api := newTestAPI(t)
	token := signToken(t, uuid.New())
	productID := uuid.New()

	rr := api.do(t, http.MethodPatch, "/api/cart/items/"+productID.String(), `{"quantity":7}`, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if api.cart.productID != productID || api.cart.quantity != 7 {
		t.Fatalf("unexpected update args: %s %d", api.cart.productID, api.cart.quantity)
	}

	expectError(t, api.do(t, http.MethodPatch, "/api/cart/items/not-a-uuid", `{"quantity":7}`, token), http.StatusBadRequest, "Invalid product ID")
	expectError(t, api.do(t, http.MethodPatch, "/api/cart/items/"+productID.String(), `{"quantity":0}`, token), http.StatusBadRequest, "quantity must be greater than or equal to 1")

	api.cart.err = apperror.NotFound("Cart item not found", nil)
	expectError(t, api.do(t, http.MethodPatch, "/api/cart/items/"+productID.String(), `{"quantity":2}`, token), http.StatusNotFound, "Cart item not found")
}

func TestCartHandler_RemoveAndClear(t *testing.T) {
	api := newTestAPI(t)
	token := signToken(t, uuid.New())
	productID := uuid.New()

	if rr := api.do(t, http.MethodDelete, "/api/cart/items/"+productID.String(), "", token); rr.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rr.Code)
	}
	if api.cart.productID != productID {
		t.Fatalf("remove called with %s", api.cart.productID)
	}
	if rr := api.do(t, http.MethodDelete, "/api/cart", "", token); rr.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rr.Code)
	}
}
