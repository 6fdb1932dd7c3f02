package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-system/internal/config"
	"order-system/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testKey = "test-signing-key-with-enough-length"

func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestResolver() *Resolver {
	return NewResolver(&config.AuthConfig{SigningKey: testKey, Issuer: "identity", Audience: "shop"}, logger.Discard())
}

func validClaims(userID uuid.UUID) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   userID.String(),
		"email": "user@example.com",
		"iss":   "identity",
		"aud":   "shop",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestResolve_Subject(t *testing.T) {
	userID := uuid.New()
	r := newTestResolver()

	id, err := r.Resolve("Bearer " + signToken(t, testKey, validClaims(userID)))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id.UserID != userID || id.Email != "user@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.HasRole("Admin") {
		t.Fatalf("expected no admin role")
	}
}

func TestResolve_NameIdentifierAndRoleArray(t *testing.T) {
	userID := uuid.New()
	claims := validClaims(uuid.New())
	claims[claimNameIdentifier] = userID.String()
	claims[claimRoleURI] = []interface{}{"Customer", "Admin"}

	id, err := newTestResolver().Resolve("Bearer " + signToken(t, testKey, claims))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id.UserID != userID {
		t.Fatalf("expected nameidentifier to win over sub")
	}
	if !id.HasRole("Admin") {
		t.Fatalf("expected admin role, got %v", id.Roles)
	}
}

func TestResolve_Rejects(t *testing.T) {
	userID := uuid.New()
	r := newTestResolver()

	expired := validClaims(userID)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongIssuer := validClaims(userID)
	wrongIssuer["iss"] = "someone-else"

	badSubject := validClaims(userID)
	badSubject["sub"] = "not-a-uuid"

	cases := map[string]string{
		"missing header": "",
		"basic scheme":   "Basic abc",
		"wrong key":      "Bearer " + signToken(t, "another-key", validClaims(userID)),
		"expired":        "Bearer " + signToken(t, testKey, expired),
		"wrong issuer":   "Bearer " + signToken(t, testKey, wrongIssuer),
		"bad subject":    "Bearer " + signToken(t, testKey, badSubject),
		"garbage":        "Bearer abc.def.ghi",
	}
	for name, header := range cases {
		if _, err := r.Resolve(header); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestResolve_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims(uuid.New())).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestResolver().Resolve("Bearer " + token); err == nil {
		t.Fatalf("expected HS512 token to be rejected")
	}
}

func TestMiddleware_SetsIdentity(t *testing.T) {
	userID := uuid.New()
	r := newTestResolver()

	var got *Identity
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = FromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testKey, validClaims(userID)))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.UserID != userID {
		t.Fatalf("expected identity in context, got %+v", got)
	}
}

func TestMiddleware_InvalidTokenIsAnonymous(t *testing.T) {
	r := newTestResolver()

	called := false
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		called = true
		if FromContext(req.Context()) != nil {
			t.Fatalf("expected anonymous request")
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer broken")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}

func TestFromContext_Empty(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil identity")
	}
	var id *Identity
	if id.HasRole("Admin") {
		t.Fatalf("nil identity has no roles")
	}
}
