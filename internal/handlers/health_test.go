package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubDB struct{ err error }

func (s *stubDB) Health() error { return s.err }

type stubRedisHealth struct{ err error }

func (s *stubRedisHealth) Health(context.Context) error { return s.err }

func decodeHealth(t *testing.T, rr *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return resp
}

func TestHealth_OnlyDatabase(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Status != "healthy" || resp.Services["redis"] != "disabled" || resp.Services["kafka"] != "disabled" {
		t.Fatalf("unexpected health: %+v", resp)
	}
}

func TestHealth_UnhealthyDependencies(t *testing.T) {
	kafkaCalled := false
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{err: errors.New("connection refused")}, []string{"kafka:9092"},
		func(brokers []string) error {
			kafkaCalled = len(brokers) == 1
			return nil
		})

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Services["redis"] != "unhealthy: connection refused" || resp.Services["kafka"] != "healthy" || !kafkaCalled {
		t.Fatalf("unexpected services: %+v", resp.Services)
	}
}

func TestHealth_KafkaFailure(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, []string{"kafka:9092"}, func([]string) error {
		return errors.New("no brokers available")
	})

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := decodeHealth(t, rr)
	if rr.Code != http.StatusServiceUnavailable || resp.Services["kafka"] != "unhealthy: no brokers available" || resp.Services["redis"] != "healthy" {
		t.Fatalf("unexpected health: %d %+v", rr.Code, resp.Services)
	}
}

func TestReadiness(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, nil).Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler(&stubDB{err: errors.New("down")}, nil, nil, nil).Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	expectError(t, rr, http.StatusServiceUnavailable, "Database not ready")

	rr = httptest.NewRecorder()
	NewHealthHandler(&stubDB{}, &stubRedisHealth{err: errors.New("down")}, nil, nil).Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	expectError(t, rr, http.StatusServiceUnavailable, "Redis not ready")
}

func TestLivenessThroughRouter(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, "/health/liveness", "", "")
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp["status"] != "alive" {
		t.Fatalf("unexpected liveness: %d %s", rr.Code, rr.Body.String())
	}
}

func TestCheckKafkaHealthWithoutBrokers(t *testing.T) {
	if err := CheckKafkaHealth(nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
