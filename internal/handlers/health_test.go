package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama"
)

type fakeDBHealth struct{ err error }

func (f *fakeDBHealth) Health() error { return f.err }

type fakeRedisHealth struct{ err error }

func (f *fakeRedisHealth) Health(ctx context.Context) error { return f.err }

func healthyKafka([]string) error { return nil }

func newHealthHandler(dbErr, redisErr, kafkaErr error) *HealthHandler {
	kafkaCheck := healthyKafka
	if kafkaErr != nil {
		kafkaCheck = func([]string) error { return kafkaErr }
	}
	return NewHealthHandler(&fakeDBHealth{err: dbErr}, &fakeRedisHealth{err: redisErr}, []string{"kafka:9092"}, kafkaCheck)
}

func TestHealthHandler_Health(t *testing.T) {
	h := newHealthHandler(nil, nil, nil)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy status, got %q", resp.Status)
	}
	for _, svc := range []string{"database", "redis", "kafka"} {
		if resp.Services[svc] != "healthy" {
			t.Fatalf("expected %s healthy, got %q", svc, resp.Services[svc])
		}
	}
}

func TestHealthHandler_Health_DegradedServices(t *testing.T) {
	tests := []struct {
		name     string
		handler  *HealthHandler
		degraded string
	}{
		{name: "database down", handler: newHealthHandler(errors.New("db down"), nil, nil), degraded: "database"},
		{name: "redis down", handler: newHealthHandler(nil, errors.New("redis down"), nil), degraded: "redis"},
		{name: "kafka down", handler: newHealthHandler(nil, nil, errors.New("kafka down")), degraded: "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rr.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Status != "unhealthy" {
				t.Fatalf("expected unhealthy status, got %q", resp.Status)
			}
			if resp.Services[tt.degraded] == "healthy" {
				t.Fatalf("expected %s marked unhealthy: %v", tt.degraded, resp.Services)
			}
		})
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	h := newHealthHandler(nil, nil, nil)
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHealthHandler_Readiness_NotReady(t *testing.T) {
	h := newHealthHandler(errors.New("db down"), nil, nil)
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := newHealthHandler(errors.New("db down"), errors.New("redis down"), nil)
	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))

	// liveness не зависит от внешних сервисов
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	h := newHealthHandler(nil, nil, nil)

	for _, endpoint := range []func(http.ResponseWriter, *http.Request){h.Health, h.Readiness, h.Liveness} {
		rr := httptest.NewRecorder()
		endpoint(rr, httptest.NewRequest(http.MethodPost, "/health", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rr.Code)
		}
	}
}

func TestCheckKafkaHealth_NoBrokers(t *testing.T) {
	if err := checkKafkaHealth(nil); err == nil {
		t.Fatal("expected error for empty broker list")
	}
	if err := CheckKafkaHealth(nil); err == nil {
		t.Fatal("expected error from exported wrapper")
	}
}

func TestCheckKafkaHealth_WithMockBroker(t *testing.T) {
	broker := sarama.NewMockBroker(t, 1)
	defer broker.Close()

	broker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetBroker(broker.Addr(), broker.BrokerID()).
			SetController(broker.BrokerID()).
			SetLeader("programs", 0, broker.BrokerID()),
	})

	if err := checkKafkaHealth([]string{broker.Addr()}); err != nil {
		t.Fatalf("expected kafka health ok, got %v", err)
	}
}
