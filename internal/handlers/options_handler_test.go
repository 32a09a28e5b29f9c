package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

type stubOptionService struct {
	options *models.AgentOptions
	err     error
	calls   int
}

func (s *stubOptionService) BuildAgentOptions(ctx context.Context, agentID string) (*models.AgentOptions, error) {
	s.calls++
	return s.options, s.err
}

type stubRedisClient struct {
	store map[string][]byte
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{store: make(map[string][]byte)}
}

func (s *stubRedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = data
	return nil
}

func (s *stubRedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := s.store[key]
	if !ok {
		return errors.New("key not found")
	}
	return json.Unmarshal(data, dest)
}

func (s *stubRedisClient) Delete(ctx context.Context, key string) error {
	delete(s.store, key)
	return nil
}

func (s *stubRedisClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	for key := range s.store {
		delete(s.store, key)
	}
	return nil
}

func sampleAgentOptions() *models.AgentOptions {
	return &models.AgentOptions{
		Programs:  []models.Option{{Value: "prog-1", Label: "Summer referral"}},
		Companies: []models.Option{{Value: "comp-1", Label: "BeepBeep Rentals"}},
		VehicleModels: []models.Option{
			{Value: "model-1", Label: "Honda Vision"},
		},
		StationsByCompany: map[string][]models.Option{
			"comp-1": {{Value: "station-1", Label: "Da Nang Center"}},
		},
		GeneratedAt: time.Now(),
	}
}

func TestOptionHandler_GetAgentOptions(t *testing.T) {
	service := &stubOptionService{options: sampleAgentOptions()}
	cache := newStubRedisClient()
	handler := NewOptionHandler(service, cache, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/agents/agent-1/options", nil)
	rr := httptest.NewRecorder()
	handler.GetAgentOptions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got models.AgentOptions
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(got.Programs) != 1 || got.Programs[0].Value != "prog-1" {
		t.Fatalf("unexpected options: %+v", got)
	}
	if len(cache.store) != 1 {
		t.Fatalf("expected options cached, store: %v", cache.store)
	}
}

func TestOptionHandler_GetAgentOptions_FromCache(t *testing.T) {
	service := &stubOptionService{options: sampleAgentOptions()}
	cache := newStubRedisClient()
	handler := NewOptionHandler(service, cache, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/agents/agent-1/options", nil)

	first := httptest.NewRecorder()
	handler.GetAgentOptions(first, req)
	second := httptest.NewRecorder()
	handler.GetAgentOptions(second, req)

	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected second request served from cache, service calls: %d", service.calls)
	}
}

func TestOptionHandler_GetAgentOptions_NilCache(t *testing.T) {
	service := &stubOptionService{options: sampleAgentOptions()}
	handler := NewOptionHandler(service, nil, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/agents/agent-1/options", nil)
	rr := httptest.NewRecorder()
	handler.GetAgentOptions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 without cache, got %d", rr.Code)
	}
}

func TestOptionHandler_GetAgentOptions_MethodNotAllowed(t *testing.T) {
	handler := NewOptionHandler(&stubOptionService{}, nil, testLog())

	req := httptest.NewRequest(http.MethodPost, "/api/agents/agent-1/options", nil)
	rr := httptest.NewRecorder()
	handler.GetAgentOptions(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
