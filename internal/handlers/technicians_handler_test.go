package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/google/uuid"
)

type stubTechnicianService struct {
	technician *models.Technician
	list       []*models.Technician
	err        error

	lastStatusFilter *models.TechnicianStatus
	lastStatusUpdate *models.UpdateTechnicianStatusRequest
}

func (s *stubTechnicianService) CreateTechnician(ctx context.Context, req *models.CreateTechnicianRequest) (*models.Technician, error) {
	return s.technician, s.err
}
func (s *stubTechnicianService) GetTechnician(ctx context.Context, technicianID uuid.UUID) (*models.Technician, error) {
	return s.technician, s.err
}
func (s *stubTechnicianService) UpdateTechnicianStatus(ctx context.Context, technicianID uuid.UUID, req *models.UpdateTechnicianStatusRequest) error {
	s.lastStatusUpdate = req
	return s.err
}
func (s *stubTechnicianService) GetTechnicians(ctx context.Context, status *models.TechnicianStatus, limit, offset int) ([]*models.Technician, error) {
	s.lastStatusFilter = status
	return s.list, s.err
}

type stubDispatchService struct {
	dispatch *models.Dispatch
	err      error

	lastStationID string
	lastIssue     string
}

func (s *stubDispatchService) AutoAssign(ctx context.Context, stationID string, req *models.CreateDispatchRequest) (*models.Dispatch, error) {
	s.lastStationID = stationID
	s.lastIssue = req.Issue
	return s.dispatch, s.err
}

func sampleTechnician() *models.Technician {
	return &models.Technician{
		ID:     uuid.New(),
		Name:   "Nguyen Van A",
		Phone:  "+84901234567",
		Status: models.TechnicianStatusAvailable,
		Rating: 4.5,
	}
}

func TestTechnicianHandler_CreateTechnician(t *testing.T) {
	service := &stubTechnicianService{technician: sampleTechnician()}
	handler := NewTechnicianHandler(service, &stubDispatchService{}, testLog())

	body := bytes.NewBufferString(`{"name":"Nguyen Van A","phone":"+84901234567"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/technicians", body)
	rr := httptest.NewRecorder()
	handler.Technicians(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}

func TestTechnicianHandler_GetTechnicians_StatusFilter(t *testing.T) {
	service := &stubTechnicianService{list: []*models.Technician{sampleTechnician()}}
	handler := NewTechnicianHandler(service, &stubDispatchService{}, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/technicians?status=available", nil)
	rr := httptest.NewRecorder()
	handler.Technicians(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastStatusFilter == nil || *service.lastStatusFilter != models.TechnicianStatusAvailable {
		t.Fatalf("status filter not propagated: %v", service.lastStatusFilter)
	}
}

func TestTechnicianHandler_GetTechnician_NotFound(t *testing.T) {
	service := &stubTechnicianService{err: apperror.NotFound("technician not found", nil)}
	handler := NewTechnicianHandler(service, &stubDispatchService{}, testLog())

	req := httptest.NewRequest(http.MethodGet, "/api/technicians/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()
	handler.GetTechnician(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestTechnicianHandler_UpdateTechnicianStatus(t *testing.T) {
	service := &stubTechnicianService{}
	handler := NewTechnicianHandler(service, &stubDispatchService{}, testLog())

	body := bytes.NewBufferString(`{"status":"busy","current_lat":16.05,"current_lon":108.2}`)
	req := httptest.NewRequest(http.MethodPut, "/api/technicians/"+uuid.New().String()+"/status", body)
	rr := httptest.NewRecorder()
	handler.UpdateTechnicianStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastStatusUpdate == nil || service.lastStatusUpdate.Status != models.TechnicianStatusBusy {
		t.Fatalf("status update not propagated: %+v", service.lastStatusUpdate)
	}
	if service.lastStatusUpdate.CurrentLat == nil || *service.lastStatusUpdate.CurrentLat != 16.05 {
		t.Fatalf("coordinates not propagated: %+v", service.lastStatusUpdate)
	}
}

func TestTechnicianHandler_UpdateTechnicianStatus_InvalidID(t *testing.T) {
	handler := NewTechnicianHandler(&stubTechnicianService{}, &stubDispatchService{}, testLog())

	req := httptest.NewRequest(http.MethodPut, "/api/technicians/not-a-uuid/status", bytes.NewBufferString(`{"status":"busy"}`))
	rr := httptest.NewRecorder()
	handler.UpdateTechnicianStatus(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestTechnicianHandler_DispatchTechnician(t *testing.T) {
	dispatch := &models.Dispatch{
		ID:           uuid.New(),
		StationID:    "station-1",
		TechnicianID: uuid.New(),
		Issue:        "flat tire on rental scooter",
		Status:       models.DispatchStatusAssigned,
	}
	dispatchService := &stubDispatchService{dispatch: dispatch}
	handler := NewTechnicianHandler(&stubTechnicianService{}, dispatchService, testLog())

	body := bytes.NewBufferString(`{"issue":"flat tire on rental scooter"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/stations/station-1/dispatch", body)
	rr := httptest.NewRecorder()
	handler.DispatchTechnician(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if dispatchService.lastStationID != "station-1" {
		t.Fatalf("station id not propagated: %q", dispatchService.lastStationID)
	}
	var got models.Dispatch
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Status != models.DispatchStatusAssigned {
		t.Fatalf("unexpected dispatch: %+v", got)
	}
}

func TestTechnicianHandler_DispatchTechnician_NoTechnicians(t *testing.T) {
	dispatchService := &stubDispatchService{err: apperror.Unavailable("no available technicians with known location", nil)}
	handler := NewTechnicianHandler(&stubTechnicianService{}, dispatchService, testLog())

	body := bytes.NewBufferString(`{"issue":"battery swap"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/stations/station-1/dispatch", body)
	rr := httptest.NewRecorder()
	handler.DispatchTechnician(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
