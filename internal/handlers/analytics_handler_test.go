package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

type stubAnalyticsProvider struct {
	kpis *models.ProgramKPIs
	err  error

	lastFilter *models.AnalyticsFilter
}

func (s *stubAnalyticsProvider) GetProgramKPIs(ctx context.Context, filter *models.AnalyticsFilter) (*models.ProgramKPIs, error) {
	s.lastFilter = filter
	return s.kpis, s.err
}

func sampleKPIs() *models.ProgramKPIs {
	return &models.ProgramKPIs{
		From:              time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:                time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC),
		ParticipantsCount: 12,
		BookingsCount:     40,
		DiscountTotal:     320.5,
		CommissionTotal:   96.15,
		TopPrograms: []models.TopProgram{
			{ProgramID: "prog-1", Participants: 8, Bookings: 25, DiscountTotal: 200},
		},
		GeneratedAt: time.Now(),
	}
}

func TestAnalyticsHandler_GetProgramKPIs(t *testing.T) {
	provider := &stubAnalyticsProvider{kpis: sampleKPIs()}
	handler := NewAnalyticsHandler(provider, testLog(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?from=2026-01-01&to=2026-01-31", nil)
	rr := httptest.NewRecorder()
	handler.GetProgramKPIs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got models.ProgramKPIs
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.BookingsCount != 40 || got.ParticipantsCount != 12 {
		t.Fatalf("unexpected KPIs: %+v", got)
	}
	if provider.lastFilter == nil || provider.lastFilter.TopLimit != defaultTopLimitFallback {
		t.Fatalf("unexpected filter: %+v", provider.lastFilter)
	}
}

func TestAnalyticsHandler_GetProgramKPIs_CSV(t *testing.T) {
	provider := &stubAnalyticsProvider{kpis: sampleKPIs()}
	handler := NewAnalyticsHandler(provider, testLog(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?from=2026-01-01&to=2026-01-31&format=csv", nil)
	rr := httptest.NewRecorder()
	handler.GetProgramKPIs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "summary,2026-01-01..2026-01-31,40,320.50,96.15,12") {
		t.Fatalf("summary row missing in CSV: %q", body)
	}
	if !strings.Contains(body, "top_program,prog-1,8,25,200.00") {
		t.Fatalf("top program row missing in CSV: %q", body)
	}
}

func TestAnalyticsHandler_GetProgramKPIs_ServiceError(t *testing.T) {
	provider := &stubAnalyticsProvider{err: errors.New("db is down")}
	handler := NewAnalyticsHandler(provider, testLog(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs", nil)
	rr := httptest.NewRecorder()
	handler.GetProgramKPIs(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestParseAnalyticsFilter_InvalidDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?from=января", nil)
	if _, _, err := parseAnalyticsFilter(req, nil); err == nil {
		t.Fatal("expected error for invalid date")
	}
}

func TestParseAnalyticsFilter_RangeTooWide(t *testing.T) {
	cfg := &config.AnalyticsConfig{MaxRangeDays: 30}
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?from=2026-01-01&to=2026-06-01", nil)
	_, _, err := parseAnalyticsFilter(req, cfg)
	if err == nil || !strings.Contains(err.Error(), "too wide") {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestParseAnalyticsFilter_FromAfterTo(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?from=2026-02-01&to=2026-01-01", nil)
	if _, _, err := parseAnalyticsFilter(req, nil); err == nil {
		t.Fatal("expected error when from is after to")
	}
}

func TestParseAnalyticsFilter_GroupByAndFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?from=2026-01-01&to=2026-01-31&group_by=week&format=csv&top_limit=3", nil)
	filter, format, err := parseAnalyticsFilter(req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.GroupBy != models.AnalyticsGroupWeek {
		t.Fatalf("expected week grouping, got %q", filter.GroupBy)
	}
	if filter.TopLimit != 3 {
		t.Fatalf("expected top limit 3, got %d", filter.TopLimit)
	}
	if format != "csv" {
		t.Fatalf("expected csv format, got %q", format)
	}
}

func TestParseAnalyticsFilter_InvalidGroupBy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?group_by=quarter", nil)
	if _, _, err := parseAnalyticsFilter(req, nil); err == nil {
		t.Fatal("expected error for unknown group_by")
	}
}

func TestParseAnalyticsFilter_InvalidFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs?format=xml", nil)
	if _, _, err := parseAnalyticsFilter(req, nil); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseAnalyticsFilter_ConfigDefaults(t *testing.T) {
	cfg := &config.AnalyticsConfig{DefaultGroupBy: "day", DefaultTopLimit: 10}
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/programs", nil)
	filter, _, err := parseAnalyticsFilter(req, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.GroupBy != models.AnalyticsGroupDay {
		t.Fatalf("expected config default grouping, got %q", filter.GroupBy)
	}
	if filter.TopLimit != 10 {
		t.Fatalf("expected config default top limit, got %d", filter.TopLimit)
	}
}
