package services

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

func strPtr(s string) *string { return &s }

func msPtr(ms int64) *int64 { return &ms }

func TestResolveCompanyID(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]interface{}
		want *string
	}{
		{
			name: "direct companyId wins",
			doc: map[string]interface{}{
				"companyId":          "comp-1",
				"organizerCompanyId": "comp-2",
			},
			want: strPtr("comp-1"),
		},
		{
			name: "organizerCompanyId",
			doc:  map[string]interface{}{"organizerCompanyId": "comp-2"},
			want: strPtr("comp-2"),
		},
		{
			name: "providerCompanyId",
			doc:  map[string]interface{}{"providerCompanyId": "comp-3"},
			want: strPtr("comp-3"),
		},
		{
			name: "nested company object",
			doc:  map[string]interface{}{"company": map[string]interface{}{"id": "comp-4"}},
			want: strPtr("comp-4"),
		},
		{
			name: "nested companyRef object",
			doc:  map[string]interface{}{"companyRef": map[string]interface{}{"id": "comp-5"}},
			want: strPtr("comp-5"),
		},
		{
			name: "empty string skipped",
			doc: map[string]interface{}{
				"companyId": "",
				"company":   map[string]interface{}{"id": "comp-6"},
			},
			want: strPtr("comp-6"),
		},
		{
			name: "nothing found",
			doc:  map[string]interface{}{"title": "x"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveCompanyID(tt.doc)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %q", *got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Fatalf("expected %q, got %v", *tt.want, got)
			}
		})
	}
}

func TestCoerceModelDiscounts(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]interface{}
		want []models.ModelDiscount
	}{
		{
			name: "array of strings",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{"m1", "m2"},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypeFixed, DiscountValue: 0},
				{ModelID: "m2", DiscountType: models.DiscountTypeFixed, DiscountValue: 0},
			},
		},
		{
			name: "explicit discountType and discountValue",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"modelId": "m1", "discountType": "percentage", "discountValue": 15.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypePercentage, DiscountValue: 15},
			},
		},
		{
			name: "percentage field synonyms",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"vehicleModelId": "m1", "pct": 10.0},
					map[string]interface{}{"id": "m2", "off": 5.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypePercentage, DiscountValue: 10},
				{ModelID: "m2", DiscountType: models.DiscountTypePercentage, DiscountValue: 5},
			},
		},
		{
			name: "fixed price field synonyms",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"modelId": "m1", "finalPrice": 90.0},
					map[string]interface{}{"modelId": "m2", "price": 80.0},
					map[string]interface{}{"modelId": "m3", "fixed": 20.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypeFixed, DiscountValue: 90},
				{ModelID: "m2", DiscountType: models.DiscountTypeFixed, DiscountValue: 80},
				{ModelID: "m3", DiscountType: models.DiscountTypeFixed, DiscountValue: 20},
			},
		},
		{
			name: "generic type and value pair",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"modelId": "m1", "type": "percent", "value": 25.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypePercentage, DiscountValue: 25},
			},
		},
		{
			name: "nested model reference for id",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"model": map[string]interface{}{"id": "m1"}, "percentage": 7.0},
					map[string]interface{}{"modelRef": map[string]interface{}{"id": "m2"}, "fixed": 3.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypePercentage, DiscountValue: 7},
				{ModelID: "m2", DiscountType: models.DiscountTypeFixed, DiscountValue: 3},
			},
		},
		{
			name: "entry without model id skipped",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"percentage": 10.0},
					map[string]interface{}{"modelId": "m1", "percentage": 5.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypePercentage, DiscountValue: 5},
			},
		},
		{
			name: "unrecognized entry defaults to fixed zero",
			doc: map[string]interface{}{
				"modelDiscounts": []interface{}{
					map[string]interface{}{"modelId": "m1", "note": "legacy"},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypeFixed, DiscountValue: 0},
			},
		},
		{
			name: "keyed object with numeric value",
			doc: map[string]interface{}{
				"modelDiscounts": map[string]interface{}{
					"m1": 12.0,
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypeFixed, DiscountValue: 12},
			},
		},
		{
			name: "keyed object with discount object",
			doc: map[string]interface{}{
				"modelDiscounts": map[string]interface{}{
					"m1": map[string]interface{}{"discountType": "percentage", "discountValue": 30.0},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypePercentage, DiscountValue: 30},
			},
		},
		{
			name: "fallback to models list",
			doc: map[string]interface{}{
				"models": []interface{}{"m1", "m2"},
			},
			want: []models.ModelDiscount{
				{ModelID: "m1", DiscountType: models.DiscountTypeFixed, DiscountValue: 0},
				{ModelID: "m2", DiscountType: models.DiscountTypeFixed, DiscountValue: 0},
			},
		},
		{
			name: "fallback to vehicleModels list",
			doc: map[string]interface{}{
				"vehicleModels": []interface{}{
					map[string]interface{}{"id": "m3"},
				},
			},
			want: []models.ModelDiscount{
				{ModelID: "m3", DiscountType: models.DiscountTypeFixed, DiscountValue: 0},
			},
		},
		{
			name: "missing field gives empty slice",
			doc:  map[string]interface{}{},
			want: []models.ModelDiscount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coerceModelDiscounts(tt.doc["modelDiscounts"], tt.doc)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCoerceStationTargets(t *testing.T) {
	raw := []interface{}{
		"st-1",
		map[string]interface{}{"stationId": "st-2"},
		map[string]interface{}{"id": "st-3"},
		map[string]interface{}{"station": map[string]interface{}{"id": "st-4"}},
		map[string]interface{}{"name": "no id here"},
		"",
	}

	got := coerceStationTargets(raw)
	want := []models.StationTarget{
		{StationID: "st-1"}, {StationID: "st-2"}, {StationID: "st-3"}, {StationID: "st-4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if got := coerceStationTargets("not a list"); len(got) != 0 {
		t.Errorf("expected empty list for non-array value, got %+v", got)
	}
}

func TestToEpochMillis(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want *int64
	}{
		{name: "nil", in: nil, want: nil},
		{name: "millis as float", in: float64(1700000000000), want: msPtr(1700000000000)},
		{name: "millis as int64", in: int64(1700000000000), want: msPtr(1700000000000)},
		{
			name: "seconds and nanoseconds object",
			in:   map[string]interface{}{"seconds": float64(1700000000), "nanoseconds": float64(500000000)},
			want: msPtr(1700000000500),
		},
		{
			name: "underscored seconds object",
			in:   map[string]interface{}{"_seconds": float64(1700000000), "_nanoseconds": float64(0)},
			want: msPtr(1700000000000),
		},
		{
			name: "rfc3339 string",
			in:   "2023-11-14T22:13:20Z",
			want: msPtr(1700000000000),
		},
		{
			name: "date only string",
			in:   "2023-11-14",
			want: msPtr(time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC).UnixMilli()),
		},
		{name: "garbage string", in: "soon", want: nil},
		{name: "empty string", in: "", want: nil},
		{name: "unsupported type", in: []interface{}{1}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toEpochMillis(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %d", *got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Fatalf("expected %d, got %v", *tt.want, got)
			}
		})
	}
}

func TestIsProgramActiveNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour).UnixMilli()
	future := now.Add(24 * time.Hour).UnixMilli()

	tests := []struct {
		name    string
		program *models.Program
		want    bool
	}{
		{
			name:    "active without window",
			program: &models.Program{IsActive: true},
			want:    true,
		},
		{
			name:    "inactive flag wins over window",
			program: &models.Program{IsActive: false, StartDate: &past, EndDate: &future},
			want:    false,
		},
		{
			name:    "inside window",
			program: &models.Program{IsActive: true, StartDate: &past, EndDate: &future},
			want:    true,
		},
		{
			name:    "start in future",
			program: &models.Program{IsActive: true, StartDate: &future},
			want:    false,
		},
		{
			name:    "end in past",
			program: &models.Program{IsActive: true, EndDate: &past},
			want:    false,
		},
		{
			name:    "open start",
			program: &models.Program{IsActive: true, EndDate: &future},
			want:    true,
		},
		{
			name:    "open end",
			program: &models.Program{IsActive: true, StartDate: &past},
			want:    true,
		},
		{
			name:    "nil program",
			program: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProgramActiveNow(tt.program, now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDeriveProgramStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour).UnixMilli()
	future := now.Add(time.Hour).UnixMilli()

	tests := []struct {
		name    string
		program *models.Program
		want    models.ProgramStatus
	}{
		{name: "inactive is paused", program: &models.Program{IsActive: false}, want: models.ProgramStatusPaused},
		{name: "before start is scheduled", program: &models.Program{IsActive: true, StartDate: &future}, want: models.ProgramStatusScheduled},
		{name: "after end is ended", program: &models.Program{IsActive: true, EndDate: &past}, want: models.ProgramStatusEnded},
		{name: "inside window is active", program: &models.Program{IsActive: true, StartDate: &past, EndDate: &future}, want: models.ProgramStatusActive},
		{name: "no window is active", program: &models.Program{IsActive: true}, want: models.ProgramStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveProgramStatus(tt.program, now); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNormalizeProgramDoc(t *testing.T) {
	doc := map[string]interface{}{
		"title":              "Summer agents",
		"type":               "agent_program",
		"organizerCompanyId": "comp-1",
		"stationTargets":     []interface{}{"st-1", map[string]interface{}{"stationId": "st-2"}},
		"modelDiscounts": []interface{}{
			map[string]interface{}{"modelId": "m1", "percentage": 10.0},
		},
		"startDate":         map[string]interface{}{"seconds": float64(1700000000), "nanoseconds": float64(0)},
		"endDate":           "2026-12-31T23:59:59Z",
		"isActive":          true,
		"status":            "active",
		"participantsCount": float64(7),
		"ordersCount":       float64(3),
		"createdByUserId":   "user-1",
		"createdByRole":     "staff",
	}

	p := NormalizeProgramDoc("prog-1", doc)

	if p.ID != "prog-1" {
		t.Errorf("wrong id: %s", p.ID)
	}
	if p.Type != models.ProgramTypeAgent {
		t.Errorf("wrong type: %s", p.Type)
	}
	if p.CompanyID == nil || *p.CompanyID != "comp-1" {
		t.Errorf("wrong company: %v", p.CompanyID)
	}
	if len(p.StationTargets) != 2 || p.StationTargets[1].StationID != "st-2" {
		t.Errorf("wrong station targets: %+v", p.StationTargets)
	}
	if len(p.ModelDiscounts) != 1 || p.ModelDiscounts[0].DiscountType != models.DiscountTypePercentage {
		t.Errorf("wrong discounts: %+v", p.ModelDiscounts)
	}
	if p.StartDate == nil || *p.StartDate != 1700000000000 {
		t.Errorf("wrong start date: %v", p.StartDate)
	}
	if p.EndDate == nil {
		t.Error("end date not recognized")
	}
	if p.Status != models.ProgramStatusActive {
		t.Errorf("wrong status: %s", p.Status)
	}
	if p.ParticipantsCount != 7 || p.OrdersCount != 3 {
		t.Errorf("wrong counters: %d/%d", p.ParticipantsCount, p.OrdersCount)
	}
}

func TestNormalizeProgramDocDefaults(t *testing.T) {
	p := NormalizeProgramDoc("prog-1", map[string]interface{}{})

	if p.Type != models.ProgramTypeRental {
		t.Errorf("default type should be rental_program, got %s", p.Type)
	}
	if !p.IsActive {
		t.Error("missing isActive should default to true")
	}
	if p.Status != models.ProgramStatusActive {
		t.Errorf("status without window should derive to active, got %s", p.Status)
	}
	if p.StationTargets == nil || p.ModelDiscounts == nil {
		t.Error("list fields must not be nil")
	}
	if p.CompanyID != nil {
		t.Errorf("company should be absent, got %q", *p.CompanyID)
	}
}

// Нормализация уже нормализованного документа ничего не меняет.
func TestNormalizeProgramDocIdempotent(t *testing.T) {
	doc := map[string]interface{}{
		"title":     "Program",
		"type":      "rental_program",
		"companyId": "comp-1",
		"modelDiscounts": []interface{}{
			map[string]interface{}{"modelId": "m1", "pct": 10.0},
		},
		"stationTargets": []interface{}{"st-1"},
		"startDate":      float64(1700000000000),
		"status":         "active",
		"isActive":       true,
	}

	first := NormalizeProgramDoc("prog-1", doc)

	raw, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var roundTrip map[string]interface{}
	if err := json.Unmarshal(raw, &roundTrip); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	second := NormalizeProgramDoc("prog-1", roundTrip)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
