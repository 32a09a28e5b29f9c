package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

const defaultTopLimitFallback = 5

// AnalyticsHandler обрабатывает эндпоинты аналитики программ.
type AnalyticsHandler struct {
	service AnalyticsProvider
	log     *logger.Logger
	cfg     *config.AnalyticsConfig
}

// NewAnalyticsHandler создает новый обработчик аналитики.
func NewAnalyticsHandler(service AnalyticsProvider, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		log:     log,
		cfg:     cfg,
	}
}

// GetProgramKPIs возвращает KPI программ с возможностью экспорта в CSV.
func (h *AnalyticsHandler) GetProgramKPIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, format, err := parseAnalyticsFilter(r, h.cfg)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout(h.cfg))
	defer cancel()

	kpis, err := h.service.GetProgramKPIs(ctx, filter)
	if err != nil {
		h.log.WithError(err).Error("Failed to load program KPIs")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to load analytics")
		return
	}

	if format == "csv" {
		if err := writeProgramKPICSV(w, kpis); err != nil {
			h.log.WithError(err).Warn("Failed to stream KPI CSV")
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, kpis)
}

func parseAnalyticsFilter(r *http.Request, cfg *config.AnalyticsConfig) (*models.AnalyticsFilter, string, error) {
	query := r.URL.Query()
	now := time.Now().UTC()

	toParam := query.Get("to")
	fromParam := query.Get("from")

	to := endOfDay(now)
	if toParam != "" {
		parsed, err := time.Parse("2006-01-02", toParam)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'to' date, expected YYYY-MM-DD")
		}
		to = endOfDay(parsed)
	}

	maxRangeDays := 365
	if cfg != nil && cfg.MaxRangeDays > 0 {
		maxRangeDays = cfg.MaxRangeDays
	}

	from := startOfDay(now.AddDate(0, 0, -maxRangeDays+1))
	if fromParam != "" {
		parsed, err := time.Parse("2006-01-02", fromParam)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'from' date, expected YYYY-MM-DD")
		}
		from = startOfDay(parsed)
	}

	minAllowedFrom := to.AddDate(0, 0, -maxRangeDays+1)
	if from.Before(minAllowedFrom) {
		return nil, "", fmt.Errorf("date range too wide, max %d days", maxRangeDays)
	}

	if from.After(to) {
		return nil, "", fmt.Errorf("'from' date must be before 'to' date")
	}

	groupByStr := strings.ToLower(query.Get("group_by"))
	defaultGroupBy := models.AnalyticsGroupNone
	if cfg != nil {
		switch strings.ToLower(cfg.DefaultGroupBy) {
		case "day", "week", "month", "none":
			defaultGroupBy = models.AnalyticsGroupBy(strings.ToLower(cfg.DefaultGroupBy))
		}
	}

	groupBy := models.AnalyticsGroupBy(groupByStr)
	if groupByStr == "" {
		groupBy = defaultGroupBy
	} else if groupBy != models.AnalyticsGroupDay && groupBy != models.AnalyticsGroupWeek && groupBy != models.AnalyticsGroupMonth && groupBy != models.AnalyticsGroupNone {
		return nil, "", fmt.Errorf("group_by must be one of: day, week, month, none")
	}

	topDefault := defaultTopLimitFallback
	if cfg != nil && cfg.DefaultTopLimit > 0 {
		topDefault = cfg.DefaultTopLimit
	}

	topLimit := parseIntWithDefault(query.Get("top_limit"), topDefault)

	format := strings.ToLower(query.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		return nil, "", fmt.Errorf("format must be json or csv")
	}

	filter := &models.AnalyticsFilter{
		From:     from,
		To:       to,
		GroupBy:  groupBy,
		TopLimit: topLimit,
	}

	return filter, format, nil
}

func parseIntWithDefault(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}

func writeProgramKPICSV(w http.ResponseWriter, kpis *models.ProgramKPIs) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=programs.csv")
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"section", "period", "bookings_count", "discount_total", "commission_total", "participants_count"})
	rangeLabel := fmt.Sprintf("%s..%s", kpis.From.Format("2006-01-02"), kpis.To.Format("2006-01-02"))
	_ = writer.Write([]string{"summary", rangeLabel, strconv.Itoa(kpis.BookingsCount), fmt.Sprintf("%.2f", kpis.DiscountTotal), fmt.Sprintf("%.2f", kpis.CommissionTotal), strconv.Itoa(kpis.ParticipantsCount)})

	for _, period := range kpis.Periods {
		_ = writer.Write([]string{"period", period.Period, strconv.Itoa(period.BookingsCount), fmt.Sprintf("%.2f", period.DiscountTotal), "", ""})
	}

	_ = writer.Write([]string{})
	_ = writer.Write([]string{"section", "program_id", "participants", "bookings", "discount_total"})
	for _, program := range kpis.TopPrograms {
		_ = writer.Write([]string{"top_program", program.ProgramID, strconv.Itoa(program.Participants), strconv.Itoa(program.Bookings), fmt.Sprintf("%.2f", program.DiscountTotal)})
	}

	writer.Flush()
	return writer.Error()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Millisecond*999), time.UTC)
}

func analyticsTimeout(cfg *config.AnalyticsConfig) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}
