package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/redis"
)

const (
	DefaultTopProgramsLimit = 5
	defaultCacheTTL         = 10 * time.Minute
)

// AnalyticsService агрегирует бизнес-метрики программ и кеширует тяжёлые выборки.
type AnalyticsService struct {
	db             *database.DB
	redis          *redis.Client
	log            *logger.Logger
	cacheTTL       time.Duration
	defaultTop     int
	defaultGroupBy models.AnalyticsGroupBy
}

// NewAnalyticsService создает новый сервис аналитики.
func NewAnalyticsService(db *database.DB, redisClient *redis.Client, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsService {
	cacheTTL := defaultCacheTTL
	defaultTop := DefaultTopProgramsLimit
	groupBy := models.AnalyticsGroupNone

	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.DefaultTopLimit > 0 {
			defaultTop = cfg.DefaultTopLimit
		}
		switch models.AnalyticsGroupBy(cfg.DefaultGroupBy) {
		case models.AnalyticsGroupDay, models.AnalyticsGroupWeek, models.AnalyticsGroupMonth, models.AnalyticsGroupNone:
			groupBy = models.AnalyticsGroupBy(cfg.DefaultGroupBy)
		}
	}

	return &AnalyticsService{
		db:             db,
		redis:          redisClient,
		log:            log,
		cacheTTL:       cacheTTL,
		defaultTop:     defaultTop,
		defaultGroupBy: groupBy,
	}
}

// GetProgramKPIs возвращает агрегированные показатели программ с опциональной
// группировкой по периодам и кешированием.
func (s *AnalyticsService) GetProgramKPIs(ctx context.Context, filter *models.AnalyticsFilter) (*models.ProgramKPIs, error) {
	filter = s.normalizeFilter(filter)
	cacheKey := s.buildCacheKey("programs", filter)

	var cached models.ProgramKPIs
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	summary, err := s.fetchSummary(ctx, filter)
	if err != nil {
		return nil, err
	}

	participants, err := s.fetchParticipantsCount(ctx, filter)
	if err != nil {
		return nil, err
	}

	periods, err := s.fetchPeriods(ctx, filter)
	if err != nil {
		return nil, err
	}

	topPrograms, err := s.fetchTopPrograms(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &models.ProgramKPIs{
		From:              filter.From,
		To:                filter.To,
		ParticipantsCount: participants,
		BookingsCount:     summary.BookingsCount,
		DiscountTotal:     summary.DiscountTotal,
		CommissionTotal:   summary.CommissionTotal,
		TopPrograms:       topPrograms,
		Periods:           periods,
		GeneratedAt:       time.Now(),
		GroupBy:           string(filter.GroupBy),
	}

	s.saveToCache(ctx, cacheKey, result)
	return result, nil
}

type programSummary struct {
	BookingsCount   int
	DiscountTotal   float64
	CommissionTotal float64
}

func (s *AnalyticsService) fetchSummary(ctx context.Context, filter *models.AnalyticsFilter) (*programSummary, error) {
	query := `
		SELECT COUNT(*) AS bookings_count,
		       COALESCE(SUM(discount_amount), 0) AS discount_total,
		       COALESCE(SUM(commission_amount), 0) AS commission_total
	FROM bookings
	WHERE program_id IS NOT NULL AND created_at BETWEEN $1 AND $2
	`

	row := s.db.QueryRowContext(ctx, query, filter.From, filter.To)
	summary := &programSummary{}
	if err := row.Scan(&summary.BookingsCount, &summary.DiscountTotal, &summary.CommissionTotal); err != nil {
		return nil, fmt.Errorf("failed to load program summary: %w", err)
	}

	return summary, nil
}

func (s *AnalyticsService) fetchParticipantsCount(ctx context.Context, filter *models.AnalyticsFilter) (int, error) {
	query := `SELECT COUNT(*) FROM program_participants WHERE joined_at BETWEEN $1 AND $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, filter.From, filter.To).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to load participants count: %w", err)
	}
	return count, nil
}

func (s *AnalyticsService) fetchPeriods(ctx context.Context, filter *models.AnalyticsFilter) ([]models.ProgramPeriod, error) {
	if filter.GroupBy == models.AnalyticsGroupNone || !filter.IncludePeriods {
		return nil, nil
	}

	periodExpr := "date_trunc('day', created_at)"
	switch filter.GroupBy {
	case models.AnalyticsGroupWeek:
		periodExpr = "date_trunc('week', created_at)"
	case models.AnalyticsGroupMonth:
		periodExpr = "date_trunc('month', created_at)"
	}

	query := fmt.Sprintf(`
		SELECT %[1]s AS period,
		       COUNT(*) AS bookings_count,
		       COALESCE(SUM(discount_amount), 0) AS discount_total
	FROM bookings
	WHERE program_id IS NOT NULL AND created_at BETWEEN $1 AND $2
	GROUP BY period
	ORDER BY period ASC
	`, periodExpr)

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load program periods: %w", err)
	}
	defer rows.Close()

	var result []models.ProgramPeriod
	for rows.Next() {
		var (
			periodTime time.Time
			item       models.ProgramPeriod
		)
		if err := rows.Scan(&periodTime, &item.BookingsCount, &item.DiscountTotal); err != nil {
			return nil, fmt.Errorf("failed to scan program period: %w", err)
		}
		item.Period = formatPeriod(periodTime, filter.GroupBy)
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate program periods: %w", err)
	}

	return result, nil
}

func (s *AnalyticsService) fetchTopPrograms(ctx context.Context, filter *models.AnalyticsFilter) ([]models.TopProgram, error) {
	query := `
		SELECT pp.program_id,
		       COUNT(DISTINCT pp.user_id) AS participants,
		       COUNT(DISTINCT b.id) AS bookings,
		       COALESCE(SUM(b.discount_amount), 0) AS discount_total
	FROM program_participants pp
	LEFT JOIN bookings b ON b.program_id = pp.program_id
		AND b.created_at BETWEEN $1 AND $2
	WHERE pp.joined_at BETWEEN $1 AND $2
	GROUP BY pp.program_id
	ORDER BY participants DESC, bookings DESC, pp.program_id ASC
	LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To, filter.TopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top programs: %w", err)
	}
	defer rows.Close()

	var result []models.TopProgram
	for rows.Next() {
		var item models.TopProgram
		if err := rows.Scan(&item.ProgramID, &item.Participants, &item.Bookings, &item.DiscountTotal); err != nil {
			return nil, fmt.Errorf("failed to scan top program: %w", err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top programs: %w", err)
	}

	return result, nil
}

func (s *AnalyticsService) buildCacheKey(kind string, filter *models.AnalyticsFilter) string {
	return redis.GenerateKey(redis.KeyPrefixStats, fmt.Sprintf(
		"%s:%s:%s:%s:%d:%t",
		kind,
		filter.From.Format("2006-01-02"),
		filter.To.Format("2006-01-02"),
		filter.GroupBy,
		filter.TopLimit,
		filter.IncludePeriods,
	))
}

func (s *AnalyticsService) normalizeFilter(filter *models.AnalyticsFilter) *models.AnalyticsFilter {
	if filter.TopLimit <= 0 {
		filter.TopLimit = s.defaultTop
	}
	if filter.GroupBy == "" {
		filter.GroupBy = s.defaultGroupBy
	}
	filter.IncludePeriods = filter.GroupBy != models.AnalyticsGroupNone
	return filter
}

func (s *AnalyticsService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}

	if err := s.redis.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

func (s *AnalyticsService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache analytics result")
	}
}

func formatPeriod(period time.Time, groupBy models.AnalyticsGroupBy) string {
	switch groupBy {
	case models.AnalyticsGroupWeek:
		return period.Format("2006-01-02") // начало недели
	case models.AnalyticsGroupMonth:
		return period.Format("2006-01")
	default:
		return period.Format("2006-01-02")
	}
}
