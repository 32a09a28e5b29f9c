package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/google/uuid"
)

// dispatchEventPublisher публикует событие назначения техника.
type dispatchEventPublisher interface {
	PublishTechnicianAssigned(dispatchID, technicianID uuid.UUID, stationID string) error
}

// DispatchService автоматически назначает техника на заявку станции
type DispatchService struct {
	db          *database.DB
	technicians *TechnicianService
	catalog     *CatalogService
	log         *logger.Logger
	events      dispatchEventPublisher
}

// NewDispatchService создает новый экземпляр сервиса выездов
func NewDispatchService(db *database.DB, technicians *TechnicianService, catalog *CatalogService, log *logger.Logger, events dispatchEventPublisher) *DispatchService {
	return &DispatchService{
		db:          db,
		technicians: technicians,
		catalog:     catalog,
		log:         log,
		events:      events,
	}
}

// TechnicianScore представляет оценку техника для назначения
type TechnicianScore struct {
	TechnicianID  uuid.UUID
	Name          string
	DistanceScore float64 // 0-1, 1 = ближайший
	RatingScore   float64 // 0-1, 1 = рейтинг 5
	WorkloadScore float64 // 0-1, 1 = нет активных выездов
	TotalScore    float64
	Distance      float64 // км
	Rating        float64
	ActiveJobs    int
}

// AssignmentWeights представляет веса алгоритма назначения
type AssignmentWeights struct {
	Distance float64
	Rating   float64
	Workload float64
}

// DefaultWeights возвращает стандартные веса
func DefaultWeights() AssignmentWeights {
	return AssignmentWeights{
		Distance: 0.40,
		Rating:   0.30,
		Workload: 0.30,
	}
}

// AutoAssign выбирает оптимального техника и создает назначение на станцию
func (s *DispatchService) AutoAssign(ctx context.Context, stationID string, req *models.CreateDispatchRequest) (*models.Dispatch, error) {
	if req == nil || req.Issue == "" {
		return nil, apperror.Validation("issue description is required", nil)
	}

	station, err := s.catalog.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if station.Lat == nil || station.Lon == nil {
		return nil, apperror.Conflict("station has no coordinates", nil)
	}

	available, err := s.technicians.GetAvailableTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get available technicians: %w", err)
	}

	var located []*models.Technician
	for _, tech := range available {
		if tech.CurrentLat != nil && tech.CurrentLon != nil {
			located = append(located, tech)
		}
	}
	if len(located) == 0 {
		return nil, apperror.Unavailable("no technicians with known location available", nil)
	}

	weights := DefaultWeights()
	best := s.scoreTechnician(ctx, located[0], *station.Lat, *station.Lon, weights)
	for _, tech := range located[1:] {
		score := s.scoreTechnician(ctx, tech, *station.Lat, *station.Lon, weights)
		if score.TotalScore > best.TotalScore {
			best = score
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.technicians.MarkBusy(ctx, tx, best.TechnicianID); err != nil {
		return nil, err
	}

	now := time.Now()
	dispatch := &models.Dispatch{
		ID:           uuid.New(),
		StationID:    stationID,
		TechnicianID: best.TechnicianID,
		Issue:        req.Issue,
		Status:       models.DispatchStatusAssigned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO dispatches (id, station_id, technician_id, issue, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, query, dispatch.ID, dispatch.StationID, dispatch.TechnicianID,
		dispatch.Issue, dispatch.Status, dispatch.CreatedAt, dispatch.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create dispatch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dispatch: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTechnicianAssigned(dispatch.ID, dispatch.TechnicianID, stationID); err != nil {
			s.log.WithError(err).WithField("dispatch_id", dispatch.ID).Warn("Failed to publish technician assigned event")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"dispatch_id":    dispatch.ID,
		"station_id":     stationID,
		"technician_id":  best.TechnicianID,
		"total_score":    best.TotalScore,
		"distance_score": best.DistanceScore,
		"rating_score":   best.RatingScore,
		"workload_score": best.WorkloadScore,
		"distance_km":    best.Distance,
	}).Info("Technician auto-assigned to station")

	return dispatch, nil
}

// scoreTechnician рассчитывает взвешенную оценку техника для назначения
func (s *DispatchService) scoreTechnician(ctx context.Context, tech *models.Technician, targetLat, targetLon float64, weights AssignmentWeights) TechnicianScore {
	score := TechnicianScore{
		TechnicianID: tech.ID,
		Name:         tech.Name,
		Rating:       tech.Rating,
	}

	distance := haversineKm(*tech.CurrentLat, *tech.CurrentLon, targetLat, targetLon)
	score.Distance = distance

	// нормализация расстояния: всё дальше 50 км равнозначно плохо
	maxDistance := 50.0
	if distance > maxDistance {
		score.DistanceScore = 0.0
	} else {
		score.DistanceScore = 1.0 - (distance / maxDistance)
	}

	score.RatingScore = tech.Rating / 5.0

	activeJobs := s.getActiveDispatches(ctx, tech.ID)
	score.ActiveJobs = activeJobs

	maxJobs := 5.0
	if float64(activeJobs) >= maxJobs {
		score.WorkloadScore = 0.0
	} else {
		score.WorkloadScore = 1.0 - (float64(activeJobs) / maxJobs)
	}

	score.TotalScore = (score.DistanceScore * weights.Distance) +
		(score.RatingScore * weights.Rating) +
		(score.WorkloadScore * weights.Workload)

	return score
}

// getActiveDispatches возвращает количество активных выездов техника
func (s *DispatchService) getActiveDispatches(ctx context.Context, technicianID uuid.UUID) int {
	query := `SELECT COUNT(*) FROM dispatches WHERE technician_id = $1 AND status = 'assigned'`

	var count int
	if err := s.db.QueryRowContext(ctx, query, technicianID).Scan(&count); err != nil {
		s.log.WithError(err).WithField("technician_id", technicianID).Warn("Failed to get active dispatches count, assuming 0")
		return 0
	}
	return count
}

// haversineKm вычисляет расстояние между двумя точками в километрах
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
