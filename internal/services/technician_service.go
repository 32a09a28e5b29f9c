package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/google/uuid"
)

// TechnicianService представляет сервис для работы с выездными техниками
type TechnicianService struct {
	db  *database.DB
	log *logger.Logger
}

// NewTechnicianService создает новый экземпляр сервиса техников
func NewTechnicianService(db *database.DB, log *logger.Logger) *TechnicianService {
	return &TechnicianService{
		db:  db,
		log: log,
	}
}

// CreateTechnician создает нового техника
func (s *TechnicianService) CreateTechnician(ctx context.Context, req *models.CreateTechnicianRequest) (*models.Technician, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("technician name is required", nil)
	}

	technician := &models.Technician{
		ID:        uuid.New(),
		Name:      req.Name,
		Phone:     req.Phone,
		Status:    models.TechnicianStatusOffline,
		Rating:    0.0,
		TotalJobs: 0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO technicians (id, name, phone, status, rating, total_jobs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, query, technician.ID, technician.Name, technician.Phone,
		technician.Status, technician.Rating, technician.TotalJobs, technician.CreatedAt, technician.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create technician: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"technician_id": technician.ID,
		"name":          technician.Name,
	}).Info("Technician created")

	return technician, nil
}

// GetTechnician получает техника по ID
func (s *TechnicianService) GetTechnician(ctx context.Context, technicianID uuid.UUID) (*models.Technician, error) {
	technician := &models.Technician{}

	query := `
		SELECT id, name, phone, status, current_lat, current_lon, rating, total_jobs,
		       created_at, updated_at, last_seen_at
		FROM technicians
		WHERE id = $1
	`
	err := s.db.QueryRowContext(ctx, query, technicianID).Scan(
		&technician.ID, &technician.Name, &technician.Phone, &technician.Status,
		&technician.CurrentLat, &technician.CurrentLon, &technician.Rating, &technician.TotalJobs,
		&technician.CreatedAt, &technician.UpdatedAt, &technician.LastSeenAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("technician not found", err)
		}
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}

	return technician, nil
}

// UpdateTechnicianStatus обновляет статус и координаты техника
func (s *TechnicianService) UpdateTechnicianStatus(ctx context.Context, technicianID uuid.UUID, req *models.UpdateTechnicianStatusRequest) error {
	if req == nil || !isKnownTechnicianStatus(req.Status) {
		return apperror.Validation("status must be one of available, busy, offline", nil)
	}

	query := `
		UPDATE technicians
		SET status = $1, current_lat = $2, current_lon = $3, updated_at = $4, last_seen_at = $5
		WHERE id = $6
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query, req.Status, req.CurrentLat, req.CurrentLon, now, now, technicianID)
	if err != nil {
		return fmt.Errorf("failed to update technician status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("technician not found", nil)
	}

	s.log.WithFields(map[string]interface{}{
		"technician_id": technicianID,
		"new_status":    req.Status,
	}).Info("Technician status updated")

	return nil
}

func isKnownTechnicianStatus(status models.TechnicianStatus) bool {
	switch status {
	case models.TechnicianStatusAvailable, models.TechnicianStatusBusy, models.TechnicianStatusOffline:
		return true
	}
	return false
}

// GetTechnicians получает список техников с фильтрацией
func (s *TechnicianService) GetTechnicians(ctx context.Context, status *models.TechnicianStatus, limit, offset int) ([]*models.Technician, error) {
	query := `
		SELECT id, name, phone, status, current_lat, current_lon, rating, total_jobs,
		       created_at, updated_at, last_seen_at
		FROM technicians
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get technicians: %w", err)
	}
	defer rows.Close()

	var technicians []*models.Technician
	for rows.Next() {
		technician := &models.Technician{}
		if err := rows.Scan(&technician.ID, &technician.Name, &technician.Phone, &technician.Status,
			&technician.CurrentLat, &technician.CurrentLon, &technician.Rating, &technician.TotalJobs,
			&technician.CreatedAt, &technician.UpdatedAt, &technician.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		technicians = append(technicians, technician)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate technicians: %w", err)
	}

	return technicians, nil
}

// GetAvailableTechnicians получает список доступных техников
func (s *TechnicianService) GetAvailableTechnicians(ctx context.Context) ([]*models.Technician, error) {
	status := models.TechnicianStatusAvailable
	return s.GetTechnicians(ctx, &status, 0, 0)
}

// MarkBusy переводит техника в состояние busy, если он доступен.
// Блокировка строки исключает двойное назначение.
func (s *TechnicianService) MarkBusy(ctx context.Context, tx *sql.Tx, technicianID uuid.UUID) error {
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM technicians WHERE id = $1 FOR UPDATE`, technicianID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("technician not found", err)
		}
		return fmt.Errorf("failed to check technician status: %w", err)
	}
	if status != string(models.TechnicianStatusAvailable) {
		return apperror.Conflict("technician is not available", nil)
	}

	query := `
		UPDATE technicians
		SET status = $1, total_jobs = total_jobs + 1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := tx.ExecContext(ctx, query, models.TechnicianStatusBusy, time.Now(), technicianID, models.TechnicianStatusAvailable)
	if err != nil {
		return fmt.Errorf("failed to update technician status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.Conflict("technician is not available", nil)
	}

	return nil
}
