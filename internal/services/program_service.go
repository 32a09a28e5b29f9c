package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/redis"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const programCacheTTL = 5 * time.Minute

// programEventPublisher публикует события жизненного цикла программ.
// Реализуется kafka.Producer; в тестах допускается nil.
type programEventPublisher interface {
	PublishProgramCreated(program *models.Program) error
	PublishProgramStatusChanged(programID string, oldStatus, newStatus models.ProgramStatus) error
}

// ProgramService представляет сервис для работы с программами.
// Документы программ хранятся в колонке jsonb как есть; нормализация
// выполняется при чтении, запись изменений — слиянием патча с документом.
type ProgramService struct {
	db     *database.DB
	cache  *redis.Client
	log    *logger.Logger
	events programEventPublisher
}

// NewProgramService создает новый экземпляр сервиса программ
func NewProgramService(db *database.DB, cache *redis.Client, log *logger.Logger, events programEventPublisher) *ProgramService {
	return &ProgramService{
		db:     db,
		cache:  cache,
		log:    log,
		events: events,
	}
}

// CreateProgram сохраняет документ программы и возвращает нормализованный вид
func (s *ProgramService) CreateProgram(ctx context.Context, doc map[string]interface{}) (*models.Program, error) {
	if doc == nil {
		return nil, apperror.Validation("program document is required", nil)
	}
	if asString(doc["title"]) == "" {
		return nil, apperror.Validation("title is required", nil)
	}

	id := asString(doc["id"])
	if id == "" {
		id = uuid.New().String()
	}
	delete(doc, "id")

	nowMs := time.Now().UnixMilli()
	if doc["createdAt"] == nil {
		doc["createdAt"] = nowMs
	}
	doc["updatedAt"] = nowMs

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal program document: %w", err)
	}

	query := `INSERT INTO programs (id, doc) VALUES ($1, $2)`
	if _, err := s.db.ExecContext(ctx, query, id, data); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apperror.Conflict("program already exists", err)
		}
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	program := NormalizeProgramDoc(id, doc)

	if s.events != nil {
		if err := s.events.PublishProgramCreated(program); err != nil {
			s.log.WithError(err).WithField("program_id", id).Warn("Failed to publish program created event")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"program_id": id,
		"type":       program.Type,
	}).Info("Program created")

	return program, nil
}

// GetProgram получает программу по идентификатору
func (s *ProgramService) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	if s.cache != nil {
		var cached models.Program
		key := redis.GenerateKey(redis.KeyPrefixProgram, id)
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	doc, err := s.fetchDoc(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	program := NormalizeProgramDoc(id, doc)

	if s.cache != nil {
		key := redis.GenerateKey(redis.KeyPrefixProgram, id)
		if err := s.cache.Set(ctx, key, program, programCacheTTL); err != nil {
			s.log.WithError(err).Debug("Failed to cache program")
		}
	}

	return program, nil
}

// GetPrograms получает список программ с фильтрацией.
// Разнородные документы фильтруются после нормализации, поэтому
// фильтры типа и активности применяются на стороне сервиса.
func (s *ProgramService) GetPrograms(ctx context.Context, filter *models.ProgramFilter) ([]*models.Program, error) {
	query := `SELECT id, doc FROM programs ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get programs: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var programs []*models.Program
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			s.log.WithError(err).WithField("program_id", id).Warn("Skipping unreadable program document")
			continue
		}

		program := NormalizeProgramDoc(id, doc)
		if !matchesFilter(program, filter, now) {
			continue
		}
		programs = append(programs, program)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate programs: %w", err)
	}

	return paginatePrograms(programs, filter), nil
}

func matchesFilter(p *models.Program, filter *models.ProgramFilter, now time.Time) bool {
	if filter == nil {
		return true
	}
	if filter.Type != nil && p.Type != *filter.Type {
		return false
	}
	if filter.CompanyID != nil {
		if p.CompanyID == nil || *p.CompanyID != *filter.CompanyID {
			return false
		}
	}
	if filter.ActiveOnly && !IsProgramActiveNow(p, now) {
		return false
	}
	return true
}

func paginatePrograms(programs []*models.Program, filter *models.ProgramFilter) []*models.Program {
	if filter == nil {
		return programs
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(programs) {
			return []*models.Program{}
		}
		programs = programs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(programs) {
		programs = programs[:filter.Limit]
	}
	return programs
}

// UpdateProgram применяет патч к документу программы слиянием jsonb
func (s *ProgramService) UpdateProgram(ctx context.Context, id string, patch map[string]interface{}) (*models.Program, error) {
	if len(patch) == 0 {
		return nil, apperror.Validation("patch is empty", nil)
	}
	delete(patch, "id")
	patch["updatedAt"] = time.Now().UnixMilli()

	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal program patch: %w", err)
	}

	query := `UPDATE programs SET doc = doc || $2::jsonb, updated_at = NOW() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		return nil, fmt.Errorf("failed to update program: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("program not found", nil)
	}

	s.invalidate(ctx, id)

	return s.GetProgram(ctx, id)
}

// EndProgram завершает программу
func (s *ProgramService) EndProgram(ctx context.Context, id string) (*models.Program, error) {
	return s.transition(ctx, id, models.ProgramStatusEnded, "endedAt")
}

// ArchiveProgram переводит программу в архив
func (s *ProgramService) ArchiveProgram(ctx context.Context, id string) (*models.Program, error) {
	return s.transition(ctx, id, models.ProgramStatusArchived, "archivedAt")
}

// CancelProgram отменяет программу
func (s *ProgramService) CancelProgram(ctx context.Context, id string) (*models.Program, error) {
	return s.transition(ctx, id, models.ProgramStatusCanceled, "canceledAt")
}

// transition выполняет терминальный переход статуса: блокирует строку,
// проверяет допустимость перехода и сливает патч с терминальной отметкой.
func (s *ProgramService) transition(ctx context.Context, id string, target models.ProgramStatus, stampField string) (*models.Program, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := s.fetchDocForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	current := NormalizeProgramDoc(id, doc)
	if !isValidProgramTransition(current.Status, target) {
		return nil, apperror.Conflict(fmt.Sprintf("cannot transition program from %s to %s", current.Status, target), nil)
	}

	nowMs := time.Now().UnixMilli()
	patch := map[string]interface{}{
		"status":    string(target),
		"isActive":  false,
		stampField:  nowMs,
		"updatedAt": nowMs,
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transition patch: %w", err)
	}

	query := `UPDATE programs SET doc = doc || $2::jsonb, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, data); err != nil {
		return nil, fmt.Errorf("failed to apply program transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit program transition: %w", err)
	}

	s.invalidate(ctx, id)

	if s.events != nil {
		if err := s.events.PublishProgramStatusChanged(id, current.Status, target); err != nil {
			s.log.WithError(err).WithField("program_id", id).Warn("Failed to publish program status change")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"program_id": id,
		"old_status": current.Status,
		"new_status": target,
	}).Info("Program status changed")

	for k, v := range patch {
		doc[k] = v
	}
	return NormalizeProgramDoc(id, doc), nil
}

func isValidProgramTransition(from, to models.ProgramStatus) bool {
	switch to {
	case models.ProgramStatusEnded, models.ProgramStatusCanceled:
		return from != models.ProgramStatusEnded &&
			from != models.ProgramStatusArchived &&
			from != models.ProgramStatusCanceled
	case models.ProgramStatusArchived:
		return from != models.ProgramStatusArchived
	default:
		return false
	}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *ProgramService) fetchDoc(ctx context.Context, q rowQuerier, id string) (map[string]interface{}, error) {
	return s.scanDoc(q.QueryRowContext(ctx, `SELECT doc FROM programs WHERE id = $1`, id))
}

func (s *ProgramService) fetchDocForUpdate(ctx context.Context, tx *sql.Tx, id string) (map[string]interface{}, error) {
	return s.scanDoc(tx.QueryRowContext(ctx, `SELECT doc FROM programs WHERE id = $1 FOR UPDATE`, id))
}

func (s *ProgramService) scanDoc(row *sql.Row) (map[string]interface{}, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("program not found", err)
		}
		return nil, fmt.Errorf("failed to get program: %w", err)
	}

	return unmarshalDoc(data)
}

func unmarshalDoc(data []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal program document: %w", err)
	}
	return doc, nil
}

func (s *ProgramService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	key := redis.GenerateKey(redis.KeyPrefixProgram, id)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithError(err).WithField("program_id", id).Debug("Failed to invalidate program cache")
	}
}
