package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/metrics"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/google/uuid"
)

// participantEventPublisher публикует событие вступления участника.
type participantEventPublisher interface {
	PublishParticipantJoined(programID, userID string, role models.ParticipantRole) error
}

// ParticipantService представляет сервис участия в программах.
// Вступление идемпотентно: уникальный индекс (program_id, user_id) и
// условная вставка исключают дубликаты при конкурентных запросах.
// Счётчик участников всегда пересчитывается запросом COUNT; при сбое
// подсчёта срез помечается как неавторитетный.
type ParticipantService struct {
	db     *database.DB
	log    *logger.Logger
	events participantEventPublisher

	mu       sync.RWMutex
	watchers map[string]map[int64]chan *models.ParticipantsSnapshot
	nextID   int64
}

// NewParticipantService создает новый экземпляр сервиса участников
func NewParticipantService(db *database.DB, log *logger.Logger, events participantEventPublisher) *ParticipantService {
	return &ParticipantService{
		db:       db,
		log:      log,
		events:   events,
		watchers: make(map[string]map[int64]chan *models.ParticipantsSnapshot),
	}
}

// Join регистрирует участие пользователя в программе.
// Повторный запрос той же пары (программа, пользователь) не создает
// дубликата и возвращает already=true с актуальным счётчиком.
func (s *ParticipantService) Join(ctx context.Context, programID string, req *models.JoinProgramRequest) (*models.JoinProgramResult, error) {
	started := time.Now()

	result, err := s.join(ctx, programID, req)

	status := "failed"
	if err == nil {
		status = "success"
		if result.Already {
			status = "already"
		}
	}
	metrics.RecordJoinProgramDuration(status, time.Since(started).Seconds())

	return result, err
}

func (s *ParticipantService) join(ctx context.Context, programID string, req *models.JoinProgramRequest) (*models.JoinProgramResult, error) {
	if req == nil || req.UserID == "" {
		return nil, apperror.Validation("user_id is required", nil)
	}
	if !isKnownRole(req.UserRole) {
		return nil, apperror.Validation("user_role must be one of agent, customer, staff", nil)
	}
	status := req.Status
	if status == "" {
		status = models.ParticipantStatusJoined
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM programs WHERE id = $1)`, programID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check program existence: %w", err)
	}
	if !exists {
		return nil, apperror.NotFound("program not found", nil)
	}

	query := `
		INSERT INTO program_participants (id, program_id, user_id, user_role, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (program_id, user_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, uuid.New(), programID, req.UserID, req.UserRole, status, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to join program: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	already := rowsAffected == 0

	count, countErr := s.Count(ctx, programID)
	authoritative := countErr == nil
	if countErr != nil {
		s.log.WithError(countErr).WithField("program_id", programID).Warn("Participant count query failed")
	}

	if !already {
		s.syncDocCounter(ctx, programID, count, authoritative)

		if s.events != nil {
			if err := s.events.PublishParticipantJoined(programID, req.UserID, req.UserRole); err != nil {
				s.log.WithError(err).WithField("program_id", programID).Warn("Failed to publish participant joined event")
			}
		}
		s.NotifyChanged(ctx, programID)

		s.log.WithFields(map[string]interface{}{
			"program_id": programID,
			"user_id":    req.UserID,
			"user_role":  req.UserRole,
		}).Info("Participant joined program")
	}

	return &models.JoinProgramResult{
		Already:            already,
		Count:              count,
		CountAuthoritative: authoritative,
	}, nil
}

func isKnownRole(role models.ParticipantRole) bool {
	switch role {
	case models.ParticipantRoleAgent, models.ParticipantRoleCustomer, models.ParticipantRoleStaff:
		return true
	}
	return false
}

// syncDocCounter обновляет денормализованный счётчик в документе программы.
// Ошибка не прерывает вступление: авторитетным остаётся COUNT.
func (s *ParticipantService) syncDocCounter(ctx context.Context, programID string, count int, authoritative bool) {
	if !authoritative {
		return
	}
	query := `UPDATE programs SET doc = jsonb_set(doc, '{participantsCount}', to_jsonb($2::int), true) WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, programID, count); err != nil {
		s.log.WithError(err).WithField("program_id", programID).Warn("Failed to sync participantsCount")
	}
}

// GetParticipants возвращает список участников программы
func (s *ParticipantService) GetParticipants(ctx context.Context, programID string) ([]*models.ProgramParticipant, error) {
	query := `
		SELECT id, program_id, user_id, user_role, status, joined_at
		FROM program_participants
		WHERE program_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	participants := []*models.ProgramParticipant{}
	for rows.Next() {
		p := &models.ProgramParticipant{}
		if err := rows.Scan(&p.ID, &p.ProgramID, &p.UserID, &p.UserRole, &p.Status, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

// Count возвращает авторитетное число участников программы
func (s *ParticipantService) Count(ctx context.Context, programID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM program_participants WHERE program_id = $1`, programID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// Snapshot возвращает список участников вместе со счётчиком.
// При сбое COUNT счётчик деградирует до длины списка с пометкой.
func (s *ParticipantService) Snapshot(ctx context.Context, programID string) (*models.ParticipantsSnapshot, error) {
	participants, err := s.GetParticipants(ctx, programID)
	if err != nil {
		return nil, err
	}

	count, countErr := s.Count(ctx, programID)
	authoritative := countErr == nil
	if countErr != nil {
		s.log.WithError(countErr).WithField("program_id", programID).Warn("Falling back to list length for participant count")
		count = len(participants)
	}

	return &models.ParticipantsSnapshot{
		ProgramID:          programID,
		Participants:       participants,
		Count:              count,
		CountAuthoritative: authoritative,
		GeneratedAt:        time.Now(),
	}, nil
}

// Subscribe подписывает вызывающего на обновления среза участников.
// Возвращённая функция снимает подписку; канал закрывается при отписке.
func (s *ParticipantService) Subscribe(programID string) (<-chan *models.ParticipantsSnapshot, func()) {
	ch := make(chan *models.ParticipantsSnapshot, 1)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.watchers[programID] == nil {
		s.watchers[programID] = make(map[int64]chan *models.ParticipantsSnapshot)
	}
	s.watchers[programID][id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			set, ok := s.watchers[programID]
			if ok {
				_, ok = set[id]
			}
			if ok {
				delete(set, id)
				if len(set) == 0 {
					delete(s.watchers, programID)
				}
			}
			s.mu.Unlock()
			// Подписка могла быть уже закрыта через CloseAll
			if ok {
				close(ch)
			}
		})
	}

	return ch, cancel
}

// CloseAll закрывает все активные подписки. Вызывается при остановке сервера,
// чтобы обработчики watch завершились до закрытия соединений.
func (s *ParticipantService) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for programID, set := range s.watchers {
		for id, ch := range set {
			delete(set, id)
			close(ch)
		}
		delete(s.watchers, programID)
	}
}

// WatcherCount возвращает число активных подписок на программу
func (s *ParticipantService) WatcherCount(programID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[programID])
}

// NotifyChanged пересчитывает срез участников и рассылает его подписчикам.
// Вызывается после локального вступления и из обработчика событий Kafka.
// Медленный подписчик получает только последний срез: старое значение
// вытесняется из буфера канала.
func (s *ParticipantService) NotifyChanged(ctx context.Context, programID string) {
	s.mu.RLock()
	hasWatchers := len(s.watchers[programID]) > 0
	s.mu.RUnlock()
	if !hasWatchers {
		return
	}

	snapshot, err := s.Snapshot(ctx, programID)
	if err != nil {
		s.log.WithError(err).WithField("program_id", programID).Error("Failed to build participants snapshot")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers[programID] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
