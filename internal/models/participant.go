package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole описывает роль пользователя в программе.
type ParticipantRole string

const (
	ParticipantRoleAgent    ParticipantRole = "agent"
	ParticipantRoleCustomer ParticipantRole = "customer"
	ParticipantRoleStaff    ParticipantRole = "staff"
)

// ParticipantStatusJoined — статус по умолчанию при вступлении.
const ParticipantStatusJoined = "joined"

// ProgramParticipant представляет участие одного пользователя в одной программе.
// Пара (program_id, user_id) уникальна на уровне хранилища.
type ProgramParticipant struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ProgramID string          `json:"program_id" db:"program_id"`
	UserID    string          `json:"user_id" db:"user_id"`
	UserRole  ParticipantRole `json:"user_role" db:"user_role"`
	Status    string          `json:"status" db:"status"`
	JoinedAt  time.Time       `json:"joined_at" db:"joined_at"`
}

// JoinProgramRequest представляет запрос на вступление в программу.
type JoinProgramRequest struct {
	UserID   string          `json:"user_id"`
	UserRole ParticipantRole `json:"user_role"`
	Status   string          `json:"status,omitempty"` // по умолчанию joined
}

// JoinProgramResult описывает результат вступления.
// Already=true означает, что запись уже существовала и дубликат не создан.
type JoinProgramResult struct {
	Already            bool `json:"already"`
	Count              int  `json:"participants_count"`
	CountAuthoritative bool `json:"count_authoritative"`
}

// ParticipantsSnapshot — согласованный на момент выборки срез участников.
// CountAuthoritative=false означает фолбэк на длину списка после ошибки COUNT.
type ParticipantsSnapshot struct {
	ProgramID          string                `json:"program_id"`
	Participants       []*ProgramParticipant `json:"participants"`
	Count              int                   `json:"count"`
	CountAuthoritative bool                  `json:"count_authoritative"`
	GeneratedAt        time.Time             `json:"generated_at"`
}
