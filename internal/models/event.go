package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события
type EventType string

const (
	EventTypeProgramCreated       EventType = "program.created"
	EventTypeProgramStatusChanged EventType = "program.status_changed"
	EventTypeParticipantJoined    EventType = "participant.joined"
	EventTypeBookingCreated       EventType = "booking.created"
	EventTypeTechnicianAssigned   EventType = "technician.assigned"
)

// Event представляет событие системы, публикуемое в Kafka
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       EventType              `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}
