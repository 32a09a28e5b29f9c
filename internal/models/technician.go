package models

import (
	"time"

	"github.com/google/uuid"
)

// TechnicianStatus представляет статус техника
type TechnicianStatus string

const (
	TechnicianStatusAvailable TechnicianStatus = "available"
	TechnicianStatusBusy      TechnicianStatus = "busy"
	TechnicianStatusOffline   TechnicianStatus = "offline"
)

// Technician представляет выездного техника
type Technician struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	Name       string           `json:"name" db:"name"`
	Phone      string           `json:"phone" db:"phone"`
	Status     TechnicianStatus `json:"status" db:"status"`
	CurrentLat *float64         `json:"current_lat,omitempty" db:"current_lat"`
	CurrentLon *float64         `json:"current_lon,omitempty" db:"current_lon"`
	Rating     float64          `json:"rating" db:"rating"`
	TotalJobs  int              `json:"total_jobs" db:"total_jobs"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
	LastSeenAt *time.Time       `json:"last_seen_at,omitempty" db:"last_seen_at"`
}

// CreateTechnicianRequest представляет запрос на создание техника
type CreateTechnicianRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateTechnicianStatusRequest представляет запрос на обновление статуса техника
type UpdateTechnicianStatusRequest struct {
	Status     TechnicianStatus `json:"status"`
	CurrentLat *float64         `json:"current_lat,omitempty"`
	CurrentLon *float64         `json:"current_lon,omitempty"`
}

// DispatchStatus представляет статус выезда
type DispatchStatus string

const (
	DispatchStatusAssigned  DispatchStatus = "assigned"
	DispatchStatusCompleted DispatchStatus = "completed"
	DispatchStatusCancelled DispatchStatus = "cancelled"
)

// Dispatch представляет назначение техника на станцию по заявке.
type Dispatch struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	StationID    string         `json:"station_id" db:"station_id"`
	TechnicianID uuid.UUID      `json:"technician_id" db:"technician_id"`
	Issue        string         `json:"issue" db:"issue"`
	Status       DispatchStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// CreateDispatchRequest представляет заявку на выезд техника
type CreateDispatchRequest struct {
	Issue string `json:"issue"`
}
