package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus представляет статус бронирования
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking представляет бронирование транспорта.
// Если указана программа, скидка по модели и агентская комиссия
// фиксируются в момент создания.
type Booking struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	UserID           string        `json:"user_id" db:"user_id"`
	VehicleModelID   string        `json:"vehicle_model_id" db:"vehicle_model_id"`
	StationID        string        `json:"station_id" db:"station_id"`
	ProgramID        *string       `json:"program_id,omitempty" db:"program_id"`
	AgentUserID      *string       `json:"agent_user_id,omitempty" db:"agent_user_id"`
	StartDate        time.Time     `json:"start_date" db:"start_date"`
	EndDate          time.Time     `json:"end_date" db:"end_date"`
	BasePrice        float64       `json:"base_price" db:"base_price"`
	DiscountAmount   float64       `json:"discount_amount" db:"discount_amount"`
	CommissionAmount float64       `json:"commission_amount" db:"commission_amount"`
	TotalPrice       float64       `json:"total_price" db:"total_price"`
	Status           BookingStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateBookingRequest представляет запрос на создание бронирования
type CreateBookingRequest struct {
	UserID         string    `json:"user_id"`
	VehicleModelID string    `json:"vehicle_model_id"`
	StationID      string    `json:"station_id"`
	ProgramID      *string   `json:"program_id,omitempty"`
	AgentUserID    *string   `json:"agent_user_id,omitempty"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	BasePrice      float64   `json:"base_price"`
}
