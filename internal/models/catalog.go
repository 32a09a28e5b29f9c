package models

import "time"

// Company представляет прокатную компанию (арендодателя).
type Company struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateCompanyRequest представляет запрос на создание компании.
type CreateCompanyRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Station представляет станцию проката.
type Station struct {
	ID        string    `json:"id" db:"id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Lat       *float64  `json:"lat,omitempty" db:"lat"`
	Lon       *float64  `json:"lon,omitempty" db:"lon"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateStationRequest представляет запрос на создание станции.
type CreateStationRequest struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
}

// VehicleModel представляет модель транспортного средства.
type VehicleModel struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Brand     string    `json:"brand,omitempty" db:"brand"`
	DayPrice  float64   `json:"day_price" db:"day_price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateVehicleModelRequest представляет запрос на создание модели.
type CreateVehicleModelRequest struct {
	Name     string  `json:"name"`
	Brand    string  `json:"brand,omitempty"`
	DayPrice float64 `json:"day_price"`
}
