package handlers

import (
	"context"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/google/uuid"
)

// ----- Programs -----

type ProgramService interface {
	CreateProgram(ctx context.Context, doc map[string]interface{}) (*models.Program, error)
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	GetPrograms(ctx context.Context, filter *models.ProgramFilter) ([]*models.Program, error)
	UpdateProgram(ctx context.Context, id string, patch map[string]interface{}) (*models.Program, error)
	EndProgram(ctx context.Context, id string) (*models.Program, error)
	ArchiveProgram(ctx context.Context, id string) (*models.Program, error)
	CancelProgram(ctx context.Context, id string) (*models.Program, error)
}

type ParticipantService interface {
	Join(ctx context.Context, programID string, req *models.JoinProgramRequest) (*models.JoinProgramResult, error)
	GetParticipants(ctx context.Context, programID string) ([]*models.ProgramParticipant, error)
	Snapshot(ctx context.Context, programID string) (*models.ParticipantsSnapshot, error)
	Subscribe(programID string) (<-chan *models.ParticipantsSnapshot, func())
}

type OptionService interface {
	BuildAgentOptions(ctx context.Context, agentUserID string) (*models.AgentOptions, error)
}

// ----- Catalog -----

type CatalogService interface {
	CreateCompany(ctx context.Context, req *models.CreateCompanyRequest) (*models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetCompanies(ctx context.Context) ([]*models.Company, error)
	CreateStation(ctx context.Context, req *models.CreateStationRequest) (*models.Station, error)
	GetStation(ctx context.Context, id string) (*models.Station, error)
	GetStations(ctx context.Context, companyID *string) ([]*models.Station, error)
	CreateVehicleModel(ctx context.Context, req *models.CreateVehicleModelRequest) (*models.VehicleModel, error)
	GetVehicleModel(ctx context.Context, id string) (*models.VehicleModel, error)
	GetVehicleModels(ctx context.Context) ([]*models.VehicleModel, error)
}

// ----- Bookings -----

type BookingService interface {
	CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetBookings(ctx context.Context, userID, programID *string, limit, offset int) ([]*models.Booking, error)
}

// ----- Technicians -----

type TechnicianService interface {
	CreateTechnician(ctx context.Context, req *models.CreateTechnicianRequest) (*models.Technician, error)
	GetTechnician(ctx context.Context, technicianID uuid.UUID) (*models.Technician, error)
	UpdateTechnicianStatus(ctx context.Context, technicianID uuid.UUID, req *models.UpdateTechnicianStatusRequest) error
	GetTechnicians(ctx context.Context, status *models.TechnicianStatus, limit, offset int) ([]*models.Technician, error)
}

type DispatchService interface {
	AutoAssign(ctx context.Context, stationID string, req *models.CreateDispatchRequest) (*models.Dispatch, error)
}

// ----- Analytics -----

type AnalyticsProvider interface {
	GetProgramKPIs(ctx context.Context, filter *models.AnalyticsFilter) (*models.ProgramKPIs, error)
}

// ----- Ambient -----

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
