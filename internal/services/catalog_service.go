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
	"github.com/lib/pq"
)

// catalogBatchSize ограничивает размер пакета при выборке по списку
// идентификаторов.
const catalogBatchSize = 10

// addressGeocoder определяет координаты по адресу станции.
type addressGeocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

// CatalogService представляет справочник компаний, станций и моделей
type CatalogService struct {
	db       *database.DB
	log      *logger.Logger
	geocoder addressGeocoder
}

// NewCatalogService создает новый экземпляр сервиса справочника
func NewCatalogService(db *database.DB, log *logger.Logger, geocoder addressGeocoder) *CatalogService {
	return &CatalogService{
		db:       db,
		log:      log,
		geocoder: geocoder,
	}
}

// CreateCompany создает компанию
func (s *CatalogService) CreateCompany(ctx context.Context, req *models.CreateCompanyRequest) (*models.Company, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("company name is required", nil)
	}

	now := time.Now()
	company := &models.Company{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO companies (id, name, email, phone, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, company.ID, company.Name, company.Email, company.Phone, company.CreatedAt, company.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	s.log.WithField("company_id", company.ID).Info("Company created")
	return company, nil
}

// GetCompany получает компанию по идентификатору
func (s *CatalogService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	company := &models.Company{}
	query := `SELECT id, name, email, phone, created_at, updated_at FROM companies WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&company.ID, &company.Name, &company.Email, &company.Phone, &company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("company not found", err)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// GetCompanies возвращает список компаний
func (s *CatalogService) GetCompanies(ctx context.Context) ([]*models.Company, error) {
	query := `SELECT id, name, email, phone, created_at, updated_at FROM companies ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		company := &models.Company{}
		if err := rows.Scan(&company.ID, &company.Name, &company.Email, &company.Phone, &company.CreatedAt, &company.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}
	return companies, nil
}

// GetCompaniesByIDs выбирает компании пакетами по идентификаторам.
// Ненайденные идентификаторы просто отсутствуют в результате.
func (s *CatalogService) GetCompaniesByIDs(ctx context.Context, ids []string) (map[string]*models.Company, error) {
	result := make(map[string]*models.Company)
	for _, batch := range chunkIDs(ids, catalogBatchSize) {
		query := `SELECT id, name, email, phone, created_at, updated_at FROM companies WHERE id = ANY($1)`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(batch))
		if err != nil {
			return nil, fmt.Errorf("failed to get companies batch: %w", err)
		}
		for rows.Next() {
			company := &models.Company{}
			if err := rows.Scan(&company.ID, &company.Name, &company.Email, &company.Phone, &company.CreatedAt, &company.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan company: %w", err)
			}
			result[company.ID] = company
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate companies batch: %w", err)
		}
		rows.Close()
	}
	return result, nil
}

// CreateStation создает станцию проката и геокодирует её адрес
func (s *CatalogService) CreateStation(ctx context.Context, req *models.CreateStationRequest) (*models.Station, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("station name is required", nil)
	}
	if req.CompanyID == "" {
		return nil, apperror.Validation("company_id is required", nil)
	}

	now := time.Now()
	station := &models.Station{
		ID:        uuid.New().String(),
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Address:   req.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.geocoder != nil && req.Address != "" {
		lat, lon, err := s.geocoder.Geocode(ctx, req.Address)
		if err != nil {
			s.log.WithError(err).WithField("address", req.Address).Warn("Failed to geocode station address")
		} else {
			station.Lat = &lat
			station.Lon = &lon
		}
	}

	query := `INSERT INTO stations (id, company_id, name, address, lat, lon, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.db.ExecContext(ctx, query, station.ID, station.CompanyID, station.Name, station.Address, station.Lat, station.Lon, station.CreatedAt, station.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return nil, apperror.Validation("company does not exist", err)
		}
		return nil, fmt.Errorf("failed to create station: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"station_id": station.ID,
		"company_id": station.CompanyID,
	}).Info("Station created")
	return station, nil
}

// GetStation получает станцию по идентификатору
func (s *CatalogService) GetStation(ctx context.Context, id string) (*models.Station, error) {
	station := &models.Station{}
	query := `SELECT id, company_id, name, address, lat, lon, created_at, updated_at FROM stations WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&station.ID, &station.CompanyID, &station.Name, &station.Address, &station.Lat, &station.Lon, &station.CreatedAt, &station.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("station not found", err)
		}
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return station, nil
}

// GetStations возвращает список станций, при необходимости по компании
func (s *CatalogService) GetStations(ctx context.Context, companyID *string) ([]*models.Station, error) {
	query := `SELECT id, company_id, name, address, lat, lon, created_at, updated_at FROM stations`
	args := []interface{}{}
	if companyID != nil {
		query += ` WHERE company_id = $1`
		args = append(args, *companyID)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get stations: %w", err)
	}
	defer rows.Close()

	var stations []*models.Station
	for rows.Next() {
		station := &models.Station{}
		if err := rows.Scan(&station.ID, &station.CompanyID, &station.Name, &station.Address, &station.Lat, &station.Lon, &station.CreatedAt, &station.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stations: %w", err)
	}
	return stations, nil
}

// GetStationsByIDs выбирает станции пакетами по идентификаторам
func (s *CatalogService) GetStationsByIDs(ctx context.Context, ids []string) (map[string]*models.Station, error) {
	result := make(map[string]*models.Station)
	for _, batch := range chunkIDs(ids, catalogBatchSize) {
		query := `SELECT id, company_id, name, address, lat, lon, created_at, updated_at FROM stations WHERE id = ANY($1)`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(batch))
		if err != nil {
			return nil, fmt.Errorf("failed to get stations batch: %w", err)
		}
		for rows.Next() {
			station := &models.Station{}
			if err := rows.Scan(&station.ID, &station.CompanyID, &station.Name, &station.Address, &station.Lat, &station.Lon, &station.CreatedAt, &station.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan station: %w", err)
			}
			result[station.ID] = station
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate stations batch: %w", err)
		}
		rows.Close()
	}
	return result, nil
}

// CreateVehicleModel создает модель транспорта
func (s *CatalogService) CreateVehicleModel(ctx context.Context, req *models.CreateVehicleModelRequest) (*models.VehicleModel, error) {
	if req == nil || req.Name == "" {
		return nil, apperror.Validation("model name is required", nil)
	}
	if req.DayPrice < 0 {
		return nil, apperror.Validation("day_price must not be negative", nil)
	}

	now := time.Now()
	model := &models.VehicleModel{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Brand:     req.Brand,
		DayPrice:  req.DayPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO vehicle_models (id, name, brand, day_price, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, model.ID, model.Name, model.Brand, model.DayPrice, model.CreatedAt, model.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create vehicle model: %w", err)
	}

	s.log.WithField("model_id", model.ID).Info("Vehicle model created")
	return model, nil
}

// GetVehicleModel получает модель по идентификатору
func (s *CatalogService) GetVehicleModel(ctx context.Context, id string) (*models.VehicleModel, error) {
	model := &models.VehicleModel{}
	query := `SELECT id, name, brand, day_price, created_at, updated_at FROM vehicle_models WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&model.ID, &model.Name, &model.Brand, &model.DayPrice, &model.CreatedAt, &model.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("vehicle model not found", err)
		}
		return nil, fmt.Errorf("failed to get vehicle model: %w", err)
	}
	return model, nil
}

// GetVehicleModels возвращает список моделей
func (s *CatalogService) GetVehicleModels(ctx context.Context) ([]*models.VehicleModel, error) {
	query := `SELECT id, name, brand, day_price, created_at, updated_at FROM vehicle_models ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle models: %w", err)
	}
	defer rows.Close()

	var vehicleModels []*models.VehicleModel
	for rows.Next() {
		model := &models.VehicleModel{}
		if err := rows.Scan(&model.ID, &model.Name, &model.Brand, &model.DayPrice, &model.CreatedAt, &model.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle model: %w", err)
		}
		vehicleModels = append(vehicleModels, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicle models: %w", err)
	}
	return vehicleModels, nil
}

// GetVehicleModelsByIDs выбирает модели пакетами по идентификаторам
func (s *CatalogService) GetVehicleModelsByIDs(ctx context.Context, ids []string) (map[string]*models.VehicleModel, error) {
	result := make(map[string]*models.VehicleModel)
	for _, batch := range chunkIDs(ids, catalogBatchSize) {
		query := `SELECT id, name, brand, day_price, created_at, updated_at FROM vehicle_models WHERE id = ANY($1)`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(batch))
		if err != nil {
			return nil, fmt.Errorf("failed to get vehicle models batch: %w", err)
		}
		for rows.Next() {
			model := &models.VehicleModel{}
			if err := rows.Scan(&model.ID, &model.Name, &model.Brand, &model.DayPrice, &model.CreatedAt, &model.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan vehicle model: %w", err)
			}
			result[model.ID] = model
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to iterate vehicle models batch: %w", err)
		}
		rows.Close()
	}
	return result, nil
}

// chunkIDs режет список идентификаторов на пакеты фиксированного размера
func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for size < len(ids) {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}
