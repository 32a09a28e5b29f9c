package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

// CatalogHandler обрабатывает справочники: компании, станции, модели техники
type CatalogHandler struct {
	catalogService CatalogService
	log            *logger.Logger
}

// NewCatalogHandler создает новый обработчик справочников
func NewCatalogHandler(catalogService CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		log:            log,
	}
}

// Companies обрабатывает коллекцию компаний
func (h *CatalogHandler) Companies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req models.CreateCompanyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		company, err := h.catalogService.CreateCompany(r.Context(), &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to create company")
			return
		}
		writeJSONResponse(w, http.StatusCreated, company)
	case http.MethodGet:
		companies, err := h.catalogService.GetCompanies(r.Context())
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get companies")
			return
		}
		writeJSONResponse(w, http.StatusOK, companies)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Company возвращает компанию по ID
func (h *CatalogHandler) Company(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/companies/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	company, err := h.catalogService.GetCompany(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get company")
		return
	}

	writeJSONResponse(w, http.StatusOK, company)
}

// Stations обрабатывает коллекцию станций
func (h *CatalogHandler) Stations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req models.CreateStationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		station, err := h.catalogService.CreateStation(r.Context(), &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to create station")
			return
		}
		writeJSONResponse(w, http.StatusCreated, station)
	case http.MethodGet:
		var companyID *string
		if c := r.URL.Query().Get("company_id"); c != "" {
			companyID = &c
		}
		stations, err := h.catalogService.GetStations(r.Context(), companyID)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get stations")
			return
		}
		writeJSONResponse(w, http.StatusOK, stations)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Station возвращает станцию по ID
func (h *CatalogHandler) Station(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/stations/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid station ID")
		return
	}

	station, err := h.catalogService.GetStation(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get station")
		return
	}

	writeJSONResponse(w, http.StatusOK, station)
}

// VehicleModels обрабатывает коллекцию моделей техники
func (h *CatalogHandler) VehicleModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req models.CreateVehicleModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		model, err := h.catalogService.CreateVehicleModel(r.Context(), &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to create vehicle model")
			return
		}
		writeJSONResponse(w, http.StatusCreated, model)
	case http.MethodGet:
		list, err := h.catalogService.GetVehicleModels(r.Context())
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get vehicle models")
			return
		}
		writeJSONResponse(w, http.StatusOK, list)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// VehicleModel возвращает модель техники по ID
func (h *CatalogHandler) VehicleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/vehicle-models/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid vehicle model ID")
		return
	}

	model, err := h.catalogService.GetVehicleModel(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get vehicle model")
		return
	}

	writeJSONResponse(w, http.StatusOK, model)
}
