package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

// TechnicianHandler обрабатывает техников и выезды на станции
type TechnicianHandler struct {
	technicianService TechnicianService
	dispatchService   DispatchService
	log               *logger.Logger
}

// NewTechnicianHandler создает новый обработчик техников
func NewTechnicianHandler(technicianService TechnicianService, dispatchService DispatchService, log *logger.Logger) *TechnicianHandler {
	return &TechnicianHandler{
		technicianService: technicianService,
		dispatchService:   dispatchService,
		log:               log,
	}
}

// Technicians обрабатывает коллекцию техников
func (h *TechnicianHandler) Technicians(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req models.CreateTechnicianRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		technician, err := h.technicianService.CreateTechnician(r.Context(), &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to create technician")
			return
		}
		writeJSONResponse(w, http.StatusCreated, technician)
	case http.MethodGet:
		query := r.URL.Query()

		var status *models.TechnicianStatus
		if statusStr := query.Get("status"); statusStr != "" {
			s := models.TechnicianStatus(statusStr)
			status = &s
		}

		limit := 50 // По умолчанию
		if limitStr := query.Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
				limit = l
			}
		}
		offset := 0
		if offsetStr := query.Get("offset"); offsetStr != "" {
			if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
				offset = o
			}
		}

		technicians, err := h.technicianService.GetTechnicians(r.Context(), status, limit, offset)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get technicians")
			return
		}
		writeJSONResponse(w, http.StatusOK, technicians)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// GetTechnician возвращает техника по ID
func (h *TechnicianHandler) GetTechnician(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/technicians/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid technician ID")
		return
	}

	technician, err := h.technicianService.GetTechnician(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get technician")
		return
	}

	writeJSONResponse(w, http.StatusOK, technician)
}

// UpdateTechnicianStatus обновляет статус и координаты техника
func (h *TechnicianHandler) UpdateTechnicianStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/technicians/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid technician ID")
		return
	}

	var req models.UpdateTechnicianStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.technicianService.UpdateTechnicianStatus(r.Context(), id, &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to update technician status")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Technician status updated successfully"})
}

// DispatchTechnician автоматически назначает техника на заявку станции
func (h *TechnicianHandler) DispatchTechnician(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stationID, err := extractIDFromPath(r.URL.Path, "/api/stations/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid station ID")
		return
	}

	var req models.CreateDispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dispatch, err := h.dispatchService.AutoAssign(r.Context(), stationID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to dispatch technician")
		return
	}

	h.log.WithField("dispatch_id", dispatch.ID).WithField("station_id", stationID).Info("Technician dispatched successfully")
	writeJSONResponse(w, http.StatusCreated, dispatch)
}
