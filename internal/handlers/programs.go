package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

// ProgramHandler обрабатывает программы и участие в них
type ProgramHandler struct {
	programService     ProgramService
	participantService ParticipantService
	log                *logger.Logger
}

// NewProgramHandler создает новый обработчик программ
func NewProgramHandler(programService ProgramService, participantService ParticipantService, log *logger.Logger) *ProgramHandler {
	return &ProgramHandler{
		programService:     programService,
		participantService: participantService,
		log:                log,
	}
}

// CreateProgram создает новую программу из произвольного документа
func (h *ProgramHandler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	program, err := h.programService.CreateProgram(r.Context(), doc)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create program")
		return
	}

	writeJSONResponse(w, http.StatusCreated, program)
}

// GetProgram получает программу по ID
func (h *ProgramHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/programs/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid program ID")
		return
	}

	program, err := h.programService.GetProgram(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get program")
		return
	}

	writeJSONResponse(w, http.StatusOK, program)
}

// GetPrograms получает список программ с фильтрацией
func (h *ProgramHandler) GetPrograms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	filter := &models.ProgramFilter{}

	if typeStr := query.Get("type"); typeStr != "" {
		t := models.ProgramType(typeStr)
		filter.Type = &t
	}
	if companyID := query.Get("company_id"); companyID != "" {
		filter.CompanyID = &companyID
	}
	filter.ActiveOnly = query.Get("active") == "true"

	filter.Limit = 50 // По умолчанию
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			filter.Limit = l
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	programs, err := h.programService.GetPrograms(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get programs")
		return
	}

	writeJSONResponse(w, http.StatusOK, programs)
}

// UpdateProgram применяет частичное обновление к документу программы
func (h *ProgramHandler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/programs/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid program ID")
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	program, err := h.programService.UpdateProgram(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update program")
		return
	}

	writeJSONResponse(w, http.StatusOK, program)
}

// Transition выполняет смену статуса программы (end/archive/cancel)
func (h *ProgramHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/programs/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid program ID")
		return
	}

	action := lastPathSegment(r.URL.Path)

	var program *models.Program
	switch action {
	case "end":
		program, err = h.programService.EndProgram(r.Context(), id)
	case "archive":
		program, err = h.programService.ArchiveProgram(r.Context(), id)
	case "cancel":
		program, err = h.programService.CancelProgram(r.Context(), id)
	default:
		writeErrorResponse(w, http.StatusNotFound, "Unknown program action")
		return
	}

	if err != nil {
		writeServiceError(w, h.log, err, fmt.Sprintf("Failed to %s program", action))
		return
	}

	writeJSONResponse(w, http.StatusOK, program)
}

// JoinProgramResponse описывает ответ на вступление в программу
type JoinProgramResponse struct {
	OK                bool   `json:"ok"`
	Already           bool   `json:"already,omitempty"`
	ParticipantsCount int    `json:"participants_count,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Join выполняет идемпотентное вступление пользователя в программу
func (h *ProgramHandler) Join(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/programs/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid program ID")
		return
	}

	var req models.JoinProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, JoinProgramResponse{OK: false, Error: "invalid request body"})
		return
	}

	result, err := h.participantService.Join(r.Context(), id, &req)
	if err != nil {
		status := http.StatusInternalServerError
		message := "failed to join program"
		switch {
		case apperror.Is(err, apperror.KindNotFound):
			status = http.StatusNotFound
			message = apperror.ClientMessage(err, message)
		case apperror.Is(err, apperror.KindValidation):
			status = http.StatusBadRequest
			message = apperror.ClientMessage(err, message)
		default:
			h.log.WithError(err).WithField("program_id", id).Error("Failed to join program")
		}
		writeJSONResponse(w, status, JoinProgramResponse{OK: false, Error: message})
		return
	}

	writeJSONResponse(w, http.StatusOK, JoinProgramResponse{
		OK:                true,
		Already:           result.Already,
		ParticipantsCount: result.Count,
	})
}

// GetParticipants возвращает срез участников программы
func (h *ProgramHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/programs/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid program ID")
		return
	}

	snapshot, err := h.participantService.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get participants")
		return
	}

	writeJSONResponse(w, http.StatusOK, snapshot)
}

// WatchParticipants стримит изменения состава участников через Server-Sent Events.
// Первое событие содержит текущий срез, дальше приходят только обновления.
func (h *ProgramHandler) WatchParticipants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractIDFromPath(r.URL.Path, "/api/programs/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid program ID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	snapshot, err := h.participantService.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get participants")
		return
	}

	updates, cancel := h.participantService.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSEEvent(w, snapshot); err != nil {
		h.log.WithError(err).WithField("program_id", id).Debug("Watcher disconnected on initial snapshot")
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, update); err != nil {
				h.log.WithError(err).WithField("program_id", id).Debug("Watcher disconnected")
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, snapshot *models.ParticipantsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: participants\ndata: %s\n\n", data)
	return err
}

func lastPathSegment(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
