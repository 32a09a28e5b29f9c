package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Константы
const (
	defaultCacheTTL = 15 * time.Minute
	// Опции завязаны на состав программ; держим их в кеше недолго
	optionsCacheTTL = time.Minute
)

// ErrorResponse представляет структуру ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSONResponse отправляет JSON ответ
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse отправляет ответ с ошибкой
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	writeJSONResponse(w, statusCode, response)
}

// extractIDFromPath извлекает строковый ID из пути URL.
// Идентификаторы программ и справочников приходят из внешних систем и не обязаны быть UUID.
func extractIDFromPath(path, prefix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("invalid path format")
	}

	idStr := strings.TrimPrefix(path, prefix)

	// Убираем возможный суффикс (например, /join или /participants)
	parts := strings.Split(idStr, "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", fmt.Errorf("missing ID in path")
	}

	return parts[0], nil
}

// extractUUIDFromPath извлекает UUID из пути URL
func extractUUIDFromPath(path, prefix string) (uuid.UUID, error) {
	idStr, err := extractIDFromPath(path, prefix)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	return id, nil
}
