package handlers

import (
	"net/http"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/redis"
)

// OptionHandler отдает форм-опции для агентского кабинета
type OptionHandler struct {
	optionService OptionService
	redisClient   RedisClient
	log           *logger.Logger
}

// NewOptionHandler создает новый обработчик опций
func NewOptionHandler(optionService OptionService, redisClient RedisClient, log *logger.Logger) *OptionHandler {
	return &OptionHandler{
		optionService: optionService,
		redisClient:   redisClient,
		log:           log,
	}
}

// GetAgentOptions возвращает опции по активным программам агента
func (h *OptionHandler) GetAgentOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	agentID, err := extractIDFromPath(r.URL.Path, "/api/agents/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid agent ID")
		return
	}

	cacheKey := redis.GenerateKey(redis.KeyPrefixOptions, agentID)
	if h.redisClient != nil {
		var cached models.AgentOptions
		if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
			h.log.WithField("agent_id", agentID).Debug("Agent options retrieved from cache")
			writeJSONResponse(w, http.StatusOK, &cached)
			return
		}
	}

	options, err := h.optionService.BuildAgentOptions(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build agent options")
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Set(r.Context(), cacheKey, options, optionsCacheTTL); err != nil {
			h.log.WithError(err).WithField("agent_id", agentID).Debug("Failed to cache agent options")
		}
	}

	writeJSONResponse(w, http.StatusOK, options)
}
