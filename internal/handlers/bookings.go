package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/redis"
)

// BookingHandler обрабатывает бронирования техники
type BookingHandler struct {
	bookingService BookingService
	redisClient    RedisClient
	log            *logger.Logger
}

// NewBookingHandler создает новый обработчик бронирований
func NewBookingHandler(bookingService BookingService, redisClient RedisClient, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		redisClient:    redisClient,
		log:            log,
	}
}

// CreateBooking создает новое бронирование с применением условий программы
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.bookingService.CreateBooking(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create booking")
		return
	}

	if h.redisClient != nil {
		cacheKey := redis.GenerateKey(redis.KeyPrefixBooking, booking.ID.String())
		if err := h.redisClient.Set(r.Context(), cacheKey, booking, defaultCacheTTL); err != nil {
			h.log.WithError(err).WithField("booking_id", booking.ID).Debug("Failed to cache booking")
		}
		// Условия программы влияют на опции агента
		if booking.AgentUserID != nil {
			optionsKey := redis.GenerateKey(redis.KeyPrefixOptions, *booking.AgentUserID)
			_ = h.redisClient.Delete(r.Context(), optionsKey)
		}
	}

	h.log.WithField("booking_id", booking.ID).Info("Booking created successfully")
	writeJSONResponse(w, http.StatusCreated, booking)
}

// GetBooking получает бронирование по ID
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/bookings/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	cacheKey := redis.GenerateKey(redis.KeyPrefixBooking, id.String())
	if h.redisClient != nil {
		var cached models.Booking
		if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
			h.log.WithField("booking_id", id).Debug("Booking retrieved from cache")
			writeJSONResponse(w, http.StatusOK, &cached)
			return
		}
	}

	booking, err := h.bookingService.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get booking")
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Set(r.Context(), cacheKey, booking, defaultCacheTTL); err != nil {
			h.log.WithError(err).WithField("booking_id", id).Debug("Failed to cache booking")
		}
	}

	writeJSONResponse(w, http.StatusOK, booking)
}

// GetBookings получает список бронирований с фильтрацией
func (h *BookingHandler) GetBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()

	var userID *string
	if u := query.Get("user_id"); u != "" {
		userID = &u
	}
	var programID *string
	if p := query.Get("program_id"); p != "" {
		programID = &p
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

	bookings, err := h.bookingService.GetBookings(r.Context(), userID, programID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get bookings")
		return
	}

	writeJSONResponse(w, http.StatusOK, bookings)
}
