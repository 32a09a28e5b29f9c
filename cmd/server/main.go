package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/handlers"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/kafka"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/redis"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/services"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB
	redis        *redis.Client
	producer     *kafka.Producer
	consumer     *kafka.Consumer
	participants *services.ParticipantService
	mux          *http.ServeMux
	server       *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting rental program server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	app.participants.CloseAll()
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	geocodingService := services.NewGeocodingService(redisClient, log, &cfg.Geocoding)
	catalogService := services.NewCatalogService(db, log, geocodingService)
	programService := services.NewProgramService(db, redisClient, log, producer)
	participantService := services.NewParticipantService(db, log, producer)
	optionService := services.NewOptionService(db, catalogService, log)
	bookingService := services.NewBookingService(db, log, producer, cfg.Commission.AgentPercent)
	technicianService := services.NewTechnicianService(db, log)
	dispatchService := services.NewDispatchService(db, technicianService, catalogService, log, producer)
	analyticsService := services.NewAnalyticsService(db, redisClient, log, &cfg.Analytics)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	programHandler := handlers.NewProgramHandler(programService, participantService, log)
	optionHandler := handlers.NewOptionHandler(optionService, redisClient, log)
	catalogHandler := handlers.NewCatalogHandler(catalogService, log)
	bookingHandler := handlers.NewBookingHandler(bookingService, redisClient, log)
	technicianHandler := handlers.NewTechnicianHandler(technicianService, dispatchService, log)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, log, &cfg.Analytics)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	registerEventHandlers(consumer, participantService, redisClient, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(programHandler, optionHandler, catalogHandler, bookingHandler, technicianHandler, healthHandler, analyticsHandler, rateLimitHandler, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:          cfg,
		log:          log,
		db:           db,
		redis:        redisClient,
		producer:     producer,
		consumer:     consumer,
		participants: participantService,
		mux:          mux,
		server:       server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(programHandler *handlers.ProgramHandler, optionHandler *handlers.OptionHandler, catalogHandler *handlers.CatalogHandler, bookingHandler *handlers.BookingHandler, technicianHandler *handlers.TechnicianHandler, healthHandler *handlers.HealthHandler, analyticsHandler *handlers.AnalyticsHandler, rateLimitHandler *handlers.RateLimitHandler, rateLimiter *services.RateLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(rateLimiter, log, h))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Program endpoints
	mux.HandleFunc("/api/programs", applyAPI(handleProgramsRoute(programHandler)))
	mux.HandleFunc("/api/programs/", applyAPI(handleProgramRoute(programHandler)))

	// Agent options
	mux.HandleFunc("/api/agents/", applyAPI(optionHandler.GetAgentOptions))

	// Catalog endpoints
	mux.HandleFunc("/api/companies", applyAPI(catalogHandler.Companies))
	mux.HandleFunc("/api/companies/", applyAPI(catalogHandler.Company))
	mux.HandleFunc("/api/stations", applyAPI(catalogHandler.Stations))
	mux.HandleFunc("/api/stations/", applyAPI(handleStationRoute(catalogHandler, technicianHandler)))
	mux.HandleFunc("/api/vehicle-models", applyAPI(catalogHandler.VehicleModels))
	mux.HandleFunc("/api/vehicle-models/", applyAPI(catalogHandler.VehicleModel))

	// Booking endpoints
	mux.HandleFunc("/api/bookings", applyAPI(handleBookingsRoute(bookingHandler)))
	mux.HandleFunc("/api/bookings/", applyAPI(bookingHandler.GetBooking))

	// Technician endpoints
	mux.HandleFunc("/api/technicians", applyAPI(technicianHandler.Technicians))
	mux.HandleFunc("/api/technicians/", applyAPI(handleTechnicianRoute(technicianHandler)))

	// Analytics endpoints
	mux.HandleFunc("/api/analytics/programs", applyAPI(analyticsHandler.GetProgramKPIs))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(rateLimitHandler.Status))

	return mux
}

// handleProgramsRoute обрабатывает маршруты для коллекции программ
func handleProgramsRoute(handler *handlers.ProgramHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetPrograms(w, r)
		case http.MethodPost:
			handler.CreateProgram(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleProgramRoute обрабатывает маршруты для отдельной программы
func handleProgramRoute(handler *handlers.ProgramHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/join") {
			// Идемпотентное вступление в программу
			if r.Method == http.MethodPost {
				handler.Join(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else if strings.HasSuffix(r.URL.Path, "/participants/watch") {
			// Live-подписка на срез участников (SSE)
			if r.Method == http.MethodGet {
				handler.WatchParticipants(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else if strings.HasSuffix(r.URL.Path, "/participants") {
			if r.Method == http.MethodGet {
				handler.GetParticipants(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else if strings.HasSuffix(r.URL.Path, "/end") || strings.HasSuffix(r.URL.Path, "/archive") || strings.HasSuffix(r.URL.Path, "/cancel") {
			// Переходы жизненного цикла программы
			if r.Method == http.MethodPost {
				handler.Transition(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			switch r.Method {
			case http.MethodGet:
				handler.GetProgram(w, r)
			case http.MethodPut, http.MethodPatch:
				handler.UpdateProgram(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleStationRoute обрабатывает маршруты для отдельной станции
func handleStationRoute(catalogHandler *handlers.CatalogHandler, technicianHandler *handlers.TechnicianHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/dispatch") {
			// Автоназначение техника на заявку станции
			if r.Method == http.MethodPost {
				technicianHandler.DispatchTechnician(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			if r.Method == http.MethodGet {
				catalogHandler.Station(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleBookingsRoute обрабатывает маршруты для коллекции бронирований
func handleBookingsRoute(handler *handlers.BookingHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetBookings(w, r)
		case http.MethodPost:
			handler.CreateBooking(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleTechnicianRoute обрабатывает маршруты для отдельного техника
func handleTechnicianRoute(handler *handlers.TechnicianHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			// Обновление статуса и координат техника
			if r.Method == http.MethodPut {
				handler.UpdateTechnicianStatus(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			if r.Method == http.MethodGet {
				handler.GetTechnician(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, participants *services.ParticipantService, redisClient *redis.Client, log *logger.Logger) {
	// Вступление участника: пересчитываем срез и уведомляем подписчиков watch.
	// Событие может прийти и от другого инстанса сервиса.
	consumer.RegisterHandler(models.EventTypeParticipantJoined, func(ctx context.Context, event *models.Event) error {
		programID, _ := event.Payload["program_id"].(string)
		if programID == "" {
			log.WithField("event_id", event.ID).Warn("Participant joined event without program_id")
			return nil
		}
		participants.NotifyChanged(ctx, programID)
		return nil
	})

	// Смена статуса программы: сбрасываем кеш программы и опций агентов.
	consumer.RegisterHandler(models.EventTypeProgramStatusChanged, func(ctx context.Context, event *models.Event) error {
		programID, _ := event.Payload["program_id"].(string)
		if programID == "" {
			return nil
		}
		_ = redisClient.Delete(ctx, redis.GenerateKey(redis.KeyPrefixProgram, programID))
		_ = redisClient.DeleteByPrefix(ctx, redis.KeyPrefixOptions)
		log.WithField("program_id", programID).Debug("Program caches invalidated after status change")
		return nil
	})

	consumer.RegisterHandler(models.EventTypeBookingCreated, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing booking created event")
		return nil
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
