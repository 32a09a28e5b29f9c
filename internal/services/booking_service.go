package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/apperror"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/google/uuid"
)

// bookingEventPublisher публикует событие создания бронирования.
type bookingEventPublisher interface {
	PublishBookingCreated(booking *models.Booking) error
}

// BookingService представляет сервис бронирований.
// Скидка программы и агентская комиссия фиксируются в одной транзакции
// с инкрементом ordersCount в документе программы.
type BookingService struct {
	db                *database.DB
	log               *logger.Logger
	events            bookingEventPublisher
	commissionPercent float64
}

// NewBookingService создает новый экземпляр сервиса бронирований
func NewBookingService(db *database.DB, log *logger.Logger, events bookingEventPublisher, commissionPercent float64) *BookingService {
	return &BookingService{
		db:                db,
		log:               log,
		events:            events,
		commissionPercent: commissionPercent,
	}
}

// CreateBooking создает бронирование, применяя скидку программы
func (s *BookingService) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error) {
	if req == nil || req.UserID == "" {
		return nil, apperror.Validation("user_id is required", nil)
	}
	if req.VehicleModelID == "" || req.StationID == "" {
		return nil, apperror.Validation("vehicle_model_id and station_id are required", nil)
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, apperror.Validation("end_date must be after start_date", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dayPrice float64
	if err := tx.QueryRowContext(ctx, `SELECT day_price FROM vehicle_models WHERE id = $1`, req.VehicleModelID).Scan(&dayPrice); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("vehicle model not found", err)
		}
		return nil, fmt.Errorf("failed to get vehicle model: %w", err)
	}

	basePrice := req.BasePrice
	if basePrice <= 0 {
		basePrice = round2(dayPrice * float64(rentalDays(req.StartDate, req.EndDate)))
	}

	var discountAmount, commissionAmount float64
	if req.ProgramID != nil && *req.ProgramID != "" {
		discountAmount, commissionAmount, err = s.applyProgramWithTx(ctx, tx, *req.ProgramID, req.VehicleModelID, req.AgentUserID, basePrice)
		if err != nil {
			return nil, err
		}
	}

	totalPrice := round2(basePrice - discountAmount)

	now := time.Now()
	booking := &models.Booking{
		ID:               uuid.New(),
		UserID:           req.UserID,
		VehicleModelID:   req.VehicleModelID,
		StationID:        req.StationID,
		ProgramID:        req.ProgramID,
		AgentUserID:      req.AgentUserID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		BasePrice:        basePrice,
		DiscountAmount:   discountAmount,
		CommissionAmount: commissionAmount,
		TotalPrice:       totalPrice,
		Status:           models.BookingStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	query := `
		INSERT INTO bookings (id, user_id, vehicle_model_id, station_id, program_id, agent_user_id, start_date, end_date, base_price, discount_amount, commission_amount, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if _, err := tx.ExecContext(ctx, query, booking.ID, booking.UserID, booking.VehicleModelID, booking.StationID,
		booking.ProgramID, booking.AgentUserID, booking.StartDate, booking.EndDate, booking.BasePrice,
		booking.DiscountAmount, booking.CommissionAmount, booking.TotalPrice, booking.Status, booking.CreatedAt, booking.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishBookingCreated(booking); err != nil {
			s.log.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to publish booking created event")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"booking_id":  booking.ID,
		"user_id":     booking.UserID,
		"total_price": booking.TotalPrice,
	}).Info("Booking created")

	return booking, nil
}

// applyProgramWithTx проверяет программу, вычисляет скидку по модели и
// комиссию агента, увеличивает ordersCount внутри той же транзакции.
func (s *BookingService) applyProgramWithTx(ctx context.Context, tx *sql.Tx, programID, vehicleModelID string, agentUserID *string, basePrice float64) (float64, float64, error) {
	var data []byte
	if err := tx.QueryRowContext(ctx, `SELECT doc FROM programs WHERE id = $1 FOR UPDATE`, programID).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, apperror.NotFound("program not found", err)
		}
		return 0, 0, fmt.Errorf("failed to get program: %w", err)
	}

	doc, err := unmarshalDoc(data)
	if err != nil {
		return 0, 0, err
	}
	program := NormalizeProgramDoc(programID, doc)

	if !IsProgramActiveNow(program, time.Now()) {
		return 0, 0, apperror.Conflict("program is not active", nil)
	}

	var discount *models.ModelDiscount
	for i := range program.ModelDiscounts {
		if program.ModelDiscounts[i].ModelID == vehicleModelID {
			discount = &program.ModelDiscounts[i]
			break
		}
	}
	if discount == nil {
		return 0, 0, apperror.Validation("program has no discount for this vehicle model", nil)
	}

	discountAmount := calculateModelDiscount(discount, basePrice)

	var commissionAmount float64
	if program.Type == models.ProgramTypeAgent && agentUserID != nil && *agentUserID != "" {
		commissionAmount = round2((basePrice - discountAmount) * s.commissionPercent / 100)
	}

	bumpQuery := `
		UPDATE programs
		SET doc = jsonb_set(doc, '{ordersCount}', to_jsonb(COALESCE((doc->>'ordersCount')::int, 0) + 1), true)
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, bumpQuery, programID); err != nil {
		return 0, 0, fmt.Errorf("failed to bump program orders count: %w", err)
	}

	return discountAmount, commissionAmount, nil
}

// calculateModelDiscount возвращает сумму скидки, ограниченную базовой ценой
func calculateModelDiscount(discount *models.ModelDiscount, basePrice float64) float64 {
	var amount float64
	switch discount.DiscountType {
	case models.DiscountTypeFixed:
		amount = discount.DiscountValue
	case models.DiscountTypePercentage:
		amount = basePrice * discount.DiscountValue / 100
	}
	if amount < 0 {
		amount = 0
	}
	if amount > basePrice {
		amount = basePrice
	}
	return round2(amount)
}

// rentalDays считает число оплачиваемых суток, минимум одни
func rentalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetBooking получает бронирование по идентификатору
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `
		SELECT id, user_id, vehicle_model_id, station_id, program_id, agent_user_id, start_date, end_date, base_price, discount_amount, commission_amount, total_price, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID, &booking.UserID, &booking.VehicleModelID, &booking.StationID, &booking.ProgramID,
		&booking.AgentUserID, &booking.StartDate, &booking.EndDate, &booking.BasePrice, &booking.DiscountAmount,
		&booking.CommissionAmount, &booking.TotalPrice, &booking.Status, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("booking not found", err)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// GetBookings возвращает список бронирований с фильтрацией
func (s *BookingService) GetBookings(ctx context.Context, userID, programID *string, limit, offset int) ([]*models.Booking, error) {
	query := `
		SELECT id, user_id, vehicle_model_id, station_id, program_id, agent_user_id, start_date, end_date, base_price, discount_amount, commission_amount, total_price, status, created_at, updated_at
		FROM bookings
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if userID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *userID)
		argIndex++
	}
	if programID != nil {
		query += fmt.Sprintf(" AND program_id = $%d", argIndex)
		args = append(args, *programID)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking := &models.Booking{}
		if err := rows.Scan(&booking.ID, &booking.UserID, &booking.VehicleModelID, &booking.StationID, &booking.ProgramID,
			&booking.AgentUserID, &booking.StartDate, &booking.EndDate, &booking.BasePrice, &booking.DiscountAmount,
			&booking.CommissionAmount, &booking.TotalPrice, &booking.Status, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}
