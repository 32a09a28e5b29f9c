package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создаёт нового продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания продюсера Kafka: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Продюсер Kafka создан")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// publishEvent сериализует событие и отправляет его в указанный топик
func (p *Producer) publishEvent(topic string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.WithError(err).WithField("topic", topic).Error("Ошибка отправки события")
		return fmt.Errorf("ошибка отправки события в Kafka: %w", err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":     topic,
		"type":      event.Type,
		"partition": partition,
		"offset":    offset,
	}).Debug("Событие отправлено")

	return nil
}

func newEvent(eventType models.EventType, payload map[string]interface{}) models.Event {
	return models.Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// PublishProgramCreated публикует событие создания программы
func (p *Producer) PublishProgramCreated(program *models.Program) error {
	event := newEvent(models.EventTypeProgramCreated, map[string]interface{}{
		"program_id": program.ID,
		"type":       program.Type,
		"title":      program.Title,
	})
	return p.publishEvent(p.topics.Programs, event)
}

// PublishProgramStatusChanged публикует событие смены статуса программы
func (p *Producer) PublishProgramStatusChanged(programID string, oldStatus, newStatus models.ProgramStatus) error {
	event := newEvent(models.EventTypeProgramStatusChanged, map[string]interface{}{
		"program_id": programID,
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	return p.publishEvent(p.topics.Programs, event)
}

// PublishParticipantJoined публикует событие присоединения участника
func (p *Producer) PublishParticipantJoined(programID, userID string, role models.ParticipantRole) error {
	event := newEvent(models.EventTypeParticipantJoined, map[string]interface{}{
		"program_id": programID,
		"user_id":    userID,
		"role":       role,
	})
	return p.publishEvent(p.topics.Participants, event)
}

// PublishBookingCreated публикует событие создания бронирования
func (p *Producer) PublishBookingCreated(booking *models.Booking) error {
	payload := map[string]interface{}{
		"booking_id":  booking.ID.String(),
		"user_id":     booking.UserID,
		"total_price": booking.TotalPrice,
	}
	if booking.ProgramID != nil {
		payload["program_id"] = *booking.ProgramID
	}
	event := newEvent(models.EventTypeBookingCreated, payload)
	return p.publishEvent(p.topics.Bookings, event)
}

// PublishTechnicianAssigned публикует событие назначения техника на заявку
func (p *Producer) PublishTechnicianAssigned(dispatchID, technicianID uuid.UUID, stationID string) error {
	event := newEvent(models.EventTypeTechnicianAssigned, map[string]interface{}{
		"dispatch_id":   dispatchID.String(),
		"technician_id": technicianID.String(),
		"station_id":    stationID,
	})
	return p.publishEvent(p.topics.Dispatch, event)
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
