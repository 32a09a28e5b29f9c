package kafka

import (
	"testing"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
)

func TestPublishEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndSucceed()

	event := models.Event{ID: uuid.New(), Type: models.EventTypeProgramCreated}
	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Programs: "programs"},
	}
	if err := p.publishEvent("programs", event); err != nil {
		t.Fatalf("expected publish success, got %v", err)
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("failed to close mock producer: %v", err)
	}
}

func TestProducer_WrapperMethods(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	for i := 0; i < 5; i++ {
		mp.ExpectSendMessageAndSucceed()
	}

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics: &config.Topics{
			Programs:     "programs",
			Participants: "participants",
			Bookings:     "bookings",
			Dispatch:     "dispatch",
		},
	}

	programID := "prog-1"
	program := &models.Program{ID: programID, Title: "t", Type: models.ProgramTypeRental}

	if err := p.PublishProgramCreated(program); err != nil {
		t.Fatalf("PublishProgramCreated failed: %v", err)
	}
	if err := p.PublishProgramStatusChanged(programID, models.ProgramStatusActive, models.ProgramStatusEnded); err != nil {
		t.Fatalf("PublishProgramStatusChanged failed: %v", err)
	}
	if err := p.PublishParticipantJoined(programID, "user-1", models.ParticipantRoleAgent); err != nil {
		t.Fatalf("PublishParticipantJoined failed: %v", err)
	}
	booking := &models.Booking{ID: uuid.New(), UserID: "user-1", ProgramID: &programID, TotalPrice: 10}
	if err := p.PublishBookingCreated(booking); err != nil {
		t.Fatalf("PublishBookingCreated failed: %v", err)
	}
	if err := p.PublishTechnicianAssigned(uuid.New(), uuid.New(), "st-1"); err != nil {
		t.Fatalf("PublishTechnicianAssigned failed: %v", err)
	}
}

func TestProducer_PublishEvent_Failure(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Programs: "programs"},
	}

	ev := models.Event{ID: uuid.New(), Type: models.EventTypeProgramCreated}
	err := p.publishEvent("programs", ev)
	if err == nil {
		t.Fatalf("expected error on send failure")
	}
	_ = p.Close()
}

func TestNewProducer_Error(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}}
	if _, err := NewProducer(cfg, log); err == nil {
		t.Fatalf("expected error creating producer")
	}
}

func TestProducer_CloseNil(t *testing.T) {
	var p *Producer
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on nil producer")
	}
	p = &Producer{}
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on empty producer, got %v", err)
	}
}
