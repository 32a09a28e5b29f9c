package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/config"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"github.com/IBM/sarama"
)

// EventHandler обрабатывает одно доменное событие
type EventHandler func(ctx context.Context, event *models.Event) error

// Consumer читает события из Kafka и раздаёт их зарегистрированным обработчикам
type Consumer struct {
	consumer sarama.ConsumerGroup
	log      *logger.Logger
	handlers map[models.EventType]EventHandler
	topics   []string
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewConsumer создаёт нового консьюмера Kafka
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания консьюмера Kafka: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics: []string{
			cfg.Topics.Programs,
			cfg.Topics.Participants,
			cfg.Topics.Bookings,
			cfg.Topics.Dispatch,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// NewTestConsumer создаёт консьюмера поверх готовой группы. Используется в тестах.
func NewTestConsumer(group sarama.ConsumerGroup, log *logger.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{"programs"},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler регистрирует обработчик для типа события
func (c *Consumer) RegisterHandler(eventType models.EventType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

// Handler возвращает обработчик для типа события или nil
func (c *Consumer) Handler(eventType models.EventType) EventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers[eventType]
}

// HandlerCount возвращает число зарегистрированных обработчиков
func (c *Consumer) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Start запускает цикл чтения в отдельной горутине
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumer.Consume(c.ctx, c.topics, c); err != nil {
				c.log.WithError(err).Error("Ошибка чтения из Kafka")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.log.WithField("topics", c.topics).Info("Консьюмер Kafka запущен")
	return nil
}

// Stop останавливает консьюмера и дожидается завершения цикла чтения
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return c.consumer.Close()
}

// processMessage разбирает сообщение и вызывает обработчик по типу события
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("ошибка разбора события: %w", err)
	}

	handler := c.Handler(event.Type)
	if handler == nil {
		c.log.WithFields(map[string]interface{}{
			"type":  event.Type,
			"topic": msg.Topic,
		}).Debug("Нет обработчика для события")
		return nil
	}

	if err := handler(c.ctx, &event); err != nil {
		return fmt.Errorf("ошибка обработки события %s: %w", event.Type, err)
	}

	return nil
}

// Setup вызывается при старте сессии группы
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup вызывается при завершении сессии группы
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim читает сообщения одной партиции
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.processMessage(msg); err != nil {
			c.log.WithError(err).WithField("topic", msg.Topic).Error("Ошибка обработки сообщения")
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
