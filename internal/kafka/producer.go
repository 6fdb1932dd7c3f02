package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-system/internal/config"
	"order-system/internal/logger"
	"order-system/internal/models"

	"github.com/IBM/sarama"
)

// Producer публикует события заказов в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
	now      func() time.Time
}

// NewProducer создает синхронного продюсера
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.PublishTimeoutSeconds > 0 {
		timeout := time.Duration(cfg.PublishTimeoutSeconds) * time.Second
		saramaCfg.Producer.Timeout = timeout
		saramaCfg.Net.WriteTimeout = timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// PublishOrderCreated публикует order.created для сервиса уведомлений
func (p *Producer) PublishOrderCreated(order *models.Order) error {
	event, err := models.NewEvent(models.EventTypeOrderCreated, models.NewOrderCreatedEvent(order), p.timestamp())
	if err != nil {
		return fmt.Errorf("failed to build order created event: %w", err)
	}
	return p.publishEvent(p.topics.Orders, event, order.ID.String())
}

// PublishOrderStatusChanged публикует order.status_changed
func (p *Producer) PublishOrderStatusChanged(order *models.Order, oldStatus models.OrderStatus) error {
	at := p.timestamp()
	payload := models.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OldStatus:   oldStatus,
		NewStatus:   order.Status,
		ChangedAt:   at,
	}
	event, err := models.NewEvent(models.EventTypeOrderStatusChanged, payload, at)
	if err != nil {
		return fmt.Errorf("failed to build status changed event: %w", err)
	}
	return p.publishEvent(p.topics.Orders, event, order.ID.String())
}

// publishEvent отправляет событие; ключ сообщения держит события одного заказа в одной партиции
func (p *Producer) publishEvent(topic string, event models.Event, key string) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka producer is not initialized")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to kafka: %w", err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
		"event_type": event.Type,
		"event_id":   event.ID,
	}).Debug("Event published to Kafka")

	return nil
}

func (p *Producer) timestamp() time.Time {
	if p.now != nil {
		return p.now().UTC()
	}
	return time.Now().UTC()
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
