package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"order-system/internal/config"
	"order-system/internal/logger"
	"order-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestProducer(mp sarama.SyncProducer) *Producer {
	return &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Orders: "orders"},
		now:      func() time.Time { return time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC) },
	}
}

func TestPublishEvent(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageAndSucceed()

	event := models.Event{ID: uuid.New(), Type: models.EventTypeOrderCreated}
	p := newTestProducer(mp)
	if err := p.publishEvent("orders", event, ""); err != nil {
		t.Fatalf("expected publish success, got %v", err)
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("failed to close mock producer: %v", err)
	}
}

func TestPublishOrderCreated_Payload(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())

	orderID := uuid.New()
	name := "Alice"
	order := &models.Order{
		ID:            orderID,
		OrderNumber:   "ORD-20240131-0001",
		CustomerEmail: "alice@example.com",
		CustomerName:  &name,
		Status:        models.OrderStatusNew,
		TotalPrice:    decimal.RequireFromString("180"),
		CreatedAtUTC:  time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{ProductName: "Lamp", UnitPrice: decimal.RequireFromString("100"), Quantity: 2},
		},
	}

	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "orders" {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != orderID.String() {
			t.Errorf("expected order id as key, got %s", key)
		}
		raw, _ := msg.Value.Encode()
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Errorf("decode envelope: %v", err)
			return nil
		}
		if ev.Type != models.EventTypeOrderCreated {
			t.Errorf("unexpected type %s", ev.Type)
		}
		var payload models.OrderCreatedEvent
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.Errorf("decode payload: %v", err)
			return nil
		}
		if payload.OrderNumber != order.OrderNumber || payload.CustomerEmail != order.CustomerEmail {
			t.Errorf("unexpected payload: %+v", payload)
		}
		if len(payload.Items) != 1 || payload.Items[0].Quantity != 2 || !payload.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)) {
			t.Errorf("unexpected items: %+v", payload.Items)
		}
		return nil
	})

	p := newTestProducer(mp)
	if err := p.PublishOrderCreated(order); err != nil {
		t.Fatalf("PublishOrderCreated failed: %v", err)
	}
	_ = mp.Close()
}

func TestPublishOrderStatusChanged(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		raw, _ := msg.Value.Encode()
		var ev models.Event
		_ = json.Unmarshal(raw, &ev)
		var payload models.OrderStatusChangedEvent
		_ = json.Unmarshal(ev.Data, &payload)
		if payload.OldStatus != models.OrderStatusNew || payload.NewStatus != models.OrderStatusCancelled {
			t.Errorf("unexpected transition: %+v", payload)
		}
		return nil
	})

	p := newTestProducer(mp)
	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD-20240131-0002", Status: models.OrderStatusCancelled}
	if err := p.PublishOrderStatusChanged(order, models.OrderStatusNew); err != nil {
		t.Fatalf("PublishOrderStatusChanged failed: %v", err)
	}
	_ = mp.Close()
}

func TestProducer_PublishEvent_Failure(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newTestProducer(mp)
	ev := models.Event{ID: uuid.New(), Type: models.EventTypeOrderCreated}
	if err := p.publishEvent("orders", ev, ""); err == nil {
		t.Fatalf("expected error on send failure")
	}
	_ = p.Close()
}

func TestProducer_PublishWithoutProducer(t *testing.T) {
	p := &Producer{topics: &config.Topics{Orders: "orders"}}
	if err := p.PublishOrderCreated(&models.Order{ID: uuid.New()}); err == nil {
		t.Fatalf("expected error for uninitialized producer")
	}
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
