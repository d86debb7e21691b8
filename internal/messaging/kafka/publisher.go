package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urbanmobility/rentals/internal/domain"
)

// EventPublisher публикует события жизненного цикла аренды в Kafka.
// Публикация fire-and-forget относительно результата операции: ошибки
// логирует и решает вызывающий, откатов не бывает.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher создаёт Kafka-реализацию domain.EventPublisher.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishNotification отправляет {userId, type} в topic rental-events.
func (p *EventPublisher) PublishNotification(_ context.Context, userID int64, event domain.RentalEventType) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka event publisher is not initialized")
	}

	payload := NotificationEvent{UserID: userID, Type: string(event)}
	return p.producer.PublishEvent(TopicRentalEvents, strconv.FormatInt(userID, 10), payload)
}

// PublishReport отправляет данные отчёта в topic reports-data.
func (p *EventPublisher) PublishReport(_ context.Context, report domain.RentalReport) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka event publisher is not initialized")
	}

	return p.producer.PublishEvent(TopicReportsData, strconv.FormatInt(report.RentalID, 10), report)
}

var _ domain.EventPublisher = (*EventPublisher)(nil)

// OutboxTopicPublisher публикует outbox-сообщения, выбирая topic по типу
// события. Payload публикуется как есть: форматы команд фиксированы
// контрактами сервисов-потребителей.
type OutboxTopicPublisher struct {
	producer *Producer
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{producer: producer}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	topic, err := topicForOutboxEvent(event.EventType)
	if err != nil {
		return err
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.producer.PublishRaw(topic, key, event.Payload)
}

func topicForOutboxEvent(eventType string) (string, error) {
	switch eventType {
	case OutboxEventTransportStatus, OutboxEventTransportCoordinates:
		return TopicTransportCommands, nil
	case OutboxEventUserBonus:
		return TopicUserCommands, nil
	case OutboxEventRentalNotification:
		return TopicRentalEvents, nil
	case OutboxEventRentalReport:
		return TopicReportsData, nil
	default:
		return "", fmt.Errorf("unknown outbox event type %q: %w", eventType, domain.ErrOutboxPublish)
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// DLQPublisher публикует сообщения в DLQ topic как есть: relay worker
// уже оборачивает payload диагностикой перед отправкой.
type DLQPublisher struct {
	producer *Producer
}

// NewDLQPublisher создаёт паблишер DLQ для relay worker'а.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &DLQPublisher{producer: producer}
}

func (p *DLQPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.producer.PublishRaw(TopicDeadLetterQueue, key, event.Payload)
}

var _ domain.OutboxPublisher = (*DLQPublisher)(nil)
