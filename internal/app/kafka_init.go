package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/messaging/kafka"
)

// initKafkaProducer инициализирует Kafka producer, если brokers заданы.
// Возвращает nil, nil для пустого списка brokers.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		logger.Info("kafka brokers are not configured, events will be logged only")
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer, если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// logPublisher — dev-заглушка каналов публикации: пишет события в журнал
// вместо Kafka, чтобы сервис поднимался без брокера.
type logPublisher struct {
	logger *log.Entry
}

func newLogPublisher(logger *log.Entry) *logPublisher {
	return &logPublisher{logger: logger.WithField("component", "log-publisher")}
}

func (p *logPublisher) PublishNotification(_ context.Context, userID int64, event domain.RentalEventType) error {
	p.logger.WithFields(log.Fields{
		"user_id": userID,
		"event":   event,
	}).Info("notification event")
	return nil
}

func (p *logPublisher) PublishReport(_ context.Context, report domain.RentalReport) error {
	p.logger.WithFields(log.Fields{
		"rental_id":  report.RentalID,
		"user_id":    report.UserID,
		"total_cost": report.TotalCost,
	}).Info("report event")
	return nil
}

func (p *logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("outbox event")
	return nil
}

var _ domain.EventPublisher = (*logPublisher)(nil)
var _ domain.OutboxPublisher = (*logPublisher)(nil)
