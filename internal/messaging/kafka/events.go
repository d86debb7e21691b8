package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Topics сервиса аренды.
const (
	// TopicEndRental — входящий триггер принудительного завершения (нулевой заряд).
	TopicEndRental = "end-rental"
	// TopicRentalEvents — уведомления пользователю о событиях жизненного цикла.
	TopicRentalEvents = "rental-events"
	// TopicReportsData — данные для генерации отчёта об аренде.
	TopicReportsData = "reports-data"
	// TopicTransportCommands — команды transport-inventory сервису.
	TopicTransportCommands = "transport-commands"
	// TopicUserCommands — команды user-account сервису.
	TopicUserCommands = "user-commands"
	// TopicDeadLetterQueue — DLQ для сообщений, не обработанных после retry.
	TopicDeadLetterQueue = "rentals.dlq"
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Типы событий transactional outbox; определяют topic при публикации.
const (
	OutboxEventTransportStatus      = "TransportStatusCommand"
	OutboxEventTransportCoordinates = "TransportCoordinatesCommand"
	OutboxEventUserBonus            = "UserBonusCommand"
	OutboxEventRentalNotification   = "RentalNotification"
	OutboxEventRentalReport         = "RentalReport"
)

// EndRentalEvent — payload входящего сообщения end-rental.
type EndRentalEvent struct {
	UserID   int64   `json:"userId"`
	RentalID int64   `json:"rentalId"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// NotificationEvent — payload топика rental-events.
type NotificationEvent struct {
	UserID int64  `json:"userId"`
	Type   string `json:"type"`
}

// TransportStatusCommand — команда смены статуса транспорта.
type TransportStatusCommand struct {
	TransportID int64  `json:"transportId"`
	Status      string `json:"status"`
}

// TransportCoordinatesCommand — команда обновления координат транспорта.
type TransportCoordinatesCommand struct {
	TransportID int64   `json:"transportId"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// UserBonusCommand — команда начисления бонусов пользователю.
type UserBonusCommand struct {
	UserID      int64 `json:"userId"`
	BonusAmount int64 `json:"bonusAmount"`
}

// ParseEndRentalEvent парсит EndRentalEvent из сообщения.
func ParseEndRentalEvent(message *sarama.ConsumerMessage) (*EndRentalEvent, error) {
	var event EndRentalEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal end-rental event: %w", err)
	}
	return &event, nil
}

// ParseNotificationEvent парсит NotificationEvent из сообщения.
func ParseNotificationEvent(message *sarama.ConsumerMessage) (*NotificationEvent, error) {
	var event NotificationEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification event: %w", err)
	}
	return &event, nil
}
