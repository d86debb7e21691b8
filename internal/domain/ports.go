package domain

import (
	"context"
	"time"
)

// TransportStatus — статус транспорта в transport-inventory сервисе.
type TransportStatus string

const (
	TransportStatusAvailable TransportStatus = "AVAILABLE"
	TransportStatusInUse     TransportStatus = "IN_USE"
)

// TransportSnapshot — транзитное чтение состояния транспорта; авторитетная
// копия живёт в transport-inventory сервисе.
type TransportSnapshot struct {
	ID        int64
	Type      string
	Status    TransportStatus
	Latitude  *float64
	Longitude *float64
}

// UserSnapshot — транзитное чтение пользователя из user-account сервиса.
// Username и Email нужны для payload отчёта.
type UserSnapshot struct {
	ID       int64
	Username string
	Email    string
	Bonuses  int64
}

// TransportService описывает взаимодействие с сервисом transport-inventory.
type TransportService interface {
	// GetTransport возвращает снапшот транспорта или ErrTransportNotFound.
	GetTransport(ctx context.Context, id int64) (TransportSnapshot, error)
	// UpdateStatus переводит транспорт в AVAILABLE/IN_USE.
	UpdateStatus(ctx context.Context, id int64, status TransportStatus) error
	// UpdateCoordinates фиксирует позицию транспорта после завершения аренды.
	UpdateCoordinates(ctx context.Context, id int64, lat, lng float64) error
}

// UserService описывает взаимодействие с сервисом user-account.
type UserService interface {
	// GetUser возвращает снапшот пользователя или ErrUserNotFound.
	GetUser(ctx context.Context, id int64) (UserSnapshot, error)
	// AddBonuses начисляет пользователю бонусные баллы.
	AddBonuses(ctx context.Context, id int64, amount int64) error
}

// RentalEventType — тип события жизненного цикла для уведомлений.
type RentalEventType string

const (
	RentalEventStart    RentalEventType = "START"
	RentalEventEnd      RentalEventType = "END"
	RentalEventCancel   RentalEventType = "CANCEL"
	RentalEventForceEnd RentalEventType = "FORCE_END"
)

// RentalReport — payload для сервиса отчётов (topic reports-data).
type RentalReport struct {
	RentalID        int64  `json:"rentalId"`
	UserID          int64  `json:"userId"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Transport       string `json:"transport"`
	StartTime       int64  `json:"startTime"`
	EndTime         int64  `json:"endTime"`
	DurationMinutes int64  `json:"durationMinutes"`
	Status          string `json:"status"`
	TotalCost       int    `json:"totalCost"`
}

// EventPublisher — исходящий асинхронный канал. Публикация best-effort:
// ошибка логируется вызывающим и не откатывает уже закоммиченный переход.
type EventPublisher interface {
	// PublishNotification отправляет {userId, type} в topic rental-events.
	PublishNotification(ctx context.Context, userID int64, event RentalEventType) error
	// PublishReport отправляет данные для генерации отчёта в topic reports-data.
	PublishReport(ctx context.Context, report RentalReport) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}
