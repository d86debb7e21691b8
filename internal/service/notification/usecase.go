package notification

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/messaging/kafka"
)

// Тексты уведомлений о событиях жизненного цикла аренды. Формулировки —
// часть пользовательского контракта, менять без согласования нельзя.
const (
	TextStart    = "Аренда транспорта началась"
	TextEnd      = "Аренда транспорта завершилась"
	TextCancel   = "Аренда транспорта отменена"
	TextForceEnd = "Аренда транспорта принудительно завершена"
)

// MessageText возвращает текст уведомления для типа события.
func MessageText(event domain.RentalEventType) (string, error) {
	switch event {
	case domain.RentalEventStart:
		return TextStart, nil
	case domain.RentalEventEnd:
		return TextEnd, nil
	case domain.RentalEventCancel:
		return TextCancel, nil
	case domain.RentalEventForceEnd:
		return TextForceEnd, nil
	default:
		return "", fmt.Errorf("unknown rental event type %q", event)
	}
}

// Sender доставляет готовый текст уведомления пользователю.
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

// LogSender пишет уведомления в журнал. Используется, пока реальный канал
// доставки (push, email) живёт в отдельном сервисе уведомлений.
type LogSender struct {
	logger *log.Entry
}

// NewLogSender создаёт журнальный sender.
func NewLogSender(logger *log.Entry) *LogSender {
	if logger == nil {
		logger = log.New().WithField("component", "notification-sender")
	}
	return &LogSender{logger: logger}
}

// Send пишет уведомление в журнал.
func (s *LogSender) Send(_ context.Context, userID int64, text string) error {
	s.logger.WithFields(log.Fields{
		"user_id": userID,
		"text":    text,
	}).Info("rental notification delivered")
	return nil
}

var _ Sender = (*LogSender)(nil)

// Notifier превращает события топика rental-events в пользовательские
// уведомления.
type Notifier struct {
	sender Sender
	logger *log.Entry
}

// NewNotifier создаёт обработчик rental-events сообщений.
func NewNotifier(sender Sender, logger *log.Entry) *Notifier {
	if logger == nil {
		logger = log.New().WithField("component", "notifier")
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Notifier{sender: sender, logger: logger}
}

// Handle разбирает событие и доставляет уведомление. Неизвестный тип
// события — ошибка: после retry сообщение уедет в DLQ.
func (n *Notifier) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseNotificationEvent(message)
	if err != nil {
		return err
	}
	if event.UserID <= 0 {
		return fmt.Errorf("notification event without user id")
	}

	text, err := MessageText(domain.RentalEventType(event.Type))
	if err != nil {
		return err
	}

	if err := n.sender.Send(ctx, event.UserID, text); err != nil {
		return fmt.Errorf("deliver notification to user %d: %w", event.UserID, err)
	}
	return nil
}
