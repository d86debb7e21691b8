package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/messaging/kafka"
	"github.com/urbanmobility/rentals/internal/service/rental"
)

// ForceEnder завершает аренду по внешнему триггеру.
type ForceEnder interface {
	ForceEndBatteryDepleted(ctx context.Context, rentalID int64, lat, lng float64) (rental.ForceEndResult, error)
}

// BatteryListener обрабатывает сообщения топика end-rental: транспорт
// сообщил о нулевом заряде, аренду нужно завершить принудительно.
type BatteryListener struct {
	orchestrator ForceEnder
	logger       *log.Entry
}

// NewBatteryListener создаёт обработчик end-rental сообщений.
func NewBatteryListener(orchestrator ForceEnder, logger *log.Entry) *BatteryListener {
	if logger == nil {
		logger = log.New().WithField("component", "battery-listener")
	}
	return &BatteryListener{orchestrator: orchestrator, logger: logger}
}

// Handle разбирает сообщение и завершает аренду. Повторная доставка для уже
// завершённой аренды — no-op: consumer подтверждает сообщение без ошибки.
func (l *BatteryListener) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseEndRentalEvent(message)
	if err != nil {
		return err
	}
	if event.RentalID <= 0 {
		return fmt.Errorf("end-rental event without rental id (user %d)", event.UserID)
	}

	result, err := l.orchestrator.ForceEndBatteryDepleted(ctx, event.RentalID, event.Lat, event.Lon)
	if err != nil {
		if errors.Is(err, domain.ErrRentalAlreadyEnded) {
			l.logger.WithField("rental_id", event.RentalID).Info("rental already ended, skipping battery trigger")
			return nil
		}
		return fmt.Errorf("force end rental %d: %w", event.RentalID, err)
	}

	l.logger.WithFields(log.Fields{
		"rental_id": result.Rental.ID,
		"user_id":   result.RenterID,
	}).Info("rental force ended by battery depletion")
	return nil
}
