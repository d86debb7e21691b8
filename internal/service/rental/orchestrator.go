package rental

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/messaging/kafka"
	"github.com/urbanmobility/rentals/internal/metrics"
)

const (
	saveMaxRetries   = 3
	saveRetryBackoff = 10 * time.Millisecond
)

// ForceEndResult несёт и результат завершения, и идентификатор арендатора:
// ForceEnd адресуется по rental id, инициатор может не быть арендатором.
type ForceEndResult struct {
	Rental   domain.Rental
	RenterID int64
}

// Orchestrator управляет жизненным циклом аренды: Start / End / Cancel /
// ForceEnd. Каждая операция — отдельная единица работы: локальный переход
// коммитится первым, затем выполняется синхронная сверка с внешними
// сервисами; при её провале эквивалентная команда уходит в transactional
// outbox и доезжает до сервиса через relay worker.
type Orchestrator struct {
	rentals   domain.RentalRepository
	outbox    domain.OutboxRepository
	transport domain.TransportService
	users     domain.UserService
	publisher domain.EventPublisher
	logger    *log.Entry
	metrics   *metrics.RentalMetrics
	now       func() time.Time
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithClock подменяет источник времени (для тестов тарификации).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics задаёт метрики; nil отключает их.
func WithMetrics(m *metrics.RentalMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	rentals domain.RentalRepository,
	outbox domain.OutboxRepository,
	transport domain.TransportService,
	users domain.UserService,
	publisher domain.EventPublisher,
	logger *log.Entry,
	options ...Option,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "rental-orchestrator")
	}

	o := &Orchestrator{
		rentals:   rentals,
		outbox:    outbox,
		transport: transport,
		users:     users,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics.NewRentalMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// Start открывает аренду: проверяет доступность транспорта, коммитит
// ACTIVE-запись и резервирует транспорт. Если резервирование не удалось,
// локальная запись компенсируется — ACTIVE-аренда против незанятого
// транспорта не переживает провал резервирования.
func (o *Orchestrator) Start(ctx context.Context, userID, transportID int64, lat, lng float64) (domain.Rental, error) {
	started := o.now()
	defer o.observeOperation("start", started)

	if userID <= 0 {
		return domain.Rental{}, domain.ErrUserIDRequired
	}
	if transportID <= 0 {
		return domain.Rental{}, domain.ErrTransportIDRequired
	}

	stepStart := o.now()
	snapshot, err := o.transport.GetTransport(ctx, transportID)
	o.observeStep("validate_transport", stepStart)
	if err != nil {
		o.recordFailed()
		return domain.Rental{}, fmt.Errorf("validate transport %d: %w", transportID, err)
	}
	if snapshot.Status != domain.TransportStatusAvailable {
		o.recordFailed()
		return domain.Rental{}, domain.ErrTransportUnavailable
	}

	now := o.now()
	rental := domain.Rental{
		UserID:         userID,
		TransportID:    transportID,
		Status:         domain.RentalStatusActive,
		StartTime:      now,
		StartLatitude:  lat,
		StartLongitude: lng,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stepStart = o.now()
	created, err := o.rentals.Create(rental)
	o.observeStep("persist", stepStart)
	if err != nil {
		o.recordFailed()
		return domain.Rental{}, fmt.Errorf("create rental for user %d: %w", userID, err)
	}

	stepStart = o.now()
	err = o.transport.UpdateStatus(ctx, transportID, domain.TransportStatusInUse)
	o.observeStep("reserve_transport", stepStart)
	if err != nil {
		// Компенсация: откатываем локальную запись, чтобы не оставить
		// ACTIVE-аренду против незарезервированного транспорта.
		o.compensateStart(&created)
		o.recordFailed()
		return domain.Rental{}, fmt.Errorf("reserve transport %d: %w", transportID, err)
	}

	if o.metrics != nil {
		o.metrics.RecordRentalStarted()
	}
	o.logger.WithFields(log.Fields{
		"rental_id":    created.ID,
		"user_id":      userID,
		"transport_id": transportID,
	}).Info("rental started")

	o.publishNotification(ctx, userID, domain.RentalEventStart, created.ID)
	return created, nil
}

// End завершает активную аренду пользователя: считает тариф и дистанцию,
// коммитит COMPLETED, затем освобождает транспорт, переносит его координаты,
// начисляет бонусы и публикует отчёт с уведомлением.
func (o *Orchestrator) End(ctx context.Context, userID int64, lat, lng float64) (domain.Rental, error) {
	started := o.now()
	defer o.observeOperation("end", started)

	rental, err := o.rentals.GetActiveByUser(userID)
	if err != nil {
		o.recordFailed()
		return domain.Rental{}, fmt.Errorf("lookup active rental for user %d: %w", userID, err)
	}

	saved, err := o.terminate(&rental, func(r *domain.Rental, now time.Time) {
		endLat, endLng := lat, lng
		r.Status = domain.RentalStatusCompleted
		r.EndTime = &now
		r.EndLatitude = &endLat
		r.EndLongitude = &endLng
		r.DurationMinutes = domain.DurationMinutes(r.StartTime, now)
		r.TotalCost = domain.Cost(r.DurationMinutes)
		r.DistanceKm = domain.Distance(&r.StartLatitude, &r.StartLongitude, r.EndLatitude, r.EndLongitude)
	})
	if err != nil {
		o.recordFailed()
		return domain.Rental{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordRentalCompleted()
	}
	o.logger.WithFields(log.Fields{
		"rental_id":        saved.ID,
		"user_id":          userID,
		"duration_minutes": saved.DurationMinutes,
		"total_cost":       saved.TotalCost,
	}).Info("rental completed")

	o.finishRemoteSideEffects(ctx, saved, domain.RentalEventEnd)
	return saved, nil
}

// Cancel отменяет активную аренду до начала поездки: бесплатно, без отчёта
// и без бонусов. Транспорт возвращается в AVAILABLE.
func (o *Orchestrator) Cancel(ctx context.Context, userID int64) (domain.Rental, error) {
	started := o.now()
	defer o.observeOperation("cancel", started)

	rental, err := o.rentals.GetActiveByUser(userID)
	if err != nil {
		o.recordFailed()
		return domain.Rental{}, fmt.Errorf("lookup active rental for user %d: %w", userID, err)
	}

	saved, err := o.terminate(&rental, func(r *domain.Rental, now time.Time) {
		r.Status = domain.RentalStatusCancelled
		r.EndTime = &now
		r.DurationMinutes = 0
		r.TotalCost = 0
		r.DistanceKm = 0
	})
	if err != nil {
		o.recordFailed()
		return domain.Rental{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordRentalCancelled()
	}
	o.logger.WithFields(log.Fields{
		"rental_id": saved.ID,
		"user_id":   userID,
	}).Info("rental cancelled")

	o.releaseTransport(ctx, saved)
	o.publishNotification(ctx, saved.UserID, domain.RentalEventCancel, saved.ID)
	return saved, nil
}

// ForceEnd принудительно завершает аренду по её идентификатору. Вызывается
// оператором или слушателем разряда батареи; расчёты и side effects те же,
// что у End, а результат дополнительно несёт идентификатор арендатора.
func (o *Orchestrator) ForceEnd(ctx context.Context, rentalID int64, lat, lng float64) (ForceEndResult, error) {
	return o.forceEnd(ctx, rentalID, lat, lng, domain.CompletionNoteForced)
}

// ForceEndBatteryDepleted — вариант ForceEnd для триггера нулевого заряда,
// отличается только пометкой завершения.
func (o *Orchestrator) ForceEndBatteryDepleted(ctx context.Context, rentalID int64, lat, lng float64) (ForceEndResult, error) {
	return o.forceEnd(ctx, rentalID, lat, lng, domain.CompletionNoteBatteryDepleted)
}

func (o *Orchestrator) forceEnd(ctx context.Context, rentalID int64, lat, lng float64, note string) (ForceEndResult, error) {
	started := o.now()
	defer o.observeOperation("force_end", started)

	rental, err := o.rentals.Get(rentalID)
	if err != nil {
		o.recordFailed()
		return ForceEndResult{}, fmt.Errorf("lookup rental %d: %w", rentalID, err)
	}
	if rental.IsTerminal() {
		return ForceEndResult{}, domain.ErrRentalAlreadyEnded
	}

	saved, err := o.terminate(&rental, func(r *domain.Rental, now time.Time) {
		endLat, endLng := lat, lng
		r.Status = domain.RentalStatusCompleted
		r.EndTime = &now
		r.EndLatitude = &endLat
		r.EndLongitude = &endLng
		r.DurationMinutes = domain.DurationMinutes(r.StartTime, now)
		r.TotalCost = domain.Cost(r.DurationMinutes)
		r.DistanceKm = domain.Distance(&r.StartLatitude, &r.StartLongitude, r.EndLatitude, r.EndLongitude)
		r.CompletionNote = note
	})
	if err != nil {
		o.recordFailed()
		return ForceEndResult{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordRentalForceEnded()
	}
	o.logger.WithFields(log.Fields{
		"rental_id": saved.ID,
		"user_id":   saved.UserID,
		"note":      note,
	}).Info("rental force ended")

	o.finishRemoteSideEffects(ctx, saved, domain.RentalEventForceEnd)
	return ForceEndResult{Rental: saved, RenterID: saved.UserID}, nil
}

// terminate применяет терминальную мутацию с optimistic-locking retry.
// Из двух гонящихся терминаторов побеждает ровно один: проигравший
// перечитывает запись, видит терминальный статус и детерминированно
// получает ErrRentalAlreadyEnded.
func (o *Orchestrator) terminate(rental *domain.Rental, mutate func(*domain.Rental, time.Time)) (domain.Rental, error) {
	for attempt := 0; attempt < saveMaxRetries; attempt++ {
		candidate := *rental
		mutate(&candidate, o.now())
		candidate.UpdatedAt = o.now()

		err := o.rentals.Save(candidate)
		if err == nil {
			candidate.Version++
			return candidate, nil
		}

		if !domain.IsVersionConflict(err) {
			return domain.Rental{}, fmt.Errorf("persist rental %d: %w", rental.ID, err)
		}

		fresh, loadErr := o.rentals.Get(rental.ID)
		if loadErr != nil {
			return domain.Rental{}, fmt.Errorf("reload rental %d after conflict: %w", rental.ID, loadErr)
		}
		if fresh.IsTerminal() {
			return domain.Rental{}, domain.ErrRentalAlreadyEnded
		}

		o.logger.WithFields(log.Fields{
			"rental_id": rental.ID,
			"attempt":   attempt + 1,
			"version":   fresh.Version,
		}).Warn("rental version conflict, retrying")
		*rental = fresh
		time.Sleep(saveRetryBackoff * time.Duration(1<<uint(attempt)))
	}

	return domain.Rental{}, domain.ErrRentalVersionConflict
}

// compensateStart откатывает только что созданную ACTIVE-запись после
// провала резервирования транспорта.
func (o *Orchestrator) compensateStart(rental *domain.Rental) {
	now := o.now()
	rental.Status = domain.RentalStatusCancelled
	rental.EndTime = &now
	rental.DurationMinutes = 0
	rental.TotalCost = 0
	rental.UpdatedAt = now

	if err := o.rentals.Save(*rental); err != nil {
		o.logger.WithError(err).WithField("rental_id", rental.ID).
			Error("failed to compensate rental after transport reservation failure")
		return
	}
	o.logger.WithField("rental_id", rental.ID).Warn("rental compensated: transport reservation failed")
}

// finishRemoteSideEffects выполняет пост-коммитную сверку завершённой аренды
// в фиксированном порядке: освобождение транспорта, перенос его
// координат, бонусы, отчёт, уведомление.
func (o *Orchestrator) finishRemoteSideEffects(ctx context.Context, rental domain.Rental, event domain.RentalEventType) {
	o.releaseTransport(ctx, rental)
	o.moveTransport(ctx, rental)
	user := o.awardBonuses(ctx, rental)
	o.publishReport(ctx, rental, user)
	o.publishNotification(ctx, rental.UserID, event, rental.ID)
}

// releaseTransport возвращает транспорт в AVAILABLE; при недоступности
// сервиса команда уходит в outbox и доезжает через relay worker.
func (o *Orchestrator) releaseTransport(ctx context.Context, rental domain.Rental) {
	stepStart := o.now()
	err := o.transport.UpdateStatus(ctx, rental.TransportID, domain.TransportStatusAvailable)
	o.observeStep("release_transport", stepStart)
	if err == nil {
		return
	}

	o.logger.WithError(err).WithFields(log.Fields{
		"rental_id":    rental.ID,
		"transport_id": rental.TransportID,
	}).Warn("transport release failed, enqueueing command")
	o.enqueueOutbox(rental.ID, kafka.OutboxEventTransportStatus, kafka.TransportStatusCommand{
		TransportID: rental.TransportID,
		Status:      string(domain.TransportStatusAvailable),
	})
}

// moveTransport переносит координаты транспорта в точку завершения аренды.
func (o *Orchestrator) moveTransport(ctx context.Context, rental domain.Rental) {
	if rental.EndLatitude == nil || rental.EndLongitude == nil {
		return
	}

	stepStart := o.now()
	err := o.transport.UpdateCoordinates(ctx, rental.TransportID, *rental.EndLatitude, *rental.EndLongitude)
	o.observeStep("move_transport", stepStart)
	if err == nil {
		return
	}

	o.logger.WithError(err).WithFields(log.Fields{
		"rental_id":    rental.ID,
		"transport_id": rental.TransportID,
	}).Warn("transport coordinates update failed, enqueueing command")
	o.enqueueOutbox(rental.ID, kafka.OutboxEventTransportCoordinates, kafka.TransportCoordinatesCommand{
		TransportID: rental.TransportID,
		Lat:         *rental.EndLatitude,
		Lng:         *rental.EndLongitude,
	})
}

// awardBonuses начисляет durationMinutes бонусных баллов: сначала читает
// текущий баланс (снапшот также нужен отчёту), затем дописывает начисление.
// Read-modify-write против удалённого сервиса неатомарен — гонка присуща
// контракту user-account сервиса и здесь не маскируется.
func (o *Orchestrator) awardBonuses(ctx context.Context, rental domain.Rental) domain.UserSnapshot {
	stepStart := o.now()
	user, err := o.users.GetUser(ctx, rental.UserID)
	o.observeStep("read_user", stepStart)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"rental_id": rental.ID,
			"user_id":   rental.UserID,
		}).Warn("user lookup failed before bonus award")
		user = domain.UserSnapshot{ID: rental.UserID}
	}

	if rental.DurationMinutes <= 0 {
		return user
	}

	stepStart = o.now()
	err = o.users.AddBonuses(ctx, rental.UserID, rental.DurationMinutes)
	o.observeStep("award_bonuses", stepStart)
	if err == nil {
		return user
	}

	o.logger.WithError(err).WithFields(log.Fields{
		"rental_id": rental.ID,
		"user_id":   rental.UserID,
		"amount":    rental.DurationMinutes,
	}).Warn("bonus award failed, enqueueing command")
	o.enqueueOutbox(rental.ID, kafka.OutboxEventUserBonus, kafka.UserBonusCommand{
		UserID:      rental.UserID,
		BonusAmount: rental.DurationMinutes,
	})
	return user
}

// publishReport отправляет данные для отчёта; провал публикации не
// откатывает уже закоммиченный переход, а переигрывается через outbox.
func (o *Orchestrator) publishReport(ctx context.Context, rental domain.Rental, user domain.UserSnapshot) {
	statusName, err := o.rentals.StatusName(rental.Status)
	if err != nil {
		// Отсутствие справочной записи — дефект конфигурации.
		o.logger.WithError(err).WithField("status", rental.Status).Error("rental status reference row missing")
		statusName = string(rental.Status)
	}

	var endTime int64
	if rental.EndTime != nil {
		endTime = rental.EndTime.Unix()
	}
	report := domain.RentalReport{
		RentalID:        rental.ID,
		UserID:          rental.UserID,
		Username:        user.Username,
		Email:           user.Email,
		Transport:       strconv.FormatInt(rental.TransportID, 10),
		StartTime:       rental.StartTime.Unix(),
		EndTime:         endTime,
		DurationMinutes: rental.DurationMinutes,
		Status:          statusName,
		TotalCost:       int(math.Round(rental.TotalCost)),
	}

	if err := o.publisher.PublishReport(ctx, report); err != nil {
		o.logger.WithError(err).WithField("rental_id", rental.ID).Warn("report publish failed, enqueueing")
		o.enqueueOutbox(rental.ID, kafka.OutboxEventRentalReport, report)
	}
}

// publishNotification отправляет событие жизненного цикла пользователю.
func (o *Orchestrator) publishNotification(ctx context.Context, userID int64, event domain.RentalEventType, rentalID int64) {
	if err := o.publisher.PublishNotification(ctx, userID, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"rental_id": rentalID,
			"user_id":   userID,
			"event":     event,
		}).Warn("notification publish failed, enqueueing")
		o.enqueueOutbox(rentalID, kafka.OutboxEventRentalNotification, kafka.NotificationEvent{
			UserID: userID,
			Type:   string(event),
		})
	}
}

func (o *Orchestrator) enqueueOutbox(rentalID int64, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"rental_id": rentalID,
			"event":     eventType,
		}).Error("marshal outbox payload failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "rental",
		AggregateID:   strconv.FormatInt(rentalID, 10),
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"rental_id": rentalID,
			"event":     eventType,
		}).Error("enqueue outbox message failed")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

func (o *Orchestrator) observeOperation(operation string, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordOperationDuration(operation, o.now().Sub(started))
	}
}

func (o *Orchestrator) observeStep(step string, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step, o.now().Sub(started))
	}
}

func (o *Orchestrator) recordFailed() {
	if o.metrics != nil {
		o.metrics.RecordRentalFailed()
	}
}
