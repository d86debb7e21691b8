package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/clients/transport"
	"github.com/urbanmobility/rentals/internal/clients/useraccount"
	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/messaging/kafka"
	"github.com/urbanmobility/rentals/internal/storage/memory"
	"github.com/urbanmobility/rentals/internal/storage/postgres"
)

// Dependencies содержит зависимости приложения.
type Dependencies struct {
	Rentals domain.RentalRepository
	Outbox  domain.OutboxRepository

	Transport domain.TransportService
	Users     domain.UserService

	Publisher       domain.EventPublisher
	OutboxPublisher domain.OutboxPublisher
	DLQPublisher    domain.OutboxPublisher

	// Store nil при in-memory хранилище, Producer nil без Kafka.
	Store    *postgres.Store
	Producer *kafka.Producer

	Logger *log.Entry
}

// NewDependencies собирает зависимости по конфигурации. Пустой PostgresDSN
// включает in-memory хранилище, пустые KafkaBrokers — журнальную публикацию;
// оба режима предназначены для локальной разработки.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if err := initStorage(ctx, cfg, deps); err != nil {
		return nil, err
	}
	if err := verifyStatusReference(deps.Rentals); err != nil {
		deps.Close()
		return nil, err
	}

	deps.Transport = transport.NewClient(transport.Config{
		BaseURL:      cfg.TransportBaseURL,
		Timeout:      cfg.ClientTimeout,
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
	}, logger.WithField("component", "transport-client"))

	deps.Users = useraccount.NewClient(useraccount.Config{
		BaseURL:      cfg.UserBaseURL,
		Timeout:      cfg.ClientTimeout,
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
	}, logger.WithField("component", "user-client"))

	initMessaging(cfg, deps)
	return deps, nil
}

// Close освобождает внешние ресурсы в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.Producer != nil {
		closeKafka(d.Producer, d.Logger)
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

func initStorage(ctx context.Context, cfg Config, deps *Dependencies) error {
	if cfg.PostgresDSN == "" {
		deps.Logger.Info("postgres dsn is empty, using in-memory storage")
		deps.Rentals = memory.NewRentalRepository()
		deps.Outbox = memory.NewOutboxRepository()
		return nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	deps.Store = store
	deps.Rentals = postgres.NewRentalRepository(store)
	deps.Outbox = postgres.NewOutboxRepository(store)
	deps.Logger.Info("postgres storage initialized")
	return nil
}

// verifyStatusReference проверяет на старте, что справочник статусов заполнен:
// отчёты зависят от него, а пустая таблица — дефект миграции.
func verifyStatusReference(rentals domain.RentalRepository) error {
	for _, status := range []domain.RentalStatus{
		domain.RentalStatusActive,
		domain.RentalStatusCompleted,
		domain.RentalStatusCancelled,
	} {
		if _, err := rentals.StatusName(status); err != nil {
			return fmt.Errorf("rental status reference %q: %w", status, err)
		}
	}
	return nil
}

func initMessaging(cfg Config, deps *Dependencies) {
	producer, err := initKafkaProducer(cfg.KafkaBrokers, deps.Logger)
	if err != nil || producer == nil {
		fallback := newLogPublisher(deps.Logger)
		deps.Publisher = fallback
		deps.OutboxPublisher = fallback
		deps.DLQPublisher = fallback
		return
	}

	deps.Producer = producer
	deps.Publisher = kafka.NewEventPublisher(producer)
	deps.OutboxPublisher = kafka.NewOutboxPublisher(producer)
	deps.DLQPublisher = kafka.NewDLQPublisher(producer)
}
