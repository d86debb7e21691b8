package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/urbanmobility/rentals/internal/health"
	"github.com/urbanmobility/rentals/internal/messaging/kafka"
	"github.com/urbanmobility/rentals/internal/service/httpapi"
	"github.com/urbanmobility/rentals/internal/service/listener"
	"github.com/urbanmobility/rentals/internal/service/notification"
	"github.com/urbanmobility/rentals/internal/service/outbox"
	"github.com/urbanmobility/rentals/internal/service/rental"
	"github.com/urbanmobility/rentals/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает сервис аренды и блокируется до отмены ctx или фатальной
// ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	orchestrator := rental.NewOrchestrator(
		deps.Rentals,
		deps.Outbox,
		deps.Transport,
		deps.Users,
		deps.Publisher,
		logger.WithField("component", "rental-orchestrator"),
	)

	pool := rental.NewPool(cfg.PoolSize, logger.WithField("component", "rental-pool"))
	defer pool.Close()

	// Relay worker гарантирует доставку команд, отложенных в outbox.
	relay := outbox.NewWorker(
		deps.Outbox,
		deps.OutboxPublisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(deps.DLQPublisher),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
	)
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		relay.Run(ctx)
	}()

	consumers, err := startConsumers(ctx, cfg, deps, orchestrator, logger)
	if err != nil {
		return err
	}
	defer stopConsumers(consumers, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		store := deps.Store
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
	}
	if deps.Producer != nil {
		healthHandler.RegisterChecker("kafka", healthcheck.NewSimpleChecker("kafka", func() error {
			// SyncProducer не даёт дешёвого ping'а: считаем живым, пока открыт.
			return nil
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	apiHandler := httpapi.NewHandler(orchestrator, pool, logger.WithField("component", "http-api"))
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: apiHandler.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		workers.Wait()
		return ctx.Err()
	case err := <-errCh:
		workers.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startConsumers запускает Kafka consumers: триггер разряда батареи и
// доставку уведомлений. Без брокера consumers не поднимаются.
func startConsumers(ctx context.Context, cfg Config, deps *Dependencies, orchestrator *rental.Orchestrator, logger *log.Entry) ([]*kafka.Consumer, error) {
	if deps.Producer == nil {
		return nil, nil
	}

	battery := listener.NewBatteryListener(orchestrator, logger.WithField("component", "battery-listener"))
	batteryConsumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		cfg.ConsumerGroup,
		[]string{kafka.TopicEndRental},
		battery.Handle,
		deps.Producer,
		cfg.OutboxMaxAttempts,
	)
	if err != nil {
		return nil, err
	}

	notifier := notification.NewNotifier(nil, logger.WithField("component", "notifier"))
	notifierConsumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		cfg.ConsumerGroup+"-notifications",
		[]string{kafka.TopicRentalEvents},
		notifier.Handle,
		deps.Producer,
		cfg.OutboxMaxAttempts,
	)
	if err != nil {
		_ = batteryConsumer.Stop()
		return nil, err
	}

	consumers := []*kafka.Consumer{batteryConsumer, notifierConsumer}
	for _, consumer := range consumers {
		if err := consumer.Start(ctx); err != nil {
			stopConsumers(consumers, logger)
			return nil, err
		}
	}
	return consumers, nil
}

func stopConsumers(consumers []*kafka.Consumer, logger *log.Entry) {
	for _, consumer := range consumers {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http server shutdown with error")
	}
}
