package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
)

func TestNewDependencies_InMemoryMode(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("component", "test"))
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	if deps.Store != nil {
		t.Error("expected no postgres store in memory mode")
	}
	if deps.Producer != nil {
		t.Error("expected no kafka producer without brokers")
	}
	if deps.Rentals == nil || deps.Outbox == nil {
		t.Fatal("expected in-memory repositories")
	}
	if deps.Transport == nil || deps.Users == nil {
		t.Fatal("expected remote service clients")
	}
	if deps.Publisher == nil || deps.OutboxPublisher == nil || deps.DLQPublisher == nil {
		t.Fatal("expected log publishers without kafka")
	}
}

func TestNewDependencies_StatusReferenceVerified(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	// Проверка справочника прошла на старте: имена доступны.
	name, err := deps.Rentals.StatusName("ACTIVE")
	if err != nil {
		t.Fatalf("status name: %v", err)
	}
	if name == "" {
		t.Fatal("expected non-empty status name")
	}
}

func TestLogPublisher(t *testing.T) {
	p := newLogPublisher(log.WithField("component", "test"))

	if err := p.PublishNotification(context.Background(), 1, "START"); err != nil {
		t.Errorf("publish notification: %v", err)
	}
	msg := domain.OutboxMessage{
		ID:          "msg-1",
		AggregateID: "1",
		EventType:   "RentalNotification",
		Payload:     []byte(`{"userId":1,"type":"START"}`),
	}
	if err := p.Publish(msg); err != nil {
		t.Errorf("publish outbox: %v", err)
	}
}
