package notification

import (
	"context"
	"testing"

	"github.com/IBM/sarama"

	"github.com/urbanmobility/rentals/internal/domain"
)

func TestMessageText_ExactWording(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event domain.RentalEventType
		text  string
	}{
		{domain.RentalEventStart, "Аренда транспорта началась"},
		{domain.RentalEventEnd, "Аренда транспорта завершилась"},
		{domain.RentalEventCancel, "Аренда транспорта отменена"},
		{domain.RentalEventForceEnd, "Аренда транспорта принудительно завершена"},
	}

	for _, tc := range cases {
		text, err := MessageText(tc.event)
		if err != nil {
			t.Fatalf("%s: %v", tc.event, err)
		}
		if text != tc.text {
			t.Fatalf("%s: expected %q, got %q", tc.event, tc.text, text)
		}
	}
}

func TestMessageText_UnknownType(t *testing.T) {
	t.Parallel()

	if _, err := MessageText("EXPLODED"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

type captureSender struct {
	userIDs []int64
	texts   []string
}

func (s *captureSender) Send(_ context.Context, userID int64, text string) error {
	s.userIDs = append(s.userIDs, userID)
	s.texts = append(s.texts, text)
	return nil
}

func notificationMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: "rental-events",
		Value: []byte(value),
	}
}

func TestNotifier_DeliversText(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	n := NewNotifier(sender, nil)

	err := n.Handle(context.Background(), notificationMessage(`{"userId":7,"type":"FORCE_END"}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(sender.texts))
	}
	if sender.userIDs[0] != 7 {
		t.Fatalf("expected user 7, got %d", sender.userIDs[0])
	}
	if sender.texts[0] != TextForceEnd {
		t.Fatalf("unexpected text: %q", sender.texts[0])
	}
}

func TestNotifier_RejectsBadEvents(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	n := NewNotifier(sender, nil)

	if err := n.Handle(context.Background(), notificationMessage(`not json`)); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := n.Handle(context.Background(), notificationMessage(`{"type":"START"}`)); err == nil {
		t.Fatal("expected missing user id error")
	}
	if err := n.Handle(context.Background(), notificationMessage(`{"userId":1,"type":"NOPE"}`)); err == nil {
		t.Fatal("expected unknown type error")
	}
	if len(sender.texts) != 0 {
		t.Fatalf("expected no deliveries, got %v", sender.texts)
	}
}
