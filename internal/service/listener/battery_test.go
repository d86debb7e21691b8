package listener

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/service/rental"
)

type stubForceEnder struct {
	err    error
	result rental.ForceEndResult
	calls  []int64
}

func (s *stubForceEnder) ForceEndBatteryDepleted(_ context.Context, rentalID int64, _, _ float64) (rental.ForceEndResult, error) {
	s.calls = append(s.calls, rentalID)
	if s.err != nil {
		return rental.ForceEndResult{}, s.err
	}
	return s.result, nil
}

func endRentalMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: "end-rental",
		Value: []byte(value),
	}
}

func TestBatteryListener_ForceEndsRental(t *testing.T) {
	t.Parallel()

	orch := &stubForceEnder{
		result: rental.ForceEndResult{
			Rental:   domain.Rental{ID: 5, UserID: 1, Status: domain.RentalStatusCompleted},
			RenterID: 1,
		},
	}
	l := NewBatteryListener(orch, nil)

	err := l.Handle(context.Background(), endRentalMessage(`{"userId":1,"rentalId":5,"lat":60.1,"lon":30.1}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(orch.calls) != 1 || orch.calls[0] != 5 {
		t.Fatalf("expected force end for rental 5, got %v", orch.calls)
	}
}

func TestBatteryListener_AlreadyEndedIsNoOp(t *testing.T) {
	t.Parallel()

	orch := &stubForceEnder{err: domain.ErrRentalAlreadyEnded}
	l := NewBatteryListener(orch, nil)

	err := l.Handle(context.Background(), endRentalMessage(`{"userId":1,"rentalId":5,"lat":60.1,"lon":30.1}`))
	if err != nil {
		t.Fatalf("expected redelivery to be acknowledged, got %v", err)
	}
}

func TestBatteryListener_OtherErrorsSurface(t *testing.T) {
	t.Parallel()

	orch := &stubForceEnder{err: domain.ErrRentalNotFound}
	l := NewBatteryListener(orch, nil)

	err := l.Handle(context.Background(), endRentalMessage(`{"userId":1,"rentalId":404,"lat":60.1,"lon":30.1}`))
	if !errors.Is(err, domain.ErrRentalNotFound) {
		t.Fatalf("expected ErrRentalNotFound, got %v", err)
	}
}

func TestBatteryListener_RejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	orch := &stubForceEnder{}
	l := NewBatteryListener(orch, nil)

	if err := l.Handle(context.Background(), endRentalMessage(`not json`)); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := l.Handle(context.Background(), endRentalMessage(`{"userId":1}`)); err == nil {
		t.Fatal("expected missing rental id error")
	}
	if len(orch.calls) != 0 {
		t.Fatalf("expected no force end calls, got %v", orch.calls)
	}
}
