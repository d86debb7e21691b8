package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/urbanmobility/rentals/internal/domain"
)

func newActiveRental(userID, transportID int64) domain.Rental {
	now := time.Now().UTC()
	return domain.Rental{
		UserID:         userID,
		TransportID:    transportID,
		Status:         domain.RentalStatusActive,
		StartTime:      now,
		StartLatitude:  60.0,
		StartLongitude: 30.0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreate_AssignsIDAndEnforcesSingleActive(t *testing.T) {
	repo := NewRentalRepository()

	created, err := repo.Create(newActiveRental(1, 10))
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	if _, err := repo.Create(newActiveRental(1, 11)); !errors.Is(err, domain.ErrRentalAlreadyActive) {
		t.Fatalf("expected ErrRentalAlreadyActive, got %v", err)
	}

	// Другой пользователь стартует свободно.
	if _, err := repo.Create(newActiveRental(2, 11)); err != nil {
		t.Fatalf("create rental for another user: %v", err)
	}
}

func TestGetActiveByUser(t *testing.T) {
	repo := NewRentalRepository()

	created, err := repo.Create(newActiveRental(1, 10))
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}

	active, err := repo.GetActiveByUser(1)
	if err != nil {
		t.Fatalf("get active rental: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("expected rental %d, got %d", created.ID, active.ID)
	}

	if _, err := repo.GetActiveByUser(42); !errors.Is(err, domain.ErrNoActiveRental) {
		t.Fatalf("expected ErrNoActiveRental, got %v", err)
	}
}

func TestSave_VersionConflict(t *testing.T) {
	repo := NewRentalRepository()

	created, err := repo.Create(newActiveRental(1, 10))
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}

	first := created
	second := created

	if err := repo.Save(first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.Save(second); !errors.Is(err, domain.ErrRentalVersionConflict) {
		t.Fatalf("expected version conflict on stale save, got %v", err)
	}

	if err := repo.Save(domain.Rental{ID: 777}); !errors.Is(err, domain.ErrRentalNotFound) {
		t.Fatalf("expected ErrRentalNotFound, got %v", err)
	}
}

func TestSave_ConcurrentTerminators_ExactlyOneWins(t *testing.T) {
	repo := NewRentalRepository()

	created, err := repo.Create(newActiveRental(1, 10))
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	successes := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := created
			now := time.Now().UTC()
			r.Status = domain.RentalStatusCompleted
			r.EndTime = &now
			if err := repo.Save(r); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one racer to win, got %d", count)
	}
}

func TestStatusName(t *testing.T) {
	repo := NewRentalRepository()

	name, err := repo.StatusName(domain.RentalStatusCompleted)
	if err != nil {
		t.Fatalf("status name: %v", err)
	}
	if name != "COMPLETED" {
		t.Fatalf("expected COMPLETED, got %s", name)
	}

	if _, err := repo.StatusName(domain.RentalStatus("UNKNOWN")); !errors.Is(err, domain.ErrStatusNotFound) {
		t.Fatalf("expected ErrStatusNotFound, got %v", err)
	}
}
