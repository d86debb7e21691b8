package domain

import (
	"errors"
	"testing"
	"time"
)

func validCompletedRental() Rental {
	now := time.Now().UTC()
	end := now.Add(15 * time.Minute)
	return Rental{
		ID:              1,
		UserID:          10,
		TransportID:     20,
		Status:          RentalStatusCompleted,
		StartTime:       now,
		EndTime:         &end,
		StartLatitude:   60.0,
		StartLongitude:  30.0,
		EndLatitude:     f(60.1),
		EndLongitude:    f(30.1),
		DurationMinutes: 15,
		TotalCost:       Cost(15),
		CreatedAt:       now,
		UpdatedAt:       end,
	}
}

func TestValidateInvariants_ValidRental(t *testing.T) {
	r := validCompletedRental()
	if errs := r.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no invariant violations, got %v", errs)
	}
}

func TestValidateInvariants_MissingReferences(t *testing.T) {
	r := validCompletedRental()
	r.UserID = 0
	r.TransportID = 0

	errs := r.ValidateInvariants()
	if !containsErr(errs, ErrUserIDRequired) {
		t.Error("expected ErrUserIDRequired")
	}
	if !containsErr(errs, ErrTransportIDRequired) {
		t.Error("expected ErrTransportIDRequired")
	}
}

func TestValidateInvariants_EndTimeIffTerminal(t *testing.T) {
	r := validCompletedRental()
	r.EndTime = nil
	if errs := r.ValidateInvariants(); !containsErr(errs, ErrEndTimeMissing) {
		t.Error("terminal rental without end_time must be rejected")
	}

	active := validCompletedRental()
	active.Status = RentalStatusActive
	if errs := active.ValidateInvariants(); !containsErr(errs, ErrEndTimeUnexpected) {
		t.Error("active rental with end_time must be rejected")
	}
}

func TestValidateInvariants_CostBounds(t *testing.T) {
	r := validCompletedRental()
	r.TotalCost = 0.5
	if errs := r.ValidateInvariants(); !containsErr(errs, ErrCostBelowUnlockFee) {
		t.Error("completed rental below unlock fee must be rejected")
	}

	cancelled := validCompletedRental()
	cancelled.Status = RentalStatusCancelled
	cancelled.TotalCost = 3.0
	cancelled.DurationMinutes = 4
	if errs := cancelled.ValidateInvariants(); !containsErr(errs, ErrCancelledNotFree) {
		t.Error("cancelled rental with non-zero cost must be rejected")
	}
}

func TestIsTerminal(t *testing.T) {
	r := Rental{Status: RentalStatusActive}
	if r.IsTerminal() {
		t.Error("active rental must not be terminal")
	}
	r.Status = RentalStatusCompleted
	if !r.IsTerminal() {
		t.Error("completed rental must be terminal")
	}
	r.Status = RentalStatusCancelled
	if !r.IsTerminal() {
		t.Error("cancelled rental must be terminal")
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsStateConflict(ErrRentalAlreadyActive) || !IsStateConflict(ErrRentalAlreadyEnded) {
		t.Error("state-conflict errors misclassified")
	}
	if !IsNotFound(ErrRentalNotFound) || !IsNotFound(ErrStatusNotFound) {
		t.Error("not-found errors misclassified")
	}
	if !IsServiceUnavailable(ErrTransportServiceUnavailable) || !IsServiceUnavailable(ErrUserServiceUnavailable) {
		t.Error("remote-dependency errors misclassified")
	}
	if IsStateConflict(ErrRentalNotFound) || IsServiceUnavailable(ErrNoActiveRental) {
		t.Error("classifiers must not overlap")
	}
	if !IsVersionConflict(ErrRentalVersionConflict) {
		t.Error("expected version conflict classifier to match")
	}
}

func containsErr(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
