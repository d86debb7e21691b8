package domain

import "time"

// RentalStatus описывает жизненный цикл аренды транспорта.
type RentalStatus string

const (
	// RentalStatusActive — аренда идёт, транспорт закреплён за пользователем.
	RentalStatusActive RentalStatus = "ACTIVE"
	// RentalStatusCompleted — аренда завершена пользователем или принудительно.
	RentalStatusCompleted RentalStatus = "COMPLETED"
	// RentalStatusCancelled — аренда отменена до начала поездки, без оплаты.
	RentalStatusCancelled RentalStatus = "CANCELLED"
)

// Пометки завершения: принудительное завершение хранится как COMPLETED
// с поясняющей note, отдельного статуса для force-end нет.
const (
	CompletionNoteForced          = "force ended by operator"
	CompletionNoteBatteryDepleted = "force ended: battery depleted"
)

// Rental агрегирует состояние одной аренды транспорта.
type Rental struct {
	ID          int64
	UserID      int64
	TransportID int64
	Status      RentalStatus

	StartTime time.Time
	// EndTime устанавливается ровно один раз при переходе в терминальный статус.
	EndTime *time.Time

	StartLatitude  float64
	StartLongitude float64
	EndLatitude    *float64
	EndLongitude   *float64

	// Производные поля, вычисляются только при завершении.
	DurationMinutes int64
	TotalCost       float64
	DistanceKm      float64

	// CompletionNote отличает принудительное завершение от обычного.
	CompletionNote string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal сообщает, находится ли аренда в поглощающем статусе.
func (r *Rental) IsTerminal() bool {
	return r.Status == RentalStatusCompleted || r.Status == RentalStatusCancelled
}

// ValidateInvariants проверяет базовые инварианты аренды и возвращает список замечаний.
func (r *Rental) ValidateInvariants() []error {
	var errs []error

	if r.UserID <= 0 {
		errs = append(errs, ErrUserIDRequired)
	}
	if r.TransportID <= 0 {
		errs = append(errs, ErrTransportIDRequired)
	}

	// end_time заполнен тогда и только тогда, когда статус терминальный.
	if r.IsTerminal() && r.EndTime == nil {
		errs = append(errs, ErrEndTimeMissing)
	}
	if r.Status == RentalStatusActive && r.EndTime != nil {
		errs = append(errs, ErrEndTimeUnexpected)
	}

	// Завершённая аренда стоит не меньше платы за разблокировку,
	// отменённая — ровно ноль.
	if r.Status == RentalStatusCompleted && r.DurationMinutes >= 0 && r.TotalCost < UnlockFee {
		errs = append(errs, ErrCostBelowUnlockFee)
	}
	if r.Status == RentalStatusCancelled && (r.TotalCost != 0 || r.DurationMinutes != 0) {
		errs = append(errs, ErrCancelledNotFree)
	}

	return errs
}
