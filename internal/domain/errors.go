package domain

import "errors"

var (
	// ErrRentalAlreadyActive — у пользователя уже есть активная аренда.
	ErrRentalAlreadyActive = errors.New("user already has an active rental")
	// ErrNoActiveRental — у пользователя нет активной аренды для End/Cancel.
	ErrNoActiveRental = errors.New("no active rental for user")
	// ErrRentalAlreadyEnded — аренда уже переведена в терминальный статус.
	ErrRentalAlreadyEnded = errors.New("rental already ended")
	// ErrRentalNotFound возвращается, если аренда не найдена в репозитории.
	ErrRentalNotFound = errors.New("rental not found")
	// ErrRentalVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrRentalVersionConflict = errors.New("rental version conflict")
	// ErrStatusNotFound — отсутствует справочная запись статуса; дефект конфигурации.
	ErrStatusNotFound = errors.New("rental status reference row not found")

	// Ошибки валидации инвариантов аренды.
	ErrUserIDRequired      = errors.New("user_id is required")
	ErrTransportIDRequired = errors.New("transport_id is required")
	ErrEndTimeMissing      = errors.New("terminal rental must have end_time")
	ErrEndTimeUnexpected   = errors.New("active rental must not have end_time")
	ErrCostBelowUnlockFee  = errors.New("completed rental cost is below unlock fee")
	ErrCancelledNotFree    = errors.New("cancelled rental must have zero cost and duration")

	// ErrTransportNotFound — транспорт не найден в transport-inventory сервисе.
	ErrTransportNotFound = errors.New("transport not found")
	// ErrTransportUnavailable — транспорт занят и не может быть арендован.
	ErrTransportUnavailable = errors.New("transport is not available")
	// ErrUserNotFound — пользователь не найден в user-account сервисе.
	ErrUserNotFound = errors.New("user not found")
	// ErrTransportServiceUnavailable — fallback circuit breaker'а transport-клиента.
	ErrTransportServiceUnavailable = errors.New("transport service unavailable")
	// ErrUserServiceUnavailable — fallback circuit breaker'а user-account-клиента.
	ErrUserServiceUnavailable = errors.New("user account service unavailable")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrRentalVersionConflict)
}

// IsStateConflict относит ошибку к классу state-conflict: ошибка клиента, без retry.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrRentalAlreadyActive) ||
		errors.Is(err, ErrNoActiveRental) ||
		errors.Is(err, ErrRentalAlreadyEnded) ||
		errors.Is(err, ErrTransportUnavailable)
}

// IsNotFound относит ошибку к классу not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRentalNotFound) ||
		errors.Is(err, ErrTransportNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrStatusNotFound)
}

// IsServiceUnavailable относит ошибку к классу remote-dependency: вызывающий может повторить позже.
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrTransportServiceUnavailable) ||
		errors.Is(err, ErrUserServiceUnavailable)
}
