package domain

// RentalRepository описывает требования к хранилищу аренд.
//
// Аренды никогда не удаляются: терминальные записи остаются историей.
type RentalRepository interface {
	// Create сохраняет новую аренду и возвращает её с присвоенным ID.
	// Возвращает ErrRentalAlreadyActive, если у пользователя уже есть
	// активная аренда.
	Create(rental Rental) (Rental, error)
	// Get возвращает аренду по идентификатору или ErrRentalNotFound.
	Get(id int64) (Rental, error)
	// GetActiveByUser возвращает единственную активную аренду пользователя
	// или ErrNoActiveRental.
	GetActiveByUser(userID int64) (Rental, error)
	// Save применяет обновления к аренде с учётом optimistic locking:
	// при несовпадении версии возвращает ErrRentalVersionConflict.
	Save(rental Rental) error
	// StatusName возвращает отображаемое имя статуса из справочника.
	// Отсутствующая запись — дефект конфигурации (ErrStatusNotFound).
	StatusName(status RentalStatus) (string, error)
}
