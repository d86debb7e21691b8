package memory

import (
	"sync"

	"github.com/urbanmobility/rentals/internal/domain"
)

// rentalRepositoryInMemory — in-memory реализация RentalRepository для
// локальной разработки и тестов. Семантика конфликтов повторяет
// PostgreSQL-реализацию.
type rentalRepositoryInMemory struct {
	mu          sync.RWMutex
	nextID      int64
	items       map[int64]domain.Rental
	statusNames map[domain.RentalStatus]string
}

// NewRentalRepository возвращает in-memory репозиторий с предзаполненным
// справочником статусов.
func NewRentalRepository() domain.RentalRepository {
	return &rentalRepositoryInMemory{
		items: make(map[int64]domain.Rental),
		statusNames: map[domain.RentalStatus]string{
			domain.RentalStatusActive:    "ACTIVE",
			domain.RentalStatusCompleted: "COMPLETED",
			domain.RentalStatusCancelled: "CANCELLED",
		},
	}
}

// Create сохраняет новую аренду, охраняя инвариант единственной активной
// аренды на пользователя.
func (r *rentalRepositoryInMemory) Create(rental domain.Rental) (domain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.UserID == rental.UserID && existing.Status == domain.RentalStatusActive {
			return domain.Rental{}, domain.ErrRentalAlreadyActive
		}
	}

	r.nextID++
	rental.ID = r.nextID
	rental.Version = 0
	r.items[rental.ID] = rental
	return rental, nil
}

// Get возвращает аренду или ErrRentalNotFound.
func (r *rentalRepositoryInMemory) Get(id int64) (domain.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rental, ok := r.items[id]
	if !ok {
		return domain.Rental{}, domain.ErrRentalNotFound
	}
	return rental, nil
}

// GetActiveByUser возвращает единственную активную аренду пользователя.
func (r *rentalRepositoryInMemory) GetActiveByUser(userID int64) (domain.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rental := range r.items {
		if rental.UserID == userID && rental.Status == domain.RentalStatusActive {
			return rental, nil
		}
	}
	return domain.Rental{}, domain.ErrNoActiveRental
}

// Save перезаписывает аренду, проверяя версию (optimistic locking).
func (r *rentalRepositoryInMemory) Save(rental domain.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[rental.ID]
	if !ok {
		return domain.ErrRentalNotFound
	}
	if current.Version != rental.Version {
		return domain.ErrRentalVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	rental.Version++
	r.items[rental.ID] = rental
	return nil
}

// StatusName возвращает имя статуса из справочника.
func (r *rentalRepositoryInMemory) StatusName(status domain.RentalStatus) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.statusNames[status]
	if !ok {
		return "", domain.ErrStatusNotFound
	}
	return name, nil
}

var _ domain.RentalRepository = (*rentalRepositoryInMemory)(nil)
