package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/urbanmobility/rentals/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type rentalRepository struct {
	db *sql.DB
}

// NewRentalRepository создаёт PostgreSQL-реализацию RentalRepository.
func NewRentalRepository(store *Store) domain.RentalRepository {
	return &rentalRepository{db: store.DB()}
}

// Create сохраняет новую аренду. Частичный уникальный индекс
// uq_rentals_one_active_per_user превращает гонку двух стартов одного
// пользователя в unique violation, который мы отдаём как доменный конфликт.
func (r *rentalRepository) Create(rental domain.Rental) (domain.Rental, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO rentals (
			user_id, transport_id, status, start_time, end_time,
			start_latitude, start_longitude, end_latitude, end_longitude,
			duration_minutes, total_cost, distance_km, completion_note,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id
	`,
		rental.UserID, rental.TransportID, string(rental.Status),
		rental.StartTime, rental.EndTime,
		rental.StartLatitude, rental.StartLongitude,
		rental.EndLatitude, rental.EndLongitude,
		rental.DurationMinutes, rental.TotalCost, rental.DistanceKm,
		rental.CompletionNote, rental.Version,
		rental.CreatedAt, rental.UpdatedAt,
	).Scan(&rental.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Rental{}, domain.ErrRentalAlreadyActive
		}
		return domain.Rental{}, fmt.Errorf("insert rental: %w", err)
	}

	return rental, nil
}

func (r *rentalRepository) Get(id int64) (domain.Rental, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rental, err := r.scanOne(r.db.QueryRowContext(ctx, selectRentalQuery+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Rental{}, domain.ErrRentalNotFound
		}
		return domain.Rental{}, fmt.Errorf("select rental: %w", err)
	}

	return rental, nil
}

func (r *rentalRepository) GetActiveByUser(userID int64) (domain.Rental, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rental, err := r.scanOne(r.db.QueryRowContext(ctx,
		selectRentalQuery+` WHERE user_id = $1 AND status = $2`,
		userID, string(domain.RentalStatusActive),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Rental{}, domain.ErrNoActiveRental
		}
		return domain.Rental{}, fmt.Errorf("select active rental: %w", err)
	}

	return rental, nil
}

// Save перезаписывает аренду с проверкой версии (optimistic locking).
func (r *rentalRepository) Save(rental domain.Rental) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE rentals
		SET status = $1,
		    end_time = $2,
		    end_latitude = $3,
		    end_longitude = $4,
		    duration_minutes = $5,
		    total_cost = $6,
		    distance_km = $7,
		    completion_note = $8,
		    version = version + 1,
		    updated_at = $9
		WHERE id = $10
		  AND version = $11
	`,
		string(rental.Status),
		rental.EndTime,
		rental.EndLatitude,
		rental.EndLongitude,
		rental.DurationMinutes,
		rental.TotalCost,
		rental.DistanceKm,
		rental.CompletionNote,
		rental.UpdatedAt,
		rental.ID,
		rental.Version,
	)
	if err != nil {
		return fmt.Errorf("update rental: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.rentalExists(ctx, rental.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRentalNotFound
		}
		return domain.ErrRentalVersionConflict
	}

	return nil
}

// StatusName возвращает отображаемое имя статуса из справочника.
func (r *rentalRepository) StatusName(status domain.RentalStatus) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var name string
	err := r.db.QueryRowContext(ctx, `
		SELECT name FROM rental_statuses WHERE code = $1
	`, string(status)).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrStatusNotFound
		}
		return "", fmt.Errorf("select status name: %w", err)
	}

	return name, nil
}

const selectRentalQuery = `
	SELECT id, user_id, transport_id, status, start_time, end_time,
	       start_latitude, start_longitude, end_latitude, end_longitude,
	       duration_minutes, total_cost, distance_km, completion_note,
	       version, created_at, updated_at
	FROM rentals`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *rentalRepository) scanOne(row rowScanner) (domain.Rental, error) {
	var (
		rental  domain.Rental
		status  string
		endTime sql.NullTime
		endLat  sql.NullFloat64
		endLng  sql.NullFloat64
	)

	if err := row.Scan(
		&rental.ID, &rental.UserID, &rental.TransportID, &status,
		&rental.StartTime, &endTime,
		&rental.StartLatitude, &rental.StartLongitude, &endLat, &endLng,
		&rental.DurationMinutes, &rental.TotalCost, &rental.DistanceKm,
		&rental.CompletionNote, &rental.Version,
		&rental.CreatedAt, &rental.UpdatedAt,
	); err != nil {
		return domain.Rental{}, err
	}

	rental.Status = domain.RentalStatus(status)
	if endTime.Valid {
		t := endTime.Time.UTC()
		rental.EndTime = &t
	}
	if endLat.Valid {
		v := endLat.Float64
		rental.EndLatitude = &v
	}
	if endLng.Valid {
		v := endLng.Float64
		rental.EndLongitude = &v
	}

	return rental, nil
}

func (r *rentalRepository) rentalExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM rentals WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check rental exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.RentalRepository = (*rentalRepository)(nil)
