package domain

import (
	"math"
	"time"
)

// Тарификация аренды: фиксированная плата за разблокировку плюс
// поминутная ставка.
const (
	// UnlockFee — стоимость разблокировки транспорта.
	UnlockFee = 1.00
	// BaseRatePerMinute — ставка за каждую полную минуту аренды.
	BaseRatePerMinute = 0.50

	// kmPerDegree — километров в одном градусе широты; плоская аппроксимация,
	// пригодная только для внутригородских расстояний.
	kmPerDegree = 111.0
)

// DurationMinutes возвращает число полных минут между start и end.
// Отрицательная длительность (рассинхрон часов) приводится к нулю.
func DurationMinutes(start, end time.Time) int64 {
	minutes := int64(math.Floor(end.Sub(start).Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}

// Cost считает полную стоимость аренды за durationMinutes полных минут.
// Нулевая и отрицательная длительность дают ровно плату за разблокировку.
func Cost(durationMinutes int64) float64 {
	if durationMinutes <= 0 {
		return UnlockFee
	}
	return UnlockFee + BaseRatePerMinute*float64(durationMinutes)
}

// Distance считает расстояние в километрах между двумя точками по плоской
// аппроксимации: расхождение долгот корректируется косинусом первой широты.
// Любая отсутствующая координата даёт 0.0.
func Distance(lat1, lng1, lat2, lng2 *float64) float64 {
	if lat1 == nil || lng1 == nil || lat2 == nil || lng2 == nil {
		return 0.0
	}

	latDiff := math.Abs(*lat1-*lat2) * kmPerDegree
	lngDiff := math.Abs(*lng1-*lng2) * kmPerDegree * math.Cos(*lat1*math.Pi/180.0)
	return math.Sqrt(latDiff*latDiff + lngDiff*lngDiff)
}
