package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/service/rental"
)

// Lifecycle — операции жизненного цикла аренды, которые обслуживает API.
type Lifecycle interface {
	Start(ctx context.Context, userID, transportID int64, lat, lng float64) (domain.Rental, error)
	End(ctx context.Context, userID int64, lat, lng float64) (domain.Rental, error)
	Cancel(ctx context.Context, userID int64) (domain.Rental, error)
	ForceEnd(ctx context.Context, rentalID int64, lat, lng float64) (rental.ForceEndResult, error)
}

// Handler обслуживает REST-эндпоинты аренды. Каждый вызов проходит через
// bounded pool: внешние задержки не съедают accept path.
type Handler struct {
	lifecycle Lifecycle
	pool      *rental.Pool
	logger    *log.Entry
}

// NewHandler создаёт HTTP-обработчик операций аренды.
func NewHandler(lifecycle Lifecycle, pool *rental.Pool, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	return &Handler{lifecycle: lifecycle, pool: pool, logger: logger}
}

// Router собирает маршруты API.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/rentals").Subrouter()
	api.HandleFunc("/start", h.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/end", h.handleEnd).Methods(http.MethodPost)
	api.HandleFunc("/cancel", h.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/force-end", h.handleForceEnd).Methods(http.MethodPost)
	return router
}

type startRequest struct {
	UserID      int64   `json:"userId"`
	TransportID int64   `json:"transportId"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type endRequest struct {
	UserID int64   `json:"userId"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

type cancelRequest struct {
	UserID int64 `json:"userId"`
}

type coordinatesRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type rentalResponse struct {
	ID              int64    `json:"id"`
	UserID          int64    `json:"userId"`
	TransportID     int64    `json:"transportId"`
	Status          string   `json:"status"`
	StartTime       string   `json:"startTime"`
	EndTime         *string  `json:"endTime,omitempty"`
	StartLatitude   float64  `json:"startLatitude"`
	StartLongitude  float64  `json:"startLongitude"`
	EndLatitude     *float64 `json:"endLatitude,omitempty"`
	EndLongitude    *float64 `json:"endLongitude,omitempty"`
	DurationMinutes int64    `json:"durationMinutes"`
	TotalCost       float64  `json:"totalCost"`
	DistanceKm      float64  `json:"distanceKm"`
}

type forceEndResponse struct {
	Rental   rentalResponse `json:"rental"`
	RenterID int64          `json:"renterId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toRentalResponse(r domain.Rental) rentalResponse {
	resp := rentalResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		TransportID:     r.TransportID,
		Status:          string(r.Status),
		StartTime:       r.StartTime.Format(time.RFC3339),
		StartLatitude:   r.StartLatitude,
		StartLongitude:  r.StartLongitude,
		EndLatitude:     r.EndLatitude,
		EndLongitude:    r.EndLongitude,
		DurationMinutes: r.DurationMinutes,
		TotalCost:       r.TotalCost,
		DistanceKm:      r.DistanceKm,
	}
	if r.EndTime != nil {
		endTime := r.EndTime.Format(time.RFC3339)
		resp.EndTime = &endTime
	}
	return resp
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.UserID <= 0 || req.TransportID <= 0 {
		h.writeError(w, http.StatusBadRequest, "userId and transportId are required")
		return
	}

	var result domain.Rental
	err := h.execute(r.Context(), func() error {
		var opErr error
		result, opErr = h.lifecycle.Start(r.Context(), req.UserID, req.TransportID, req.Lat, req.Lng)
		return opErr
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRentalResponse(result))
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		h.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	var result domain.Rental
	err := h.execute(r.Context(), func() error {
		var opErr error
		result, opErr = h.lifecycle.End(r.Context(), req.UserID, req.Lat, req.Lng)
		return opErr
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRentalResponse(result))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		h.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	var result domain.Rental
	err := h.execute(r.Context(), func() error {
		var opErr error
		result, opErr = h.lifecycle.Cancel(r.Context(), req.UserID)
		return opErr
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRentalResponse(result))
}

func (h *Handler) handleForceEnd(w http.ResponseWriter, r *http.Request) {
	rentalID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || rentalID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid rental id")
		return
	}

	var req coordinatesRequest
	if !h.decode(w, r, &req) {
		return
	}

	var result rental.ForceEndResult
	err = h.execute(r.Context(), func() error {
		var opErr error
		result, opErr = h.lifecycle.ForceEnd(r.Context(), rentalID, req.Lat, req.Lng)
		return opErr
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, forceEndResponse{
		Rental:   toRentalResponse(result.Rental),
		RenterID: result.RenterID,
	})
}

// execute прогоняет операцию через pool, если он сконфигурирован.
func (h *Handler) execute(ctx context.Context, fn func() error) error {
	if h.pool == nil {
		return fn()
	}
	return h.pool.Execute(ctx, fn)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeDomainError отображает таксономию ошибок домена на HTTP-статусы.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsStateConflict(err):
		h.writeError(w, http.StatusConflict, err.Error())
	case domain.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error())
	case domain.IsServiceUnavailable(err):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case isValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("unhandled rental operation error")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidation(err error) bool {
	return errors.Is(err, domain.ErrUserIDRequired) || errors.Is(err, domain.ErrTransportIDRequired)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("failed to encode response")
	}
}
