package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/urbanmobility/rentals/internal/domain"
	"github.com/urbanmobility/rentals/internal/service/breaker"
)

const defaultTimeout = 3 * time.Second

// Client — resilient-клиент сервиса transport-inventory. Каждая операция
// защищена собственным circuit breaker'ом с типизированным fallback'ом.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry

	getBreaker    *breaker.Breaker
	statusBreaker *breaker.Breaker
	coordsBreaker *breaker.Breaker
}

// Config задаёт адрес сервиса и пороги breaker'ов.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
}

// NewClient создаёт клиента transport-inventory.
func NewClient(cfg Config, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "transport-client")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	fallback := func() error { return domain.ErrTransportServiceUnavailable }
	opts := breaker.Options{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
		Trip:         domain.IsServiceUnavailable,
		Logger:       logger,
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		http:          &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
		getBreaker:    breaker.New("transport.get", fallback, opts),
		statusBreaker: breaker.New("transport.update-status", fallback, opts),
		coordsBreaker: breaker.New("transport.update-coordinates", fallback, opts),
	}
}

type transportDTO struct {
	ID        int64    `json:"id"`
	Type      string   `json:"type"`
	Status    string   `json:"availabilityStatus"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// GetTransport возвращает снапшот транспорта.
func (c *Client) GetTransport(ctx context.Context, id int64) (domain.TransportSnapshot, error) {
	var snapshot domain.TransportSnapshot

	err := c.getBreaker.Execute(func() error {
		body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/api/transport/%d", c.baseURL, id), nil, domain.ErrTransportNotFound)
		if err != nil {
			return err
		}

		var dto transportDTO
		if err := json.Unmarshal(body, &dto); err != nil {
			return fmt.Errorf("decode transport response: %w", domain.ErrTransportServiceUnavailable)
		}
		snapshot = domain.TransportSnapshot{
			ID:        dto.ID,
			Type:      dto.Type,
			Status:    domain.TransportStatus(dto.Status),
			Latitude:  dto.Latitude,
			Longitude: dto.Longitude,
		}
		return nil
	})
	if err != nil {
		return domain.TransportSnapshot{}, err
	}
	return snapshot, nil
}

// UpdateStatus переводит транспорт в указанный статус.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status domain.TransportStatus) error {
	payload := map[string]any{"status": string(status)}
	return c.statusBreaker.Execute(func() error {
		_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/api/transport/%d/status", c.baseURL, id), payload, domain.ErrTransportNotFound)
		return err
	})
}

// UpdateCoordinates фиксирует новую позицию транспорта.
func (c *Client) UpdateCoordinates(ctx context.Context, id int64, lat, lng float64) error {
	payload := map[string]any{"latitude": lat, "longitude": lng}
	return c.coordsBreaker.Execute(func() error {
		_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/api/transport/%d/coordinates", c.baseURL, id), payload, domain.ErrTransportNotFound)
		return err
	})
}

// do выполняет HTTP-запрос и нормализует ошибки: 404 превращается в notFoundErr,
// любой транспортный отказ — в ErrTransportServiceUnavailable.
func (c *Client) do(ctx context.Context, method, url string, payload any, notFoundErr error) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Warn("transport service request failed")
		return nil, fmt.Errorf("%s %s: %w", method, url, domain.ErrTransportServiceUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", domain.ErrTransportServiceUnavailable)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFoundErr
	default:
		c.logger.WithFields(log.Fields{"url": url, "status": resp.StatusCode}).Warn("transport service returned error status")
		return nil, fmt.Errorf("%s %s: status %d: %w", method, url, resp.StatusCode, domain.ErrTransportServiceUnavailable)
	}
}

var _ domain.TransportService = (*Client)(nil)
