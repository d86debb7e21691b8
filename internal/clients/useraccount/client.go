package useraccount

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

// Client — resilient-клиент сервиса user-account, по breaker'у на операцию.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry

	getBreaker     *breaker.Breaker
	bonusesBreaker *breaker.Breaker
}

// Config задаёт адрес сервиса и пороги breaker'ов.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
}

// NewClient создаёт клиента user-account.
func NewClient(cfg Config, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "user-account-client")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	fallback := func() error { return domain.ErrUserServiceUnavailable }
	opts := breaker.Options{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
		Trip:         domain.IsServiceUnavailable,
		Logger:       logger,
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		http:           &http.Client{Timeout: cfg.Timeout},
		logger:         logger,
		getBreaker:     breaker.New("user.get", fallback, opts),
		bonusesBreaker: breaker.New("user.add-bonuses", fallback, opts),
	}
}

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Bonuses  int64  `json:"bonuses"`
}

// GetUser возвращает снапшот пользователя.
func (c *Client) GetUser(ctx context.Context, id int64) (domain.UserSnapshot, error) {
	var snapshot domain.UserSnapshot

	err := c.getBreaker.Execute(func() error {
		body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/api/users/%d", c.baseURL, id), nil)
		if err != nil {
			return err
		}

		var dto userDTO
		if err := json.Unmarshal(body, &dto); err != nil {
			return fmt.Errorf("decode user response: %w", domain.ErrUserServiceUnavailable)
		}
		snapshot = domain.UserSnapshot{
			ID:       dto.ID,
			Username: dto.Username,
			Email:    dto.Email,
			Bonuses:  dto.Bonuses,
		}
		return nil
	})
	if err != nil {
		return domain.UserSnapshot{}, err
	}
	return snapshot, nil
}

// AddBonuses начисляет пользователю amount бонусных баллов.
func (c *Client) AddBonuses(ctx context.Context, id int64, amount int64) error {
	payload := map[string]any{"amount": amount}
	return c.bonusesBreaker.Execute(func() error {
		_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/api/users/%d/bonuses", c.baseURL, id), payload)
		return err
	})
}

func (c *Client) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
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
		c.logger.WithError(err).WithField("url", url).Warn("user account service request failed")
		return nil, fmt.Errorf("%s %s: %w", method, url, domain.ErrUserServiceUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", domain.ErrUserServiceUnavailable)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrUserNotFound
	default:
		c.logger.WithFields(log.Fields{"url": url, "status": resp.StatusCode}).Warn("user account service returned error status")
		return nil, fmt.Errorf("%s %s: status %d: %w", method, url, resp.StatusCode, domain.ErrUserServiceUnavailable)
	}
}

var _ domain.UserService = (*Client)(nil)
