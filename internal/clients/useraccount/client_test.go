package useraccount

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/urbanmobility/rentals/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		MaxFailures:  2,
		ResetTimeout: time.Minute,
	}, nil)
}

func TestGetUser_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"username":"ivan","email":"ivan@example.com","bonuses":120}`))
	}))

	user, err := client.GetUser(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), user.ID)
	require.Equal(t, "ivan", user.Username)
	require.Equal(t, int64(120), user.Bonuses)
}

func TestGetUser_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetUser(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAddBonuses_SendsAmount(t *testing.T) {
	var got map[string]int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/users/7/bonuses", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.AddBonuses(context.Background(), 7, 15))
	require.Equal(t, int64(15), got["amount"])
}

func TestAddBonuses_BreakerOpensAndShortCircuits(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.ErrorIs(t, client.AddBonuses(ctx, 7, 1), domain.ErrUserServiceUnavailable)
	}
	require.Equal(t, 2, calls)

	require.ErrorIs(t, client.AddBonuses(ctx, 7, 1), domain.ErrUserServiceUnavailable)
	require.Equal(t, 2, calls)
}
