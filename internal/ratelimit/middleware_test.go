package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/ratelimit"
	"github.com/noah-isme/backoffice/internal/tenant"
)

func TestMiddlewareBlocksAfterLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.New(client, 2)
	require.NoError(t, err)

	var hits int
	handler := ratelimit.Middleware(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)
	blocked := do()
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))
	require.Equal(t, 2, hits)
}

func TestKeyIncludesTenant(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", ratelimit.Key(req))

	req = req.WithContext(tenant.WithTenant(req.Context(), "acme"))
	require.Equal(t, "acme:10.0.0.1", ratelimit.Key(req))
}
