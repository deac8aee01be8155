package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats map[string]int64

func (f fixedStats) Stats() map[string]int64 { return f }

func healthRouter(hc *HealthChecker) http.Handler {
	return SetupRoutes(NewHandlers(&MockEvents{}, &MockStats{}, nil, time.UTC), hc, nil, RouterOptions{})
}

func TestHealth_OK(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hc := NewHealthChecker(db, nil, fixedStats{"events_stored": 12})
	rec := get(t, healthRouter(hc), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "up", checks["database"].(map[string]interface{})["status"])
	assert.Equal(t, "not_configured", checks["redis"].(map[string]interface{})["status"])
	assert.EqualValues(t, 12, body["webhook"].(map[string]interface{})["events_stored"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	db.Close()

	rec := get(t, healthRouter(NewHealthChecker(db, nil, nil)), "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])
}

func TestHealth_RedisDownIsDegraded(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	hc := NewHealthChecker(db, client, nil)

	rec := get(t, healthRouter(hc), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	mr.Close()
	rec = get(t, healthRouter(hc), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestLiveness(t *testing.T) {
	rec := get(t, healthRouter(NewHealthChecker(nil, nil, nil)), "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", decode(t, rec)["status"])
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42*time.Second))
	assert.Equal(t, "3m5s", formatUptime(3*time.Minute+5*time.Second))
	assert.Equal(t, "26h0m1s", formatUptime(26*time.Hour+time.Second))
}
