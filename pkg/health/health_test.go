package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ping(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestChecker_Run(t *testing.T) {
	t.Parallel()

	c := health.NewChecker(0)
	c.Register("catalog", health.FromPing(ping(nil), false))
	assert.Equal(t, health.StatusUp, c.Run(context.Background()).Status)

	c.Register("redis", health.FromPing(ping(errors.New("connection refused")), true))
	report := c.Run(context.Background())
	assert.Equal(t, health.StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)

	c.Register("catalog", health.FromPing(ping(errors.New("not loaded")), false))
	assert.Equal(t, health.StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	c := health.NewChecker(0)
	c.Register("catalog", health.FromPing(ping(errors.New("not loaded")), false))

	rec := httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report health.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, health.StatusDown, report.Status)

	rec = httptest.NewRecorder()
	c.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
