package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
)

func newWindowService(t *testing.T, now time.Time) *ReportingService {
	t.Helper()
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	require.NoError(t, err)
	svc := NewReportingService(nil, logger)
	svc.nowFunc = func() time.Time { return now }
	return svc
}

func TestResolveWindowDefaults(t *testing.T) {
	now := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)
	svc := newWindowService(t, now)

	window, err := svc.ResolveWindow(WindowParams{})
	require.NoError(t, err)
	assert.True(t, window.To.Equal(now))
	assert.True(t, window.From.Equal(now.AddDate(0, 0, -30)))
}

func TestResolveWindowExplicitBounds(t *testing.T) {
	svc := newWindowService(t, time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC))

	window, err := svc.ResolveWindow(WindowParams{
		From: "2026-07-01T00:00:00Z",
		To:   "2026-07-10T12:30:00+02:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), window.From)
	assert.Equal(t, time.Date(2026, 7, 10, 10, 30, 0, 0, time.UTC), window.To)
}

func TestResolveWindowDeprecatedAliases(t *testing.T) {
	svc := newWindowService(t, time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC))

	window, err := svc.ResolveWindow(WindowParams{
		StartAt: "2026-07-01",
		EndAt:   "2026-07-10",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), window.From)
	assert.Equal(t, time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), window.To)

	t.Run("canonical names win over aliases", func(t *testing.T) {
		window, err := svc.ResolveWindow(WindowParams{
			From:    "2026-07-05",
			StartAt: "2026-07-01",
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC), window.From)
	})
}

func TestResolveWindowTimezoneAnchoring(t *testing.T) {
	svc := newWindowService(t, time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC))

	window, err := svc.ResolveWindow(WindowParams{
		From:     "2026-07-01",
		To:       "2026-07-02",
		Timezone: "America/Bogota",
	})
	require.NoError(t, err)
	// Bogota is UTC-5 year round; local midnight is 05:00 UTC.
	assert.Equal(t, time.Date(2026, 7, 1, 5, 0, 0, 0, time.UTC), window.From)
	assert.Equal(t, time.Date(2026, 7, 2, 5, 0, 0, 0, time.UTC), window.To)
}

func TestResolveWindowErrors(t *testing.T) {
	svc := newWindowService(t, time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC))

	t.Run("bad timezone", func(t *testing.T) {
		_, err := svc.ResolveWindow(WindowParams{Timezone: "Mars/Olympus"})
		var validation *tracking.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "tz", validation.Field)
	})

	t.Run("malformed bound", func(t *testing.T) {
		_, err := svc.ResolveWindow(WindowParams{From: "last tuesday"})
		assert.Error(t, err)
	})

	t.Run("inverted window", func(t *testing.T) {
		_, err := svc.ResolveWindow(WindowParams{
			From: "2026-07-10",
			To:   "2026-07-01",
		})
		assert.Error(t, err)
	})
}
