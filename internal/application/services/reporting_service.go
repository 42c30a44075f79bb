package services

import (
	"context"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
)

// defaultWindowDays is the lookback applied when the caller gives no
// lower bound.
const defaultWindowDays = 30

// WindowParams carries the raw query inputs for window resolution.
// StartAt/EndAt are deprecated aliases kept for older dashboard builds;
// From/To win when both are present.
type WindowParams struct {
	From     string
	To       string
	StartAt  string
	EndAt    string
	Timezone string
}

// ReportingService resolves reporting windows and serves versioned
// aggregate reports.
type ReportingService struct {
	reports tracking.ReportRepository
	logger  *logging.ChanneledLogger
	nowFunc func() time.Time
}

// NewReportingService creates a new reporting service with its dependencies.
func NewReportingService(reports tracking.ReportRepository, logger *logging.ChanneledLogger) *ReportingService {
	return &ReportingService{
		reports: reports,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// ResolveWindow turns raw query parameters into a UTC window. Bounds
// accept RFC3339 timestamps or bare dates; bare dates anchor at midnight
// in the requested IANA timezone (UTC when absent) before conversion.
// Defaults are to=now and from=to minus thirty days.
func (s *ReportingService) ResolveWindow(params WindowParams) (tracking.Window, error) {
	loc := time.UTC
	if params.Timezone != "" {
		parsed, err := time.LoadLocation(params.Timezone)
		if err != nil {
			return tracking.Window{}, tracking.NewValidationError("tz", "must be a valid IANA timezone")
		}
		loc = parsed
	}

	fromRaw := params.From
	if fromRaw == "" {
		fromRaw = params.StartAt
	}
	toRaw := params.To
	if toRaw == "" {
		toRaw = params.EndAt
	}

	to := s.nowFunc().UTC()
	if toRaw != "" {
		parsed, err := parseBound(toRaw, loc)
		if err != nil {
			return tracking.Window{}, tracking.NewValidationError("to", "must be RFC3339 or YYYY-MM-DD")
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -defaultWindowDays)
	if fromRaw != "" {
		parsed, err := parseBound(fromRaw, loc)
		if err != nil {
			return tracking.Window{}, tracking.NewValidationError("from", "must be RFC3339 or YYYY-MM-DD")
		}
		from = parsed
	}

	if from.After(to) {
		return tracking.Window{}, tracking.NewValidationError("from", "must not be after to")
	}
	return tracking.Window{From: from, To: to}, nil
}

func parseBound(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// KPIs returns window totals with optional product/catalog narrowing.
func (s *ReportingService) KPIs(ctx context.Context, window tracking.Window, productID, catalogID string, topLimit int) (*tracking.KPIReport, error) {
	start := time.Now()
	report, err := s.reports.KPIs(ctx, window, productID, catalogID, topLimit)
	if err != nil {
		return nil, err
	}
	s.logger.Reporting().Debug("KPI report computed",
		"from", window.From, "to", window.To,
		"durationMs", time.Since(start).Milliseconds())
	return report, nil
}

// TopProducts ranks products by event counts within the window.
func (s *ReportingService) TopProducts(ctx context.Context, window tracking.Window, limit int) (*tracking.TopProductsReport, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.reports.TopProducts(ctx, window, limit)
}

// TopRequestedProducts ranks products by request-line demand.
func (s *ReportingService) TopRequestedProducts(ctx context.Context, window tracking.Window, limit int) (*tracking.TopRequestedReport, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.reports.TopRequestedProducts(ctx, window, limit)
}

// UTMReferrer groups window events by acquisition dimensions.
func (s *ReportingService) UTMReferrer(ctx context.Context, window tracking.Window, limit int) (*tracking.UTMReferrerReport, error) {
	if limit <= 0 {
		limit = 25
	}
	return s.reports.UTMReferrer(ctx, window, limit)
}

// Funnel returns distinct session counts per ordered funnel stage.
func (s *ReportingService) Funnel(ctx context.Context, window tracking.Window) (*tracking.FunnelReport, error) {
	return s.reports.Funnel(ctx, window)
}
