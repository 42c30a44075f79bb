package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
)

// SQLReportRepository computes windowed reporting aggregates. Each
// aggregate comes from one query over a half-open window [from, to);
// ties are always broken by product id so repeated calls over the same
// data return identical rankings.
type SQLReportRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLReportRepository creates a new instance of the repository.
func NewSQLReportRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLReportRepository {
	return &SQLReportRepository{
		db:     db,
		logger: logger,
	}
}

const eventCountColumns = `
	SUM(CASE WHEN event_name = 'impression' THEN 1 ELSE 0 END),
	SUM(CASE WHEN event_name = 'click' THEN 1 ELSE 0 END),
	SUM(CASE WHEN event_name = 'cta_click' THEN 1 ELSE 0 END),
	SUM(CASE WHEN event_name = 'add_to_request' THEN 1 ELSE 0 END),
	SUM(CASE WHEN event_name = 'request_submitted' THEN 1 ELSE 0 END)`

// KPIs returns window totals plus per-product and per-catalog breakdowns,
// optionally narrowed to one product or catalog.
func (r *SQLReportRepository) KPIs(ctx context.Context, window tracking.Window, productID, catalogID string, topLimit int) (*tracking.KPIReport, error) {
	start := time.Now()
	report := &tracking.KPIReport{
		Version:   tracking.ReportVersion,
		From:      window.From,
		To:        window.To,
		ByProduct: []tracking.ProductKPI{},
		ByCatalog: []tracking.CatalogKPI{},
	}

	totalQuery := `SELECT` + eventCountColumns + `
		FROM tracking_events WHERE received_at >= ? AND received_at < ?`
	args := []any{window.From.UTC(), window.To.UTC()}
	if productID != "" {
		totalQuery += ` AND product_id = ?`
		args = append(args, productID)
	}
	if catalogID != "" {
		totalQuery += ` AND catalog_id = ?`
		args = append(args, catalogID)
	}
	var impressions, clicks, ctaClicks, addToRequests, submitted *int
	err := r.db.QueryRowContext(ctx, totalQuery, args...).
		Scan(&impressions, &clicks, &ctaClicks, &addToRequests, &submitted)
	if err != nil {
		return nil, fmt.Errorf("failed to compute kpi totals: %w", err)
	}
	report.Total = tracking.KPISummary{
		Impressions:       intOrZero(impressions),
		Clicks:            intOrZero(clicks),
		CTAClicks:         intOrZero(ctaClicks),
		AddToRequests:     intOrZero(addToRequests),
		RequestsSubmitted: intOrZero(submitted),
	}
	report.Total.CTR = tracking.CTR(report.Total.Clicks, report.Total.Impressions)

	if topLimit <= 0 {
		topLimit = 10
	}

	byProduct, err := r.productBreakdown(ctx, window, productID, catalogID, topLimit)
	if err != nil {
		return nil, err
	}
	report.ByProduct = byProduct

	byCatalog, err := r.catalogBreakdown(ctx, window, productID, catalogID, topLimit)
	if err != nil {
		return nil, err
	}
	report.ByCatalog = byCatalog

	database.CheckAndLogSlowQuery(r.logger, totalQuery, time.Since(start))
	return report, nil
}

func (r *SQLReportRepository) productBreakdown(ctx context.Context, window tracking.Window, productID, catalogID string, limit int) ([]tracking.ProductKPI, error) {
	query := `
		SELECT product_id,
			SUM(CASE WHEN event_name = 'impression' THEN 1 ELSE 0 END) AS impressions,
			SUM(CASE WHEN event_name = 'click' THEN 1 ELSE 0 END) AS clicks
		FROM tracking_events
		WHERE received_at >= ? AND received_at < ? AND product_id IS NOT NULL`
	args := []any{window.From.UTC(), window.To.UTC()}
	if productID != "" {
		query += ` AND product_id = ?`
		args = append(args, productID)
	}
	if catalogID != "" {
		query += ` AND catalog_id = ?`
		args = append(args, catalogID)
	}
	query += `
		GROUP BY product_id
		ORDER BY impressions DESC, clicks DESC, product_id ASC
		LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute product breakdown: %w", err)
	}
	defer rows.Close()

	items := []tracking.ProductKPI{}
	for rows.Next() {
		var kpi tracking.ProductKPI
		if err := rows.Scan(&kpi.ProductID, &kpi.Impressions, &kpi.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan product breakdown: %w", err)
		}
		kpi.CTR = tracking.CTR(kpi.Clicks, kpi.Impressions)
		items = append(items, kpi)
	}
	return items, rows.Err()
}

func (r *SQLReportRepository) catalogBreakdown(ctx context.Context, window tracking.Window, productID, catalogID string, limit int) ([]tracking.CatalogKPI, error) {
	query := `
		SELECT catalog_id,
			SUM(CASE WHEN event_name = 'impression' THEN 1 ELSE 0 END) AS impressions,
			SUM(CASE WHEN event_name = 'click' THEN 1 ELSE 0 END) AS clicks
		FROM tracking_events
		WHERE received_at >= ? AND received_at < ? AND catalog_id IS NOT NULL`
	args := []any{window.From.UTC(), window.To.UTC()}
	if productID != "" {
		query += ` AND product_id = ?`
		args = append(args, productID)
	}
	if catalogID != "" {
		query += ` AND catalog_id = ?`
		args = append(args, catalogID)
	}
	query += `
		GROUP BY catalog_id
		ORDER BY impressions DESC, clicks DESC, catalog_id ASC
		LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute catalog breakdown: %w", err)
	}
	defer rows.Close()

	items := []tracking.CatalogKPI{}
	for rows.Next() {
		var kpi tracking.CatalogKPI
		if err := rows.Scan(&kpi.CatalogID, &kpi.Impressions, &kpi.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan catalog breakdown: %w", err)
		}
		kpi.CTR = tracking.CTR(kpi.Clicks, kpi.Impressions)
		items = append(items, kpi)
	}
	return items, rows.Err()
}

// TopProducts ranks products by clicks, then impressions, then id.
func (r *SQLReportRepository) TopProducts(ctx context.Context, window tracking.Window, limit int) (*tracking.TopProductsReport, error) {
	const query = `
		SELECT product_id,
			SUM(CASE WHEN event_name = 'impression' THEN 1 ELSE 0 END) AS impressions,
			SUM(CASE WHEN event_name = 'click' THEN 1 ELSE 0 END) AS clicks
		FROM tracking_events
		WHERE received_at >= ? AND received_at < ? AND product_id IS NOT NULL
		GROUP BY product_id
		ORDER BY clicks DESC, impressions DESC, product_id ASC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, window.From.UTC(), window.To.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute top products: %w", err)
	}
	defer rows.Close()

	report := &tracking.TopProductsReport{
		Version: tracking.ReportVersion,
		From:    window.From,
		To:      window.To,
		Items:   []tracking.ProductKPI{},
	}
	for rows.Next() {
		var kpi tracking.ProductKPI
		if err := rows.Scan(&kpi.ProductID, &kpi.Impressions, &kpi.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan top products: %w", err)
		}
		kpi.CTR = tracking.CTR(kpi.Clicks, kpi.Impressions)
		report.Items = append(report.Items, kpi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top products: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return report, nil
}

// TopRequestedProducts ranks products by request-line demand over
// requests created in the window.
func (r *SQLReportRepository) TopRequestedProducts(ctx context.Context, window tracking.Window, limit int) (*tracking.TopRequestedReport, error) {
	const query = `
		SELECT i.product_id, COUNT(*) AS request_lines, SUM(i.quantity) AS total_quantity
		FROM product_request_items i
		JOIN product_requests r ON r.id = i.request_id
		WHERE r.created_at >= ? AND r.created_at < ?
		GROUP BY i.product_id
		ORDER BY request_lines DESC, total_quantity DESC, i.product_id ASC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, window.From.UTC(), window.To.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute top requested products: %w", err)
	}
	defer rows.Close()

	report := &tracking.TopRequestedReport{
		Version: tracking.ReportVersion,
		From:    window.From,
		To:      window.To,
		Items:   []tracking.RequestedProduct{},
	}
	for rows.Next() {
		var item tracking.RequestedProduct
		if err := rows.Scan(&item.ProductID, &item.RequestLines, &item.TotalQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan top requested products: %w", err)
		}
		report.Items = append(report.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top requested products: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return report, nil
}

// UTMReferrer groups window events by acquisition dimensions.
func (r *SQLReportRepository) UTMReferrer(ctx context.Context, window tracking.Window, limit int) (*tracking.UTMReferrerReport, error) {
	const query = `
		SELECT utm_source, utm_campaign, referrer,
			SUM(CASE WHEN event_name = 'impression' THEN 1 ELSE 0 END) AS impressions,
			SUM(CASE WHEN event_name = 'click' THEN 1 ELSE 0 END) AS clicks
		FROM tracking_events
		WHERE received_at >= ? AND received_at < ?
		GROUP BY utm_source, utm_campaign, referrer
		ORDER BY clicks DESC, impressions DESC,
			COALESCE(utm_source, '') ASC, COALESCE(utm_campaign, '') ASC,
			COALESCE(referrer, '') ASC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, window.From.UTC(), window.To.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute utm/referrer report: %w", err)
	}
	defer rows.Close()

	report := &tracking.UTMReferrerReport{
		Version: tracking.ReportVersion,
		From:    window.From,
		To:      window.To,
		Items:   []tracking.UTMReferrerKPI{},
	}
	for rows.Next() {
		var kpi tracking.UTMReferrerKPI
		if err := rows.Scan(&kpi.UTMSource, &kpi.UTMCampaign, &kpi.Referrer,
			&kpi.Impressions, &kpi.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan utm/referrer report: %w", err)
		}
		kpi.CTR = tracking.CTR(kpi.Clicks, kpi.Impressions)
		report.Items = append(report.Items, kpi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate utm/referrer report: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return report, nil
}

// Funnel counts distinct sessions reaching at least each ordered stage.
// The fulfilled stage is derived from request status rather than events,
// and a session that reaches a late stage counts toward every earlier
// stage even if it skipped those events.
func (r *SQLReportRepository) Funnel(ctx context.Context, window tracking.Window) (*tracking.FunnelReport, error) {
	const eventQuery = `
		SELECT DISTINCT session_id, event_name
		FROM tracking_events
		WHERE received_at >= ? AND received_at < ?
		  AND event_name IN ('cta_click', 'add_to_request', 'request_submitted')`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, eventQuery, window.From.UTC(), window.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to compute funnel stages: %w", err)
	}
	defer rows.Close()

	stageSessions := make(map[string]map[string]bool, len(tracking.FunnelStages))
	for _, stage := range tracking.FunnelStages {
		stageSessions[stage] = make(map[string]bool)
	}
	for rows.Next() {
		var sessionID, eventName string
		if err := rows.Scan(&sessionID, &eventName); err != nil {
			return nil, fmt.Errorf("failed to scan funnel stage: %w", err)
		}
		if sessions, ok := stageSessions[eventName]; ok {
			sessions[sessionID] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate funnel stages: %w", err)
	}

	const fulfilledQuery = `
		SELECT DISTINCT session_id FROM product_requests
		WHERE status = 'fulfilled' AND created_at >= ? AND created_at < ?`
	fulfilledRows, err := r.db.QueryContext(ctx, fulfilledQuery, window.From.UTC(), window.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to compute fulfilled sessions: %w", err)
	}
	defer fulfilledRows.Close()
	for fulfilledRows.Next() {
		var sessionID string
		if err := fulfilledRows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan fulfilled session: %w", err)
		}
		stageSessions["fulfilled"][sessionID] = true
	}
	if err := fulfilledRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fulfilled sessions: %w", err)
	}

	report := &tracking.FunnelReport{
		Version: tracking.ReportVersion,
		From:    window.From,
		To:      window.To,
		Stages:  make([]tracking.FunnelStage, 0, len(tracking.FunnelStages)),
	}
	reached := make(map[string]bool)
	counts := make([]int, len(tracking.FunnelStages))
	for i := len(tracking.FunnelStages) - 1; i >= 0; i-- {
		for session := range stageSessions[tracking.FunnelStages[i]] {
			reached[session] = true
		}
		counts[i] = len(reached)
	}
	for i, stage := range tracking.FunnelStages {
		report.Stages = append(report.Stages, tracking.FunnelStage{
			Stage:    stage,
			Sessions: counts[i],
		})
	}
	database.CheckAndLogSlowQuery(r.logger, eventQuery, time.Since(start))
	return report, nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
