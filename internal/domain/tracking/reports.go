package tracking

import "time"

// ReportVersion tags every reporting response. Bumping it is a contract
// change; consumers pin on it.
const ReportVersion = "v1"

// Window is a resolved reporting time range in UTC.
type Window struct {
	From time.Time
	To   time.Time
}

// KPISummary is the event/request totals for a window.
type KPISummary struct {
	Impressions       int     `json:"impressions"`
	Clicks            int     `json:"clicks"`
	CTAClicks         int     `json:"cta_clicks"`
	AddToRequests     int     `json:"add_to_requests"`
	RequestsSubmitted int     `json:"requests_submitted"`
	CTR               float64 `json:"ctr"`
}

// ProductKPI is the per-product event breakdown.
type ProductKPI struct {
	ProductID   string  `json:"product_id"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// CatalogKPI is the per-catalog event breakdown.
type CatalogKPI struct {
	CatalogID   string  `json:"catalog_id"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// KPIReport is the full KPI aggregate response.
type KPIReport struct {
	Version   string       `json:"version"`
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	Total     KPISummary   `json:"total"`
	ByProduct []ProductKPI `json:"by_product"`
	ByCatalog []CatalogKPI `json:"by_catalog"`
}

// TopProductsReport ranks products by event counts.
type TopProductsReport struct {
	Version string       `json:"version"`
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Items   []ProductKPI `json:"items"`
}

// RequestedProduct ranks a product by request-line demand.
type RequestedProduct struct {
	ProductID     string `json:"product_id"`
	RequestLines  int    `json:"request_lines"`
	TotalQuantity int    `json:"total_quantity"`
}

// TopRequestedReport ranks products by request-line count.
type TopRequestedReport struct {
	Version string             `json:"version"`
	From    time.Time          `json:"from"`
	To      time.Time          `json:"to"`
	Items   []RequestedProduct `json:"items"`
}

// UTMReferrerKPI groups events by acquisition dimension.
type UTMReferrerKPI struct {
	UTMSource   *string `json:"utm_source"`
	UTMCampaign *string `json:"utm_campaign"`
	Referrer    *string `json:"referrer"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// UTMReferrerReport is the acquisition-dimension aggregate response.
type UTMReferrerReport struct {
	Version string           `json:"version"`
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Items   []UTMReferrerKPI `json:"items"`
}

// FunnelStage is one ordered stage; Sessions counts distinct sessions
// reaching at least this stage within the window.
type FunnelStage struct {
	Stage    string `json:"stage"`
	Sessions int    `json:"sessions"`
}

// FunnelReport is the ordered-stage funnel response.
type FunnelReport struct {
	Version string        `json:"version"`
	From    time.Time     `json:"from"`
	To      time.Time     `json:"to"`
	Stages  []FunnelStage `json:"stages"`
}

// CTR computes the click-through rate as a percentage rounded to two
// decimals, 0.0 when there are no impressions.
func CTR(clicks, impressions int) float64 {
	if impressions <= 0 {
		return 0.0
	}
	rate := float64(clicks) / float64(impressions) * 100
	return float64(int(rate*100+0.5)) / 100
}
