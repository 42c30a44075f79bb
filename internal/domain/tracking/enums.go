// Package tracking defines the entities, canonical enumerations, and
// repository contracts for the tracking and funnel analytics subsystem.
package tracking

import "fmt"

// EventName is the closed set of behavioral event types accepted at the
// ingestion boundary. Unknown values are rejected at decode, never coerced.
type EventName string

const (
	EventImpression       EventName = "impression"
	EventClick            EventName = "click"
	EventCTAClick         EventName = "cta_click"
	EventAddToRequest     EventName = "add_to_request"
	EventRequestSubmitted EventName = "request_submitted"
)

var eventNames = map[EventName]bool{
	EventImpression:       true,
	EventClick:            true,
	EventCTAClick:         true,
	EventAddToRequest:     true,
	EventRequestSubmitted: true,
}

// ParseEventName decodes a wire value into an EventName.
func ParseEventName(raw string) (EventName, error) {
	name := EventName(raw)
	if !eventNames[name] {
		return "", fmt.Errorf("%w: event_name %q", ErrInvalidEnum, raw)
	}
	return name, nil
}

// Source identifies the UI surface that generated an event or request.
type Source string

const (
	SourceHeroCTA          Source = "hero_cta"
	SourceProductCard      Source = "product_card"
	SourceProductDetail    Source = "product_detail"
	SourceCategoryGrid     Source = "category_grid"
	SourceCatalogGrid      Source = "catalog_grid"
	SourceFloatingWhatsapp Source = "floating_whatsapp"
	SourceNavCTA           Source = "nav_cta"
	SourceDashboard        Source = "dashboard"
	SourceUnknown          Source = "unknown"
)

var sources = map[Source]bool{
	SourceHeroCTA:          true,
	SourceProductCard:      true,
	SourceProductDetail:    true,
	SourceCategoryGrid:     true,
	SourceCatalogGrid:      true,
	SourceFloatingWhatsapp: true,
	SourceNavCTA:           true,
	SourceDashboard:        true,
	SourceUnknown:          true,
}

// ParseSource decodes a wire value into a Source.
func ParseSource(raw string) (Source, error) {
	src := Source(raw)
	if !sources[src] {
		return "", fmt.Errorf("%w: source %q", ErrInvalidEnum, raw)
	}
	return src, nil
}

// FunnelStages is the ordered behavioral sequence from ad exposure to
// fulfillment. The final stage is reached through the submitted request's
// status rather than an event row.
var FunnelStages = []string{
	string(EventCTAClick),
	string(EventAddToRequest),
	string(EventRequestSubmitted),
	"fulfilled",
}
