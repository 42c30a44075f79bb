package tracking

import "time"

// TrackingEvent is one persisted behavioral event. Exactly one row ever
// exists per idempotency key; ReceivedAt is server-assigned and is the
// ordering field for retention and reporting.
type TrackingEvent struct {
	ID             string
	EventName      EventName
	Source         Source
	VisitorID      string
	SessionID      string
	PagePath       string
	IdempotencyKey string
	ProductID      *string
	CatalogID      *string
	RequestID      *string
	UTMSource      *string
	UTMMedium      *string
	UTMCampaign    *string
	Referrer       *string
	OccurredAt     *time.Time
	ReceivedAt     time.Time
	ClientIP       string
}
