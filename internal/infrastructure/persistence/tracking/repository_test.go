package tracking

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/persistence/database"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/security"
)

func newTestDB(t *testing.T) (*database.DB, *logging.ChanneledLogger) {
	t.Helper()
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	require.NoError(t, err)

	dsn := "file:" + filepath.Join(t.TempDir(), "tracking.db") +
		"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := database.NewConnection("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.EnsureSchema())
	return db, logger
}

func seedProducts(t *testing.T, db *database.DB, products map[string]string) {
	t.Helper()
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS products (id TEXT PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	for id, name := range products {
		_, err := db.Exec(`INSERT OR IGNORE INTO products (id, name) VALUES (?, ?)`, id, name)
		require.NoError(t, err)
	}
}

func testEvent(key string, name tracking.EventName, receivedAt time.Time) *tracking.TrackingEvent {
	return &tracking.TrackingEvent{
		ID:             security.GenerateULID(),
		EventName:      name,
		Source:         tracking.SourceProductCard,
		VisitorID:      "visitor-0001",
		SessionID:      "session-0001",
		PagePath:       "/products/sneakers",
		IdempotencyKey: key,
		ReceivedAt:     receivedAt,
		ClientIP:       "203.0.113.7",
	}
}

func testRequest(key string, createdAt time.Time) *tracking.ProductRequest {
	return &tracking.ProductRequest{
		ID:             security.GenerateULID(),
		Status:         tracking.StatusSubmitted,
		IdempotencyKey: key,
		Source:         tracking.SourceProductDetail,
		SessionID:      "session-0001",
		VisitorID:      "visitor-0001",
		PagePath:       "/products/sneakers",
		ClientIP:       "203.0.113.7",
		Items: []tracking.RequestItem{
			{ProductID: "prod-1", ProductName: "Sneakers", UnitPriceCents: 15000, Quantity: 2},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestEventInsertAndDedupe(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLEventRepository(db, logger)
	ctx := context.Background()
	now := time.Now().UTC()

	first := testEvent("evt-key-0001", tracking.EventClick, now)
	outcome, err := repo.Insert(ctx, first)
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.Equal(t, first.ID, outcome.EventID)

	// Same key, different body: the original row wins.
	second := testEvent("evt-key-0001", tracking.EventImpression, now)
	outcome, err = repo.Insert(ctx, second)
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, first.ID, outcome.EventID)

	stored, err := repo.FindByIdempotencyKey(ctx, "evt-key-0001")
	require.NoError(t, err)
	assert.Equal(t, tracking.EventClick, stored.EventName)
}

func TestEventInsertConcurrentSameKey(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLEventRepository(db, logger)
	ctx := context.Background()
	now := time.Now().UTC()

	const writers = 16
	var wg sync.WaitGroup
	created := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := repo.Insert(ctx, testEvent("evt-key-racy", tracking.EventClick, now))
			if err != nil {
				t.Error(err)
				return
			}
			if outcome.Created {
				created <- outcome.EventID
			}
		}()
	}
	wg.Wait()
	close(created)

	var winners []string
	for id := range created {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1, "exactly one writer creates the row")

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM tracking_events WHERE idempotency_key = ?`, "evt-key-racy").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEventFindMissing(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLEventRepository(db, logger)

	_, err := repo.FindByIdempotencyKey(context.Background(), "evt-key-none")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestEventPurgeBoundary(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLEventRepository(db, logger)
	ctx := context.Background()
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, testEvent("evt-key-old00", tracking.EventClick, cutoff.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, testEvent("evt-key-edge0", tracking.EventClick, cutoff))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, testEvent("evt-key-new00", tracking.EventClick, cutoff.Add(time.Hour)))
	require.NoError(t, err)

	count, err := repo.CountBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "cutoff itself is retained")

	deleted, err := repo.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := repo.CountBefore(ctx, cutoff.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestRequestCreateWithLinkedEvent(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)
	events := NewSQLEventRepository(db, logger)
	ctx := context.Background()
	now := time.Now().UTC()

	request := testRequest("req-key-0001", now)
	linked := testEvent("req-key-0001.event", tracking.EventRequestSubmitted, now)
	linked.RequestID = &request.ID

	outcome, err := repo.Create(ctx, request, linked)
	require.NoError(t, err)
	assert.True(t, outcome.Created)

	stored, err := repo.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusSubmitted, stored.Status)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Sneakers", stored.Items[0].ProductName)

	event, err := events.FindByIdempotencyKey(ctx, "req-key-0001.event")
	require.NoError(t, err)
	require.NotNil(t, event.RequestID)
	assert.Equal(t, request.ID, *event.RequestID)
}

func TestRequestCreateDuplicateLeavesNoPartialWrites(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)
	ctx := context.Background()
	now := time.Now().UTC()

	first := testRequest("req-key-dup01", now)
	firstLinked := testEvent("req-key-dup01.event", tracking.EventRequestSubmitted, now)
	firstLinked.RequestID = &first.ID
	_, err := repo.Create(ctx, first, firstLinked)
	require.NoError(t, err)

	second := testRequest("req-key-dup01", now)
	secondLinked := testEvent("req-key-dup01.event", tracking.EventRequestSubmitted, now)
	secondLinked.RequestID = &second.ID
	outcome, err := repo.Create(ctx, second, secondLinked)
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, first.ID, outcome.RequestID)

	var requests, items, eventRows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM product_requests`).Scan(&requests))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM product_request_items`).Scan(&items))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tracking_events`).Scan(&eventRows))
	assert.Equal(t, 1, requests)
	assert.Equal(t, 1, items)
	assert.Equal(t, 1, eventRows)
}

func TestRequestListFilters(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	older := testRequest("req-key-list1", base)
	newer := testRequest("req-key-list2", base.Add(time.Hour))
	newer.SessionID = "session-0002"
	newer.Items = []tracking.RequestItem{{ProductID: "prod-2", ProductName: "Boots", UnitPriceCents: 20000, Quantity: 1}}
	for _, request := range []*tracking.ProductRequest{older, newer} {
		_, err := repo.Create(ctx, request, nil)
		require.NoError(t, err)
	}

	all, total, err := repo.List(ctx, tracking.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")

	status := tracking.StatusSubmitted
	filtered, total, err := repo.List(ctx, tracking.RequestFilter{
		Status:    &status,
		SessionID: "session-0002",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, filtered, 1)
	assert.Equal(t, newer.ID, filtered[0].ID)

	byProduct, total, err := repo.List(ctx, tracking.RequestFilter{ProductID: "prod-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byProduct, 1)
	assert.Equal(t, older.ID, byProduct[0].ID)

	from := base.Add(30 * time.Minute)
	windowed, total, err := repo.List(ctx, tracking.RequestFilter{From: &from})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, windowed, 1)
	assert.Equal(t, newer.ID, windowed[0].ID)
}

func TestRequestUpdateStatusAndHistory(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	request := testRequest("req-key-life1", now)
	_, err := repo.Create(ctx, request, nil)
	require.NoError(t, err)

	paidAt := now.Add(time.Hour)
	updated, err := repo.UpdateStatus(ctx, request.ID, &tracking.StatusChange{
		ID:         security.GenerateULID(),
		RequestID:  request.ID,
		Actor:      "ops@example.com",
		FromStatus: tracking.StatusSubmitted,
		ToStatus:   tracking.StatusPaid,
		Action:     tracking.TransitionForward,
		CreatedAt:  paidAt,
	}, tracking.StatusUpdate{
		Status:         tracking.StatusPaid,
		UpdatedAt:      paidAt,
		TouchContacted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusPaid, updated.Status)
	require.NotNil(t, updated.ContactedAt)
	assert.True(t, updated.ContactedAt.Equal(paidAt))
	assert.Nil(t, updated.ResolvedAt)

	fulfilledAt := now.Add(2 * time.Hour)
	updated, err = repo.UpdateStatus(ctx, request.ID, &tracking.StatusChange{
		ID:         security.GenerateULID(),
		RequestID:  request.ID,
		Actor:      "ops@example.com",
		FromStatus: tracking.StatusPaid,
		ToStatus:   tracking.StatusFulfilled,
		Action:     tracking.TransitionForward,
		CreatedAt:  fulfilledAt,
	}, tracking.StatusUpdate{
		Status:         tracking.StatusFulfilled,
		UpdatedAt:      fulfilledAt,
		TouchContacted: true,
		SetResolved:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFulfilled, updated.Status)
	require.NotNil(t, updated.ContactedAt)
	assert.True(t, updated.ContactedAt.Equal(paidAt), "first contact timestamp is never moved")
	require.NotNil(t, updated.ResolvedAt)
	assert.True(t, updated.ResolvedAt.Equal(fulfilledAt))

	history, err := repo.StatusHistory(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, tracking.StatusSubmitted, history[0].FromStatus)
	assert.Equal(t, tracking.StatusPaid, history[0].ToStatus)
	assert.Equal(t, tracking.StatusFulfilled, history[1].ToStatus)
	assert.Equal(t, "ops@example.com", history[1].Actor)
}

func TestRequestUpdateStatusReopenClearsTimestamps(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	request := testRequest("req-key-life2", now)
	_, err := repo.Create(ctx, request, nil)
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, request.ID, &tracking.StatusChange{
		ID: security.GenerateULID(), RequestID: request.ID, Actor: "ops",
		FromStatus: tracking.StatusSubmitted, ToStatus: tracking.StatusPaid,
		Action: tracking.TransitionForward, CreatedAt: now.Add(time.Hour),
	}, tracking.StatusUpdate{
		Status: tracking.StatusPaid, UpdatedAt: now.Add(time.Hour), TouchContacted: true,
	})
	require.NoError(t, err)

	reopened, err := repo.UpdateStatus(ctx, request.ID, &tracking.StatusChange{
		ID: security.GenerateULID(), RequestID: request.ID, Actor: "ops",
		FromStatus: tracking.StatusPaid, ToStatus: tracking.StatusSubmitted,
		Action: tracking.TransitionReopen, CreatedAt: now.Add(2 * time.Hour),
	}, tracking.StatusUpdate{
		Status: tracking.StatusSubmitted, UpdatedAt: now.Add(2 * time.Hour),
		ClearContacted: true, ClearResolved: true,
	})
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusSubmitted, reopened.Status)
	assert.Nil(t, reopened.ContactedAt)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestRequestUpdateStatusMissing(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)

	_, err := repo.UpdateStatus(context.Background(), "nope", &tracking.StatusChange{
		ID: security.GenerateULID(), RequestID: "nope", Actor: "ops",
		FromStatus: tracking.StatusSubmitted, ToStatus: tracking.StatusPaid,
		Action: tracking.TransitionForward, CreatedAt: time.Now().UTC(),
	}, tracking.StatusUpdate{Status: tracking.StatusPaid, UpdatedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestRequestTerminalPurgeCascades(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLRequestRepository(db, logger)
	ctx := context.Background()
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	oldTerminal := testRequest("req-key-term1", cutoff.Add(-48*time.Hour))
	oldOpen := testRequest("req-key-open1", cutoff.Add(-48*time.Hour))
	newTerminal := testRequest("req-key-term2", cutoff.Add(time.Hour))
	for _, request := range []*tracking.ProductRequest{oldTerminal, oldOpen, newTerminal} {
		_, err := repo.Create(ctx, request, nil)
		require.NoError(t, err)
	}
	for _, request := range []*tracking.ProductRequest{oldTerminal, newTerminal} {
		_, err := repo.UpdateStatus(ctx, request.ID, &tracking.StatusChange{
			ID: security.GenerateULID(), RequestID: request.ID, Actor: "ops",
			FromStatus: tracking.StatusSubmitted, ToStatus: tracking.StatusPaid,
			Action: tracking.TransitionForward, CreatedAt: request.CreatedAt,
		}, tracking.StatusUpdate{Status: tracking.StatusPaid, UpdatedAt: request.CreatedAt, TouchContacted: true})
		require.NoError(t, err)
		_, err = repo.UpdateStatus(ctx, request.ID, &tracking.StatusChange{
			ID: security.GenerateULID(), RequestID: request.ID, Actor: "ops",
			FromStatus: tracking.StatusPaid, ToStatus: tracking.StatusFulfilled,
			Action: tracking.TransitionForward, CreatedAt: request.CreatedAt,
		}, tracking.StatusUpdate{Status: tracking.StatusFulfilled, UpdatedAt: request.CreatedAt, TouchContacted: true, SetResolved: true})
		require.NoError(t, err)
	}

	count, err := repo.CountTerminalBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "open and recent requests are not candidates")

	deleted, err := repo.DeleteTerminalBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = repo.Get(ctx, oldTerminal.ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	var orphanItems, orphanChanges int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM product_request_items WHERE request_id = ?`, oldTerminal.ID).Scan(&orphanItems))
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM request_status_changes WHERE request_id = ?`, oldTerminal.ID).Scan(&orphanChanges))
	assert.Zero(t, orphanItems)
	assert.Zero(t, orphanChanges)

	// The open request survives untouched.
	survivor, err := repo.Get(ctx, oldOpen.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusSubmitted, survivor.Status)
}

func TestProductRegistry(t *testing.T) {
	db, _ := newTestDB(t)
	seedProducts(t, db, map[string]string{
		"prod-1": "Sneakers",
		"prod-2": "Boots",
	})
	registry := NewSQLProductRegistry(db)
	ctx := context.Background()

	missing, err := registry.MissingProducts(ctx, []string{"prod-1", "prod-9", "prod-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prod-9"}, missing)

	name, err := registry.ProductName(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Sneakers", name)

	name, err = registry.ProductName(ctx, "prod-9")
	require.NoError(t, err)
	assert.Empty(t, name)
}
