package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	svc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
)

func seedEvents(t *testing.T, store *fakeEventStore, times ...time.Time) {
	t.Helper()
	for _, at := range times {
		event := makeEvent(t, "record_view", at)
		require.NoError(t, store.InsertBatch(context.Background(), []*domain.Event{event}))
	}
}

func TestIntegrity_BusinessHoursGapFlagged(t *testing.T) {
	store := newFakeEventStore()
	// Wednesday: 10:00, then silence until 12:30.
	seedEvents(t, store,
		time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 12, 30, 0, 0, time.UTC),
	)

	checker := svc.NewIntegrityChecker(store, zap.NewNop(), time.UTC)
	findings, err := checker.Run(context.Background(),
		time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.FindingTimeGap, findings[0].Type)
	require.NotNil(t, findings[0].GapStart)
	assert.Equal(t, 10, findings[0].GapStart.Hour())
}

func TestIntegrity_OvernightGapIgnored(t *testing.T) {
	store := newFakeEventStore()
	// Tuesday 17:45 to Wednesday 08:10: the gap starts outside the window
	// that matters.
	seedEvents(t, store,
		time.Date(2026, 1, 6, 19, 45, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 8, 10, 0, 0, time.UTC),
	)

	checker := svc.NewIntegrityChecker(store, zap.NewNop(), time.UTC)
	findings, err := checker.Run(context.Background(),
		time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestIntegrity_WeekendGapIgnored(t *testing.T) {
	store := newFakeEventStore()
	// Saturday 10:00 to Saturday 16:00 would be business hours on a weekday.
	seedEvents(t, store,
		time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 10, 16, 0, 0, 0, time.UTC),
	)

	checker := svc.NewIntegrityChecker(store, zap.NewNop(), time.UTC)
	findings, err := checker.Run(context.Background(),
		time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestIntegrity_ShortGapIgnored(t *testing.T) {
	store := newFakeEventStore()
	seedEvents(t, store,
		time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 10, 59, 0, 0, time.UTC),
	)

	checker := svc.NewIntegrityChecker(store, zap.NewNop(), time.UTC)
	findings, err := checker.Run(context.Background(),
		time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestIntegrity_ModifiedRecordsFlagged(t *testing.T) {
	store := newFakeEventStore()
	tampered := makeEvent(t, "record_view", midday)
	store.modified = []*domain.Event{tampered}

	checker := svc.NewIntegrityChecker(store, zap.NewNop(), time.UTC)
	findings, err := checker.Run(context.Background(),
		time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.FindingDirectModification, findings[0].Type)
	require.NotNil(t, findings[0].EventID)
	assert.Equal(t, tampered.ID, *findings[0].EventID)
}
