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

func makeEvent(t *testing.T, action string, at time.Time) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(domain.EventDataAccess, "patient", "p-1", action, "user-1")
	require.NoError(t, err)
	event.Timestamp = at
	return event
}

// Wednesday 10:00 UTC, inside business hours.
var midday = time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

// Wednesday 23:30 UTC, after hours.
var lateNight = time.Date(2026, 1, 7, 23, 30, 0, 0, time.UTC)

func buildDetector(store *fakeEventStore, anomalies *fakeAnomalyStore, tracker svc.ActivityTracker, notifier svc.Notifier) *svc.Detector {
	return svc.NewDetector(store, anomalies, tracker, notifier, zap.NewNop(), time.UTC)
}

func TestInspect_NormalEventProducesNoReport(t *testing.T) {
	anomalies := &fakeAnomalyStore{}
	detector := buildDetector(newFakeEventStore(), anomalies, newFakeTracker(), nil)

	report, err := detector.Inspect(context.Background(), makeEvent(t, "record_view", midday))
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Empty(t, anomalies.reports)
}

func TestInspect_AfterHours(t *testing.T) {
	anomalies := &fakeAnomalyStore{}
	detector := buildDetector(newFakeEventStore(), anomalies, newFakeTracker(), nil)

	report, err := detector.Inspect(context.Background(), makeEvent(t, "record_view", lateNight))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Has(domain.AnomalyAfterHours))
	assert.Equal(t, domain.AnomalyLow, report.Severity)
	require.Len(t, anomalies.reports, 1)
}

func TestInspect_RapidActions(t *testing.T) {
	tracker := newFakeTracker()
	tracker.counts["user-1"] = 51 // next RecordAction returns 52
	detector := buildDetector(newFakeEventStore(), &fakeAnomalyStore{}, tracker, nil)

	report, err := detector.Inspect(context.Background(), makeEvent(t, "record_view", midday))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Has(domain.AnomalyRapidActions))
	assert.Equal(t, domain.AnomalyMedium, report.Severity, "rapid actions alone rank medium")
}

func TestInspect_NewLocationPlusAfterHoursRanksHigh(t *testing.T) {
	detector := buildDetector(newFakeEventStore(), &fakeAnomalyStore{}, newFakeTracker(), nil)

	event := makeEvent(t, "record_view", lateNight)
	event.SourceAddr = "203.0.113.9"

	report, err := detector.Inspect(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Has(domain.AnomalyNewLocation))
	assert.True(t, report.Has(domain.AnomalyAfterHours))
	assert.Equal(t, domain.AnomalyHigh, report.Severity)
}

func TestInspect_KnownAddrNotFlagged(t *testing.T) {
	tracker := newFakeTracker()
	tracker.known["user-1|203.0.113.9"] = true
	detector := buildDetector(newFakeEventStore(), &fakeAnomalyStore{}, tracker, nil)

	event := makeEvent(t, "record_view", midday)
	event.SourceAddr = "203.0.113.9"

	report, err := detector.Inspect(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestInspect_NewAddrRemembered(t *testing.T) {
	tracker := newFakeTracker()
	detector := buildDetector(newFakeEventStore(), &fakeAnomalyStore{}, tracker, nil)

	event := makeEvent(t, "record_view", midday)
	event.SourceAddr = "203.0.113.9"

	report, err := detector.Inspect(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Has(domain.AnomalyNewLocation))

	// Second sighting of the same address is quiet.
	report, err = detector.Inspect(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestInspect_BulkAccessIsCritical(t *testing.T) {
	notifier := &fakeNotifier{}
	detector := buildDetector(newFakeEventStore(), &fakeAnomalyStore{}, newFakeTracker(), notifier)

	report, err := detector.Inspect(context.Background(), makeEvent(t, "bulk_export", midday))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Has(domain.AnomalyBulkDataAccess))
	assert.Equal(t, domain.AnomalyCritical, report.Severity)
	assert.Equal(t, 1, notifier.count(), "critical anomaly must notify")
}

func TestInspect_TrackerFailureFallsBackToStore(t *testing.T) {
	store := newFakeEventStore()
	store.actorCount = 51
	tracker := newFakeTracker()
	tracker.fail = true
	detector := buildDetector(store, &fakeAnomalyStore{}, tracker, nil)

	report, err := detector.Inspect(context.Background(), makeEvent(t, "record_view", midday))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Has(domain.AnomalyRapidActions))
}

func TestInspect_StoreBackedAddrFallback(t *testing.T) {
	store := newFakeEventStore()
	store.knownAddrs["198.51.100.4"] = true
	tracker := newFakeTracker()
	tracker.fail = true
	detector := buildDetector(store, &fakeAnomalyStore{}, tracker, nil)

	event := makeEvent(t, "record_view", midday)
	event.SourceAddr = "198.51.100.4"

	report, err := detector.Inspect(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, report, "address known to the store must not flag")
}
