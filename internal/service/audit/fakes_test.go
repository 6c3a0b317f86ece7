package audit_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	svc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
)

var errStoreDown = errors.New("store unavailable")

// fakeEventStore is an in-memory EventStore with duplicate-tolerant inserts
// and a programmable failure count.
type fakeEventStore struct {
	mu          sync.Mutex
	active      []*domain.Event
	archived    []*domain.Event
	modified    []*domain.Event
	failInserts int
	failCopy    bool
	insertCalls int
	actorCount  int
	knownAddrs  map[string]bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{knownAddrs: make(map[string]bool)}
}

func (s *fakeEventStore) InsertBatch(_ context.Context, events []*domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.failInserts > 0 {
		s.failInserts--
		return errStoreDown
	}
	for _, event := range events {
		if s.containsLocked(event.ID) {
			continue
		}
		s.active = append(s.active, event)
	}
	return nil
}

func (s *fakeEventStore) containsLocked(id uuid.UUID) bool {
	for _, event := range s.active {
		if event.ID == id {
			return true
		}
	}
	return false
}

func (s *fakeEventStore) CountByActorSince(_ context.Context, _ string, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actorCount, nil
}

func (s *fakeEventStore) HasSourceAddr(_ context.Context, _, addr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knownAddrs[addr], nil
}

func (s *fakeEventStore) ListBetween(_ context.Context, start, end time.Time) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Event
	for _, event := range s.active {
		if !event.Timestamp.Before(start) && event.Timestamp.Before(end) {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *fakeEventStore) ListExpired(_ context.Context, retentionYears int, cutoff time.Time) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Event
	for _, event := range s.active {
		if event.RetentionYears == retentionYears && event.Timestamp.Before(cutoff) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *fakeEventStore) ListModifiedAfterInsert(_ context.Context) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified, nil
}

func (s *fakeEventStore) ListKnownAddrsBefore(_ context.Context, before time.Time) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, event := range s.active {
		if event.SourceAddr != "" && event.Timestamp.Before(before) {
			out[event.SourceAddr] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakeEventStore) CopyToArchive(_ context.Context, events []*domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCopy {
		return errStoreDown
	}
	s.archived = append(s.archived, events...)
	return nil
}

func (s *fakeEventStore) DeleteFromActive(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	var kept []*domain.Event
	for _, event := range s.active {
		if _, ok := drop[event.ID]; !ok {
			kept = append(kept, event)
		}
	}
	s.active = kept
	return nil
}

func (s *fakeEventStore) activeEvents() []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Event(nil), s.active...)
}

func (s *fakeEventStore) archivedEvents() []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Event(nil), s.archived...)
}

type fakeAnomalyStore struct {
	mu      sync.Mutex
	reports []*domain.AnomalyReport
}

func (s *fakeAnomalyStore) InsertAnomaly(_ context.Context, report *domain.AnomalyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports []*domain.Report
}

func (s *fakeReportStore) InsertReport(_ context.Context, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

type fakeDirectory struct {
	identities map[string]svc.Identity
	fail       bool
}

func (d *fakeDirectory) Lookup(_ context.Context, actorID string) (svc.Identity, error) {
	if d.fail {
		return svc.Identity{}, errStoreDown
	}
	if identity, ok := d.identities[actorID]; ok {
		return identity, nil
	}
	return svc.UnknownIdentity, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []svc.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification svc.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeTracker struct {
	mu     sync.Mutex
	counts map[string]int
	known  map[string]bool
	fail   bool
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{counts: make(map[string]int), known: make(map[string]bool)}
}

func (t *fakeTracker) RecordAction(_ context.Context, actorID string, _ time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return 0, errStoreDown
	}
	t.counts[actorID]++
	return t.counts[actorID], nil
}

func (t *fakeTracker) IsKnownAddr(_ context.Context, actorID, addr string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return false, errStoreDown
	}
	return t.known[actorID+"|"+addr], nil
}

func (t *fakeTracker) RememberAddr(_ context.Context, actorID, addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errStoreDown
	}
	t.known[actorID+"|"+addr] = true
	return nil
}
