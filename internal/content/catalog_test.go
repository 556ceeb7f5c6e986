package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/velikanov/folio/internal/storage"
)

type countingStore struct {
	mu         sync.Mutex
	loads      int
	profile    storage.Profile
	profileErr error
	knowledge  []storage.KnowledgeItem
	listErr    error
}

func (s *countingStore) GetProfile() (storage.Profile, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.profile, s.profileErr
}

func (s *countingStore) ListKnowledge() ([]storage.KnowledgeItem, error) {
	return s.knowledge, s.listErr
}

func (s *countingStore) ListProjects() ([]storage.Project, error)           { return nil, nil }
func (s *countingStore) ListSkills() ([]storage.Skill, error)               { return nil, nil }
func (s *countingStore) ListExperience() ([]storage.Experience, error)      { return nil, nil }
func (s *countingStore) ListEducation() ([]storage.Education, error)        { return nil, nil }
func (s *countingStore) ListCertifications() ([]storage.Certification, error) {
	return nil, nil
}

func (s *countingStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCatalog(store ContentStore, clk Clock) *Catalog {
	return NewCatalogWithClock(store, clk, 30*time.Second)
}

func TestSnapshotCachesWithinTTL(t *testing.T) {
	store := &countingStore{profile: storage.Profile{ID: "p1", FullName: "Ada"}}
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCatalog(store, clk)

	for i := 0; i < 3; i++ {
		snap, err := c.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Profile == nil || snap.Profile.FullName != "Ada" {
			t.Fatalf("snapshot profile = %+v", snap.Profile)
		}
	}
	if got := store.loadCount(); got != 1 {
		t.Errorf("store loaded %d times within TTL, want 1", got)
	}
}

func TestSnapshotReloadsAfterTTL(t *testing.T) {
	store := &countingStore{}
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCatalog(store, clk)

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	clk.advance(31 * time.Second)
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := store.loadCount(); got != 2 {
		t.Errorf("store loaded %d times across TTL expiry, want 2", got)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	store := &countingStore{}
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCatalog(store, clk)

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	c.Invalidate()
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := store.loadCount(); got != 2 {
		t.Errorf("store loaded %d times after Invalidate, want 2", got)
	}
}

// TestSnapshotMissingProfile: no profile row is not an error; the snapshot
// carries a nil Profile.
func TestSnapshotMissingProfile(t *testing.T) {
	store := &countingStore{profileErr: storage.ErrNotFound}
	c := NewCatalog(store)

	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Profile != nil {
		t.Errorf("Profile = %+v, want nil", snap.Profile)
	}
}

func TestSnapshotLoadError(t *testing.T) {
	store := &countingStore{listErr: errors.New("db locked")}
	c := NewCatalog(store)

	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}

// TestSnapshotIsolation: mutating a returned snapshot must not leak into the
// cache.
func TestSnapshotIsolation(t *testing.T) {
	store := &countingStore{
		profile:   storage.Profile{ID: "p1", FullName: "Ada"},
		knowledge: []storage.KnowledgeItem{{ID: "k1", Topic: "go"}},
	}
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCatalog(store, clk)

	first, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	first.Profile.FullName = "Mallory"
	first.Knowledge[0].Topic = "tampered"

	second, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if second.Profile.FullName != "Ada" {
		t.Errorf("cached profile mutated: %q", second.Profile.FullName)
	}
	if second.Knowledge[0].Topic != "go" {
		t.Errorf("cached knowledge mutated: %q", second.Knowledge[0].Topic)
	}
	if got := store.loadCount(); got != 1 {
		t.Errorf("store loaded %d times, want 1 (cache intact)", got)
	}
}
