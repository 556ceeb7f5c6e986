// Package content provides cached read access to everything displayed on the
// portfolio site. The chat pipeline and the public API both consume a
// Snapshot rather than hitting storage per category.
package content

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/velikanov/folio/internal/storage"
)

// Snapshot is a point-in-time view of all content categories. Any category
// may be empty; consumers must tolerate a nil Profile (no admin setup yet).
type Snapshot struct {
	Profile        *storage.Profile       `json:"profile,omitempty"`
	Knowledge      []storage.KnowledgeItem `json:"knowledge"`
	Projects       []storage.Project      `json:"projects"`
	Skills         []storage.Skill        `json:"skills"`
	Experience     []storage.Experience   `json:"experience"`
	Education      []storage.Education    `json:"education"`
	Certifications []storage.Certification `json:"certifications"`
}

// ContentStore defines the storage reads the Catalog needs.
// Implemented by storage.Store.
type ContentStore interface {
	GetProfile() (storage.Profile, error)
	ListKnowledge() ([]storage.KnowledgeItem, error)
	ListProjects() ([]storage.Project, error)
	ListSkills() ([]storage.Skill, error)
	ListExperience() ([]storage.Experience, error)
	ListEducation() ([]storage.Education, error)
	ListCertifications() ([]storage.Certification, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Catalog caches content snapshots with a short TTL. Admin mutations call
// Invalidate so the public site and the chat assistant see edits immediately.
type Catalog struct {
	store ContentStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Snapshot
	cachedAt time.Time
}

// NewCatalog creates a Catalog with a 30-second cache TTL.
func NewCatalog(store ContentStore) *Catalog {
	return &Catalog{
		store: store,
		clock: realClock{},
		ttl:   30 * time.Second,
	}
}

// NewCatalogWithClock creates a Catalog with a custom clock and TTL (for testing).
func NewCatalogWithClock(store ContentStore, clock Clock, ttl time.Duration) *Catalog {
	return &Catalog{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// Snapshot returns the current content snapshot, loading all categories
// concurrently on a cache miss.
func (c *Catalog) Snapshot(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	if c.cached != nil && c.clock.Now().Before(c.cachedAt.Add(c.ttl)) {
		s := copySnapshot(c.cached)
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if c.cached != nil && c.clock.Now().Before(c.cachedAt.Add(c.ttl)) {
		return copySnapshot(c.cached), nil
	}

	snap, err := c.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	c.cached = &snap
	c.cachedAt = c.clock.Now()
	return copySnapshot(&snap), nil
}

// Invalidate drops the cached snapshot. Called after admin mutations.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *Catalog) load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.store.GetProfile()
		if err == storage.ErrNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
		snap.Profile = &p
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Knowledge, err = c.store.ListKnowledge(); err != nil {
			return fmt.Errorf("loading knowledge: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Projects, err = c.store.ListProjects(); err != nil {
			return fmt.Errorf("loading projects: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Skills, err = c.store.ListSkills(); err != nil {
			return fmt.Errorf("loading skills: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Experience, err = c.store.ListExperience(); err != nil {
			return fmt.Errorf("loading experience: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Education, err = c.store.ListEducation(); err != nil {
			return fmt.Errorf("loading education: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Certifications, err = c.store.ListCertifications(); err != nil {
			return fmt.Errorf("loading certifications: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func copySnapshot(s *Snapshot) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	cp := Snapshot{}
	if s.Profile != nil {
		p := *s.Profile
		cp.Profile = &p
	}
	cp.Knowledge = append([]storage.KnowledgeItem(nil), s.Knowledge...)
	cp.Projects = append([]storage.Project(nil), s.Projects...)
	cp.Skills = append([]storage.Skill(nil), s.Skills...)
	cp.Experience = append([]storage.Experience(nil), s.Experience...)
	cp.Education = append([]storage.Education(nil), s.Education...)
	cp.Certifications = append([]storage.Certification(nil), s.Certifications...)
	return cp
}
