package storage

import (
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_page_views_created", "idx_jobs_status_run_after"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

// TestProfileSingleton verifies that UpsertProfile keeps exactly one row no
// matter how many times it is called.
func TestProfileSingleton(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetProfile(); err != ErrNotFound {
		t.Fatalf("GetProfile on empty store: got %v, want ErrNotFound", err)
	}

	first := Profile{ID: "p1", FullName: "Ada Lovelace", Title: "Engineer"}
	if err := s.UpsertProfile(first); err != nil {
		t.Fatalf("UpsertProfile (insert): %v", err)
	}

	second := Profile{ID: "ignored", FullName: "Ada Lovelace", Title: "Staff Engineer", GeminiAPIKey: "k-123"}
	if err := s.UpsertProfile(second); err != nil {
		t.Fatalf("UpsertProfile (update): %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM profiles").Scan(&count); err != nil {
		t.Fatalf("counting profiles: %v", err)
	}
	if count != 1 {
		t.Fatalf("profiles rows = %d, want 1", count)
	}

	got, err := s.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("profile ID changed on update: got %q, want %q", got.ID, "p1")
	}
	if got.Title != "Staff Engineer" || got.GeminiAPIKey != "k-123" {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestSkillCRUD(t *testing.T) {
	s := openTestStore(t)

	sk := Skill{ID: "s1", Name: "Go", Category: "Backend", Proficiency: 90, CreatedAt: time.Now()}
	if err := s.AddSkill(sk); err != nil {
		t.Fatalf("AddSkill: %v", err)
	}

	sk.Proficiency = 95
	if err := s.UpdateSkill(sk); err != nil {
		t.Fatalf("UpdateSkill: %v", err)
	}

	skills, err := s.ListSkills()
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(skills) != 1 || skills[0].Proficiency != 95 {
		t.Fatalf("unexpected skills: %+v", skills)
	}

	if err := s.DeleteSkill("s1"); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	if err := s.DeleteSkill("s1"); err != ErrNotFound {
		t.Errorf("second DeleteSkill: got %v, want ErrNotFound", err)
	}
}

// TestListOrdering checks the per-category orderings the chat context and
// the public site rely on.
func TestListOrdering(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		sk := Skill{ID: fmt.Sprintf("sk%d", i), Name: name, Category: "c", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.AddSkill(sk); err != nil {
			t.Fatalf("AddSkill: %v", err)
		}
		p := Project{ID: fmt.Sprintf("pr%d", i), Title: name, Tags: "[]", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.AddProject(p); err != nil {
			t.Fatalf("AddProject: %v", err)
		}
	}

	skills, err := s.ListSkills()
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if skills[0].Name != "first" || skills[2].Name != "third" {
		t.Errorf("skills not created_at ascending: %+v", skills)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if projects[0].Title != "third" || projects[2].Title != "first" {
		t.Errorf("projects not created_at descending: %+v", projects)
	}
}

// TestKnowledgeOrdering verifies proficiency-descending order with created_at
// ascending as tie-break.
func TestKnowledgeOrdering(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []KnowledgeItem{
		{ID: "k1", Topic: "low", Description: "d", Proficiency: 10, CreatedAt: base},
		{ID: "k2", Topic: "high", Description: "d", Proficiency: 90, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "k3", Topic: "high-earlier", Description: "d", Proficiency: 90, CreatedAt: base.Add(time.Hour)},
	}
	for _, k := range items {
		if err := s.AddKnowledgeItem(k); err != nil {
			t.Fatalf("AddKnowledgeItem: %v", err)
		}
	}

	got, err := s.ListKnowledge()
	if err != nil {
		t.Fatalf("ListKnowledge: %v", err)
	}
	wantOrder := []string{"k3", "k2", "k1"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Fatalf("position %d: got %s, want %s (full: %+v)", i, got[i].ID, want, got)
		}
	}
}

func TestMessagesUnreadCount(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		m := Message{ID: fmt.Sprintf("m%d", i), Name: "v", Email: "v@example.com", Body: "hello", CreatedAt: time.Now()}
		if err := s.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	if err := s.MarkMessageRead("m1"); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}

	n, err := s.CountUnreadMessages()
	if err != nil {
		t.Fatalf("CountUnreadMessages: %v", err)
	}
	if n != 2 {
		t.Errorf("unread = %d, want 2", n)
	}

	if err := s.DeleteMessage("m0"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := s.MarkMessageRead("nope"); err != ErrNotFound {
		t.Errorf("MarkMessageRead(unknown): got %v, want ErrNotFound", err)
	}
}

func TestListPageViewsSince(t *testing.T) {
	s := openTestStore(t)

	old := PageView{ID: "v1", PagePath: "/", SessionID: "s1", DeviceType: "desktop", Browser: "Firefox", OS: "Linux", CreatedAt: time.Now().AddDate(0, 0, -30)}
	recent := PageView{ID: "v2", PagePath: "/projects", SessionID: "s2", DeviceType: "mobile", Browser: "Chrome", OS: "Android", CreatedAt: time.Now()}
	for _, v := range []PageView{old, recent} {
		if err := s.SavePageView(v); err != nil {
			t.Fatalf("SavePageView: %v", err)
		}
	}

	got, err := s.ListPageViewsSince(time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("ListPageViewsSince: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v2" {
		t.Errorf("unexpected views: %+v", got)
	}
}

func TestJobQueueLifecycle(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j1", Type: "import", PayloadJSON: `{"kind":"url"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"import"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil || claimed.ID != "j1" {
		t.Fatalf("claimed = %+v, want j1", claimed)
	}
	if claimed.Status != "running" {
		t.Errorf("claimed status = %q, want running", claimed.Status)
	}

	// While running, nothing else is claimable.
	again, err := s.ClaimNextJob([]string{"import"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("claimed running job again: %+v", again)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	var status string
	if err := s.db.QueryRow("SELECT status FROM jobs WHERE id = 'j1'").Scan(&status); err != nil {
		t.Fatalf("reading job status: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
}

// TestJobRetryBackoff verifies a failed job becomes claimable again later
// (pending with a future run_after) until attempts are exhausted.
func TestJobRetryBackoff(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j1", Type: "import", PayloadJSON: "{}", MaxAttempts: 2}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"import"})
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextJob: %v, %+v", err, claimed)
	}
	if err := s.FailJob("j1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, lastError string
	if err := s.db.QueryRow("SELECT status, last_error FROM jobs WHERE id = 'j1'").Scan(&status, &lastError); err != nil {
		t.Fatalf("reading job: %v", err)
	}
	if status != "pending" {
		t.Errorf("status after first failure = %q, want pending (retry scheduled)", status)
	}
	if lastError != "boom" {
		t.Errorf("last_error = %q, want boom", lastError)
	}

	// Make it immediately claimable and exhaust attempts.
	if _, err := s.db.Exec("UPDATE jobs SET run_after = '2000-01-01T00:00:00Z' WHERE id = 'j1'"); err != nil {
		t.Fatalf("resetting run_after: %v", err)
	}
	claimed, err = s.ClaimNextJob([]string{"import"})
	if err != nil || claimed == nil {
		t.Fatalf("reclaim: %v, %+v", err, claimed)
	}
	if err := s.FailJob("j1", "boom again"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	if err := s.db.QueryRow("SELECT status FROM jobs WHERE id = 'j1'").Scan(&status); err != nil {
		t.Fatalf("reading job: %v", err)
	}
	if status != "failed" {
		t.Errorf("status after exhausting attempts = %q, want failed", status)
	}
}
