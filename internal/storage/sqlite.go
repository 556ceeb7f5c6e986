package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding all portfolio content, contact
// messages, page views, and the background job queue.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "folio.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// --- Profile ---

// GetProfile returns the singleton profile row, or ErrNotFound before the
// admin has created one.
func (s *Store) GetProfile() (Profile, error) {
	var p Profile
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, full_name, title, bio, avatar_url, resume_url, email,
		       github_url, linkedin_url, twitter_url, gemini_api_key, created_at, updated_at
		FROM profiles LIMIT 1`,
	).Scan(&p.ID, &p.FullName, &p.Title, &p.Bio, &p.AvatarURL, &p.ResumeURL, &p.Email,
		&p.GithubURL, &p.LinkedinURL, &p.TwitterURL, &p.GeminiAPIKey, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Profile{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// UpsertProfile creates the profile row if none exists, otherwise updates it
// in place. The singleton invariant lives here: at most one row ever exists.
func (s *Store) UpsertProfile(p Profile) error {
	existing, err := s.GetProfile()
	if err != nil && err != ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	if err == ErrNotFound {
		if p.ID == "" {
			return fmt.Errorf("profile id is required")
		}
		_, err := s.db.Exec(`
			INSERT INTO profiles (id, full_name, title, bio, avatar_url, resume_url, email,
				github_url, linkedin_url, twitter_url, gemini_api_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.FullName, p.Title, p.Bio, p.AvatarURL, p.ResumeURL, p.Email,
			p.GithubURL, p.LinkedinURL, p.TwitterURL, p.GeminiAPIKey, fmtTime(now), fmtTime(now),
		)
		return err
	}

	_, err = s.db.Exec(`
		UPDATE profiles SET full_name = ?, title = ?, bio = ?, avatar_url = ?, resume_url = ?,
			email = ?, github_url = ?, linkedin_url = ?, twitter_url = ?, gemini_api_key = ?, updated_at = ?
		WHERE id = ?`,
		p.FullName, p.Title, p.Bio, p.AvatarURL, p.ResumeURL,
		p.Email, p.GithubURL, p.LinkedinURL, p.TwitterURL, p.GeminiAPIKey, fmtTime(now), existing.ID,
	)
	return err
}

// --- Skills ---

func (s *Store) AddSkill(sk Skill) error {
	_, err := s.db.Exec(`
		INSERT INTO skills (id, name, category, proficiency, icon_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sk.ID, sk.Name, sk.Category, sk.Proficiency, sk.IconName, fmtTime(sk.CreatedAt),
	)
	return err
}

func (s *Store) UpdateSkill(sk Skill) error {
	res, err := s.db.Exec(`
		UPDATE skills SET name = ?, category = ?, proficiency = ?, icon_name = ? WHERE id = ?`,
		sk.Name, sk.Category, sk.Proficiency, sk.IconName, sk.ID,
	)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteSkill(id string) error {
	res, err := s.db.Exec(`DELETE FROM skills WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

// ListSkills returns all skills, oldest first (display order on the site).
func (s *Store) ListSkills() ([]Skill, error) {
	rows, err := s.db.Query(`
		SELECT id, name, category, proficiency, icon_name, created_at
		FROM skills ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Skill
	for rows.Next() {
		var sk Skill
		var createdAt string
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Category, &sk.Proficiency, &sk.IconName, &createdAt); err != nil {
			return nil, err
		}
		if sk.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, sk)
	}
	return results, rows.Err()
}

// --- Projects ---

func (s *Store) AddProject(p Project) error {
	if p.Tags == "" {
		p.Tags = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO projects (id, title, description, image_url, demo_url, github_url, tags, featured, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.ImageURL, p.DemoURL, p.GithubURL, p.Tags, p.Featured, fmtTime(p.CreatedAt),
	)
	return err
}

func (s *Store) UpdateProject(p Project) error {
	if p.Tags == "" {
		p.Tags = "[]"
	}
	res, err := s.db.Exec(`
		UPDATE projects SET title = ?, description = ?, image_url = ?, demo_url = ?,
			github_url = ?, tags = ?, featured = ? WHERE id = ?`,
		p.Title, p.Description, p.ImageURL, p.DemoURL, p.GithubURL, p.Tags, p.Featured, p.ID,
	)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteProject(id string) error {
	res, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`
		SELECT id, title, description, image_url, demo_url, github_url, tags, featured, created_at
		FROM projects ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.ImageURL, &p.DemoURL, &p.GithubURL, &p.Tags, &p.Featured, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Experience ---

func (s *Store) AddExperience(e Experience) error {
	_, err := s.db.Exec(`
		INSERT INTO experience (id, company, position, start_date, end_date, current, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Company, e.Position, e.StartDate, e.EndDate, e.Current, e.Description, fmtTime(e.CreatedAt),
	)
	return err
}

func (s *Store) UpdateExperience(e Experience) error {
	res, err := s.db.Exec(`
		UPDATE experience SET company = ?, position = ?, start_date = ?, end_date = ?,
			current = ?, description = ? WHERE id = ?`,
		e.Company, e.Position, e.StartDate, e.EndDate, e.Current, e.Description, e.ID,
	)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteExperience(id string) error {
	res, err := s.db.Exec(`DELETE FROM experience WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

// ListExperience returns all experience entries, most recent start date first.
func (s *Store) ListExperience() ([]Experience, error) {
	rows, err := s.db.Query(`
		SELECT id, company, position, start_date, end_date, current, description, created_at
		FROM experience ORDER BY start_date DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Experience
	for rows.Next() {
		var e Experience
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Company, &e.Position, &e.StartDate, &e.EndDate, &e.Current, &e.Description, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- Education ---

func (s *Store) AddEducation(e Education) error {
	_, err := s.db.Exec(`
		INSERT INTO education (id, institution, degree, field_of_study, start_date, end_date, grade, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Institution, e.Degree, e.FieldOfStudy, e.StartDate, e.EndDate, e.Grade, e.Description, fmtTime(e.CreatedAt),
	)
	return err
}

func (s *Store) UpdateEducation(e Education) error {
	res, err := s.db.Exec(`
		UPDATE education SET institution = ?, degree = ?, field_of_study = ?, start_date = ?,
			end_date = ?, grade = ?, description = ? WHERE id = ?`,
		e.Institution, e.Degree, e.FieldOfStudy, e.StartDate, e.EndDate, e.Grade, e.Description, e.ID,
	)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteEducation(id string) error {
	res, err := s.db.Exec(`DELETE FROM education WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

func (s *Store) ListEducation() ([]Education, error) {
	rows, err := s.db.Query(`
		SELECT id, institution, degree, field_of_study, start_date, end_date, grade, description, created_at
		FROM education ORDER BY start_date DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Education
	for rows.Next() {
		var e Education
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Institution, &e.Degree, &e.FieldOfStudy, &e.StartDate, &e.EndDate, &e.Grade, &e.Description, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- Certifications ---

func (s *Store) AddCertification(c Certification) error {
	_, err := s.db.Exec(`
		INSERT INTO certifications (id, name, issuer, issue_date, credential_url, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Issuer, c.IssueDate, c.CredentialURL, c.ImageURL, fmtTime(c.CreatedAt),
	)
	return err
}

func (s *Store) UpdateCertification(c Certification) error {
	res, err := s.db.Exec(`
		UPDATE certifications SET name = ?, issuer = ?, issue_date = ?, credential_url = ?,
			image_url = ? WHERE id = ?`,
		c.Name, c.Issuer, c.IssueDate, c.CredentialURL, c.ImageURL, c.ID,
	)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteCertification(id string) error {
	res, err := s.db.Exec(`DELETE FROM certifications WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

func (s *Store) ListCertifications() ([]Certification, error) {
	rows, err := s.db.Query(`
		SELECT id, name, issuer, issue_date, credential_url, image_url, created_at
		FROM certifications ORDER BY issue_date DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Certification
	for rows.Next() {
		var c Certification
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Issuer, &c.IssueDate, &c.CredentialURL, &c.ImageURL, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// --- Knowledge ---

func (s *Store) AddKnowledgeItem(k KnowledgeItem) error {
	_, err := s.db.Exec(`
		INSERT INTO knowledge (id, topic, description, proficiency, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		k.ID, k.Topic, k.Description, k.Proficiency, fmtTime(k.CreatedAt),
	)
	return err
}

func (s *Store) UpdateKnowledgeItem(k KnowledgeItem) error {
	res, err := s.db.Exec(`
		UPDATE knowledge SET topic = ?, description = ?, proficiency = ? WHERE id = ?`,
		k.Topic, k.Description, k.Proficiency, k.ID,
	)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteKnowledgeItem(id string) error {
	res, err := s.db.Exec(`DELETE FROM knowledge WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

// ListKnowledge returns all knowledge items, highest proficiency first. The
// keyword matcher depends on this ordering: the first matching item wins.
func (s *Store) ListKnowledge() ([]KnowledgeItem, error) {
	rows, err := s.db.Query(`
		SELECT id, topic, description, proficiency, created_at
		FROM knowledge ORDER BY proficiency DESC, created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []KnowledgeItem
	for rows.Next() {
		var k KnowledgeItem
		var createdAt string
		if err := rows.Scan(&k.ID, &k.Topic, &k.Description, &k.Proficiency, &createdAt); err != nil {
			return nil, err
		}
		if k.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, k)
	}
	return results, rows.Err()
}

// --- Messages ---

func (s *Store) SaveMessage(m Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (id, name, email, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Body, m.Read, fmtTime(m.CreatedAt),
	)
	return err
}

func (s *Store) ListMessages(limit, offset int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, message, read, created_at
		FROM messages ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Body, &m.Read, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *Store) MarkMessageRead(id string) error {
	res, err := s.db.Exec(`UPDATE messages SET read = 1 WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

func (s *Store) DeleteMessage(id string) error {
	res, err := s.db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return rowsAffectedErr(res, err)
}

// CountUnreadMessages returns the number of unread contact messages.
func (s *Store) CountUnreadMessages() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE read = 0`).Scan(&n)
	return n, err
}

// --- Page views ---

func (s *Store) SavePageView(v PageView) error {
	_, err := s.db.Exec(`
		INSERT INTO page_views (id, page_path, page_title, referrer, user_agent, session_id,
			device_type, browser, os, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PagePath, v.PageTitle, v.Referrer, v.UserAgent, v.SessionID,
		v.DeviceType, v.Browser, v.OS, fmtTime(v.CreatedAt),
	)
	return err
}

// ListPageViewsSince returns all page views recorded at or after t, newest first.
func (s *Store) ListPageViewsSince(t time.Time) ([]PageView, error) {
	rows, err := s.db.Query(`
		SELECT id, page_path, page_title, referrer, user_agent, session_id,
			device_type, browser, os, created_at
		FROM page_views WHERE created_at >= ? ORDER BY created_at DESC`, fmtTime(t),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PageView
	for rows.Next() {
		var v PageView
		var createdAt string
		if err := rows.Scan(&v.ID, &v.PagePath, &v.PageTitle, &v.Referrer, &v.UserAgent, &v.SessionID,
			&v.DeviceType, &v.Browser, &v.OS, &createdAt); err != nil {
			return nil, err
		}
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// --- Jobs ---

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = fmtTime(job.RunAfter)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]interface{}, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = parseTime(runAfter); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = parseTime(now); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	return rowsAffectedErr(res, err)
}

func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}

func rowsAffectedErr(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
