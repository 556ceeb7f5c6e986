package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Profile is the singleton site-owner record. GeminiAPIKey gates whether the
// chat assistant may call the generative backend; it must never be exposed on
// the public API.
type Profile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Title        string    `json:"title,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	ResumeURL    string    `json:"resume_url,omitempty"`
	Email        string    `json:"email,omitempty"`
	GithubURL    string    `json:"github_url,omitempty"`
	LinkedinURL  string    `json:"linkedin_url,omitempty"`
	TwitterURL   string    `json:"twitter_url,omitempty"`
	GeminiAPIKey string    `json:"gemini_api_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Skill struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Proficiency int       `json:"proficiency"`
	IconName    string    `json:"icon_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	DemoURL     string    `json:"demo_url,omitempty"`
	GithubURL   string    `json:"github_url,omitempty"`
	Tags        string    `json:"tags"` // JSON array stored as text
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
}

// Experience dates are stored as free-form strings (e.g. "2021-03" or
// "March 2021") exactly as entered in the admin console.
type Experience struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	Position    string    `json:"position"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	Current     bool      `json:"current"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Education struct {
	ID           string    `json:"id"`
	Institution  string    `json:"institution"`
	Degree       string    `json:"degree"`
	FieldOfStudy string    `json:"field_of_study"`
	StartDate    string    `json:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty"`
	Grade        string    `json:"grade,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Certification struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Issuer        string    `json:"issuer"`
	IssueDate     string    `json:"issue_date,omitempty"`
	CredentialURL string    `json:"credential_url,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// KnowledgeItem is an admin-curated topic/description pair. The topic acts as
// a fuzzy lookup key for the chat assistant's keyword fallback.
type KnowledgeItem struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Description string    `json:"description"`
	Proficiency int       `json:"proficiency"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is a contact-form submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Body      string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// PageView is a single recorded page-view event.
type PageView struct {
	ID         string    `json:"id"`
	PagePath   string    `json:"page_path"`
	PageTitle  string    `json:"page_title,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	SessionID  string    `json:"session_id"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	CreatedAt  time.Time `json:"created_at"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
