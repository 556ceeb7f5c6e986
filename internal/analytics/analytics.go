// Package analytics records page views and produces traffic summaries.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velikanov/folio/internal/storage"
)

// Store is the persistence surface the service needs.
type Store interface {
	SavePageView(v storage.PageView) error
	ListPageViewsSince(t time.Time) ([]storage.PageView, error)
}

// Service classifies and stores page views.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// View is the raw event reported by a visitor.
type View struct {
	PagePath  string `json:"page_path"`
	PageTitle string `json:"page_title"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
	SessionID string `json:"session_id"`
}

// Record classifies the user agent and persists the view. A missing session
// ID gets a fresh one, which is returned to the caller for reuse.
func (s *Service) Record(v View) (string, error) {
	if v.SessionID == "" {
		v.SessionID = uuid.NewString()
	}
	pv := storage.PageView{
		ID:         uuid.NewString(),
		PagePath:   v.PagePath,
		PageTitle:  v.PageTitle,
		Referrer:   v.Referrer,
		UserAgent:  v.UserAgent,
		SessionID:  v.SessionID,
		DeviceType: classifyDevice(v.UserAgent),
		Browser:    classifyBrowser(v.UserAgent),
		OS:         classifyOS(v.UserAgent),
		CreatedAt:  time.Now(),
	}
	if err := s.store.SavePageView(pv); err != nil {
		return "", err
	}
	return v.SessionID, nil
}

// PageCount is one row of the per-page breakdown.
type PageCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Summary aggregates traffic over a window.
type Summary struct {
	TotalViews     int            `json:"total_views"`
	UniqueVisitors int            `json:"unique_visitors"`
	ByPage         []PageCount    `json:"by_page"`
	Devices        map[string]int `json:"devices"`
	Browsers       map[string]int `json:"browsers"`
}

// Summarize aggregates views recorded in the last `days` days.
func (s *Service) Summarize(days int) (*Summary, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	views, err := s.store.ListPageViewsSince(since)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Devices:  make(map[string]int),
		Browsers: make(map[string]int),
	}
	sessions := make(map[string]struct{})
	byPage := make(map[string]int)
	for _, v := range views {
		sum.TotalViews++
		sessions[v.SessionID] = struct{}{}
		byPage[v.PagePath]++
		sum.Devices[v.DeviceType]++
		sum.Browsers[v.Browser]++
	}
	sum.UniqueVisitors = len(sessions)

	for path, count := range byPage {
		sum.ByPage = append(sum.ByPage, PageCount{Path: path, Count: count})
	}
	sort.Slice(sum.ByPage, func(i, j int) bool {
		if sum.ByPage[i].Count != sum.ByPage[j].Count {
			return sum.ByPage[i].Count > sum.ByPage[j].Count
		}
		return sum.ByPage[i].Path < sum.ByPage[j].Path
	})
	return sum, nil
}

func classifyDevice(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "ipad") || strings.Contains(l, "tablet"):
		return "tablet"
	case strings.Contains(l, "mobi") || strings.Contains(l, "android") || strings.Contains(l, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func classifyBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Edg"):
		return "Edge"
	case strings.Contains(ua, "OPR") || strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Chrome"):
		return "Chrome"
	case strings.Contains(ua, "Safari"):
		return "Safari"
	default:
		return "Other"
	}
}

func classifyOS(ua string) string {
	switch {
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iOS"):
		return "iOS"
	case strings.Contains(ua, "Win"):
		return "Windows"
	case strings.Contains(ua, "Mac"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Other"
	}
}
