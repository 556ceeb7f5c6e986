package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velikanov/folio/internal/analytics"
	"github.com/velikanov/folio/internal/chat"
	"github.com/velikanov/folio/internal/content"
	"github.com/velikanov/folio/internal/lang"
	"github.com/velikanov/folio/internal/storage"
)

// PublicDeps holds dependencies for the unauthenticated visitor API.
type PublicDeps struct {
	Store     *storage.Store
	Catalog   *content.Catalog
	Sessions  *chat.Registry
	Analytics *analytics.Service
}

// NewPublicHandler returns the visitor-facing REST API: portfolio content,
// contact form, page-view events, and the chat assistant.
func NewPublicHandler(deps PublicDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/api/portfolio", handleGetPortfolio(deps))
	r.Get("/api/languages", handleListLanguages)
	r.Post("/api/messages", handleSubmitMessage(deps))
	r.Post("/api/events/page-view", handlePageView(deps))

	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Post("/", handleCreateSession(deps))
		r.Get("/{id}", handleGetSession(deps))
		r.Delete("/{id}", handleDeleteSession(deps))
		r.Post("/{id}/messages", handleChatMessage(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// portfolioResponse is the public content payload. The profile is embedded
// with its Gemini key stripped; the key must never leave the admin surface.
type portfolioResponse struct {
	Profile        *storage.Profile        `json:"profile"`
	Skills         []storage.Skill         `json:"skills"`
	Projects       []storage.Project       `json:"projects"`
	Experience     []storage.Experience    `json:"experience"`
	Education      []storage.Education     `json:"education"`
	Certifications []storage.Certification `json:"certifications"`
}

func handleGetPortfolio(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := deps.Catalog.Snapshot(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load portfolio: %v", err)
			return
		}

		resp := portfolioResponse{
			Skills:         emptyIfNil(snap.Skills),
			Projects:       emptyIfNil(snap.Projects),
			Experience:     emptyIfNil(snap.Experience),
			Education:      emptyIfNil(snap.Education),
			Certifications: emptyIfNil(snap.Certifications),
		}
		if snap.Profile != nil {
			p := *snap.Profile
			p.GeminiAPIKey = ""
			resp.Profile = &p
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func handleListLanguages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lang.Supported)
}

type messageRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func handleSubmitMessage(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == "" || req.Email == "" || req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name, email and message are required")
			return
		}

		msg := storage.Message{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Email:     req.Email,
			Body:      req.Message,
			CreatedAt: time.Now(),
		}
		if err := deps.Store.SaveMessage(msg); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save message: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": msg.ID, "status": "received"})
	}
}

func handlePageView(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var view analytics.View
		if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if view.PagePath == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "page_path is required")
			return
		}
		if view.UserAgent == "" {
			view.UserAgent = r.UserAgent()
		}

		sessionID, err := deps.Analytics.Record(view)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record page view: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"session_id": sessionID})
	}
}

type createSessionRequest struct {
	Language string `json:"language"`
}

type sessionResponse struct {
	ID         string      `json:"id"`
	Language   string      `json:"language"`
	Responding bool        `json:"responding"`
	Transcript []chat.Turn `json:"transcript"`
}

func sessionJSON(s *chat.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		Language:   s.Language().Code,
		Responding: s.Responding(),
		Transcript: s.Transcript(),
	}
}

func handleCreateSession(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createSessionRequest
		// An empty body starts an English session.
		_ = json.NewDecoder(r.Body).Decode(&req)

		language, _ := lang.Lookup(req.Language)
		s := deps.Sessions.Create(language)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sessionJSON(s))
	}
}

func handleGetSession(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := deps.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessionJSON(s))
	}
}

func handleDeleteSession(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Sessions.Delete(chi.URLParam(r, "id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

type chatMessageRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

func handleChatMessage(deps PublicDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		s, ok := deps.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		var req chatMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Language != "" {
			if l, ok := lang.Lookup(req.Language); ok {
				s.SetLanguage(l)
			}
		}

		turn, err := s.Submit(r.Context(), req.Text)
		if errors.Is(err, chat.ErrEmptyInput) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			httpError(w, http.StatusConflict, "api_error", "submission superseded: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(turn)
	}
}
