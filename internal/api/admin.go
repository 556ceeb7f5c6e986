package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velikanov/folio/internal/analytics"
	"github.com/velikanov/folio/internal/ingest"
	"github.com/velikanov/folio/internal/storage"
)

// Invalidator drops cached content after admin mutations.
type Invalidator interface {
	Invalidate()
}

// AdminDeps holds dependencies for the authenticated admin API.
type AdminDeps struct {
	Store     *storage.Store
	Catalog   Invalidator
	Analytics *analytics.Service
	Token     string
}

// NewAdminHandler returns the bearer-token protected admin API: profile and
// content management, contact inbox, analytics, and imports.
func NewAdminHandler(deps AdminDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/profile", handleAdminGetProfile(deps))
	r.Put("/profile", handleAdminPutProfile(deps))

	r.Route("/skills", func(r chi.Router) {
		r.Get("/", handleListSkills(deps))
		r.Post("/", handleAddSkill(deps))
		r.Put("/{id}", handleUpdateSkill(deps))
		r.Delete("/{id}", handleDeleteEntity(deps, "skill", deps.Store.DeleteSkill))
	})
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", handleListProjects(deps))
		r.Post("/", handleAddProject(deps))
		r.Put("/{id}", handleUpdateProject(deps))
		r.Delete("/{id}", handleDeleteEntity(deps, "project", deps.Store.DeleteProject))
	})
	r.Route("/experience", func(r chi.Router) {
		r.Get("/", handleListExperience(deps))
		r.Post("/", handleAddExperience(deps))
		r.Put("/{id}", handleUpdateExperience(deps))
		r.Delete("/{id}", handleDeleteEntity(deps, "experience entry", deps.Store.DeleteExperience))
	})
	r.Route("/education", func(r chi.Router) {
		r.Get("/", handleListEducation(deps))
		r.Post("/", handleAddEducation(deps))
		r.Put("/{id}", handleUpdateEducation(deps))
		r.Delete("/{id}", handleDeleteEntity(deps, "education entry", deps.Store.DeleteEducation))
	})
	r.Route("/certifications", func(r chi.Router) {
		r.Get("/", handleListCertifications(deps))
		r.Post("/", handleAddCertification(deps))
		r.Put("/{id}", handleUpdateCertification(deps))
		r.Delete("/{id}", handleDeleteEntity(deps, "certification", deps.Store.DeleteCertification))
	})
	r.Route("/knowledge", func(r chi.Router) {
		r.Get("/", handleListKnowledge(deps))
		r.Post("/", handleAddKnowledge(deps))
		r.Put("/{id}", handleUpdateKnowledge(deps))
		r.Delete("/{id}", handleDeleteEntity(deps, "knowledge item", deps.Store.DeleteKnowledgeItem))
	})

	r.Route("/messages", func(r chi.Router) {
		r.Get("/", handleListMessages(deps))
		r.Get("/unread-count", handleUnreadCount(deps))
		r.Post("/{id}/read", handleMarkMessageRead(deps))
		r.Delete("/{id}", handleDeleteMessage(deps))
	})

	r.Get("/analytics", handleAnalytics(deps))
	r.Post("/import", handleImport(deps))

	return r
}

// decodeBody decodes a size-limited JSON body and reports the error itself.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func handleAdminGetProfile(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Store.GetProfile()
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "profile not configured yet")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handleAdminPutProfile(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p storage.Profile
		if !decodeBody(w, r, &p) {
			return
		}
		if p.FullName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "full_name is required")
			return
		}
		if err := deps.Store.UpsertProfile(p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleDeleteEntity(deps AdminDeps, name string, del func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := del(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "%s not found", name)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete %s: %v", name, err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleListSkills(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListSkills()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list skills: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(items))
	}
}

func handleAddSkill(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sk storage.Skill
		if !decodeBody(w, r, &sk) {
			return
		}
		if sk.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		sk.ID = uuid.NewString()
		sk.CreatedAt = time.Now()
		if err := deps.Store.AddSkill(sk); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add skill: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSONStatus(w, http.StatusCreated, sk)
	}
}

func handleUpdateSkill(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sk storage.Skill
		if !decodeBody(w, r, &sk) {
			return
		}
		sk.ID = chi.URLParam(r, "id")
		err := deps.Store.UpdateSkill(sk)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "skill not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update skill: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, sk)
	}
}

func handleListProjects(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListProjects()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list projects: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(items))
	}
}

func handleAddProject(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p storage.Project
		if !decodeBody(w, r, &p) {
			return
		}
		if p.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}
		if p.Tags == "" {
			p.Tags = "[]"
		}
		p.ID = uuid.NewString()
		p.CreatedAt = time.Now()
		if err := deps.Store.AddProject(p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add project: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSONStatus(w, http.StatusCreated, p)
	}
}

func handleUpdateProject(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p storage.Project
		if !decodeBody(w, r, &p) {
			return
		}
		p.ID = chi.URLParam(r, "id")
		err := deps.Store.UpdateProject(p)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update project: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, p)
	}
}

func handleListExperience(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListExperience()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list experience: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(items))
	}
}

func handleAddExperience(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e storage.Experience
		if !decodeBody(w, r, &e) {
			return
		}
		if e.Company == "" || e.Position == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "company and position are required")
			return
		}
		e.ID = uuid.NewString()
		e.CreatedAt = time.Now()
		if err := deps.Store.AddExperience(e); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add experience: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSONStatus(w, http.StatusCreated, e)
	}
}

func handleUpdateExperience(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e storage.Experience
		if !decodeBody(w, r, &e) {
			return
		}
		e.ID = chi.URLParam(r, "id")
		err := deps.Store.UpdateExperience(e)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "experience entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update experience: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, e)
	}
}

func handleListEducation(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListEducation()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list education: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(items))
	}
}

func handleAddEducation(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e storage.Education
		if !decodeBody(w, r, &e) {
			return
		}
		if e.Institution == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "institution is required")
			return
		}
		e.ID = uuid.NewString()
		e.CreatedAt = time.Now()
		if err := deps.Store.AddEducation(e); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add education: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSONStatus(w, http.StatusCreated, e)
	}
}

func handleUpdateEducation(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e storage.Education
		if !decodeBody(w, r, &e) {
			return
		}
		e.ID = chi.URLParam(r, "id")
		err := deps.Store.UpdateEducation(e)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "education entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update education: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, e)
	}
}

func handleListCertifications(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListCertifications()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list certifications: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(items))
	}
}

func handleAddCertification(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c storage.Certification
		if !decodeBody(w, r, &c) {
			return
		}
		if c.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		c.ID = uuid.NewString()
		c.CreatedAt = time.Now()
		if err := deps.Store.AddCertification(c); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add certification: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSONStatus(w, http.StatusCreated, c)
	}
}

func handleUpdateCertification(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c storage.Certification
		if !decodeBody(w, r, &c) {
			return
		}
		c.ID = chi.URLParam(r, "id")
		err := deps.Store.UpdateCertification(c)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "certification not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update certification: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, c)
	}
}

func handleListKnowledge(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListKnowledge()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list knowledge: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(items))
	}
}

func handleAddKnowledge(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var k storage.KnowledgeItem
		if !decodeBody(w, r, &k) {
			return
		}
		if k.Topic == "" || k.Description == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic and description are required")
			return
		}
		if k.Proficiency == 0 {
			k.Proficiency = 50
		}
		k.ID = uuid.NewString()
		k.CreatedAt = time.Now()
		if err := deps.Store.AddKnowledgeItem(k); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add knowledge item: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSONStatus(w, http.StatusCreated, k)
	}
}

func handleUpdateKnowledge(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var k storage.KnowledgeItem
		if !decodeBody(w, r, &k) {
			return
		}
		k.ID = chi.URLParam(r, "id")
		err := deps.Store.UpdateKnowledgeItem(k)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "knowledge item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update knowledge item: %v", err)
			return
		}
		deps.Catalog.Invalidate()
		writeJSON(w, k)
	}
}

func handleListMessages(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		msgs, err := deps.Store.ListMessages(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}
		writeJSON(w, emptyIfNil(msgs))
	}
}

func handleUnreadCount(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Store.CountUnreadMessages()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count messages: %v", err)
			return
		}
		writeJSON(w, map[string]int{"unread": n})
	}
}

func handleMarkMessageRead(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.MarkMessageRead(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "message not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to mark message read: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "read"})
	}
}

func handleDeleteMessage(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteMessage(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "message not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete message: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleAnalytics(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", 30, 365)
		sum, err := deps.Analytics.Summarize(days)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to summarize analytics: %v", err)
			return
		}
		writeJSON(w, sum)
	}
}

type importRequest struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Topic  string `json:"topic,omitempty"`
}

func handleImport(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Kind != "resume" && req.Kind != "url" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "kind must be \"resume\" or \"url\"")
			return
		}
		if req.Source == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "source is required")
			return
		}

		payload, err := json.Marshal(ingest.Payload{Kind: req.Kind, Source: req.Source, Topic: req.Topic})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.NewString(),
			Type:        ingest.JobType,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": "queued"})
	}
}
