// Package httpadapter exposes the pipeline over HTTP: analysis enqueueing,
// detection lookups served through the page context, lead lookups and the
// CRM actions on a lead.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"prospector/internal/audit"
	"prospector/internal/bridge"
	"prospector/internal/domain"
	"prospector/internal/pipeline"
	"prospector/internal/ports"
	"prospector/internal/session"
	"prospector/internal/workers/analysisrunner"
)

const defaultWaitTimeout = 30 * time.Second

type Server struct {
	pipeline  *pipeline.Service
	crm       *pipeline.CRMClient
	audits    *audit.Client
	session   *session.Manager
	hub       *bridge.Hub
	jobs      ports.JobRepository
	processor analysisrunner.Processor
}

func New(svc *pipeline.Service, crm *pipeline.CRMClient, audits *audit.Client, sess *session.Manager, hub *bridge.Hub, jobs ports.JobRepository, processor analysisrunner.Processor) *Server {
	return &Server{pipeline: svc, crm: crm, audits: audits, session: sess, hub: hub, jobs: jobs, processor: processor}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)

	r.Post("/analyses", s.postAnalysis)
	r.Get("/analyses/{id}", s.getAnalysis)

	r.Get("/page-data", s.detection(bridge.ActionGetPageData))
	r.Get("/tech-stack", s.detection(bridge.ActionGetTechStack))
	r.Get("/signals", s.detection(bridge.ActionGetSignals))
	r.Get("/contacts", s.detection(bridge.ActionGetContacts))

	r.Get("/leads", s.getLead)
	r.Post("/leads/{id}/claim", s.claimLead)
	r.Post("/leads/{id}/contacts", s.saveContacts)
	r.Post("/leads/{id}/outreach", s.generateOutreach)

	r.Post("/audits/{id}/magic-link", s.magicLink)

	r.Get("/session", s.getSession)
	r.Delete("/session", s.deleteSession)
	r.Get("/preferences", s.getPreferences)
	r.Put("/preferences", s.putPreferences)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		respondError(w, http.StatusBadRequest, "missing url")
		return
	}
	id, err := s.pipeline.Enqueue(r.Context(), body.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Blocking path: run the same processor the workers use and return the
	// finished analysis instead of an acceptance.
	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), defaultWaitTimeout)
		defer cancel()
		if err := analysisrunner.ProcessInline(ctx, s.jobs, s.processor, id); err != nil {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		analysis, err := s.pipeline.Status(ctx, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, analysisView(analysis))
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"analysisId": id})
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.pipeline.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "analysis not found")
		return
	}
	respondJSON(w, http.StatusOK, analysisView(analysis))
}

// detection proxies one detection action to the page context. Retries and
// the unanalyzable terminal state live in the bridge, not here.
func (s *Server) detection(action bridge.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageURL := r.URL.Query().Get("url")
		if pageURL == "" {
			respondError(w, http.StatusBadRequest, "missing url")
			return
		}
		var out json.RawMessage
		err := s.hub.Request(r.Context(), bridge.PageContext, action, bridge.PageRequest{URL: pageURL}, &out)
		if err != nil {
			if errors.Is(err, bridge.ErrPageUnanalyzable) {
				respondError(w, http.StatusBadGateway, bridge.ErrPageUnanalyzable.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondRaw(w, http.StatusOK, out)
	}
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	domainParam := r.URL.Query().Get("domain")
	if domainParam == "" {
		respondError(w, http.StatusBadRequest, "missing domain")
		return
	}
	lead, found, err := s.pipeline.Lookup(r.Context(), domainParam)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no lead for domain")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

func (s *Server) claimLead(w http.ResponseWriter, r *http.Request) {
	if err := s.crm.Claim(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondUpstream(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveContacts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Contacts []domain.Contact `json:"contacts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.crm.SaveContacts(r.Context(), chi.URLParam(r, "id"), body.Contacts); err != nil {
		respondUpstream(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) generateOutreach(w http.ResponseWriter, r *http.Request) {
	prefs := s.session.Preferences(r.Context())
	message, err := s.crm.GenerateOutreach(r.Context(), chi.URLParam(r, "id"), prefs)
	if err != nil {
		respondUpstream(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) magicLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecipientEmail string `json:"recipientEmail"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	link, err := s.audits.MagicLink(r.Context(), chi.URLParam(r, "id"), body.RecipientEmail)
	if err != nil {
		respondUpstream(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"magicLink": link})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session.Session()
	if !sess.Authenticated() {
		respondError(w, http.StatusUnauthorized, session.ErrSignedOut.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": sess.User})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.session.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.Preferences(r.Context()))
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.session.SetPreferences(r.Context(), prefs); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondUpstream maps upstream call failures: a dead session is the
// caller's problem, anything else is a gateway error.
func respondUpstream(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSignedOut) {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	respondError(w, http.StatusBadGateway, err.Error())
}

type analysisResponse struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Domain     string     `json:"domain"`
	Status     string     `json:"status"`
	Stage      string     `json:"stage,omitempty"`
	LeadID     *string    `json:"leadId,omitempty"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func analysisView(a domain.Analysis) analysisResponse {
	return analysisResponse{
		ID:         a.ID,
		URL:        a.URL,
		Domain:     a.Domain,
		Status:     a.Status,
		Stage:      a.Stage,
		LeadID:     a.LeadID,
		Error:      a.Error,
		CreatedAt:  a.CreatedAt,
		FinishedAt: a.FinishedAt,
	}
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func respondRaw(w http.ResponseWriter, code int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(raw)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
