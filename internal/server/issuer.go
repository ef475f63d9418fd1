package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"loto-issuer/internal/domain"
	"loto-issuer/internal/service"
	"loto-issuer/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	loginRedirect  = "/login.html"
	upsellRedirect = "/login.html?upsell=premium"
)

// IssuerServer is the JSON gateway the frontend talks to. It is the
// hosting shell from the core's point of view: auth sentinels coming out
// of the pipeline are translated into 401/403 responses carrying a
// redirect hint, never handled inside the pipeline itself.
type IssuerServer struct {
	issuer  *service.Issuer
	session *session.Manager
	logger  zerolog.Logger
}

func NewIssuerServer(issuer *service.Issuer, sess *session.Manager, logger zerolog.Logger) *IssuerServer {
	return &IssuerServer{issuer: issuer, session: sess, logger: logger}
}

func (s *IssuerServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/issue", s.handleIssue)
	r.Get("/session", s.handleSession)
	r.Post("/session/login", s.handleLogin)
	r.Post("/session/logout", s.handleLogout)
	r.Get("/history", s.handleHistory)
	return r
}

type issueRequest struct {
	LotoType  string  `json:"loto_type"`
	Model     string  `json:"model"`
	Count     float64 `json:"count"`
	Birthdate string  `json:"birthdate"`
}

type issueResponse struct {
	State    string                    `json:"state"`
	Count    int                       `json:"count,omitempty"`
	Records  []domain.PredictionRecord `json:"records,omitempty"`
	Message  string                    `json:"message,omitempty"`
	Redirect string                    `json:"redirect,omitempty"`
}

func (s *IssuerServer) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, issueResponse{State: "error", Message: "invalid request body"})
		return
	}

	state, err := s.issuer.Issue(r.Context(), service.IssueRequest{
		Variant:   req.LotoType,
		Model:     req.Model,
		Count:     req.Count,
		Birthdate: req.Birthdate,
	})

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBusy):
		writeJSON(w, http.StatusConflict, issueResponse{State: "busy", Message: "an issuance is already in progress"})
		return
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrLoginRequired):
		writeJSON(w, http.StatusUnauthorized, issueResponse{State: "login_required", Redirect: loginRedirect})
		return
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("issue request failed")
		writeJSON(w, http.StatusInternalServerError, issueResponse{State: "error", Message: "internal error"})
		return
	}

	switch state.Phase {
	case domain.PhaseSuccess:
		writeJSON(w, http.StatusOK, issueResponse{State: state.Phase.String(), Count: state.Count, Records: state.Records})
	case domain.PhasePremiumRequired:
		writeJSON(w, http.StatusForbidden, issueResponse{State: state.Phase.String(), Redirect: upsellRedirect})
	default:
		writeJSON(w, http.StatusOK, issueResponse{State: state.Phase.String(), Message: state.Message})
	}
}

type sessionResponse struct {
	LoggedIn bool            `json:"logged_in"`
	Entitled bool            `json:"entitled"`
	Profile  *domain.Profile `json:"profile,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
}

func (s *IssuerServer) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("refresh") != "" {
		entitled, err := s.session.EnsureEntitled(ctx)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrLoginRequired), errors.Is(err, domain.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, sessionResponse{Redirect: loginRedirect})
			return
		case errors.Is(err, domain.ErrPremiumRequired):
			profile, _ := s.session.CachedProfile(ctx)
			writeJSON(w, http.StatusForbidden, sessionResponse{LoggedIn: true, Profile: profile, Redirect: upsellRedirect})
			return
		default:
			zerolog.Ctx(ctx).Error().Err(err).Msg("entitlement check failed")
			writeJSON(w, http.StatusBadGateway, sessionResponse{})
			return
		}
		profile, _ := s.session.CachedProfile(ctx)
		writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: true, Entitled: entitled, Profile: profile})
		return
	}

	profile, err := s.session.CachedProfile(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to read cached profile")
		writeJSON(w, http.StatusInternalServerError, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		LoggedIn: profile != nil,
		Entitled: s.session.IsEntitledCached(ctx),
		Profile:  profile,
	})
}

type loginRequest struct {
	Token string `json:"token"`
}

func (s *IssuerServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionResponse{})
		return
	}

	profile, err := s.session.Login(r.Context(), req.Token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: true, Entitled: profile.IsPremium, Profile: profile})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, sessionResponse{})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, sessionResponse{Redirect: loginRedirect})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("login failed")
		writeJSON(w, http.StatusBadGateway, sessionResponse{})
	}
}

func (s *IssuerServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type historyEntry struct {
	ID         string `json:"id"`
	LotoType   string `json:"loto_type"`
	Model      string `json:"model"`
	Count      int    `json:"count"`
	Round      int    `json:"round"`
	DataSource string `json:"data_source"`
	CreatedAt  string `json:"created_at"`
}

func (s *IssuerServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.issuer.RecentHistory(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:         rec.ID,
			LotoType:   rec.LotoType,
			Model:      rec.Model,
			Count:      rec.Count,
			Round:      rec.Round,
			DataSource: rec.DataSource,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"issuances": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
