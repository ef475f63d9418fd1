package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loto-issuer/internal/config"
	"loto-issuer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Manager owns the bearer token and cached profile. Every authenticated
// call to the engine goes through Dispatch, which is the single place a
// 401 is handled: token and profile are cleared and ErrUnauthorized is
// returned for the hosting shell to turn into a login redirect.
type Manager struct {
	store   Store
	client  *fasthttp.Client
	baseURL string
	logger  zerolog.Logger
}

func NewManager(cfg *config.Config, store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:   store,
		baseURL: cfg.EngineBaseURL,
		logger:  logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// Authorize decorates an outbound request: Bearer header when a token is
// present, JSON content type when a body is carried without one.
func (m *Manager) Authorize(ctx context.Context, req *fasthttp.Request) error {
	token, err := m.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if len(req.Body()) > 0 && len(req.Header.ContentType()) == 0 {
		req.Header.SetContentType("application/json")
	}
	return nil
}

// Dispatch authorizes and sends the request. A 401 clears the session
// atomically and aborts with ErrUnauthorized; callers must not retry
// past it. Other statuses are the caller's to interpret.
func (m *Manager) Dispatch(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := m.Authorize(ctx, req); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := m.client.DoDeadline(req, resp, deadline); err != nil {
			return err
		}
	} else {
		if err := m.client.Do(req, resp); err != nil {
			return err
		}
	}

	if resp.StatusCode() == fasthttp.StatusUnauthorized {
		m.logger.Warn().Str("uri", req.URI().String()).Msg("session rejected, clearing credentials")
		m.forceLogout(ctx)
		return domain.ErrUnauthorized
	}

	return nil
}

func (m *Manager) forceLogout(ctx context.Context) {
	if err := m.store.ClearToken(ctx); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear token")
	}
	if err := m.store.ClearProfile(ctx); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear profile")
	}
}

// Login stores a token obtained from the auth endpoint and primes the
// profile cache from /auth/me.
func (m *Manager) Login(ctx context.Context, token string) (*domain.Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrValidation)
	}
	if err := m.store.SetToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return m.fetchProfile(ctx)
}

func (m *Manager) Logout(ctx context.Context) {
	m.logger.Info().Msg("logging out")
	m.forceLogout(ctx)
}

// EnsureEntitled is the side-effecting gate in front of issuance: it
// requires a token, refreshes the profile from /auth/me and caches it.
// False always comes with a sentinel the shell can route on
// (ErrLoginRequired, ErrUnauthorized, ErrPremiumRequired) or the
// underlying failure.
func (m *Manager) EnsureEntitled(ctx context.Context) (bool, error) {
	token, err := m.store.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return false, domain.ErrLoginRequired
	}

	profile, err := m.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	if !profile.IsPremium {
		return false, domain.ErrPremiumRequired
	}
	return true, nil
}

// IsEntitledCached is the pure read of the last cached profile, for
// instant decisions without a network round trip.
func (m *Manager) IsEntitledCached(ctx context.Context) bool {
	profile, err := m.store.Profile(ctx)
	if err != nil || profile == nil {
		return false
	}
	return profile.IsPremium
}

func (m *Manager) CachedProfile(ctx context.Context) (*domain.Profile, error) {
	return m.store.Profile(ctx)
}

func (m *Manager) fetchProfile(ctx context.Context) (*domain.Profile, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(m.baseURL + "/auth/me")
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := m.Dispatch(ctx, req, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("profile fetch failed: status %d", resp.StatusCode())
	}

	var profile domain.Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	if err := m.store.SetProfile(ctx, &profile); err != nil {
		return nil, fmt.Errorf("failed to cache profile: %w", err)
	}

	m.logger.Debug().Int64("user_id", profile.ID).Bool("is_premium", profile.IsPremium).Msg("profile cached")
	return &profile, nil
}
