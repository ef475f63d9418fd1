package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"loto-issuer/internal/api"
	"loto-issuer/internal/config"
	"loto-issuer/internal/constants"
	"loto-issuer/internal/domain"
	"loto-issuer/internal/generator"
	"loto-issuer/internal/session"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// User-facing messages are fixed; the underlying failure is logged, never
// rendered.
const (
	msgDrawUnavailable = "Draw information is currently unavailable. Please try again later."
	msgIssuanceFailed  = "Could not issue predictions. Please try again later."
	msgInvalidRequest  = "Please check your input and try again."
)

// Engine is the remote side of issuance. Satisfied by api.EngineClient.
type Engine interface {
	FetchLatestDraw(ctx context.Context, variant string) (domain.DrawDescriptor, error)
	FetchPredictions(ctx context.Context, q api.PredictionQuery) ([]domain.PredictionRecord, error)
}

// History is the audit sink for completed issuances. Satisfied by
// repository.IssuanceRepository.
type History interface {
	Insert(ctx context.Context, rec *domain.IssuanceRecord) error
	ListRecent(ctx context.Context, limit int) ([]*domain.IssuanceRecord, error)
}

type IssueRequest struct {
	Variant   string
	Model     string
	Count     float64
	Birthdate string
}

// Issuer drives one issuance attempt at a time: clamp the count, fetch
// the draw reference, then predictions from the engine or the local
// generator, and collapse every failure into one of three terminal
// presentation states. While an attempt is in flight the trigger stays
// disabled; a second call gets ErrBusy.
type Issuer struct {
	cfg      *config.Config
	engine   Engine
	session  *session.Manager
	history  History
	logger   zerolog.Logger
	variants map[string]domain.VariantConfig

	mu    sync.Mutex
	state domain.IssuanceState
	busy  bool
}

func NewIssuer(cfg *config.Config, engine Engine, sess *session.Manager, history History, logger zerolog.Logger) *Issuer {
	variants := map[string]domain.VariantConfig{
		domain.Loto6.ID: domain.Loto6,
		domain.Loto7.ID: domain.Loto7,
	}
	if len(cfg.MockFixedNumbers) > 0 {
		for id, v := range variants {
			v.FixedNumbers = cfg.MockFixedNumbers
			variants[id] = v
		}
	}
	return &Issuer{
		cfg:      cfg,
		engine:   engine,
		session:  sess,
		history:  history,
		logger:   logger,
		variants: variants,
		state:    domain.Idle(),
	}
}

// RegisterVariant overrides or adds a variant configuration, e.g. to pin
// fixed numbers for the mock path.
func (s *Issuer) RegisterVariant(v domain.VariantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// State returns the last rendered state.
func (s *Issuer) State() domain.IssuanceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Issue runs one attempt to completion and returns the terminal state.
// The returned error is reserved for shell-level signals: ErrBusy when an
// attempt is already running, ErrUnauthorized/ErrLoginRequired when the
// session layer aborted and the shell must navigate to login. Everything
// else is folded into the state.
func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (domain.IssuanceState, error) {
	count := ClampCount(req.Count)

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return domain.IssuanceState{}, domain.ErrBusy
	}
	s.busy = true
	s.state = domain.Loading(count)
	s.mu.Unlock()

	state, err := s.issue(ctx, req, count)

	s.mu.Lock()
	s.busy = false
	if err == nil {
		s.state = state
	} else {
		s.state = domain.Idle()
	}
	s.mu.Unlock()

	return state, err
}

func (s *Issuer) issue(ctx context.Context, req IssueRequest, count int) (domain.IssuanceState, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	variant, ok := s.lookupVariant(req.Variant)
	if !ok {
		s.logger.Warn().Str("loto_type", req.Variant).Msg("unknown variant requested")
		return domain.Failure(msgInvalidRequest), nil
	}

	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	if model == "fortune" {
		if _, err := time.Parse("2006-01-02", req.Birthdate); err != nil {
			s.logger.Warn().Str("birthdate", req.Birthdate).Msg("fortune model needs a complete birthdate")
			return domain.Failure(msgInvalidRequest), nil
		}
	}

	// A cached non-premium profile routes to the paywall without a
	// round trip. A missing cache proves nothing and falls through.
	if !s.cfg.MockMode {
		if profile, err := s.session.CachedProfile(ctx); err == nil && profile != nil && !profile.IsPremium {
			s.logger.Info().Msg("cached profile is not premium, short-circuiting to paywall")
			return domain.PremiumRequired(), nil
		}
	}

	draw, err := s.fetchDraw(ctx, variant.ID)
	if err != nil {
		if s.cfg.MockMode {
			// The mock path must work offline; round 0 marks the
			// reference as unknown.
			s.logger.Debug().Err(err).Msg("draw fetch failed in mock mode, using empty descriptor")
			draw = domain.DrawDescriptor{}
		} else {
			s.logger.Error().Err(err).Str("loto_type", variant.ID).Msg("draw fetch failed")
			return domain.Failure(msgDrawUnavailable), nil
		}
	}

	var records []domain.PredictionRecord
	if s.cfg.MockMode {
		mockVariant := variant
		if model == "fortune" {
			mockVariant.FixedNumbers = nil
		}
		records, err = generator.MockRecords(mockVariant, model, count, draw)
	} else {
		records, err = s.engine.FetchPredictions(ctx, api.PredictionQuery{
			Variant:   variant.ID,
			Model:     model,
			UserID:    s.cfg.UserID,
			Count:     count,
			Draw:      draw,
			Birthdate: req.Birthdate,
		})
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrLoginRequired):
		// Hard abort: the session layer already cleared credentials,
		// the shell navigates to login.
		return domain.IssuanceState{}, err
	case errors.Is(err, domain.ErrPremiumRequired):
		s.logger.Info().Str("loto_type", variant.ID).Msg("entitlement denied by engine")
		return domain.PremiumRequired(), nil
	default:
		s.logger.Error().Err(err).Str("loto_type", variant.ID).Str("model", model).Msg("issuance failed")
		return domain.Failure(msgIssuanceFailed), nil
	}

	s.recordIssuance(variant.ID, model, count, draw.Round)

	s.logger.Info().
		Str("loto_type", variant.ID).
		Str("model", model).
		Int("count", len(records)).
		Int("round", draw.Round).
		Msg("issuance succeeded")

	return domain.Success(records), nil
}

func (s *Issuer) lookupVariant(id string) (domain.VariantConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	return v, ok
}

func (s *Issuer) fetchDraw(ctx context.Context, variant string) (domain.DrawDescriptor, error) {
	drawCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()
	return s.engine.FetchLatestDraw(drawCtx, variant)
}

// recordIssuance writes the audit row off the request path; a failed
// write is logged and otherwise ignored.
func (s *Issuer) recordIssuance(variant, model string, count, round int) {
	if s.history == nil {
		return
	}

	dataSource := "engine"
	if s.cfg.MockMode {
		dataSource = "mock"
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		return s.history.Insert(ctx, &domain.IssuanceRecord{
			LotoType:   variant,
			Model:      model,
			Count:      count,
			Round:      round,
			DataSource: dataSource,
		})
	})

	go func() {
		if err := g.Wait(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record issuance history")
		}
	}()
}

// RecentHistory lists the latest issuances for the history view.
func (s *Issuer) RecentHistory(ctx context.Context) ([]*domain.IssuanceRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.history.ListRecent(ctx, constants.HistoryListLimit)
}
