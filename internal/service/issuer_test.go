package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"loto-issuer/internal/api"
	"loto-issuer/internal/config"
	"loto-issuer/internal/domain"
	"loto-issuer/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	draw    domain.DrawDescriptor
	drawErr error

	records []domain.PredictionRecord
	predErr error

	drawStarted chan struct{}
	drawRelease chan struct{}

	predictCalls atomic.Int32
}

func (s *stubEngine) FetchLatestDraw(ctx context.Context, variant string) (domain.DrawDescriptor, error) {
	if s.drawStarted != nil {
		close(s.drawStarted)
		s.drawStarted = nil
	}
	if s.drawRelease != nil {
		<-s.drawRelease
	}
	return s.draw, s.drawErr
}

func (s *stubEngine) FetchPredictions(ctx context.Context, q api.PredictionQuery) ([]domain.PredictionRecord, error) {
	s.predictCalls.Add(1)
	if s.predErr != nil {
		return nil, s.predErr
	}
	return s.records, nil
}

type recordingHistory struct {
	inserted chan *domain.IssuanceRecord
}

func (h *recordingHistory) Insert(ctx context.Context, rec *domain.IssuanceRecord) error {
	h.inserted <- rec
	return nil
}

func (h *recordingHistory) ListRecent(ctx context.Context, limit int) ([]*domain.IssuanceRecord, error) {
	return nil, nil
}

func newTestIssuer(t *testing.T, cfg *config.Config, engine Engine, history History) (*Issuer, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	sess := session.NewManager(cfg, store, zerolog.Nop())
	return NewIssuer(cfg, engine, sess, history, zerolog.Nop()), store
}

func TestIssue_MockEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MockMode: true, DefaultModel: "logic", UserID: "u1"}
	engine := &stubEngine{draw: domain.DrawDescriptor{Round: 642, DrawDate: "2026-09-04", Weekday: "Fri"}}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)
	issuer.RegisterVariant(domain.VariantConfig{
		ID: "loto7", RangeMin: 1, RangeMax: 37, TicketSize: 7, FixedNumbers: []int{7, 17},
	})

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto7", Count: 3})
	require.NoError(t, err)

	require.Equal(t, domain.PhaseSuccess, state.Phase)
	require.Len(t, state.Records, 3)
	assert.Equal(t, 3, state.Count)

	for _, rec := range state.Records {
		numbers := rec.Prediction.Numbers
		require.Len(t, numbers, 7)
		assert.Contains(t, []int(numbers), 7)
		assert.Contains(t, []int(numbers), 17)

		seen := make(map[int]struct{})
		for _, n := range numbers {
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, 37)
			seen[n] = struct{}{}
		}
		assert.Len(t, seen, 7, "no duplicates")

		assert.Equal(t, 642, rec.Draw.Round)
		assert.Equal(t, "mock", rec.System.DataSource)
	}

	assert.Equal(t, int32(0), engine.predictCalls.Load(), "mock path never hits the engine")
	assert.Equal(t, domain.PhaseSuccess, issuer.State().Phase)
}

func TestIssue_MockWorksOffline(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MockMode: true, DefaultModel: "logic"}
	engine := &stubEngine{drawErr: domain.ErrDrawFetch}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 2})
	require.NoError(t, err)

	require.Equal(t, domain.PhaseSuccess, state.Phase)
	require.Len(t, state.Records, 2)
	assert.Equal(t, 0, state.Records[0].Draw.Round, "round 0 marks an unknown draw")
}

func TestIssue_PremiumRequiredRoutesToPaywall(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{EngineBaseURL: "http://engine.test", DefaultModel: "logic", UserID: "u1"}
	engine := &stubEngine{
		draw:    domain.DrawDescriptor{Round: 100, DrawDate: "2026-09-03"},
		predErr: domain.ErrPremiumRequired,
	}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePremiumRequired, state.Phase)
	assert.Empty(t, state.Message, "paywall is not a generic error")

	// Trigger re-armed: the next attempt runs and can succeed.
	engine.predErr = nil
	engine.records = []domain.PredictionRecord{{}}
	state, err = issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSuccess, state.Phase)
}

func TestIssue_CachedFreeProfileShortCircuits(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{EngineBaseURL: "http://engine.test", DefaultModel: "logic"}
	engine := &stubEngine{draw: domain.DrawDescriptor{Round: 1}}
	issuer, store := newTestIssuer(t, cfg, engine, nil)
	require.NoError(t, store.SetProfile(context.Background(), &domain.Profile{ID: 5, IsPremium: false}))

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePremiumRequired, state.Phase)
	assert.Equal(t, int32(0), engine.predictCalls.Load(), "no round trip on a cached free profile")
}

func TestIssue_DrawFailureIsTerminal(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{EngineBaseURL: "http://engine.test", DefaultModel: "logic"}
	engine := &stubEngine{drawErr: domain.ErrDrawFetch}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, state.Phase)
	assert.Equal(t, msgDrawUnavailable, state.Message)
	assert.Equal(t, int32(0), engine.predictCalls.Load(), "no prediction attempt without a round reference")
}

func TestIssue_EngineFailureUsesFixedMessage(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{EngineBaseURL: "http://engine.test", DefaultModel: "logic"}
	engine := &stubEngine{
		draw:    domain.DrawDescriptor{Round: 1},
		predErr: domain.ErrEngine,
	}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, state.Phase)
	assert.Equal(t, msgIssuanceFailed, state.Message, "technical detail never reaches the message")
}

func TestIssue_UnauthorizedAborts(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{EngineBaseURL: "http://engine.test", DefaultModel: "logic"}
	engine := &stubEngine{
		draw:    domain.DrawDescriptor{Round: 1},
		predErr: domain.ErrUnauthorized,
	}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	_, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.PhaseIdle, issuer.State().Phase, "hard abort leaves no terminal render state")
}

func TestIssue_ValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  IssueRequest
	}{
		{name: "unknown variant", req: IssueRequest{Variant: "loto9", Count: 1}},
		{name: "fortune without birthdate", req: IssueRequest{Variant: "loto6", Model: "fortune", Count: 1}},
		{name: "fortune with partial birthdate", req: IssueRequest{Variant: "loto6", Model: "fortune", Count: 1, Birthdate: "1990-04"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{MockMode: true, DefaultModel: "logic"}
			issuer, _ := newTestIssuer(t, cfg, &stubEngine{}, nil)

			state, err := issuer.Issue(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseError, state.Phase)
			assert.Equal(t, msgInvalidRequest, state.Message)
		})
	}
}

func TestIssue_CountClamped(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MockMode: true, DefaultModel: "logic"}
	engine := &stubEngine{draw: domain.DrawDescriptor{Round: 1}}
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 2.9})
	require.NoError(t, err)
	require.Equal(t, domain.PhaseSuccess, state.Phase)
	assert.Len(t, state.Records, 2)

	state, err = issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: -3})
	require.NoError(t, err)
	require.Equal(t, domain.PhaseSuccess, state.Phase)
	assert.Len(t, state.Records, 1)
}

func TestIssue_SecondTriggerWhileInFlight(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MockMode: true, DefaultModel: "logic"}
	engine := &stubEngine{
		draw:        domain.DrawDescriptor{Round: 1},
		drawStarted: make(chan struct{}),
		drawRelease: make(chan struct{}),
	}
	started := engine.drawStarted
	issuer, _ := newTestIssuer(t, cfg, engine, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
		assert.NoError(t, err)
		assert.Equal(t, domain.PhaseSuccess, state.Phase)
	}()

	<-started
	assert.Equal(t, domain.PhaseLoading, issuer.State().Phase)

	_, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 1})
	assert.ErrorIs(t, err, domain.ErrBusy)

	close(engine.drawRelease)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("issuance did not finish")
	}
}

func TestIssue_RecordsHistory(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MockMode: true, DefaultModel: "logic"}
	engine := &stubEngine{draw: domain.DrawDescriptor{Round: 77, DrawDate: "2026-09-03"}}
	history := &recordingHistory{inserted: make(chan *domain.IssuanceRecord, 1)}
	issuer, _ := newTestIssuer(t, cfg, engine, history)

	state, err := issuer.Issue(context.Background(), IssueRequest{Variant: "loto6", Count: 2})
	require.NoError(t, err)
	require.Equal(t, domain.PhaseSuccess, state.Phase)

	select {
	case rec := <-history.inserted:
		assert.Equal(t, "loto6", rec.LotoType)
		assert.Equal(t, "logic", rec.Model)
		assert.Equal(t, 2, rec.Count)
		assert.Equal(t, 77, rec.Round)
		assert.Equal(t, "mock", rec.DataSource)
	case <-time.After(5 * time.Second):
		t.Fatal("issuance history was never written")
	}
}
