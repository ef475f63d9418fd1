package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"loto-issuer/internal/config"
	"loto-issuer/internal/domain"
	"loto-issuer/internal/session"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// EngineClient talks to the prediction engine. Draw info is public and
// goes out on the client's own transport; prediction requests carry the
// session and go through the session manager.
type EngineClient struct {
	baseURL string
	session *session.Manager
	client  *fasthttp.Client
	logger  zerolog.Logger
}

func NewEngineClient(cfg *config.Config, sess *session.Manager, logger zerolog.Logger) *EngineClient {
	return &EngineClient{
		baseURL: cfg.EngineBaseURL,
		session: sess,
		logger:  logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

type drawLatestResponse struct {
	LotoType string `json:"loto_type"`
	Round    int    `json:"round"`
	DrawDate string `json:"draw_date"`
	Weekday  string `json:"weekday"`
}

// FetchLatestDraw returns the current round reference for a variant.
// Issuance cannot proceed without it, so any failure is terminal for the
// attempt.
func (c *EngineClient) FetchLatestDraw(ctx context.Context, variant string) (domain.DrawDescriptor, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/draw/latest?loto_type=%s", c.baseURL, url.QueryEscape(variant)))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.send(ctx, req, resp); err != nil {
		return domain.DrawDescriptor{}, fmt.Errorf("%w: %w", domain.ErrDrawFetch, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return domain.DrawDescriptor{}, fmt.Errorf("%w: status %d", domain.ErrDrawFetch, resp.StatusCode())
	}

	var out drawLatestResponse
	if err := unmarshalBody(resp.Body(), &out); err != nil {
		return domain.DrawDescriptor{}, fmt.Errorf("%w: %w", domain.ErrDrawFetch, err)
	}

	c.logger.Debug().
		Str("loto_type", variant).
		Int("round", out.Round).
		Str("draw_date", out.DrawDate).
		Msg("fetched latest draw")

	return domain.DrawDescriptor{Round: out.Round, DrawDate: out.DrawDate, Weekday: out.Weekday}, nil
}

// PredictionQuery carries everything the engine needs for one issuance.
// Birthdate is only meaningful for the fortune model.
type PredictionQuery struct {
	Variant   string
	Model     string
	UserID    string
	Count     int
	Draw      domain.DrawDescriptor
	Birthdate string
}

// FetchPredictions issues an authenticated request and normalizes the
// engine's reply into one record per ticket. 403 is the entitlement
// sentinel; 401 never reaches here (session manager aborts first).
func (c *EngineClient) FetchPredictions(ctx context.Context, q PredictionQuery) ([]domain.PredictionRecord, error) {
	params := url.Values{}
	params.Set("loto_type", q.Variant)
	params.Set("model", q.Model)
	params.Set("user_id", q.UserID)
	params.Set("round", strconv.Itoa(q.Draw.Round))
	params.Set("draw_date", q.Draw.DrawDate)
	params.Set("count", strconv.Itoa(q.Count))
	if q.Birthdate != "" {
		params.Set("birthdate", q.Birthdate)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/engine/prediction?%s", c.baseURL, params.Encode()))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.session.Dispatch(ctx, req, resp); err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode() == fasthttp.StatusForbidden:
		return nil, domain.ErrPremiumRequired
	case resp.StatusCode() != fasthttp.StatusOK:
		return nil, fmt.Errorf("%w: status %d", domain.ErrEngine, resp.StatusCode())
	}

	records, err := normalizePredictions(resp.Body(), q.Count)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("loto_type", q.Variant).
		Str("model", q.Model).
		Int("requested", q.Count).
		Int("records", len(records)).
		Msg("predictions fetched")

	return records, nil
}

func (c *EngineClient) send(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if ok {
		return c.client.DoDeadline(req, resp, deadline)
	}
	return c.client.Do(req, resp)
}
