package domain

import (
	"time"
)

// VariantConfig describes one lottery game: the inclusive number range,
// how many numbers make a ticket, and the numbers guaranteed to appear
// in every ticket. Known at startup, never mutated.
type VariantConfig struct {
	ID           string
	RangeMin     int
	RangeMax     int
	TicketSize   int
	FixedNumbers []int
}

// Ticket is an ascending sequence of distinct numbers within a variant's
// range, length == TicketSize, containing every fixed number.
type Ticket []int

type DrawDescriptor struct {
	Round    int    `json:"round"`
	DrawDate string `json:"draw_date"`
	Weekday  string `json:"weekday,omitempty"`
}

type RecordMeta struct {
	LotoType      string `json:"loto_type"`
	Model         string `json:"model"`
	PredictionID  string `json:"prediction_id"`
	EngineVersion string `json:"engine_version"`
}

type NumberSource struct {
	Fixed  string `json:"fixed"`
	Random string `json:"random"`
}

type Prediction struct {
	Numbers      Ticket       `json:"numbers"`
	FixedNumbers []int        `json:"fixed_numbers"`
	Count        int          `json:"count"`
	NumberSource NumberSource `json:"number_source"`
}

type Description struct {
	Headline string `json:"headline"`
	Main     string `json:"main"`
	OneWord  string `json:"one_word"`
}

type RecordSystem struct {
	GeneratedAt string `json:"generated_at"`
	Regenerated bool   `json:"regenerated"`
	DataSource  string `json:"data_source"`
	Public      bool   `json:"public"`
}

// PredictionRecord is the canonical one-record-per-ticket shape every
// issuance produces, whether the numbers came from the engine or the
// local generator. Never persisted; lives for one response.
type PredictionRecord struct {
	Meta        RecordMeta     `json:"meta"`
	Draw        DrawDescriptor `json:"draw"`
	Prediction  Prediction     `json:"prediction"`
	Description Description    `json:"description"`
	System      RecordSystem   `json:"system"`
}

type Profile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email,omitempty"`
	IsPremium bool   `json:"is_premium"`
}

// IssuanceRecord is the durable audit row written after a successful
// issuance, listed on the history view.
type IssuanceRecord struct {
	ID         string
	LotoType   string
	Model      string
	Count      int
	Round      int
	DataSource string
	CreatedAt  time.Time
}

type IssuancePhase int

const (
	PhaseIdle IssuancePhase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
	PhasePremiumRequired
)

func (p IssuancePhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	case PhasePremiumRequired:
		return "premium_required"
	}
	return "unknown"
}

// IssuanceState is the value the orchestrator hands to the presentation
// layer. Rebuilt from scratch on every attempt.
type IssuanceState struct {
	Phase   IssuancePhase
	Count   int
	Records []PredictionRecord
	Message string
}

func Idle() IssuanceState {
	return IssuanceState{Phase: PhaseIdle}
}

func Loading(count int) IssuanceState {
	return IssuanceState{Phase: PhaseLoading, Count: count}
}

func Success(records []PredictionRecord) IssuanceState {
	return IssuanceState{Phase: PhaseSuccess, Count: len(records), Records: records}
}

func Failure(message string) IssuanceState {
	return IssuanceState{Phase: PhaseError, Message: message}
}

func PremiumRequired() IssuanceState {
	return IssuanceState{Phase: PhasePremiumRequired}
}

// Variants supported by the issuer. The logic model pins two fixed
// numbers per variant; the fortune model ignores them.
var (
	Loto6 = VariantConfig{ID: "loto6", RangeMin: 1, RangeMax: 43, TicketSize: 6}
	Loto7 = VariantConfig{ID: "loto7", RangeMin: 1, RangeMax: 37, TicketSize: 7}
)

func VariantByID(id string) (VariantConfig, bool) {
	switch id {
	case Loto6.ID:
		return Loto6, true
	case Loto7.ID:
		return Loto7, true
	}
	return VariantConfig{}, false
}
