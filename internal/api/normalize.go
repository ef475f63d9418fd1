package api

import (
	"encoding/json"
	"fmt"

	"loto-issuer/internal/domain"
)

// The engine legally answers in two shapes: a ready-made list of records
// under "predictions", or a single envelope whose "prediction" holds all
// tickets at once. Normalization is total over an explicit discriminator;
// anything else is ErrInvalidResponseShape. The canonical output contract
// is always one record per ticket.

type responseShape int

const (
	shapeUnrecognized responseShape = iota
	shapeRecordList
	shapeEnvelope
)

type enginePrediction struct {
	Numbers      domain.Ticket       `json:"numbers"`
	FixedNumbers []int               `json:"fixed_numbers"`
	Tickets      []domain.Ticket     `json:"tickets"`
	Count        int                 `json:"count"`
	NumberSource domain.NumberSource `json:"number_source"`
}

type engineEnvelope struct {
	Predictions *[]domain.PredictionRecord `json:"predictions"`
	Meta        domain.RecordMeta          `json:"meta"`
	Draw        domain.DrawDescriptor      `json:"draw"`
	Prediction  *enginePrediction          `json:"prediction"`
	Description domain.Description         `json:"description"`
	System      domain.RecordSystem        `json:"system"`
}

func (e *engineEnvelope) shape() responseShape {
	if e.Predictions != nil {
		return shapeRecordList
	}
	if e.Prediction != nil && (len(e.Prediction.Tickets) > 0 || len(e.Prediction.Numbers) > 0) {
		return shapeEnvelope
	}
	return shapeUnrecognized
}

func normalizePredictions(body []byte, count int) ([]domain.PredictionRecord, error) {
	var envelope engineEnvelope
	if err := unmarshalBody(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidResponseShape, err)
	}

	switch envelope.shape() {
	case shapeRecordList:
		return *envelope.Predictions, nil
	case shapeEnvelope:
		return explode(&envelope, count), nil
	default:
		return nil, fmt.Errorf("%w: missing predictions and prediction.numbers/tickets", domain.ErrInvalidResponseShape)
	}
}

// explode fans one envelope out into min(count, tickets) records, each a
// copy of the envelope with numbers swapped for the i-th ticket. A reply
// with only prediction.numbers counts as a single ticket. Extra tickets
// beyond count are dropped.
func explode(envelope *engineEnvelope, count int) []domain.PredictionRecord {
	tickets := envelope.Prediction.Tickets
	if len(tickets) == 0 {
		tickets = []domain.Ticket{envelope.Prediction.Numbers}
	}
	if len(tickets) > count {
		tickets = tickets[:count]
	}

	records := make([]domain.PredictionRecord, 0, len(tickets))
	for _, ticket := range tickets {
		records = append(records, domain.PredictionRecord{
			Meta: envelope.Meta,
			Draw: envelope.Draw,
			Prediction: domain.Prediction{
				Numbers:      ticket,
				FixedNumbers: envelope.Prediction.FixedNumbers,
				Count:        count,
				NumberSource: envelope.Prediction.NumberSource,
			},
			Description: envelope.Description,
			System:      envelope.System,
		})
	}
	return records
}

func unmarshalBody(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
