package generator

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"loto-issuer/internal/constants"
	"loto-issuer/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate produces one valid ticket for the variant: TicketSize distinct
// numbers in [RangeMin, RangeMax], ascending, with every fixed number
// included. Accept/reject over the process-wide RNG; duplicates are
// absorbed by the set, not counted as attempts.
func Generate(v domain.VariantConfig) (domain.Ticket, error) {
	if err := validate(v); err != nil {
		return nil, err
	}

	picked := make(map[int]struct{}, v.TicketSize)
	for _, n := range v.FixedNumbers {
		picked[n] = struct{}{}
	}

	span := v.RangeMax - v.RangeMin + 1
	for draws := 0; len(picked) < v.TicketSize; draws++ {
		if draws >= constants.MaxSampleDraws {
			return nil, fmt.Errorf("%w: %d draws for %s", domain.ErrGenerationExhausted, draws, v.ID)
		}
		picked[v.RangeMin+rand.Intn(span)] = struct{}{}
	}

	ticket := make(domain.Ticket, 0, v.TicketSize)
	for n := range picked {
		ticket = append(ticket, n)
	}
	slices.Sort(ticket)
	return ticket, nil
}

func validate(v domain.VariantConfig) error {
	if v.TicketSize <= 0 || v.RangeMax < v.RangeMin {
		return fmt.Errorf("%w: size %d over [%d,%d]", domain.ErrConfig, v.TicketSize, v.RangeMin, v.RangeMax)
	}
	if len(v.FixedNumbers) > v.TicketSize {
		return fmt.Errorf("%w: %d fixed numbers exceed ticket size %d", domain.ErrConfig, len(v.FixedNumbers), v.TicketSize)
	}
	seen := make(map[int]struct{}, len(v.FixedNumbers))
	for _, n := range v.FixedNumbers {
		if n < v.RangeMin || n > v.RangeMax {
			return fmt.Errorf("%w: fixed number %d outside [%d,%d]", domain.ErrConfig, n, v.RangeMin, v.RangeMax)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: fixed number %d duplicated", domain.ErrConfig, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// MockRecords builds count full prediction records from locally generated
// tickets. Same shape the engine returns, tagged data_source "mock" so a
// renderer (or a log line) can tell them apart.
func MockRecords(v domain.VariantConfig, model string, count int, draw domain.DrawDescriptor) ([]domain.PredictionRecord, error) {
	records := make([]domain.PredictionRecord, 0, count)
	generatedAt := time.Now().UTC().Format(time.RFC3339)

	fixedSource := "none"
	if len(v.FixedNumbers) > 0 {
		fixedSource = "global_fixed_v1"
	}

	for i := 0; i < count; i++ {
		ticket, err := Generate(v)
		if err != nil {
			return nil, err
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate prediction id: %w", err)
		}

		records = append(records, domain.PredictionRecord{
			Meta: domain.RecordMeta{
				LotoType:      v.ID,
				Model:         model,
				PredictionID:  id,
				EngineVersion: "mock-v1",
			},
			Draw: draw,
			Prediction: domain.Prediction{
				Numbers:      ticket,
				FixedNumbers: slices.Clone(v.FixedNumbers),
				Count:        count,
				NumberSource: domain.NumberSource{
					Fixed:  fixedSource,
					Random: "uniform_v1",
				},
			},
			System: domain.RecordSystem{
				GeneratedAt: generatedAt,
				DataSource:  "mock",
				Public:      true,
			},
		})
	}

	return records, nil
}
