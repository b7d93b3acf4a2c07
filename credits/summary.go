/*
summary.go - Summary projection

PURPOSE:
  Joins a ledger row, the client directory and the client's output rows for
  the month into a ClientMonthSummary. Nothing here is stored.

FORMULAS:
  used      = normal + express
  remaining = max - used            (negative means overage, not an error)
  invoice   = used * pricePerCredit
  items     = sum of normal + express counts

SKIPS:
  Ledger rows whose client cannot be resolved are left out of the result.

CACHING:
  With a SummaryCache, only the output aggregation is memoised. Ledger fields
  and client names are read fresh on every call.
*/
package credits

import (
	"context"
	"fmt"
	"sort"
)

// GetClientMonthSummaries projects every ledger row of a month, ordered by client name.
func (s *Service) GetClientMonthSummaries(ctx context.Context, p Period) ([]ClientMonthSummary, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	months, err := s.store.ListClientMonths(ctx, p)
	if err != nil {
		return nil, err
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ClientMonthSummary, 0, len(months))
	for _, m := range months {
		summary, err := s.summarize(ctx, calc, m)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			summaries = append(summaries, *summary)
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].ClientName != summaries[j].ClientName {
			return summaries[i].ClientName < summaries[j].ClientName
		}
		return summaries[i].ClientID < summaries[j].ClientID
	})
	return summaries, nil
}

// GetClientMonthSummaryByEngagementServiceID projects the ledger row linked to a
// billing line. Returns nil when there is no such row or its client is unknown.
func (s *Service) GetClientMonthSummaryByEngagementServiceID(ctx context.Context, engagementServiceID string, p Period) (*ClientMonthSummary, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	m, err := s.store.FindClientMonthByEngagementService(ctx, engagementServiceID, p)
	if err != nil || m == nil {
		return nil, err
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, calc, *m)
}

func (s *Service) summarize(ctx context.Context, calc *Calculator, m ClientMonth) (*ClientMonthSummary, error) {
	client, err := s.clients.GetClient(ctx, m.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client %s: %w", m.ClientID, err)
	}
	if client == nil {
		return nil, nil
	}

	agg, err := s.aggregate(ctx, calc, m.ClientID, m.Period)
	if err != nil {
		return nil, err
	}

	used := agg.Credits.Normal.Add(agg.Credits.Express)
	return &ClientMonthSummary{
		ClientMonthID:       m.ID,
		ClientID:            m.ClientID,
		ClientName:          client.Name,
		BrandName:           client.BrandName,
		Period:              m.Period,
		MinCredits:          m.MinCredits,
		MaxCredits:          m.MaxCredits,
		UsedCredits:         used,
		NormalCredits:       agg.Credits.Normal,
		ExpressCredits:      agg.Credits.Express,
		RemainingCredits:    m.MaxCredits.Sub(used),
		EstimatedInvoice:    used.Mul(m.PricePerCredit),
		PricePerCredit:      m.PricePerCredit,
		Status:              m.Status,
		ItemCount:           agg.ItemCount,
		EngagementServiceID: copyString(m.EngagementServiceID),
	}, nil
}

// aggregate sums the credits of a client month's output rows.
func (s *Service) aggregate(ctx context.Context, calc *Calculator, clientID string, p Period) (outputAggregate, error) {
	var generation uint64
	if s.cache != nil {
		if agg, ok := s.cache.get(clientID, p); ok {
			return agg, nil
		}
		generation = s.cache.Generation()
	}

	outputs, err := s.store.ListOutputs(ctx, OutputFilter{ClientID: clientID, Year: p.Year, Month: p.Month})
	if err != nil {
		return outputAggregate{}, err
	}
	agg := outputAggregate{Credits: zeroCredits()}
	for _, o := range outputs {
		agg.Credits = agg.Credits.Add(calc.CalculateOutput(o))
		agg.ItemCount += o.Quantity()
	}

	if s.cache != nil {
		s.cache.set(clientID, p, agg, generation)
	}
	return agg, nil
}
