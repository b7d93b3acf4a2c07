package credits

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Placeholders shown when a detail row references a client or output type that no longer resolves.
const (
	UnknownClientName     = "Unknown client"
	UnknownOutputTypeName = "Unknown output type"
)

// GetColleagueCredits sums the credits of every output row attributed to the
// colleague in one month.
func (s *Service) GetColleagueCredits(ctx context.Context, colleagueID string, p Period) (decimal.Decimal, error) {
	if !p.Valid() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return s.colleagueTotal(ctx, OutputFilter{ColleagueID: colleagueID, Year: p.Year, Month: p.Month})
}

// GetColleagueCreditsYear sums the credits attributed to the colleague across a year.
func (s *Service) GetColleagueCreditsYear(ctx context.Context, colleagueID string, year int) (decimal.Decimal, error) {
	if !NewPeriod(year, time.January).Valid() {
		return decimal.Zero, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return s.colleagueTotal(ctx, OutputFilter{ColleagueID: colleagueID, Year: year})
}

func (s *Service) colleagueTotal(ctx context.Context, filter OutputFilter) (decimal.Decimal, error) {
	if filter.ColleagueID == "" {
		return decimal.Zero, nil
	}
	outputs, err := s.store.ListOutputs(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range outputs {
		total = total.Add(calc.CalculateOutput(o).Total)
	}
	return total, nil
}

// GetColleagueCreditsDetail returns one row per output attributed to the colleague,
// newest period first. Names that do not resolve are replaced by placeholders.
func (s *Service) GetColleagueCreditsDetail(ctx context.Context, colleagueID string, filter ColleagueFilter) ([]ColleagueCreditDetail, error) {
	if colleagueID == "" {
		return []ColleagueCreditDetail{}, nil
	}
	f := OutputFilter{ColleagueID: colleagueID}
	if filter.Year != nil {
		f.Year = *filter.Year
	}
	if filter.Month != nil {
		if *filter.Month < time.January || *filter.Month > time.December {
			return nil, fmt.Errorf("%w: month %d", ErrInvalidPeriod, *filter.Month)
		}
		f.Month = *filter.Month
	}

	outputs, err := s.store.ListOutputs(ctx, f)
	if err != nil {
		return nil, err
	}
	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	details := make([]ColleagueCreditDetail, 0, len(outputs))
	for _, o := range outputs {
		clientName, ok := names[o.ClientID]
		if !ok {
			clientName = UnknownClientName
			client, err := s.clients.GetClient(ctx, o.ClientID)
			if err != nil {
				return nil, fmt.Errorf("resolve client %s: %w", o.ClientID, err)
			}
			if client != nil {
				clientName = client.Name
			}
			names[o.ClientID] = clientName
		}

		typeName := UnknownOutputTypeName
		if t, ok := calc.OutputType(o.OutputTypeID); ok {
			typeName = t.Name
		}

		credits := calc.CalculateOutput(o)
		details = append(details, ColleagueCreditDetail{
			OutputID:       o.ID,
			ClientID:       o.ClientID,
			ClientName:     clientName,
			OutputTypeID:   o.OutputTypeID,
			OutputTypeName: typeName,
			Period:         o.Period,
			NormalCount:    o.NormalCount,
			ExpressCount:   o.ExpressCount,
			NormalCredits:  credits.Normal,
			ExpressCredits: credits.Express,
			TotalCredits:   credits.Total,
		})
	}

	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Period != details[j].Period {
			return details[j].Period.Before(details[i].Period)
		}
		return details[i].ClientName < details[j].ClientName
	})
	return details, nil
}
