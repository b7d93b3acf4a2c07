package credits

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/creative-boost/metrics"
)

// =============================================================================
// OUTPUT LOG - Upsert with auto-delete
// =============================================================================

// OutputOutcome says what a write to the output log did.
type OutputOutcome string

const (
	OutputCreated OutputOutcome = "created"
	OutputUpdated OutputOutcome = "updated"
	OutputDeleted OutputOutcome = "deleted"
	// OutputSkipped: zero counts for a row that did not exist.
	OutputSkipped OutputOutcome = "skipped"
)

// OutputUpdate is the result of ApplyClientOutput. Output is nil unless the
// outcome is created or updated.
type OutputUpdate struct {
	Output  *ClientMonthOutput
	Outcome OutputOutcome
}

// UpdateClientOutput sets the deliverable counts of one output type for a client
// month. The log stays sparse:
//   - an existing row whose counts drop to zero is deleted
//   - a missing row is only created when the counts are above zero
//
// It returns the stored row, or nil when the row was deleted or never created.
// A newly created row without an explicit colleague inherits the colleague of the
// client's ledger row for that month.
func (s *Service) UpdateClientOutput(ctx context.Context, actor Actor, clientID, outputTypeID string, p Period, patch OutputPatch) (*ClientMonthOutput, error) {
	res, err := s.ApplyClientOutput(ctx, actor, clientID, outputTypeID, p, patch)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// ApplyClientOutput is UpdateClientOutput reporting which branch the write took.
func (s *Service) ApplyClientOutput(ctx context.Context, actor Actor, clientID, outputTypeID string, p Period, patch OutputPatch) (OutputUpdate, error) {
	if !p.Valid() {
		return OutputUpdate{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	if err := patch.validate(); err != nil {
		return OutputUpdate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result  *ClientMonthOutput
		outcome OutputOutcome
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.FindOutput(ctx, clientID, outputTypeID, p)
		if err != nil {
			return err
		}
		now := s.now()

		if existing != nil {
			merged := patch.apply(*existing)
			if merged.Quantity() == 0 {
				outcome = OutputDeleted
				return tx.DeleteOutput(ctx, existing.ID)
			}
			merged.UpdatedAt = now
			if err := tx.SaveOutput(ctx, merged); err != nil {
				return err
			}
			outcome = OutputUpdated
			result = &merged
			return nil
		}

		o := patch.apply(ClientMonthOutput{
			ID:           s.newID(),
			ClientID:     clientID,
			OutputTypeID: outputTypeID,
			Period:       p,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if o.Quantity() == 0 {
			outcome = OutputSkipped
			return nil
		}
		if patch.ColleagueID == nil {
			m, err := tx.FindClientMonth(ctx, clientID, p)
			if err != nil {
				return err
			}
			if m != nil {
				o.ColleagueID = copyString(m.ColleagueID)
			}
		}
		if err := tx.SaveOutput(ctx, o); err != nil {
			return err
		}
		outcome = OutputCreated
		result = &o
		return nil
	})
	if err != nil {
		return OutputUpdate{}, fmt.Errorf("update output %s/%s for %s: %w", clientID, outputTypeID, p, err)
	}
	s.invalidate(clientID, p)

	metrics.OutputUpdates.WithLabelValues(string(outcome)).Inc()
	s.logger.Info("client output updated",
		zap.String("client_id", clientID),
		zap.String("output_type_id", outputTypeID),
		zap.Stringer("period", p),
		zap.String("outcome", string(outcome)),
		actorField(actor))
	return OutputUpdate{Output: result, Outcome: outcome}, nil
}

// GetClientOutputs returns the output rows of a client month.
func (s *Service) GetClientOutputs(ctx context.Context, clientID string, p Period) ([]ClientMonthOutput, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return s.store.ListOutputs(ctx, OutputFilter{ClientID: clientID, Year: p.Year, Month: p.Month})
}

func (p OutputPatch) validate() error {
	if p.NormalCount != nil && *p.NormalCount < 0 {
		return fmt.Errorf("%w: normal count %d", ErrInvalidCount, *p.NormalCount)
	}
	if p.ExpressCount != nil && *p.ExpressCount < 0 {
		return fmt.Errorf("%w: express count %d", ErrInvalidCount, *p.ExpressCount)
	}
	return nil
}

func (p OutputPatch) apply(o ClientMonthOutput) ClientMonthOutput {
	if p.NormalCount != nil {
		o.NormalCount = *p.NormalCount
	}
	if p.ExpressCount != nil {
		o.ExpressCount = *p.ExpressCount
	}
	if p.ColleagueID != nil {
		if *p.ColleagueID == "" {
			o.ColleagueID = nil
		} else {
			o.ColleagueID = copyString(p.ColleagueID)
		}
	}
	return o
}
