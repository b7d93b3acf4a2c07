/*
sync.go - Engagement reconciliation

PURPOSE:
  Billing engagements are owned by sales; the monthly ledger is edited by
  production. This pass keeps them consistent: every active engagement that
  covers the month and carries a Creative-Boost billing line gets exactly one
  ledger row for that line and month.

PER LINE:
  1. Row already linked to the line for the month  -> skipped
  2. Client already has an unlinked row that month -> linked (no second budget)
  3. Client row linked to a different line         -> skipped, logged
  4. Otherwise a row is created. Budget values come from:
       previous month's row (by line, then by client)
       -> billing line defaults
       -> client config
       -> package defaults
     Only the previous month's row carries the colleague forward.

  Clients without a ClientCreditConfig get one along the way.

IDEMPOTENCY:
  A second run over the same month creates nothing; every line lands in case 1.
*/
package credits

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/creative-boost/metrics"
)

// SyncResult counts what a reconciliation pass did.
type SyncResult struct {
	Created int
	Linked  int
	Skipped int
}

type billingLine struct {
	service    EngagementService
	engagement Engagement
}

// EnsureClientMonthsForActiveEngagements reconciles the ledger of p against the
// active billing engagements.
func (s *Service) EnsureClientMonthsForActiveEngagements(ctx context.Context, actor Actor, p Period) (SyncResult, error) {
	var result SyncResult
	if !p.Valid() {
		return result, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}

	// Directory reads happen before the transaction; the directory may share
	// the store's connection.
	lines, err := s.eligibleLines(ctx, p)
	if err != nil {
		return result, err
	}
	if len(lines) == 0 {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.WithTx(ctx, func(tx Store) error {
		result = SyncResult{}
		for _, line := range lines {
			outcome, err := s.syncLine(ctx, tx, line, p)
			if err != nil {
				return fmt.Errorf("engagement service %s: %w", line.service.ID, err)
			}
			switch outcome {
			case "created":
				result.Created++
			case "linked":
				result.Linked++
			default:
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync engagements for %s: %w", p, err)
	}

	metrics.SyncRows.WithLabelValues("created").Add(float64(result.Created))
	metrics.SyncRows.WithLabelValues("linked").Add(float64(result.Linked))
	metrics.SyncRows.WithLabelValues("skipped").Add(float64(result.Skipped))
	s.logger.Info("engagement sync completed",
		zap.Stringer("period", p),
		zap.Int("created", result.Created),
		zap.Int("linked", result.Linked),
		zap.Int("skipped", result.Skipped),
		actorField(actor))
	return result, nil
}

func (s *Service) eligibleLines(ctx context.Context, p Period) ([]billingLine, error) {
	services, err := s.engagements.ListEngagementServices(ctx, s.opts.BoostServiceID)
	if err != nil {
		return nil, fmt.Errorf("list engagement services: %w", err)
	}

	engagements := make(map[string]*Engagement)
	var lines []billingLine
	for _, es := range services {
		eng, seen := engagements[es.EngagementID]
		if !seen {
			eng, err = s.engagements.GetEngagement(ctx, es.EngagementID)
			if err != nil {
				return nil, fmt.Errorf("get engagement %s: %w", es.EngagementID, err)
			}
			engagements[es.EngagementID] = eng
		}
		if eng == nil || !eng.Covers(p) {
			continue
		}
		lines = append(lines, billingLine{service: es, engagement: *eng})
	}
	return lines, nil
}

func (s *Service) syncLine(ctx context.Context, tx Store, line billingLine, p Period) (string, error) {
	es, eng := line.service, line.engagement

	cfg, err := tx.GetClientConfig(ctx, eng.ClientID)
	if err != nil {
		return "", err
	}

	existing, err := tx.FindClientMonthByEngagementService(ctx, es.ID, p)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "skipped", s.ensureClientConfig(ctx, tx, cfg, eng.ClientID, *existing)
	}

	byClient, err := tx.FindClientMonth(ctx, eng.ClientID, p)
	if err != nil {
		return "", err
	}
	if byClient != nil {
		if byClient.EngagementServiceID != nil {
			s.logger.Warn("client month linked to another engagement service",
				zap.String("client_id", eng.ClientID),
				zap.Stringer("period", p),
				zap.String("engagement_service_id", es.ID),
				zap.String("linked_engagement_service_id", *byClient.EngagementServiceID))
			return "skipped", s.ensureClientConfig(ctx, tx, cfg, eng.ClientID, *byClient)
		}
		byClient.EngagementServiceID = copyString(&es.ID)
		byClient.EngagementID = copyString(&eng.ID)
		byClient.UpdatedAt = s.now()
		if err := tx.UpdateClientMonth(ctx, *byClient); err != nil {
			return "", err
		}
		return "linked", s.ensureClientConfig(ctx, tx, cfg, eng.ClientID, *byClient)
	}

	prev, err := s.previousRow(ctx, tx, es.ID, eng.ClientID, p)
	if err != nil {
		return "", err
	}

	now := s.now()
	m := ClientMonth{
		ID:                  s.newID(),
		ClientID:            eng.ClientID,
		Period:              p,
		Status:              StatusActive,
		EngagementServiceID: copyString(&es.ID),
		EngagementID:        copyString(&eng.ID),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if prev != nil {
		m.MinCredits = prev.MinCredits
		m.MaxCredits = prev.MaxCredits
		m.PricePerCredit = prev.PricePerCredit
		m.ColleagueID = copyString(prev.ColleagueID)
	} else {
		m.MinCredits = s.resolve(es.MinCredits, cfg, func(c ClientCreditConfig) decimal.Decimal { return c.DefaultMinCredits }, s.opts.Defaults.MinCredits)
		m.MaxCredits = s.resolve(es.MaxCredits, cfg, func(c ClientCreditConfig) decimal.Decimal { return c.DefaultMaxCredits }, s.opts.Defaults.MaxCredits)
		m.PricePerCredit = s.resolve(es.PricePerCredit, cfg, func(c ClientCreditConfig) decimal.Decimal { return c.DefaultPricePerCredit }, s.opts.Defaults.PricePerCredit)
	}

	if err := s.ensureClientConfig(ctx, tx, cfg, eng.ClientID, m); err != nil {
		return "", err
	}
	if err := tx.InsertClientMonth(ctx, m); err != nil {
		return "", err
	}
	s.logger.Info("client month created from engagement",
		zap.String("client_id", m.ClientID),
		zap.Stringer("period", p),
		zap.String("engagement_service_id", es.ID),
		zap.Bool("carried_forward", prev != nil))
	return "created", nil
}

// previousRow finds last month's row, preferring the one linked to the same billing line.
func (s *Service) previousRow(ctx context.Context, tx Store, engagementServiceID, clientID string, p Period) (*ClientMonth, error) {
	prev, err := tx.FindClientMonthByEngagementService(ctx, engagementServiceID, p.Previous())
	if err != nil || prev != nil {
		return prev, err
	}
	return tx.FindClientMonth(ctx, clientID, p.Previous())
}

func (s *Service) ensureClientConfig(ctx context.Context, tx Store, cfg *ClientCreditConfig, clientID string, m ClientMonth) error {
	if cfg != nil {
		return nil
	}
	return s.createClientConfig(ctx, tx, clientID, m.MinCredits, m.MaxCredits, m.PricePerCredit)
}
