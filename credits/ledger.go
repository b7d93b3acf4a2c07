/*
ledger.go - Client month ledger

PURPOSE:
  One row per client per month holding the credit budget (min/max), the
  price per credit, the responsible colleague and an active/inactive status.
  Usage is NOT stored here; it is derived from the output log on read.

CRITICAL INVARIANTS:
  1. UNIQUE: at most one row per (client, month) and per (engagement service, month)
  2. IDEMPOTENT CREATE: adding an existing client month returns the stored row
     untouched, ignoring the new settings
  3. CASCADE: removing a client month removes its output rows in the same transaction
  4. AUDITED: every change to max credits, price or status appends a SettingsChange

STATUS:
  active <-> inactive, moved only by UpdateClientMonth. Neither is terminal;
  removal is the only destructive operation.

MISSING UPDATE TARGET:
  UpdateClientMonth on an unknown id is a no-op returning (nil, nil), unless
  Options.StrictUpdates is set, in which case ErrClientMonthNotFound is returned.

SEE ALSO:
  - audit.go: diff and audit row construction
  - sync.go: creates rows from billing engagements
*/
package credits

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/creative-boost/metrics"
)

// =============================================================================
// CREATE
// =============================================================================

// AddClientToMonth puts a client on the ledger for a month. Idempotent.
func (s *Service) AddClientToMonth(ctx context.Context, actor Actor, clientID string, p Period, settings *MonthSettings) (*ClientMonth, error) {
	m, _, err := s.EnsureClientInMonth(ctx, actor, clientID, p, settings)
	return m, err
}

// EnsureClientInMonth is AddClientToMonth that also reports whether this call
// created the row. The decision is made under the write lock.
func (s *Service) EnsureClientInMonth(ctx context.Context, actor Actor, clientID string, p Period, settings *MonthSettings) (*ClientMonth, bool, error) {
	if !p.Valid() {
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	if err := settings.validate(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result  *ClientMonth
		created bool
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.FindClientMonth(ctx, clientID, p)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		cfg, err := tx.GetClientConfig(ctx, clientID)
		if err != nil {
			return err
		}

		now := s.now()
		m := ClientMonth{
			ID:             s.newID(),
			ClientID:       clientID,
			Period:         p,
			MinCredits:     s.resolve(settings.minCredits(), cfg, func(c ClientCreditConfig) decimal.Decimal { return c.DefaultMinCredits }, s.opts.Defaults.MinCredits),
			MaxCredits:     s.resolve(settings.maxCredits(), cfg, func(c ClientCreditConfig) decimal.Decimal { return c.DefaultMaxCredits }, s.opts.Defaults.MaxCredits),
			PricePerCredit: s.resolve(settings.price(), cfg, func(c ClientCreditConfig) decimal.Decimal { return c.DefaultPricePerCredit }, s.opts.Defaults.PricePerCredit),
			Status:         StatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if settings != nil && settings.ColleagueID != nil && *settings.ColleagueID != "" {
			m.ColleagueID = copyString(settings.ColleagueID)
		}

		if cfg == nil {
			if err := s.createClientConfig(ctx, tx, clientID, m.MinCredits, m.MaxCredits, m.PricePerCredit); err != nil {
				return err
			}
		}

		if err := tx.InsertClientMonth(ctx, m); err != nil {
			return err
		}
		result = &m
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("add client %s to %s: %w", clientID, p, err)
	}

	if created {
		metrics.LedgerMutations.WithLabelValues("add").Inc()
		s.logger.Info("client added to month",
			zap.String("client_id", clientID),
			zap.Stringer("period", p),
			zap.String("client_month_id", result.ID),
			actorField(actor))
	}
	return result, created, nil
}

// resolve picks explicit -> client config -> fallback.
func (s *Service) resolve(explicit *decimal.Decimal, cfg *ClientCreditConfig, pick func(ClientCreditConfig) decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if explicit != nil {
		return *explicit
	}
	if cfg != nil {
		return pick(*cfg)
	}
	return fallback
}

func (s *Service) createClientConfig(ctx context.Context, tx Store, clientID string, minCredits, maxCredits, price decimal.Decimal) error {
	now := s.now()
	cfg := ClientCreditConfig{
		ClientID:              clientID,
		IsActive:              true,
		DefaultMinCredits:     minCredits,
		DefaultMaxCredits:     maxCredits,
		DefaultPricePerCredit: price,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := tx.SaveClientConfig(ctx, cfg); err != nil {
		return fmt.Errorf("create client config: %w", err)
	}
	s.logger.Debug("client config created", zap.String("client_id", clientID))
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// RemoveClientFromMonth deletes the ledger row and every output row of the
// client for that month. Removing an absent client month is a no-op.
func (s *Service) RemoveClientFromMonth(ctx context.Context, actor Actor, clientID string, p Period) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed bool
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.DeleteOutputs(ctx, clientID, p); err != nil {
			return err
		}
		m, err := tx.FindClientMonth(ctx, clientID, p)
		if err != nil {
			return err
		}
		if m == nil {
			return nil
		}
		removed = true
		return tx.DeleteClientMonth(ctx, m.ID)
	})
	if err != nil {
		return fmt.Errorf("remove client %s from %s: %w", clientID, p, err)
	}
	s.invalidate(clientID, p)

	if removed {
		metrics.LedgerMutations.WithLabelValues("remove").Inc()
		s.logger.Info("client removed from month",
			zap.String("client_id", clientID),
			zap.Stringer("period", p),
			actorField(actor))
	}
	return nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateClientMonth merges patch into the row and records an audit entry per
// changed tracked field. The diff observes the stored values before the merge.
func (s *Service) UpdateClientMonth(ctx context.Context, actor Actor, id string, patch ClientMonthPatch) (*ClientMonth, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result  *ClientMonth
		changes []SettingsChange
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetClientMonth(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}

		now := s.now()
		changes = s.diffSettings(*current, patch, actor, now)
		for _, c := range changes {
			if err := tx.AppendSettingsChange(ctx, c); err != nil {
				return fmt.Errorf("append settings change: %w", err)
			}
		}

		updated := patch.apply(*current)
		updated.UpdatedAt = now
		if err := tx.UpdateClientMonth(ctx, updated); err != nil {
			return err
		}
		result = &updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update client month %s: %w", id, err)
	}

	if result == nil {
		if s.opts.StrictUpdates {
			return nil, fmt.Errorf("%w: %s", ErrClientMonthNotFound, id)
		}
		s.logger.Warn("update ignored: client month not found",
			zap.String("client_month_id", id),
			actorField(actor))
		return nil, nil
	}

	metrics.LedgerMutations.WithLabelValues("update").Inc()
	for _, c := range changes {
		metrics.SettingsChanges.WithLabelValues(string(c.ChangeType)).Inc()
	}
	s.logger.Info("client month updated",
		zap.String("client_month_id", id),
		zap.String("client_id", result.ClientID),
		zap.Stringer("period", result.Period),
		zap.Int("settings_changes", len(changes)),
		actorField(actor))
	return result, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// GetClientsForMonth returns the ledger rows of a month.
func (s *Service) GetClientsForMonth(ctx context.Context, p Period) ([]ClientMonth, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return s.store.ListClientMonths(ctx, p)
}

// GetAvailableClientsForMonth returns the active client configs that are not
// yet on the month's ledger.
func (s *Service) GetAvailableClientsForMonth(ctx context.Context, p Period) ([]ClientCreditConfig, error) {
	months, err := s.GetClientsForMonth(ctx, p)
	if err != nil {
		return nil, err
	}
	onLedger := make(map[string]bool, len(months))
	for _, m := range months {
		onLedger[m.ClientID] = true
	}

	configs, err := s.store.ListClientConfigs(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]ClientCreditConfig, 0, len(configs))
	for _, c := range configs {
		if c.IsActive && !onLedger[c.ClientID] {
			available = append(available, c)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ClientID < available[j].ClientID })
	return available, nil
}

// GetClientMonthByClientID returns nil when the client is not on the month's ledger.
func (s *Service) GetClientMonthByClientID(ctx context.Context, clientID string, p Period) (*ClientMonth, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return s.store.FindClientMonth(ctx, clientID, p)
}

func (s *Service) GetClientMonth(ctx context.Context, id string) (*ClientMonth, error) {
	return s.store.GetClientMonth(ctx, id)
}

// GetSettingsHistory returns the audit rows of a ledger row, oldest first.
func (s *Service) GetSettingsHistory(ctx context.Context, clientMonthID string) ([]SettingsChange, error) {
	changes, err := s.store.ListSettingsChanges(ctx, clientMonthID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].ChangedAt.Before(changes[j].ChangedAt) })
	return changes, nil
}

// =============================================================================
// SETTINGS / PATCH HELPERS
// =============================================================================

func (ms *MonthSettings) minCredits() *decimal.Decimal {
	if ms == nil {
		return nil
	}
	return ms.MinCredits
}

func (ms *MonthSettings) maxCredits() *decimal.Decimal {
	if ms == nil {
		return nil
	}
	return ms.MaxCredits
}

func (ms *MonthSettings) price() *decimal.Decimal {
	if ms == nil {
		return nil
	}
	return ms.PricePerCredit
}

func (ms *MonthSettings) validate() error {
	if ms == nil {
		return nil
	}
	return validateCredits(ms.MinCredits, ms.MaxCredits, ms.PricePerCredit)
}

func (p ClientMonthPatch) validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	return validateCredits(p.MinCredits, p.MaxCredits, p.PricePerCredit)
}

func (p ClientMonthPatch) apply(m ClientMonth) ClientMonth {
	if p.MinCredits != nil {
		m.MinCredits = *p.MinCredits
	}
	if p.MaxCredits != nil {
		m.MaxCredits = *p.MaxCredits
	}
	if p.PricePerCredit != nil {
		m.PricePerCredit = *p.PricePerCredit
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.ColleagueID != nil {
		// empty string clears the colleague
		if *p.ColleagueID == "" {
			m.ColleagueID = nil
		} else {
			m.ColleagueID = copyString(p.ColleagueID)
		}
	}
	return m
}

func validateCredits(values ...*decimal.Decimal) error {
	for _, v := range values {
		if v != nil && v.IsNegative() {
			return fmt.Errorf("%w: %s", ErrInvalidCredits, v.String())
		}
	}
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
