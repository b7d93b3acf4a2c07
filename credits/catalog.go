package credits

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// OUTPUT CATALOG
// =============================================================================

// OutputTypePatch is a partial update of an output type.
type OutputTypePatch struct {
	Name        *string
	BaseCredits *decimal.Decimal
	IsActive    *bool
}

// CreateOutputType adds an active output type to the catalog.
func (s *Service) CreateOutputType(ctx context.Context, actor Actor, name string, baseCredits decimal.Decimal) (*OutputType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: output type name", ErrMissingField)
	}
	if err := validateCredits(&baseCredits); err != nil {
		return nil, err
	}

	now := s.now()
	t := OutputType{
		ID:          s.newID(),
		Name:        name,
		BaseCredits: baseCredits,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveOutputType(ctx, t); err != nil {
		return nil, fmt.Errorf("create output type: %w", err)
	}
	s.flushCache()

	s.logger.Info("output type created",
		zap.String("output_type_id", t.ID),
		zap.String("name", t.Name),
		zap.Stringer("base_credits", t.BaseCredits),
		actorField(actor))
	return &t, nil
}

// UpdateOutputType edits an output type. Types are deactivated instead of deleted.
// Changing the base credits reprices every summary that references the type.
func (s *Service) UpdateOutputType(ctx context.Context, actor Actor, id string, patch OutputTypePatch) (*OutputType, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: output type name", ErrMissingField)
	}
	if err := validateCredits(patch.BaseCredits); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *OutputType
	err := s.store.WithTx(ctx, func(tx Store) error {
		t, err := tx.GetOutputType(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: %s", ErrOutputTypeNotFound, id)
		}
		if patch.Name != nil {
			t.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.BaseCredits != nil {
			t.BaseCredits = *patch.BaseCredits
		}
		if patch.IsActive != nil {
			t.IsActive = *patch.IsActive
		}
		t.UpdatedAt = s.now()
		if err := tx.SaveOutputType(ctx, *t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flushCache()

	s.logger.Info("output type updated",
		zap.String("output_type_id", id),
		zap.Bool("active", result.IsActive),
		actorField(actor))
	return result, nil
}

// ListOutputTypes returns the catalog ordered by name.
func (s *Service) ListOutputTypes(ctx context.Context, activeOnly bool) ([]OutputType, error) {
	types, err := s.store.ListOutputTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OutputType, 0, len(types))
	for _, t := range types {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// CLIENT CONFIGS
// =============================================================================

// UpsertClientConfig stores the default package of a client. Existing ledger
// rows are not touched; the defaults apply to rows created afterwards.
func (s *Service) UpsertClientConfig(ctx context.Context, actor Actor, cfg ClientCreditConfig) (*ClientCreditConfig, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: client id", ErrMissingField)
	}
	if err := validateCredits(&cfg.DefaultMinCredits, &cfg.DefaultMaxCredits, &cfg.DefaultPricePerCredit); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetClientConfig(ctx, cfg.ClientID)
		if err != nil {
			return err
		}
		now := s.now()
		cfg.CreatedAt = now
		if existing != nil {
			cfg.CreatedAt = existing.CreatedAt
		}
		cfg.UpdatedAt = now
		return tx.SaveClientConfig(ctx, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("save client config %s: %w", cfg.ClientID, err)
	}

	s.logger.Info("client config saved",
		zap.String("client_id", cfg.ClientID),
		zap.Bool("active", cfg.IsActive),
		actorField(actor))
	return &cfg, nil
}

// GetClientConfig returns nil when the client has no config yet.
func (s *Service) GetClientConfig(ctx context.Context, clientID string) (*ClientCreditConfig, error) {
	return s.store.GetClientConfig(ctx, clientID)
}

func (s *Service) ListClientConfigs(ctx context.Context) ([]ClientCreditConfig, error) {
	configs, err := s.store.ListClientConfigs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ClientID < configs[j].ClientID })
	return configs, nil
}
