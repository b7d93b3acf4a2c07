/*
service.go - The credit accounting service

PURPOSE:
  Service is the single entry point used by the HTTP API and the CLI. It owns
  no data itself: every row lives in the injected Store, and client/engagement
  identity comes from the injected directories.

COMPONENTS (one file each):
  calculator.go  CreditCalculator           counts -> credits
  ledger.go      ClientMonthLedger          add/remove/update/lookups
  audit.go       SettingsChangeRecorder     diff + append on ledger updates
  outputs.go     OutputLog                  upsert-with-auto-delete
  summary.go     SummaryProjector           ledger + outputs -> summaries
  colleague.go   ColleagueCreditAggregator  credits per colleague
  sync.go        EngagementSyncer           billing lines -> ledger rows
  catalog.go     Output types and client configs

CONCURRENCY:
  Mutations are serialised by a mutex and each one runs inside Store.WithTx,
  so check-then-create cannot race and an audit row is never written without
  its ledger update (or the reverse). Reads take no lock.

DEFAULTS:
  A new ledger row resolves each budget field in priority order:
  explicit settings -> client config -> package defaults (30 / 50 / 1500).

SEE ALSO:
  - store.go: Store and directory interfaces
  - api/handlers.go: HTTP surface
*/
package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultBoostServiceID is the billing service id that marks a Creative-Boost line.
const DefaultBoostServiceID = "creative_boost"

// Defaults are the package values used when neither settings nor a client config supply one.
type Defaults struct {
	MinCredits     decimal.Decimal
	MaxCredits     decimal.Decimal
	PricePerCredit decimal.Decimal
}

// Options configure Service behaviour.
type Options struct {
	// StrictUpdates makes UpdateClientMonth return ErrClientMonthNotFound for an
	// unknown id instead of silently ignoring the call.
	StrictUpdates bool

	// BoostServiceID selects which engagement billing lines the sync considers.
	BoostServiceID string

	Defaults Defaults
}

func DefaultOptions() Options {
	return Options{
		BoostServiceID: DefaultBoostServiceID,
		Defaults: Defaults{
			MinCredits:     decimal.NewFromInt(30),
			MaxCredits:     decimal.NewFromInt(50),
			PricePerCredit: decimal.NewFromInt(1500),
		},
	}
}

// Service implements every credit accounting operation.
type Service struct {
	store       Store
	clients     ClientDirectory
	engagements EngagementDirectory
	opts        Options

	cache  *SummaryCache
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption { return func(s *Service) { s.logger = l } }

// WithSummaryCache enables memoised output aggregation.
func WithSummaryCache(c *SummaryCache) ServiceOption { return func(s *Service) { s.cache = c } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }

// WithIDGenerator overrides uuid generation, for tests.
func WithIDGenerator(gen func() string) ServiceOption { return func(s *Service) { s.newID = gen } }

// NewService wires a Service. clients and engagements are required.
func NewService(store Store, clients ClientDirectory, engagements EngagementDirectory, opts Options, options ...ServiceOption) *Service {
	if opts.BoostServiceID == "" {
		opts.BoostServiceID = DefaultBoostServiceID
	}
	s := &Service{
		store:       store,
		clients:     clients,
		engagements: engagements,
		opts:        opts,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *Service) Options() Options { return s.opts }

// calculator snapshots the output catalog.
func (s *Service) calculator(ctx context.Context) (*Calculator, error) {
	types, err := s.store.ListOutputTypes(ctx)
	if err != nil {
		return nil, err
	}
	return NewCalculator(types), nil
}

// CalculateOutputCredits prices counts against the current catalog.
func (s *Service) CalculateOutputCredits(ctx context.Context, outputTypeID string, normalCount, expressCount int) (OutputCredits, error) {
	calc, err := s.calculator(ctx)
	if err != nil {
		return OutputCredits{}, err
	}
	return calc.Calculate(outputTypeID, normalCount, expressCount), nil
}

func (s *Service) invalidate(clientID string, p Period) {
	if s.cache != nil {
		s.cache.Invalidate(clientID, p)
	}
}

// FlushSummaryCache drops every memoised aggregate. Call it after the store
// was modified behind the service's back (bulk reset, restore).
func (s *Service) FlushSummaryCache() { s.flushCache() }

func (s *Service) flushCache() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func actorField(actor Actor) zap.Field {
	return zap.String("actor", actor.ID)
}
