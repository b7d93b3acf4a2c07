/*
store.go - Persistence and directory interfaces

PURPOSE:
  Keeps the accounting logic storage-agnostic. The Service only talks to
  these interfaces; implementations live in credits/store (in-memory) and
  store/sqlite (SQLite).

KEY INTERFACES:
  Store:               Ledger, output log, catalog, configs, audit rows
  ClientDirectory:     Resolves client ids to names (external, read-only)
  EngagementDirectory: Billing contracts and lines (external, read-only)

LOOKUP CONTRACT:
  Get/Find methods return (nil, nil) when nothing matches. Only real storage
  failures are errors.

UNIQUENESS:
  InsertClientMonth and SaveOutput must reject a second row for the same
  natural key with ErrDuplicateClientMonth / ErrDuplicateOutput. The Service
  already checks before creating; the store is the last line so that
  concurrent writers cannot slip a duplicate budget in.

ATOMICITY:
  WithTx runs fn against a transactional view. If fn returns an error, every
  write made through the view is rolled back.

SEE ALSO:
  - credits/store/memory.go: in-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package credits

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Output catalog
	SaveOutputType(ctx context.Context, t OutputType) error
	GetOutputType(ctx context.Context, id string) (*OutputType, error)
	ListOutputTypes(ctx context.Context) ([]OutputType, error)

	// Client configs (one per client, upsert)
	SaveClientConfig(ctx context.Context, c ClientCreditConfig) error
	GetClientConfig(ctx context.Context, clientID string) (*ClientCreditConfig, error)
	ListClientConfigs(ctx context.Context) ([]ClientCreditConfig, error)

	// Client month ledger
	InsertClientMonth(ctx context.Context, m ClientMonth) error
	UpdateClientMonth(ctx context.Context, m ClientMonth) error
	DeleteClientMonth(ctx context.Context, id string) error
	GetClientMonth(ctx context.Context, id string) (*ClientMonth, error)
	FindClientMonth(ctx context.Context, clientID string, p Period) (*ClientMonth, error)
	FindClientMonthByEngagementService(ctx context.Context, engagementServiceID string, p Period) (*ClientMonth, error)
	ListClientMonths(ctx context.Context, p Period) ([]ClientMonth, error)

	// Output log
	SaveOutput(ctx context.Context, o ClientMonthOutput) error
	DeleteOutput(ctx context.Context, id string) error
	DeleteOutputs(ctx context.Context, clientID string, p Period) error
	FindOutput(ctx context.Context, clientID, outputTypeID string, p Period) (*ClientMonthOutput, error)
	ListOutputs(ctx context.Context, filter OutputFilter) ([]ClientMonthOutput, error)

	// Audit (append-only)
	AppendSettingsChange(ctx context.Context, c SettingsChange) error
	ListSettingsChanges(ctx context.Context, clientMonthID string) ([]SettingsChange, error)

	// WithTx executes fn within a transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// DIRECTORIES - External collaborators, read-only
// =============================================================================

// ClientDirectory resolves clients. Unknown ids return (nil, nil).
type ClientDirectory interface {
	GetClient(ctx context.Context, id string) (*Client, error)
}

// EngagementDirectory exposes billing contracts and their lines.
type EngagementDirectory interface {
	GetEngagement(ctx context.Context, id string) (*Engagement, error)
	// ListEngagementServices returns every billing line for the given service id.
	ListEngagementServices(ctx context.Context, serviceID string) ([]EngagementService, error)
}
