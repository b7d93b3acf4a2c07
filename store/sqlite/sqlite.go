/*
Package sqlite provides a SQLite-backed implementation of the credits storage interfaces.

PURPOSE:
  Implements credits.Store, credits.ClientDirectory and credits.EngagementDirectory
  on one SQLite database. In production, the same patterns apply to PostgreSQL,
  with only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  credits.Store:               Ledger, output log, catalog, configs, audit rows
  credits.ClientDirectory:     Client names (seeded through the directory API)
  credits.EngagementDirectory: Billing engagements and their service lines

KEY TABLES:
  client_months:         Monthly budget per client
  client_month_outputs:  Deliverable counts per client, type and month
  settings_changes:      Append-only audit of budget/price/status edits
  output_types:          Deliverable catalog
  client_credit_configs: Per-client default package
  clients, engagements, engagement_services: Directory data

UNIQUENESS:
  Natural keys are enforced by the schema, so a concurrent writer can never
  slip in a second budget for the same month:
  - client_months (client_id, year, month)
  - idx_client_months_service (engagement_service_id, year, month) when linked
  - client_month_outputs (client_id, output_type_id, year, month)

VALUES:
  Decimals are stored as TEXT (decimal.String) so no precision is lost.
  Times are UTC RFC3339 TEXT with fixed-width nanoseconds.

CONNECTIONS:
  The pool is capped at one connection. SQLite serialises writers anyway, and
  a ":memory:" database only exists on the connection that created it.

USAGE:
  store, err := sqlite.New("./data/creative-boost.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := credits.NewService(store, store, store, credits.DefaultOptions())

SEE ALSO:
  - credits/store.go: Interface definitions
  - credits/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/creative-boost/credits"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	q  queries
	mu sync.RWMutex
}

var (
	_ credits.Store               = (*Store)(nil)
	_ credits.ClientDirectory     = (*Store)(nil)
	_ credits.EngagementDirectory = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Deliverable catalog (deactivated, never deleted)
	CREATE TABLE IF NOT EXISTS output_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_credits TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Per-client default package
	CREATE TABLE IF NOT EXISTS client_credit_configs (
		client_id TEXT PRIMARY KEY,
		is_active INTEGER NOT NULL DEFAULT 1,
		default_min_credits TEXT NOT NULL,
		default_max_credits TEXT NOT NULL,
		default_price_per_credit TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Monthly ledger
	CREATE TABLE IF NOT EXISTS client_months (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		min_credits TEXT NOT NULL,
		max_credits TEXT NOT NULL,
		price_per_credit TEXT NOT NULL,
		colleague_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		engagement_service_id TEXT,
		engagement_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(client_id, year, month)
	);

	-- CRITICAL: one budget per billing line per month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_client_months_service
		ON client_months(engagement_service_id, year, month)
		WHERE engagement_service_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_client_months_period
		ON client_months(year, month);

	-- Output log (zero rows are deleted, never stored)
	CREATE TABLE IF NOT EXISTS client_month_outputs (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		output_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		normal_count INTEGER NOT NULL DEFAULT 0,
		express_count INTEGER NOT NULL DEFAULT 0,
		colleague_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(client_id, output_type_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_outputs_colleague
		ON client_month_outputs(colleague_id, year, month)
		WHERE colleague_id IS NOT NULL;

	-- Audit (append-only)
	CREATE TABLE IF NOT EXISTS settings_changes (
		id TEXT PRIMARY KEY,
		client_month_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		change_type TEXT NOT NULL,
		field_name TEXT NOT NULL,
		old_value TEXT NOT NULL,
		new_value TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		changed_by_name TEXT NOT NULL,
		changed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settings_changes_month
		ON settings_changes(client_month_id, changed_at);

	-- Directory
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		brand_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS engagements (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT
	);

	CREATE TABLE IF NOT EXISTS engagement_services (
		id TEXT PRIMARY KEY,
		engagement_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		min_credits TEXT,
		max_credits TEXT,
		price_per_credit TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_engagement_services_service
		ON engagement_services(service_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (credits.Store interface)
// =============================================================================

func (s *Store) SaveOutputType(ctx context.Context, t credits.OutputType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveOutputType(ctx, t)
}

func (s *Store) GetOutputType(ctx context.Context, id string) (*credits.OutputType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetOutputType(ctx, id)
}

func (s *Store) ListOutputTypes(ctx context.Context) ([]credits.OutputType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListOutputTypes(ctx)
}

func (s *Store) SaveClientConfig(ctx context.Context, c credits.ClientCreditConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveClientConfig(ctx, c)
}

func (s *Store) GetClientConfig(ctx context.Context, clientID string) (*credits.ClientCreditConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetClientConfig(ctx, clientID)
}

func (s *Store) ListClientConfigs(ctx context.Context) ([]credits.ClientCreditConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListClientConfigs(ctx)
}

func (s *Store) InsertClientMonth(ctx context.Context, m credits.ClientMonth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertClientMonth(ctx, m)
}

func (s *Store) UpdateClientMonth(ctx context.Context, m credits.ClientMonth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateClientMonth(ctx, m)
}

func (s *Store) DeleteClientMonth(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteClientMonth(ctx, id)
}

func (s *Store) GetClientMonth(ctx context.Context, id string) (*credits.ClientMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetClientMonth(ctx, id)
}

func (s *Store) FindClientMonth(ctx context.Context, clientID string, p credits.Period) (*credits.ClientMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.FindClientMonth(ctx, clientID, p)
}

func (s *Store) FindClientMonthByEngagementService(ctx context.Context, engagementServiceID string, p credits.Period) (*credits.ClientMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.FindClientMonthByEngagementService(ctx, engagementServiceID, p)
}

func (s *Store) ListClientMonths(ctx context.Context, p credits.Period) ([]credits.ClientMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListClientMonths(ctx, p)
}

func (s *Store) SaveOutput(ctx context.Context, o credits.ClientMonthOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveOutput(ctx, o)
}

func (s *Store) DeleteOutput(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteOutput(ctx, id)
}

func (s *Store) DeleteOutputs(ctx context.Context, clientID string, p credits.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteOutputs(ctx, clientID, p)
}

func (s *Store) FindOutput(ctx context.Context, clientID, outputTypeID string, p credits.Period) (*credits.ClientMonthOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.FindOutput(ctx, clientID, outputTypeID, p)
}

func (s *Store) ListOutputs(ctx context.Context, filter credits.OutputFilter) ([]credits.ClientMonthOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListOutputs(ctx, filter)
}

func (s *Store) AppendSettingsChange(ctx context.Context, c credits.SettingsChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.AppendSettingsChange(ctx, c)
}

func (s *Store) ListSettingsChanges(ctx context.Context, clientMonthID string) ([]credits.SettingsChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListSettingsChanges(ctx, clientMonthID)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
// Inside fn, only the store passed to it may be used.
func (s *Store) WithTx(ctx context.Context, fn func(store credits.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{db: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	queries
}

// WithTx on a transactional store joins the enclosing transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(store credits.Store) error) error {
	return fn(ts)
}

// =============================================================================
// DIRECTORY (credits.ClientDirectory, credits.EngagementDirectory)
// =============================================================================

// SaveClient upserts a directory client.
func (s *Store) SaveClient(ctx context.Context, c credits.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, brand_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, brand_name = excluded.brand_name
	`, c.ID, c.Name, c.BrandName)
	return err
}

func (s *Store) GetClient(ctx context.Context, id string) (*credits.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c credits.Client
	err := s.db.QueryRowContext(ctx, `SELECT id, name, brand_name FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.BrandName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveEngagement upserts a billing engagement.
func (s *Store) SaveEngagement(ctx context.Context, e credits.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endDate *string
	if e.EndDate != nil {
		v := formatTime(*e.EndDate)
		endDate = &v
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagements (id, client_id, status, start_date, end_date) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`, e.ID, e.ClientID, e.Status, formatTime(e.StartDate), endDate)
	return err
}

func (s *Store) GetEngagement(ctx context.Context, id string) (*credits.Engagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e                  credits.Engagement
		startDate, endDate sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, status, start_date, end_date FROM engagements WHERE id = ?
	`, id).Scan(&e.ID, &e.ClientID, &e.Status, &startDate, &endDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.StartDate = parseTime(startDate.String)
	if endDate.Valid {
		t := parseTime(endDate.String)
		e.EndDate = &t
	}
	return &e, nil
}

// SaveEngagementService upserts a billing line.
func (s *Store) SaveEngagementService(ctx context.Context, es credits.EngagementService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement_services (id, engagement_id, service_id, min_credits, max_credits, price_per_credit)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			engagement_id = excluded.engagement_id,
			service_id = excluded.service_id,
			min_credits = excluded.min_credits,
			max_credits = excluded.max_credits,
			price_per_credit = excluded.price_per_credit
	`, es.ID, es.EngagementID, es.ServiceID,
		nullDecimal(es.MinCredits), nullDecimal(es.MaxCredits), nullDecimal(es.PricePerCredit))
	return err
}

func (s *Store) ListEngagementServices(ctx context.Context, serviceID string) ([]credits.EngagementService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, engagement_id, service_id, min_credits, max_credits, price_per_credit
		FROM engagement_services
		WHERE service_id = ?
		ORDER BY id
	`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []credits.EngagementService{}
	for rows.Next() {
		var (
			es                credits.EngagementService
			minC, maxC, price decimal.NullDecimal
		)
		if err := rows.Scan(&es.ID, &es.EngagementID, &es.ServiceID, &minC, &maxC, &price); err != nil {
			return nil, err
		}
		es.MinCredits = decimalPtr(minC)
		es.MaxCredits = decimalPtr(maxC)
		es.PricePerCredit = decimalPtr(price)
		lines = append(lines, es)
	}
	return lines, rows.Err()
}

// Reset clears all tables (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"settings_changes", "client_month_outputs", "client_months",
		"client_credit_configs", "output_types",
		"engagement_services", "engagements", "clients",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is RFC3339 with fixed-width nanoseconds, so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func decimalPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	v := nd.Decimal
	return &v
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
