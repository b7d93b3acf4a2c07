/*
Package credits implements Creative-Boost credit accounting.

PURPOSE:
  A client buys a monthly credit budget. Colleagues produce deliverables
  (output types) for the client; each deliverable costs a number of credits,
  and express deliveries cost more. This package keeps the monthly ledger of
  budgets, the log of produced deliverables, and derives summaries and
  per-colleague credit totals from them.

KEY CONCEPTS IN THIS FILE (types.go):
  - OutputType: a deliverable kind with its base credit cost
  - ClientCreditConfig: per-client default package settings
  - ClientMonth: per-client-per-month budget record (the central entity)
  - ClientMonthOutput: per-client-per-month-per-type production counts
  - SettingsChange: append-only audit row for budget/price/status edits
  - ClientMonthSummary: derived view, never stored

DESIGN PRINCIPLES:
  1. Derived values are recomputed from source rows, never stored
  2. Precision: credits and prices are decimal.Decimal
  3. Lookups degrade to nil/placeholder, they do not fail
  4. Every budget/price/status change leaves an audit row

SEE ALSO:
  - calculator.go: credit formula
  - ledger.go: client month operations and audit recording
  - summary.go: summary projection
  - sync.go: engagement reconciliation
*/
package credits

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OUTPUT CATALOG
// =============================================================================

// OutputType is a kind of deliverable. Output types are deactivated, never deleted.
type OutputType struct {
	ID          string
	Name        string
	BaseCredits decimal.Decimal
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientCreditConfig holds the default package for a client.
// Created lazily the first time a client lands on a monthly ledger.
type ClientCreditConfig struct {
	ClientID              string
	IsActive              bool
	DefaultMinCredits     decimal.Decimal
	DefaultMaxCredits     decimal.Decimal
	DefaultPricePerCredit decimal.Decimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// =============================================================================
// CLIENT MONTH LEDGER
// =============================================================================

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusInactive }

// ClientMonth is the budget record of one client for one month.
//
// INVARIANTS:
//   - At most one row per (ClientID, Period)
//   - At most one row per (EngagementServiceID, Period) when linked
//   - MaxCredits is the contracted cap; usage may exceed it
type ClientMonth struct {
	ID                  string
	ClientID            string
	Period              Period
	MinCredits          decimal.Decimal
	MaxCredits          decimal.Decimal
	PricePerCredit      decimal.Decimal
	ColleagueID         *string
	Status              Status
	EngagementServiceID *string
	EngagementID        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MonthSettings are the optional explicit values for a new ledger row.
// Nil fields fall back to the client config, then to the package defaults.
type MonthSettings struct {
	MinCredits     *decimal.Decimal
	MaxCredits     *decimal.Decimal
	PricePerCredit *decimal.Decimal
	ColleagueID    *string
}

// ClientMonthPatch is a partial update of a ledger row. Nil fields are left unchanged.
type ClientMonthPatch struct {
	MinCredits     *decimal.Decimal
	MaxCredits     *decimal.Decimal
	PricePerCredit *decimal.Decimal
	ColleagueID    *string
	Status         *Status
}

// =============================================================================
// OUTPUT LOG
// =============================================================================

// ClientMonthOutput counts the deliverables of one type produced for a client in a month.
// A row whose counts sum to zero is deleted, never kept.
type ClientMonthOutput struct {
	ID           string
	ClientID     string
	OutputTypeID string
	Period       Period
	NormalCount  int
	ExpressCount int
	ColleagueID  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (o ClientMonthOutput) Quantity() int { return o.NormalCount + o.ExpressCount }

// OutputPatch is a partial update of an output row.
type OutputPatch struct {
	NormalCount  *int
	ExpressCount *int
	ColleagueID  *string
}

// OutputFilter selects output rows. Zero fields match everything.
type OutputFilter struct {
	ClientID    string
	ColleagueID string
	Year        int
	Month       time.Month
}

// =============================================================================
// AUDIT
// =============================================================================

type ChangeType string

const (
	ChangeMaxCredits     ChangeType = "max_credits"
	ChangePricePerCredit ChangeType = "price_per_credit"
	ChangeStatus         ChangeType = "status"
)

// SettingsChange is an append-only audit row. Never mutated or deleted.
type SettingsChange struct {
	ID            string
	ClientMonthID string
	ClientID      string
	Period        Period
	ChangeType    ChangeType
	FieldName     string
	OldValue      string
	NewValue      string
	ChangedBy     string
	ChangedByName string
	ChangedAt     time.Time
}

// Actor identifies who performs a mutation.
type Actor struct {
	ID       string
	FullName string
}

// SystemActor is used for mutations not triggered by a person (scheduled sync, CLI).
var SystemActor = Actor{ID: "system", FullName: "System"}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// ClientMonthSummary is recomputed from ledger + output log on every read.
type ClientMonthSummary struct {
	ClientMonthID       string
	ClientID            string
	ClientName          string
	BrandName           string
	Period              Period
	MinCredits          decimal.Decimal
	MaxCredits          decimal.Decimal
	UsedCredits         decimal.Decimal
	NormalCredits       decimal.Decimal
	ExpressCredits      decimal.Decimal
	RemainingCredits    decimal.Decimal
	EstimatedInvoice    decimal.Decimal
	PricePerCredit      decimal.Decimal
	Status              Status
	ItemCount           int
	EngagementServiceID *string
}

// ColleagueCreditDetail is one output row attributed to a colleague, with display names.
type ColleagueCreditDetail struct {
	OutputID       string
	ClientID       string
	ClientName     string
	OutputTypeID   string
	OutputTypeName string
	Period         Period
	NormalCount    int
	ExpressCount   int
	NormalCredits  decimal.Decimal
	ExpressCredits decimal.Decimal
	TotalCredits   decimal.Decimal
}

// ColleagueFilter narrows a detail query. Nil fields match everything.
type ColleagueFilter struct {
	Year  *int
	Month *time.Month
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// Client is the directory view of a client.
type Client struct {
	ID        string
	Name      string
	BrandName string
}

// Engagement is a billing contract. Owned by sales, read-only here.
type Engagement struct {
	ID        string
	ClientID  string
	Status    string
	StartDate time.Time
	EndDate   *time.Time
}

const EngagementStatusActive = "active"

// Covers reports whether the engagement is active and its date range overlaps p.
func (e Engagement) Covers(p Period) bool {
	if e.Status != EngagementStatusActive {
		return false
	}
	if e.StartDate.After(p.End()) {
		return false
	}
	if e.EndDate != nil && e.EndDate.Before(p.Start()) {
		return false
	}
	return true
}

// EngagementService is a billing line of an engagement.
// The credit fields are the Creative-Boost defaults configured by sales.
type EngagementService struct {
	ID             string
	EngagementID   string
	ServiceID      string
	MinCredits     *decimal.Decimal
	MaxCredits     *decimal.Decimal
	PricePerCredit *decimal.Decimal
}
