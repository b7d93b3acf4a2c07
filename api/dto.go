/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  credits domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Credit and money values are shopspring decimals. They are written as JSON
  strings ("12.5") and accepted as either strings or numbers.

VALIDATION:
  Request structs carry go-playground/validator tags, checked in
  Handler.decode before any domain call. Range checks on decimals are left
  to the credits package (ErrInvalidCredits).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/creative-boost/credits"
)

// =============================================================================
// LEDGER
// =============================================================================

type ClientMonthDTO struct {
	ID                  string          `json:"id"`
	ClientID            string          `json:"client_id"`
	Year                int             `json:"year"`
	Month               int             `json:"month"`
	MinCredits          decimal.Decimal `json:"min_credits"`
	MaxCredits          decimal.Decimal `json:"max_credits"`
	PricePerCredit      decimal.Decimal `json:"price_per_credit"`
	ColleagueID         *string         `json:"colleague_id"`
	Status              string          `json:"status"`
	EngagementServiceID *string         `json:"engagement_service_id"`
	EngagementID        *string         `json:"engagement_id"`
	CreatedAt           string          `json:"created_at,omitempty"`
	UpdatedAt           string          `json:"updated_at,omitempty"`
}

// AddClientMonthRequest puts a client on a month's ledger. Omitted values
// fall back to the client config, then to the package defaults.
type AddClientMonthRequest struct {
	ClientID       string           `json:"client_id" validate:"required"`
	Year           int              `json:"year" validate:"required,gte=1,lte=9999"`
	Month          int              `json:"month" validate:"required,gte=1,lte=12"`
	MinCredits     *decimal.Decimal `json:"min_credits"`
	MaxCredits     *decimal.Decimal `json:"max_credits"`
	PricePerCredit *decimal.Decimal `json:"price_per_credit"`
	ColleagueID    *string          `json:"colleague_id"`
}

// UpdateClientMonthRequest is a partial update. Omitted fields are unchanged;
// an empty colleague_id clears the assignment.
type UpdateClientMonthRequest struct {
	MinCredits     *decimal.Decimal `json:"min_credits"`
	MaxCredits     *decimal.Decimal `json:"max_credits"`
	PricePerCredit *decimal.Decimal `json:"price_per_credit"`
	ColleagueID    *string          `json:"colleague_id"`
	Status         *string          `json:"status" validate:"omitempty,oneof=active inactive"`
}

type SettingsChangeDTO struct {
	ID            string `json:"id"`
	ClientMonthID string `json:"client_month_id"`
	ClientID      string `json:"client_id"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	ChangeType    string `json:"change_type"`
	FieldName     string `json:"field_name"`
	OldValue      string `json:"old_value"`
	NewValue      string `json:"new_value"`
	ChangedBy     string `json:"changed_by"`
	ChangedByName string `json:"changed_by_name"`
	ChangedAt     string `json:"changed_at"`
}

// =============================================================================
// OUTPUTS
// =============================================================================

type OutputDTO struct {
	ID           string  `json:"id"`
	ClientID     string  `json:"client_id"`
	OutputTypeID string  `json:"output_type_id"`
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	NormalCount  int     `json:"normal_count"`
	ExpressCount int     `json:"express_count"`
	ColleagueID  *string `json:"colleague_id"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// UpdateOutputRequest sets output counts. Omitted counts are unchanged.
type UpdateOutputRequest struct {
	NormalCount  *int    `json:"normal_count" validate:"omitempty,gte=0"`
	ExpressCount *int    `json:"express_count" validate:"omitempty,gte=0"`
	ColleagueID  *string `json:"colleague_id"`
}

// UpdateOutputResponse reports the row after the write. Output is nil when the
// counts are zero; Deleted is set only when an existing row was removed.
type UpdateOutputResponse struct {
	Output  *OutputDTO `json:"output"`
	Deleted bool       `json:"deleted"`
}

type OutputCreditsDTO struct {
	OutputTypeID   string          `json:"output_type_id"`
	NormalCount    int             `json:"normal_count"`
	ExpressCount   int             `json:"express_count"`
	NormalCredits  decimal.Decimal `json:"normal_credits"`
	ExpressCredits decimal.Decimal `json:"express_credits"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
}

// =============================================================================
// SUMMARIES
// =============================================================================

type ClientMonthSummaryDTO struct {
	ClientMonthID       string          `json:"client_month_id"`
	ClientID            string          `json:"client_id"`
	ClientName          string          `json:"client_name"`
	BrandName           string          `json:"brand_name"`
	Year                int             `json:"year"`
	Month               int             `json:"month"`
	MinCredits          decimal.Decimal `json:"min_credits"`
	MaxCredits          decimal.Decimal `json:"max_credits"`
	UsedCredits         decimal.Decimal `json:"used_credits"`
	NormalCredits       decimal.Decimal `json:"normal_credits"`
	ExpressCredits      decimal.Decimal `json:"express_credits"`
	RemainingCredits    decimal.Decimal `json:"remaining_credits"`
	EstimatedInvoice    decimal.Decimal `json:"estimated_invoice"`
	PricePerCredit      decimal.Decimal `json:"price_per_credit"`
	Status              string          `json:"status"`
	ItemCount           int             `json:"item_count"`
	EngagementServiceID *string         `json:"engagement_service_id"`
}

// =============================================================================
// COLLEAGUES
// =============================================================================

type ColleagueCreditsDTO struct {
	ColleagueID  string          `json:"colleague_id"`
	Year         int             `json:"year"`
	Month        *int            `json:"month,omitempty"`
	TotalCredits decimal.Decimal `json:"total_credits"`
}

type ColleagueCreditDetailDTO struct {
	OutputID       string          `json:"output_id"`
	ClientID       string          `json:"client_id"`
	ClientName     string          `json:"client_name"`
	OutputTypeID   string          `json:"output_type_id"`
	OutputTypeName string          `json:"output_type_name"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	NormalCount    int             `json:"normal_count"`
	ExpressCount   int             `json:"express_count"`
	NormalCredits  decimal.Decimal `json:"normal_credits"`
	ExpressCredits decimal.Decimal `json:"express_credits"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
}

// =============================================================================
// SYNC
// =============================================================================

type SyncResultDTO struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Created int `json:"created"`
	Linked  int `json:"linked"`
	Skipped int `json:"skipped"`
}

// =============================================================================
// CATALOG AND CLIENT CONFIGS
// =============================================================================

type OutputTypeDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	BaseCredits decimal.Decimal `json:"base_credits"`
	IsActive    bool            `json:"is_active"`
}

type CreateOutputTypeRequest struct {
	Name        string          `json:"name" validate:"required"`
	BaseCredits decimal.Decimal `json:"base_credits"`
}

type UpdateOutputTypeRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1"`
	BaseCredits *decimal.Decimal `json:"base_credits"`
	IsActive    *bool            `json:"is_active"`
}

type ClientConfigDTO struct {
	ClientID              string          `json:"client_id"`
	IsActive              bool            `json:"is_active"`
	DefaultMinCredits     decimal.Decimal `json:"default_min_credits"`
	DefaultMaxCredits     decimal.Decimal `json:"default_max_credits"`
	DefaultPricePerCredit decimal.Decimal `json:"default_price_per_credit"`
}

// UpsertClientConfigRequest replaces a client's default package. Omitted
// values take the package defaults; is_active defaults to true.
type UpsertClientConfigRequest struct {
	IsActive              *bool            `json:"is_active"`
	DefaultMinCredits     *decimal.Decimal `json:"default_min_credits"`
	DefaultMaxCredits     *decimal.Decimal `json:"default_max_credits"`
	DefaultPricePerCredit *decimal.Decimal `json:"default_price_per_credit"`
}

// =============================================================================
// DIRECTORY SEEDING
// =============================================================================

type CreateClientRequest struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	BrandName string `json:"brand_name"`
}

type CreateEngagementRequest struct {
	ID        string  `json:"id" validate:"required"`
	ClientID  string  `json:"client_id" validate:"required"`
	Status    string  `json:"status" validate:"required"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type CreateEngagementServiceRequest struct {
	ID             string           `json:"id" validate:"required"`
	EngagementID   string           `json:"engagement_id" validate:"required"`
	ServiceID      string           `json:"service_id" validate:"required"`
	MinCredits     *decimal.Decimal `json:"min_credits"`
	MaxCredits     *decimal.Decimal `json:"max_credits"`
	PricePerCredit *decimal.Decimal `json:"price_per_credit"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario and the month to build it in.
// A zero year and month mean the current month.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
	Year       int    `json:"year" validate:"omitempty,gte=1,lte=9999"`
	Month      int    `json:"month" validate:"omitempty,gte=1,lte=12"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toClientMonthDTO(m credits.ClientMonth) ClientMonthDTO {
	return ClientMonthDTO{
		ID:                  m.ID,
		ClientID:            m.ClientID,
		Year:                m.Period.Year,
		Month:               int(m.Period.Month),
		MinCredits:          m.MinCredits,
		MaxCredits:          m.MaxCredits,
		PricePerCredit:      m.PricePerCredit,
		ColleagueID:         m.ColleagueID,
		Status:              string(m.Status),
		EngagementServiceID: m.EngagementServiceID,
		EngagementID:        m.EngagementID,
		CreatedAt:           formatTime(m.CreatedAt),
		UpdatedAt:           formatTime(m.UpdatedAt),
	}
}

func toSettingsChangeDTO(c credits.SettingsChange) SettingsChangeDTO {
	return SettingsChangeDTO{
		ID:            c.ID,
		ClientMonthID: c.ClientMonthID,
		ClientID:      c.ClientID,
		Year:          c.Period.Year,
		Month:         int(c.Period.Month),
		ChangeType:    string(c.ChangeType),
		FieldName:     c.FieldName,
		OldValue:      c.OldValue,
		NewValue:      c.NewValue,
		ChangedBy:     c.ChangedBy,
		ChangedByName: c.ChangedByName,
		ChangedAt:     formatTime(c.ChangedAt),
	}
}

func toOutputDTO(o credits.ClientMonthOutput) OutputDTO {
	return OutputDTO{
		ID:           o.ID,
		ClientID:     o.ClientID,
		OutputTypeID: o.OutputTypeID,
		Year:         o.Period.Year,
		Month:        int(o.Period.Month),
		NormalCount:  o.NormalCount,
		ExpressCount: o.ExpressCount,
		ColleagueID:  o.ColleagueID,
		UpdatedAt:    formatTime(o.UpdatedAt),
	}
}

func toSummaryDTO(s credits.ClientMonthSummary) ClientMonthSummaryDTO {
	return ClientMonthSummaryDTO{
		ClientMonthID:       s.ClientMonthID,
		ClientID:            s.ClientID,
		ClientName:          s.ClientName,
		BrandName:           s.BrandName,
		Year:                s.Period.Year,
		Month:               int(s.Period.Month),
		MinCredits:          s.MinCredits,
		MaxCredits:          s.MaxCredits,
		UsedCredits:         s.UsedCredits,
		NormalCredits:       s.NormalCredits,
		ExpressCredits:      s.ExpressCredits,
		RemainingCredits:    s.RemainingCredits,
		EstimatedInvoice:    s.EstimatedInvoice,
		PricePerCredit:      s.PricePerCredit,
		Status:              string(s.Status),
		ItemCount:           s.ItemCount,
		EngagementServiceID: s.EngagementServiceID,
	}
}

func toDetailDTO(d credits.ColleagueCreditDetail) ColleagueCreditDetailDTO {
	return ColleagueCreditDetailDTO{
		OutputID:       d.OutputID,
		ClientID:       d.ClientID,
		ClientName:     d.ClientName,
		OutputTypeID:   d.OutputTypeID,
		OutputTypeName: d.OutputTypeName,
		Year:           d.Period.Year,
		Month:          int(d.Period.Month),
		NormalCount:    d.NormalCount,
		ExpressCount:   d.ExpressCount,
		NormalCredits:  d.NormalCredits,
		ExpressCredits: d.ExpressCredits,
		TotalCredits:   d.TotalCredits,
	}
}

func toOutputTypeDTO(t credits.OutputType) OutputTypeDTO {
	return OutputTypeDTO{
		ID:          t.ID,
		Name:        t.Name,
		BaseCredits: t.BaseCredits,
		IsActive:    t.IsActive,
	}
}

func toClientConfigDTO(c credits.ClientCreditConfig) ClientConfigDTO {
	return ClientConfigDTO{
		ClientID:              c.ClientID,
		IsActive:              c.IsActive,
		DefaultMinCredits:     c.DefaultMinCredits,
		DefaultMaxCredits:     c.DefaultMaxCredits,
		DefaultPricePerCredit: c.DefaultPricePerCredit,
	}
}
