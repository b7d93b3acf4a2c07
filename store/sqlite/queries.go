package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/creative-boost/credits"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL for credits.Store, shared by the pooled store and
// transactions. It does no locking.
type queries struct {
	db execer
}

// =============================================================================
// OUTPUT TYPES
// =============================================================================

func (q queries) SaveOutputType(ctx context.Context, t credits.OutputType) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO output_types (id, name, base_credits, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_credits = excluded.base_credits,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, t.BaseCredits.String(), t.IsActive, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save output type: %w", err)
	}
	return nil
}

const outputTypeColumns = `id, name, base_credits, is_active, created_at, updated_at`

func (q queries) GetOutputType(ctx context.Context, id string) (*credits.OutputType, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+outputTypeColumns+` FROM output_types WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	types, err := scanOutputTypes(rows)
	if err != nil || len(types) == 0 {
		return nil, err
	}
	return &types[0], nil
}

func (q queries) ListOutputTypes(ctx context.Context) ([]credits.OutputType, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+outputTypeColumns+` FROM output_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanOutputTypes(rows)
}

func scanOutputTypes(rows *sql.Rows) ([]credits.OutputType, error) {
	defer rows.Close()

	types := []credits.OutputType{}
	for rows.Next() {
		var (
			t                    credits.OutputType
			createdAt, updatedAt string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.BaseCredits, &t.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		types = append(types, t)
	}
	return types, rows.Err()
}

// =============================================================================
// CLIENT CONFIGS
// =============================================================================

func (q queries) SaveClientConfig(ctx context.Context, c credits.ClientCreditConfig) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO client_credit_configs (client_id, is_active, default_min_credits,
			default_max_credits, default_price_per_credit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			is_active = excluded.is_active,
			default_min_credits = excluded.default_min_credits,
			default_max_credits = excluded.default_max_credits,
			default_price_per_credit = excluded.default_price_per_credit,
			updated_at = excluded.updated_at
	`, c.ClientID, c.IsActive, c.DefaultMinCredits.String(), c.DefaultMaxCredits.String(),
		c.DefaultPricePerCredit.String(), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save client config: %w", err)
	}
	return nil
}

const clientConfigColumns = `client_id, is_active, default_min_credits, default_max_credits,
	default_price_per_credit, created_at, updated_at`

func (q queries) GetClientConfig(ctx context.Context, clientID string) (*credits.ClientCreditConfig, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+clientConfigColumns+` FROM client_credit_configs WHERE client_id = ?`, clientID)
	if err != nil {
		return nil, err
	}
	configs, err := scanClientConfigs(rows)
	if err != nil || len(configs) == 0 {
		return nil, err
	}
	return &configs[0], nil
}

func (q queries) ListClientConfigs(ctx context.Context) ([]credits.ClientCreditConfig, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+clientConfigColumns+` FROM client_credit_configs ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	return scanClientConfigs(rows)
}

func scanClientConfigs(rows *sql.Rows) ([]credits.ClientCreditConfig, error) {
	defer rows.Close()

	configs := []credits.ClientCreditConfig{}
	for rows.Next() {
		var (
			c                    credits.ClientCreditConfig
			createdAt, updatedAt string
		)
		if err := rows.Scan(&c.ClientID, &c.IsActive, &c.DefaultMinCredits, &c.DefaultMaxCredits,
			&c.DefaultPricePerCredit, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// =============================================================================
// CLIENT MONTHS
// =============================================================================

func (q queries) InsertClientMonth(ctx context.Context, m credits.ClientMonth) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO client_months (id, client_id, year, month, min_credits, max_credits,
			price_per_credit, colleague_id, status, engagement_service_id, engagement_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ClientID, m.Period.Year, int(m.Period.Month),
		m.MinCredits.String(), m.MaxCredits.String(), m.PricePerCredit.String(),
		nullableString(m.ColleagueID), string(m.Status),
		nullableString(m.EngagementServiceID), nullableString(m.EngagementID),
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return credits.ErrDuplicateClientMonth
		}
		return fmt.Errorf("failed to insert client month: %w", err)
	}
	return nil
}

func (q queries) UpdateClientMonth(ctx context.Context, m credits.ClientMonth) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE client_months SET
			min_credits = ?, max_credits = ?, price_per_credit = ?, colleague_id = ?,
			status = ?, engagement_service_id = ?, engagement_id = ?, updated_at = ?
		WHERE id = ?
	`, m.MinCredits.String(), m.MaxCredits.String(), m.PricePerCredit.String(),
		nullableString(m.ColleagueID), string(m.Status),
		nullableString(m.EngagementServiceID), nullableString(m.EngagementID),
		formatTime(m.UpdatedAt), m.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return credits.ErrDuplicateClientMonth
		}
		return fmt.Errorf("failed to update client month: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credits.ErrClientMonthNotFound
	}
	return nil
}

func (q queries) DeleteClientMonth(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM client_months WHERE id = ?`, id)
	return err
}

const clientMonthColumns = `id, client_id, year, month, min_credits, max_credits, price_per_credit,
	colleague_id, status, engagement_service_id, engagement_id, created_at, updated_at`

func (q queries) GetClientMonth(ctx context.Context, id string) (*credits.ClientMonth, error) {
	return q.findClientMonth(ctx, `WHERE id = ?`, id)
}

func (q queries) FindClientMonth(ctx context.Context, clientID string, p credits.Period) (*credits.ClientMonth, error) {
	return q.findClientMonth(ctx, `WHERE client_id = ? AND year = ? AND month = ?`, clientID, p.Year, int(p.Month))
}

func (q queries) FindClientMonthByEngagementService(ctx context.Context, engagementServiceID string, p credits.Period) (*credits.ClientMonth, error) {
	return q.findClientMonth(ctx, `WHERE engagement_service_id = ? AND year = ? AND month = ?`, engagementServiceID, p.Year, int(p.Month))
}

func (q queries) findClientMonth(ctx context.Context, where string, args ...any) (*credits.ClientMonth, error) {
	months, err := q.queryClientMonths(ctx, `SELECT `+clientMonthColumns+` FROM client_months `+where+` LIMIT 1`, args...)
	if err != nil || len(months) == 0 {
		return nil, err
	}
	return &months[0], nil
}

func (q queries) ListClientMonths(ctx context.Context, p credits.Period) ([]credits.ClientMonth, error) {
	return q.queryClientMonths(ctx, `
		SELECT `+clientMonthColumns+` FROM client_months
		WHERE year = ? AND month = ?
		ORDER BY client_id
	`, p.Year, int(p.Month))
}

func (q queries) queryClientMonths(ctx context.Context, query string, args ...any) ([]credits.ClientMonth, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	months := []credits.ClientMonth{}
	for rows.Next() {
		var (
			m                                  credits.ClientMonth
			month                              int
			status, createdAt, updatedAt       string
			colleagueID, serviceID, engagement sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ClientID, &m.Period.Year, &month,
			&m.MinCredits, &m.MaxCredits, &m.PricePerCredit,
			&colleagueID, &status, &serviceID, &engagement, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		m.Period.Month = time.Month(month)
		m.Status = credits.Status(status)
		m.ColleagueID = stringPtr(colleagueID)
		m.EngagementServiceID = stringPtr(serviceID)
		m.EngagementID = stringPtr(engagement)
		m.CreatedAt = parseTime(createdAt)
		m.UpdatedAt = parseTime(updatedAt)
		months = append(months, m)
	}
	return months, rows.Err()
}

// =============================================================================
// OUTPUTS
// =============================================================================

// SaveOutput upserts by id. A second row for the same client, type and month
// violates the natural key.
func (q queries) SaveOutput(ctx context.Context, o credits.ClientMonthOutput) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO client_month_outputs (id, client_id, output_type_id, year, month,
			normal_count, express_count, colleague_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			normal_count = excluded.normal_count,
			express_count = excluded.express_count,
			colleague_id = excluded.colleague_id,
			updated_at = excluded.updated_at
	`, o.ID, o.ClientID, o.OutputTypeID, o.Period.Year, int(o.Period.Month),
		o.NormalCount, o.ExpressCount, nullableString(o.ColleagueID),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return credits.ErrDuplicateOutput
		}
		return fmt.Errorf("failed to save output: %w", err)
	}
	return nil
}

func (q queries) DeleteOutput(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM client_month_outputs WHERE id = ?`, id)
	return err
}

func (q queries) DeleteOutputs(ctx context.Context, clientID string, p credits.Period) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM client_month_outputs WHERE client_id = ? AND year = ? AND month = ?
	`, clientID, p.Year, int(p.Month))
	return err
}

const outputColumns = `id, client_id, output_type_id, year, month, normal_count, express_count,
	colleague_id, created_at, updated_at`

func (q queries) FindOutput(ctx context.Context, clientID, outputTypeID string, p credits.Period) (*credits.ClientMonthOutput, error) {
	outputs, err := q.queryOutputs(ctx, `
		SELECT `+outputColumns+` FROM client_month_outputs
		WHERE client_id = ? AND output_type_id = ? AND year = ? AND month = ?
	`, clientID, outputTypeID, p.Year, int(p.Month))
	if err != nil || len(outputs) == 0 {
		return nil, err
	}
	return &outputs[0], nil
}

func (q queries) ListOutputs(ctx context.Context, filter credits.OutputFilter) ([]credits.ClientMonthOutput, error) {
	var (
		where []string
		args  []any
	)
	if filter.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.ColleagueID != "" {
		where = append(where, "colleague_id = ?")
		args = append(args, filter.ColleagueID)
	}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, int(filter.Month))
	}

	query := `SELECT ` + outputColumns + ` FROM client_month_outputs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY year, month, client_id, output_type_id`
	return q.queryOutputs(ctx, query, args...)
}

func (q queries) queryOutputs(ctx context.Context, query string, args ...any) ([]credits.ClientMonthOutput, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outputs := []credits.ClientMonthOutput{}
	for rows.Next() {
		var (
			o                    credits.ClientMonthOutput
			month                int
			colleagueID          sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&o.ID, &o.ClientID, &o.OutputTypeID, &o.Period.Year, &month,
			&o.NormalCount, &o.ExpressCount, &colleagueID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		o.Period.Month = time.Month(month)
		o.ColleagueID = stringPtr(colleagueID)
		o.CreatedAt = parseTime(createdAt)
		o.UpdatedAt = parseTime(updatedAt)
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

// =============================================================================
// SETTINGS CHANGES (append-only)
// =============================================================================

// AppendSettingsChange inserts an audit row. There is no update or delete.
func (q queries) AppendSettingsChange(ctx context.Context, c credits.SettingsChange) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings_changes (id, client_month_id, client_id, year, month, change_type,
			field_name, old_value, new_value, changed_by, changed_by_name, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ClientMonthID, c.ClientID, c.Period.Year, int(c.Period.Month), string(c.ChangeType),
		c.FieldName, c.OldValue, c.NewValue, c.ChangedBy, c.ChangedByName, formatTime(c.ChangedAt))
	if err != nil {
		return fmt.Errorf("failed to append settings change: %w", err)
	}
	return nil
}

func (q queries) ListSettingsChanges(ctx context.Context, clientMonthID string) ([]credits.SettingsChange, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, client_month_id, client_id, year, month, change_type, field_name,
			old_value, new_value, changed_by, changed_by_name, changed_at
		FROM settings_changes
		WHERE client_month_id = ?
		ORDER BY changed_at, rowid
	`, clientMonthID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []credits.SettingsChange{}
	for rows.Next() {
		var (
			c                     credits.SettingsChange
			month                 int
			changeType, changedAt string
		)
		if err := rows.Scan(&c.ID, &c.ClientMonthID, &c.ClientID, &c.Period.Year, &month, &changeType,
			&c.FieldName, &c.OldValue, &c.NewValue, &c.ChangedBy, &c.ChangedByName, &changedAt); err != nil {
			return nil, err
		}
		c.Period.Month = time.Month(month)
		c.ChangeType = credits.ChangeType(changeType)
		c.ChangedAt = parseTime(changedAt)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
