package credits

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTINGS CHANGE RECORDER
// =============================================================================

// Field labels shown in the history view.
const (
	LabelMaxCredits     = "Max credits"
	LabelPricePerCredit = "Price per credit"
	LabelStatus         = "Status"
)

// diffSettings compares the tracked fields of the stored row with the patch and
// returns one audit row per field that actually changes. It must be called with
// the pre-merge row.
func (s *Service) diffSettings(before ClientMonth, patch ClientMonthPatch, actor Actor, at time.Time) []SettingsChange {
	var changes []SettingsChange
	record := func(ct ChangeType, label, oldValue, newValue string) {
		changes = append(changes, SettingsChange{
			ID:            s.newID(),
			ClientMonthID: before.ID,
			ClientID:      before.ClientID,
			Period:        before.Period,
			ChangeType:    ct,
			FieldName:     label,
			OldValue:      oldValue,
			NewValue:      newValue,
			ChangedBy:     actor.ID,
			ChangedByName: actor.FullName,
			ChangedAt:     at,
		})
	}

	if decimalChanged(before.MaxCredits, patch.MaxCredits) {
		record(ChangeMaxCredits, LabelMaxCredits, before.MaxCredits.String(), patch.MaxCredits.String())
	}
	if decimalChanged(before.PricePerCredit, patch.PricePerCredit) {
		record(ChangePricePerCredit, LabelPricePerCredit, before.PricePerCredit.String(), patch.PricePerCredit.String())
	}
	if patch.Status != nil && *patch.Status != before.Status {
		record(ChangeStatus, LabelStatus, string(before.Status), string(*patch.Status))
	}
	return changes
}

// decimalChanged compares by value, so 50 and 50.0 are the same.
func decimalChanged(current decimal.Decimal, next *decimal.Decimal) bool {
	return next != nil && !current.Equal(*next)
}
