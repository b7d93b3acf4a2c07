package credits

import "github.com/shopspring/decimal"

// =============================================================================
// CALCULATOR - Production counts to credits
// =============================================================================

var expressMultiplier = decimal.RequireFromString("1.5")

// ExpressMultiplier returns the flat surcharge applied to rush deliverables.
func ExpressMultiplier() decimal.Decimal { return expressMultiplier }

// OutputCredits is the credit cost of one output row.
type OutputCredits struct {
	Normal  decimal.Decimal
	Express decimal.Decimal
	Total   decimal.Decimal
}

func (c OutputCredits) Add(other OutputCredits) OutputCredits {
	return OutputCredits{
		Normal:  c.Normal.Add(other.Normal),
		Express: c.Express.Add(other.Express),
		Total:   c.Total.Add(other.Total),
	}
}

// Calculator prices output rows against a snapshot of the output catalog.
// It holds no other state; identical inputs give identical results.
type Calculator struct {
	types map[string]OutputType
}

func NewCalculator(types []OutputType) *Calculator {
	c := &Calculator{types: make(map[string]OutputType, len(types))}
	for _, t := range types {
		c.types[t.ID] = t
	}
	return c
}

// BaseCredits returns the base cost of a type, zero when the type is unknown.
func (c *Calculator) BaseCredits(outputTypeID string) decimal.Decimal {
	t, ok := c.types[outputTypeID]
	if !ok {
		return decimal.Zero
	}
	return t.BaseCredits
}

// OutputType resolves a type for display. ok is false for unknown ids.
func (c *Calculator) OutputType(outputTypeID string) (OutputType, bool) {
	t, ok := c.types[outputTypeID]
	return t, ok
}

// Calculate converts counts to credits:
//
//	normal  = normalCount  * base
//	express = expressCount * base * 1.5
//
// Unknown output types price at zero instead of failing, so rows that
// reference a removed type never break a summary.
func (c *Calculator) Calculate(outputTypeID string, normalCount, expressCount int) OutputCredits {
	base := c.BaseCredits(outputTypeID)
	normal := base.Mul(decimal.NewFromInt(int64(normalCount)))
	express := base.Mul(decimal.NewFromInt(int64(expressCount))).Mul(expressMultiplier)
	return OutputCredits{
		Normal:  normal,
		Express: express,
		Total:   normal.Add(express),
	}
}

// CalculateOutput is Calculate applied to a stored row.
func (c *Calculator) CalculateOutput(o ClientMonthOutput) OutputCredits {
	return c.Calculate(o.OutputTypeID, o.NormalCount, o.ExpressCount)
}

func zeroCredits() OutputCredits {
	return OutputCredits{Normal: decimal.Zero, Express: decimal.Zero, Total: decimal.Zero}
}
