package credits_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/creative-boost/credits"
)

func TestCalculator_ExpressMultiplier(t *testing.T) {
	// GIVEN: A type costing 2 credits
	// WHEN: 3 normal and 2 express deliverables are priced
	// THEN: normal = 6, express = 2*2*1.5 = 6, total = 12

	calc := credits.NewCalculator([]credits.OutputType{{ID: "design", BaseCredits: dec("2")}})

	got := calc.Calculate("design", 3, 2)

	assertDecimal(t, "6", got.Normal)
	assertDecimal(t, "6", got.Express)
	assertDecimal(t, "12", got.Total)
	assertDecimal(t, "1.5", credits.ExpressMultiplier())
}

func TestCalculator_UnknownTypeIsFree(t *testing.T) {
	// GIVEN: An empty catalog
	// WHEN: Pricing a row that references a missing type
	// THEN: Everything is zero and nothing fails

	calc := credits.NewCalculator(nil)

	got := calc.Calculate("deleted-type", 10, 4)

	assert.True(t, got.Total.IsZero())
	assert.True(t, calc.BaseCredits("deleted-type").IsZero())
	_, ok := calc.OutputType("deleted-type")
	assert.False(t, ok)
}

func TestCalculator_FractionalBase(t *testing.T) {
	calc := credits.NewCalculator([]credits.OutputType{{ID: "copy", BaseCredits: dec("0.5")}})

	got := calc.Calculate("copy", 1, 1)

	assertDecimal(t, "0.5", got.Normal)
	assertDecimal(t, "0.75", got.Express)
	assertDecimal(t, "1.25", got.Total)
}

func TestService_CalculateOutputCredits_UsesCurrentCatalog(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	got, err := f.svc.CalculateOutputCredits(f.ctx, "video", 1, 2)
	require.NoError(t, err)
	assertDecimal(t, "20", got.Total)
}

func TestPeriod_Navigation(t *testing.T) {
	jan := credits.NewPeriod(2025, time.January)

	assert.Equal(t, credits.NewPeriod(2024, time.December), jan.Previous())
	assert.Equal(t, credits.NewPeriod(2025, time.February), jan.Next())
	assert.Equal(t, "2025-01", jan.String())
	assert.True(t, jan.Contains(time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, jan.Contains(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, jan.Before(jan.Next()))
}

func TestParsePeriod_RejectsBadMonth(t *testing.T) {
	_, err := credits.ParsePeriod(2025, 13)
	assert.ErrorIs(t, err, credits.ErrInvalidPeriod)
	assert.True(t, credits.IsClientError(err))

	p, err := credits.ParsePeriod(2025, 3)
	require.NoError(t, err)
	assert.Equal(t, march2025, p)
}

func TestEngagement_Covers(t *testing.T) {
	end := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		eng  credits.Engagement
		want bool
	}{
		{"open ended", credits.Engagement{Status: "active", StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, true},
		{"starts mid month", credits.Engagement{Status: "active", StartDate: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)}, true},
		{"starts next month", credits.Engagement{Status: "active", StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"ended before", credits.Engagement{Status: "active", StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), EndDate: &end}, false},
		{"paused", credits.Engagement{Status: "paused", StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eng.Covers(march2025))
		})
	}
}
