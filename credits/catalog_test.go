package credits_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/creative-boost/credits"
)

func TestOutputTypes_CreateDeactivateList(t *testing.T) {
	// GIVEN: The seeded catalog (Design, Video)
	// WHEN: Creating Copy and deactivating Video
	// THEN: Active listing shows Copy and Design, full listing shows all three

	f := newFixture(t, credits.DefaultOptions())

	created, err := f.svc.CreateOutputType(f.ctx, alice, "  Copy ", dec("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "Copy", created.Name)
	assert.True(t, created.IsActive)

	inactive := false
	updated, err := f.svc.UpdateOutputType(f.ctx, alice, "video", credits.OutputTypePatch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := f.svc.ListOutputTypes(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Copy", active[0].Name)
	assert.Equal(t, "Design", active[1].Name)

	all, err := f.svc.ListOutputTypes(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOutputTypes_DeactivatedTypeStillPrices(t *testing.T) {
	// Deactivation hides a type from pickers but existing rows keep their credits.
	f := newFixture(t, credits.DefaultOptions())
	_, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)
	f.setOutput(t, "acme", "video", march2025, 2, 0)

	inactive := false
	_, err = f.svc.UpdateOutputType(f.ctx, alice, "video", credits.OutputTypePatch{IsActive: &inactive})
	require.NoError(t, err)

	summaries, err := f.svc.GetClientMonthSummaries(f.ctx, march2025)
	require.NoError(t, err)
	assertDecimal(t, "10", summaries[0].UsedCredits)
}

func TestUpdateOutputType_Unknown(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	_, err := f.svc.UpdateOutputType(f.ctx, alice, "missing", credits.OutputTypePatch{Name: strPtr("X")})

	assert.ErrorIs(t, err, credits.ErrOutputTypeNotFound)
}

func TestCreateOutputType_Validation(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	_, err := f.svc.CreateOutputType(f.ctx, alice, " ", dec("1"))
	assert.ErrorIs(t, err, credits.ErrMissingField)

	_, err = f.svc.CreateOutputType(f.ctx, alice, "Banner", dec("-2"))
	assert.ErrorIs(t, err, credits.ErrInvalidCredits)
}

func TestUpsertClientConfig_KeepsCreatedAt(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	first, err := f.svc.UpsertClientConfig(f.ctx, alice, credits.ClientCreditConfig{ClientID: "acme", IsActive: true, DefaultMaxCredits: dec("10")})
	require.NoError(t, err)
	second, err := f.svc.UpsertClientConfig(f.ctx, alice, credits.ClientCreditConfig{ClientID: "acme", IsActive: false, DefaultMaxCredits: dec("20")})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	configs, err := f.svc.ListClientConfigs(f.ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.False(t, configs[0].IsActive)
	assertDecimal(t, "20", configs[0].DefaultMaxCredits)
}
