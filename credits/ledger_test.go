package credits_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/creative-boost/credits"
)

// =============================================================================
// CREATE
// =============================================================================

func TestAddClientToMonth_Idempotent(t *testing.T) {
	// GIVEN: Acme is already on the March ledger with max 40
	// WHEN: Adding Acme to March again with max 90
	// THEN: The stored row is returned unchanged and only one row exists

	f := newFixture(t, credits.DefaultOptions())

	first, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, &credits.MonthSettings{MaxCredits: decPtr("40")})
	require.NoError(t, err)

	second, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, &credits.MonthSettings{MaxCredits: decPtr("90")})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assertDecimal(t, "40", second.MaxCredits)

	rows, err := f.svc.GetClientsForMonth(f.ctx, march2025)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnsureClientInMonth_ReportsCreationOnce(t *testing.T) {
	// GIVEN: Acme not yet on March
	// WHEN: Eight callers add Acme to March at the same time
	// THEN: Exactly one of them reports the creation and all see the same row

	f := newFixture(t, credits.DefaultOptions())

	const callers = 8
	var (
		wg      sync.WaitGroup
		created = make([]bool, callers)
		ids     = make([]string, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, ok, err := f.svc.EnsureClientInMonth(f.ctx, alice, "acme", march2025, nil)
			created[i], errs[i] = ok, err
			if m != nil {
				ids[i] = m.ID
			}
		}(i)
	}
	wg.Wait()

	creations := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			creations++
		}
	}
	assert.Equal(t, 1, creations)
}

func TestAddClientToMonth_FallbackDefaults(t *testing.T) {
	// GIVEN: No settings and no client config
	// WHEN: Adding a client
	// THEN: 30 / 50 / 1500 are used and a config is created lazily

	f := newFixture(t, credits.DefaultOptions())

	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	assertDecimal(t, "30", m.MinCredits)
	assertDecimal(t, "50", m.MaxCredits)
	assertDecimal(t, "1500", m.PricePerCredit)
	assert.Equal(t, credits.StatusActive, m.Status)

	cfg, err := f.svc.GetClientConfig(f.ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, cfg, "client config should be created lazily")
	assert.True(t, cfg.IsActive)
	assertDecimal(t, "50", cfg.DefaultMaxCredits)
}

func TestAddClientToMonth_ResolutionOrder(t *testing.T) {
	// GIVEN: A client config with 10 / 20 / 900
	// WHEN: Adding with only an explicit max of 25
	// THEN: max comes from settings, min and price from the config

	f := newFixture(t, credits.DefaultOptions())
	_, err := f.svc.UpsertClientConfig(f.ctx, alice, credits.ClientCreditConfig{
		ClientID:              "acme",
		IsActive:              true,
		DefaultMinCredits:     dec("10"),
		DefaultMaxCredits:     dec("20"),
		DefaultPricePerCredit: dec("900"),
	})
	require.NoError(t, err)

	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, &credits.MonthSettings{
		MaxCredits:  decPtr("25"),
		ColleagueID: strPtr("col-1"),
	})
	require.NoError(t, err)

	assertDecimal(t, "10", m.MinCredits)
	assertDecimal(t, "25", m.MaxCredits)
	assertDecimal(t, "900", m.PricePerCredit)
	require.NotNil(t, m.ColleagueID)
	assert.Equal(t, "col-1", *m.ColleagueID)
}

func TestAddClientToMonth_RejectsNegativeCredits(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	_, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, &credits.MonthSettings{MaxCredits: decPtr("-1")})

	assert.ErrorIs(t, err, credits.ErrInvalidCredits)
}

func TestAddClientToMonth_RejectsInvalidPeriod(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	_, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", credits.NewPeriod(2025, 0), nil)

	assert.ErrorIs(t, err, credits.ErrInvalidPeriod)
}

// =============================================================================
// DELETE
// =============================================================================

func TestRemoveClientFromMonth_Cascades(t *testing.T) {
	// GIVEN: Acme on March with two output rows, and Acme on April with one
	// WHEN: Removing Acme from March
	// THEN: March row and outputs are gone, April is untouched

	f := newFixture(t, credits.DefaultOptions())
	_, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)
	_, err = f.svc.AddClientToMonth(f.ctx, alice, "acme", april2025, nil)
	require.NoError(t, err)
	f.setOutput(t, "acme", "design", march2025, 2, 0)
	f.setOutput(t, "acme", "video", march2025, 0, 1)
	f.setOutput(t, "acme", "design", april2025, 1, 0)

	require.NoError(t, f.svc.RemoveClientFromMonth(f.ctx, alice, "acme", march2025))

	m, err := f.svc.GetClientMonthByClientID(f.ctx, "acme", march2025)
	require.NoError(t, err)
	assert.Nil(t, m)

	outputs, err := f.svc.GetClientOutputs(f.ctx, "acme", march2025)
	require.NoError(t, err)
	assert.Empty(t, outputs)

	april, err := f.svc.GetClientOutputs(f.ctx, "acme", april2025)
	require.NoError(t, err)
	assert.Len(t, april, 1)
}

func TestRemoveClientFromMonth_AbsentIsNoop(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	assert.NoError(t, f.svc.RemoveClientFromMonth(f.ctx, alice, "acme", march2025))
}

// =============================================================================
// UPDATE + AUDIT
// =============================================================================

func TestUpdateClientMonth_RecordsMaxCreditsChange(t *testing.T) {
	// GIVEN: A row with max 50
	// WHEN: Changing max to 60
	// THEN: Exactly one audit row: max_credits 50 -> 60, attributed to Alice

	f := newFixture(t, credits.DefaultOptions())
	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	updated, err := f.svc.UpdateClientMonth(f.ctx, alice, m.ID, credits.ClientMonthPatch{MaxCredits: decPtr("60")})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assertDecimal(t, "60", updated.MaxCredits)
	assert.True(t, updated.UpdatedAt.After(m.UpdatedAt))

	history, err := f.svc.GetSettingsHistory(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, credits.ChangeMaxCredits, history[0].ChangeType)
	assert.Equal(t, credits.LabelMaxCredits, history[0].FieldName)
	assert.Equal(t, "50", history[0].OldValue)
	assert.Equal(t, "60", history[0].NewValue)
	assert.Equal(t, alice.ID, history[0].ChangedBy)
	assert.Equal(t, alice.FullName, history[0].ChangedByName)
	assert.Equal(t, "acme", history[0].ClientID)
	assert.Equal(t, march2025, history[0].Period)
}

func TestUpdateClientMonth_ThreeFieldsThreeEntries(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())
	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateClientMonth(f.ctx, alice, m.ID, credits.ClientMonthPatch{
		MaxCredits:     decPtr("70"),
		PricePerCredit: decPtr("1200"),
		Status:         statusPtr(credits.StatusInactive),
	})
	require.NoError(t, err)

	history, err := f.svc.GetSettingsHistory(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	byType := map[credits.ChangeType]credits.SettingsChange{}
	for _, c := range history {
		byType[c.ChangeType] = c
	}
	assert.Equal(t, "1500", byType[credits.ChangePricePerCredit].OldValue)
	assert.Equal(t, "1200", byType[credits.ChangePricePerCredit].NewValue)
	assert.Equal(t, "active", byType[credits.ChangeStatus].OldValue)
	assert.Equal(t, "inactive", byType[credits.ChangeStatus].NewValue)
}

func TestUpdateClientMonth_UntrackedAndUnchangedFieldsNotAudited(t *testing.T) {
	// GIVEN: A row with max 50
	// WHEN: Setting max to 50.0 and changing min and colleague
	// THEN: No audit rows (min and colleague are not tracked, 50.0 equals 50)

	f := newFixture(t, credits.DefaultOptions())
	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	updated, err := f.svc.UpdateClientMonth(f.ctx, alice, m.ID, credits.ClientMonthPatch{
		MaxCredits:  decPtr("50.0"),
		MinCredits:  decPtr("5"),
		ColleagueID: strPtr("col-9"),
	})
	require.NoError(t, err)
	assertDecimal(t, "5", updated.MinCredits)
	assert.Equal(t, "col-9", *updated.ColleagueID)

	history, err := f.svc.GetSettingsHistory(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpdateClientMonth_StatusRoundTrip(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())
	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateClientMonth(f.ctx, alice, m.ID, credits.ClientMonthPatch{Status: statusPtr(credits.StatusInactive)})
	require.NoError(t, err)
	back, err := f.svc.UpdateClientMonth(f.ctx, alice, m.ID, credits.ClientMonthPatch{Status: statusPtr(credits.StatusActive)})
	require.NoError(t, err)
	assert.Equal(t, credits.StatusActive, back.Status)

	history, err := f.svc.GetSettingsHistory(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "inactive", history[0].NewValue, "history is oldest first")
	assert.Equal(t, "active", history[1].NewValue)
}

func TestUpdateClientMonth_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())
	m, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateClientMonth(f.ctx, alice, m.ID, credits.ClientMonthPatch{Status: statusPtr("archived")})

	assert.ErrorIs(t, err, credits.ErrInvalidStatus)
}

func TestUpdateClientMonth_MissingID_SilentByDefault(t *testing.T) {
	// GIVEN: Default options
	// WHEN: Updating an id that does not exist
	// THEN: No error and no row (the update is dropped)

	f := newFixture(t, credits.DefaultOptions())

	m, err := f.svc.UpdateClientMonth(f.ctx, alice, "missing", credits.ClientMonthPatch{MaxCredits: decPtr("60")})

	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestUpdateClientMonth_MissingID_StrictMode(t *testing.T) {
	// GIVEN: StrictUpdates enabled
	// WHEN: Updating an id that does not exist
	// THEN: ErrClientMonthNotFound

	opts := credits.DefaultOptions()
	opts.StrictUpdates = true
	f := newFixture(t, opts)

	_, err := f.svc.UpdateClientMonth(f.ctx, alice, "missing", credits.ClientMonthPatch{MaxCredits: decPtr("60")})

	assert.ErrorIs(t, err, credits.ErrClientMonthNotFound)
	assert.True(t, credits.IsNotFound(err))
}

// =============================================================================
// LOOKUPS
// =============================================================================

func TestGetAvailableClientsForMonth(t *testing.T) {
	// GIVEN: Active configs for acme and globex, inactive for initech; acme on March
	// WHEN: Listing available clients for March
	// THEN: Only globex

	f := newFixture(t, credits.DefaultOptions())
	for _, cfg := range []credits.ClientCreditConfig{
		{ClientID: "acme", IsActive: true},
		{ClientID: "globex", IsActive: true},
		{ClientID: "initech", IsActive: false},
	} {
		_, err := f.svc.UpsertClientConfig(f.ctx, alice, cfg)
		require.NoError(t, err)
	}
	_, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, nil)
	require.NoError(t, err)

	available, err := f.svc.GetAvailableClientsForMonth(f.ctx, march2025)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "globex", available[0].ClientID)
}

func TestGetClientMonth_UnknownReturnsNil(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())

	m, err := f.svc.GetClientMonth(f.ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = f.svc.GetClientMonthByClientID(f.ctx, "acme", march2025)
	assert.NoError(t, err)
	assert.Nil(t, m)
}
