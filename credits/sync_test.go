package credits_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/creative-boost/credits"
)

// seedEngagement registers an active open-ended engagement with one Creative-Boost line.
func seedEngagement(t *testing.T, f *fixture, engagementID, clientID, serviceLineID string, maxCredits *string) {
	t.Helper()
	require.NoError(t, f.dir.SaveEngagement(f.ctx, credits.Engagement{
		ID:        engagementID,
		ClientID:  clientID,
		Status:    credits.EngagementStatusActive,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}))
	line := credits.EngagementService{
		ID:           serviceLineID,
		EngagementID: engagementID,
		ServiceID:    credits.DefaultBoostServiceID,
	}
	if maxCredits != nil {
		line.MaxCredits = decPtr(*maxCredits)
		line.MinCredits = decPtr("20")
		line.PricePerCredit = decPtr("1000")
	}
	require.NoError(t, f.dir.SaveEngagementService(f.ctx, line))
}

func TestSync_CreatesFromBillingLineDefaults(t *testing.T) {
	// GIVEN: An active engagement whose line defaults to max 45
	// WHEN: Syncing March with no previous month
	// THEN: One linked row with the line's values, and a client config

	f := newFixture(t, credits.DefaultOptions())
	seedEngagement(t, f, "eng-1", "acme", "es-1", strPtr("45"))

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{Created: 1}, res)

	m, err := f.svc.GetClientMonthByClientID(f.ctx, "acme", march2025)
	require.NoError(t, err)
	require.NotNil(t, m)
	assertDecimal(t, "20", m.MinCredits)
	assertDecimal(t, "45", m.MaxCredits)
	assertDecimal(t, "1000", m.PricePerCredit)
	require.NotNil(t, m.EngagementServiceID)
	assert.Equal(t, "es-1", *m.EngagementServiceID)
	require.NotNil(t, m.EngagementID)
	assert.Equal(t, "eng-1", *m.EngagementID)

	cfg, err := f.svc.GetClientConfig(f.ctx, "acme")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestSync_FallsBackToPackageDefaults(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())
	seedEngagement(t, f, "eng-1", "acme", "es-1", nil)

	_, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)

	m, err := f.svc.GetClientMonthByClientID(f.ctx, "acme", march2025)
	require.NoError(t, err)
	assertDecimal(t, "30", m.MinCredits)
	assertDecimal(t, "50", m.MaxCredits)
	assertDecimal(t, "1500", m.PricePerCredit)
}

func TestSync_CarriesPreviousMonthForward(t *testing.T) {
	// GIVEN: March synced from a line with max 45, then edited to max 40 and col-7
	// WHEN: Syncing April
	// THEN: April has max 40 and col-7, not the line's 45

	f := newFixture(t, credits.DefaultOptions())
	seedEngagement(t, f, "eng-1", "acme", "es-1", strPtr("45"))
	_, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)

	march, err := f.svc.GetClientMonthByClientID(f.ctx, "acme", march2025)
	require.NoError(t, err)
	_, err = f.svc.UpdateClientMonth(f.ctx, alice, march.ID, credits.ClientMonthPatch{
		MaxCredits:  decPtr("40"),
		ColleagueID: strPtr("col-7"),
	})
	require.NoError(t, err)

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, april2025)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	april, err := f.svc.GetClientMonthByClientID(f.ctx, "acme", april2025)
	require.NoError(t, err)
	require.NotNil(t, april)
	assertDecimal(t, "40", april.MaxCredits)
	require.NotNil(t, april.ColleagueID)
	assert.Equal(t, "col-7", *april.ColleagueID)
}

func TestSync_CarriesForwardUnlinkedPreviousRow(t *testing.T) {
	// GIVEN: Acme added to March by hand with max 33 and colleague c9, and an
	//        engagement starting in April whose line defaults to max 45
	// WHEN: Syncing April
	// THEN: The unlinked March row is found by client and carried forward

	f := newFixture(t, credits.DefaultOptions())
	_, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, &credits.MonthSettings{
		MaxCredits:  decPtr("33"),
		ColleagueID: strPtr("c9"),
	})
	require.NoError(t, err)

	require.NoError(t, f.dir.SaveEngagement(f.ctx, credits.Engagement{
		ID: "eng-1", ClientID: "acme", Status: credits.EngagementStatusActive,
		StartDate: april2025.Start(),
	}))
	require.NoError(t, f.dir.SaveEngagementService(f.ctx, credits.EngagementService{
		ID: "es-1", EngagementID: "eng-1", ServiceID: credits.DefaultBoostServiceID,
		MaxCredits: decPtr("45"),
	}))

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, april2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{Created: 1}, res)

	april, err := f.svc.GetClientMonthByClientID(f.ctx, "acme", april2025)
	require.NoError(t, err)
	require.NotNil(t, april)
	assertDecimal(t, "33", april.MaxCredits)
	require.NotNil(t, april.ColleagueID)
	assert.Equal(t, "c9", *april.ColleagueID)
	require.NotNil(t, april.EngagementServiceID)
	assert.Equal(t, "es-1", *april.EngagementServiceID)
}

func TestSync_Idempotent(t *testing.T) {
	// GIVEN: Two engagements already synced for March
	// WHEN: Syncing March again
	// THEN: Nothing is created and the ledger still has two rows

	f := newFixture(t, credits.DefaultOptions())
	seedEngagement(t, f, "eng-1", "acme", "es-1", nil)
	seedEngagement(t, f, "eng-2", "globex", "es-2", nil)

	first, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{Skipped: 2}, second)

	rows, err := f.svc.GetClientsForMonth(f.ctx, march2025)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSync_LinksExistingManualRow(t *testing.T) {
	// GIVEN: Acme added manually to March (no engagement link)
	// WHEN: Syncing March with an engagement for Acme
	// THEN: The manual row is linked, no second budget appears

	f := newFixture(t, credits.DefaultOptions())
	manual, err := f.svc.AddClientToMonth(f.ctx, alice, "acme", march2025, &credits.MonthSettings{MaxCredits: decPtr("33")})
	require.NoError(t, err)
	seedEngagement(t, f, "eng-1", "acme", "es-1", nil)

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{Linked: 1}, res)

	m, err := f.svc.GetClientMonth(f.ctx, manual.ID)
	require.NoError(t, err)
	require.NotNil(t, m.EngagementServiceID)
	assert.Equal(t, "es-1", *m.EngagementServiceID)
	assertDecimal(t, "33", m.MaxCredits)

	rows, err := f.svc.GetClientsForMonth(f.ctx, march2025)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSync_SkipsSecondLineForSameClient(t *testing.T) {
	// GIVEN: Acme with two active engagements, each with a Creative-Boost line
	// WHEN: Syncing March
	// THEN: The first line gets the row, the second is skipped; one budget only

	f := newFixture(t, credits.DefaultOptions())
	seedEngagement(t, f, "eng-1", "acme", "es-1", nil)
	seedEngagement(t, f, "eng-2", "acme", "es-2", nil)

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{Created: 1, Skipped: 1}, res)

	rows, err := f.svc.GetClientsForMonth(f.ctx, march2025)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].EngagementServiceID)

	again, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{Skipped: 2}, again)
}

func TestSync_IgnoresInactiveAndOtherServices(t *testing.T) {
	f := newFixture(t, credits.DefaultOptions())
	require.NoError(t, f.dir.SaveEngagement(f.ctx, credits.Engagement{
		ID: "eng-old", ClientID: "acme", Status: "cancelled",
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, f.dir.SaveEngagementService(f.ctx, credits.EngagementService{
		ID: "es-old", EngagementID: "eng-old", ServiceID: credits.DefaultBoostServiceID,
	}))
	require.NoError(t, f.dir.SaveEngagement(f.ctx, credits.Engagement{
		ID: "eng-seo", ClientID: "globex", Status: credits.EngagementStatusActive,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, f.dir.SaveEngagementService(f.ctx, credits.EngagementService{
		ID: "es-seo", EngagementID: "eng-seo", ServiceID: "seo",
	}))

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, credits.SyncResult{}, res)

	rows, err := f.svc.GetClientsForMonth(f.ctx, march2025)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSync_CustomBoostServiceID(t *testing.T) {
	opts := credits.DefaultOptions()
	opts.BoostServiceID = "boost-v2"
	f := newFixture(t, opts)
	require.NoError(t, f.dir.SaveEngagement(f.ctx, credits.Engagement{
		ID: "eng-1", ClientID: "acme", Status: credits.EngagementStatusActive,
		StartDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, f.dir.SaveEngagementService(f.ctx, credits.EngagementService{
		ID: "es-1", EngagementID: "eng-1", ServiceID: "boost-v2",
	}))

	res, err := f.svc.EnsureClientMonthsForActiveEngagements(f.ctx, credits.SystemActor, march2025)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}
