package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/creative-boost/credits"
	"github.com/warp/creative-boost/credits/store"
)

var march = credits.NewPeriod(2025, time.March)

func esID(s string) *string { return &s }

func TestMemory_ClientMonthUniqueness(t *testing.T) {
	// GIVEN: Acme on March linked to es-1
	// WHEN: Inserting a second Acme/March row, or another client on es-1/March
	// THEN: Both are rejected with ErrDuplicateClientMonth

	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-1", ClientID: "acme", Period: march, EngagementServiceID: esID("es-1")}))

	err := m.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-2", ClientID: "acme", Period: march})
	assert.ErrorIs(t, err, credits.ErrDuplicateClientMonth)

	err = m.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-3", ClientID: "globex", Period: march, EngagementServiceID: esID("es-1")})
	assert.ErrorIs(t, err, credits.ErrDuplicateClientMonth)

	// Same client, next month is fine
	assert.NoError(t, m.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-4", ClientID: "acme", Period: march.Next()}))
}

func TestMemory_OutputUniqueness(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-1", ClientID: "acme", OutputTypeID: "design", Period: march, NormalCount: 1}))

	// Upsert by id
	require.NoError(t, m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-1", ClientID: "acme", OutputTypeID: "design", Period: march, NormalCount: 4}))

	err := m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-2", ClientID: "acme", OutputTypeID: "design", Period: march, NormalCount: 1})
	assert.ErrorIs(t, err, credits.ErrDuplicateOutput)

	o, err := m.FindOutput(ctx, "acme", "design", march)
	require.NoError(t, err)
	assert.Equal(t, 4, o.NormalCount)
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: A transaction writes a row, an output and an audit row, then fails
	// THEN: None of the writes survive

	ctx := context.Background()
	m := store.NewMemory()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx credits.Store) error {
		require.NoError(t, tx.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-1", ClientID: "acme", Period: march}))
		require.NoError(t, tx.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-1", ClientID: "acme", OutputTypeID: "design", Period: march, NormalCount: 1}))
		require.NoError(t, tx.AppendSettingsChange(ctx, credits.SettingsChange{ID: "sc-1", ClientMonthID: "cm-1"}))

		found, err := tx.FindClientMonth(ctx, "acme", march)
		require.NoError(t, err)
		require.NotNil(t, found, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cm, err := m.FindClientMonth(ctx, "acme", march)
	require.NoError(t, err)
	assert.Nil(t, cm)

	outputs, err := m.ListOutputs(ctx, credits.OutputFilter{ClientID: "acme"})
	require.NoError(t, err)
	assert.Empty(t, outputs)

	changes, err := m.ListSettingsChanges(ctx, "cm-1")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestMemory_WithTx_RestoresExistingRowsOnError(t *testing.T) {
	// GIVEN: Acme on March with a design output, an audit row and other clients' data
	// WHEN: A transaction updates the row, deletes the output twice over, rewrites
	//       the row again and appends audit, then fails
	// THEN: The committed state is back exactly, including untouched rows

	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-1", ClientID: "acme", Period: march, Status: credits.StatusActive}))
	require.NoError(t, m.InsertClientMonth(ctx, credits.ClientMonth{ID: "cm-2", ClientID: "globex", Period: march}))
	require.NoError(t, m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-1", ClientID: "acme", OutputTypeID: "design", Period: march, NormalCount: 2}))
	require.NoError(t, m.AppendSettingsChange(ctx, credits.SettingsChange{ID: "sc-1", ClientMonthID: "cm-1"}))
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx credits.Store) error {
		require.NoError(t, tx.UpdateClientMonth(ctx, credits.ClientMonth{ID: "cm-1", ClientID: "acme", Period: march, Status: credits.StatusInactive}))
		require.NoError(t, tx.DeleteOutput(ctx, "o-1"))
		require.NoError(t, tx.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-2", ClientID: "acme", OutputTypeID: "design", Period: march, NormalCount: 9}))
		require.NoError(t, tx.DeleteOutputs(ctx, "acme", march))
		require.NoError(t, tx.DeleteClientMonth(ctx, "cm-1"))
		require.NoError(t, tx.AppendSettingsChange(ctx, credits.SettingsChange{ID: "sc-2", ClientMonthID: "cm-1"}))
		require.NoError(t, tx.SaveClientConfig(ctx, credits.ClientCreditConfig{ClientID: "acme"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cm, err := m.GetClientMonth(ctx, "cm-1")
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(t, credits.StatusActive, cm.Status)

	other, err := m.GetClientMonth(ctx, "cm-2")
	require.NoError(t, err)
	assert.NotNil(t, other)

	outputs, err := m.ListOutputs(ctx, credits.OutputFilter{ClientID: "acme"})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "o-1", outputs[0].ID)
	assert.Equal(t, 2, outputs[0].NormalCount)

	changes, err := m.ListSettingsChanges(ctx, "cm-1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "sc-1", changes[0].ID)

	cfg, err := m.GetClientConfig(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestMemory_WithTx_Commits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.WithTx(ctx, func(tx credits.Store) error {
		return tx.SaveClientConfig(ctx, credits.ClientCreditConfig{ClientID: "acme", IsActive: true})
	})
	require.NoError(t, err)

	cfg, err := m.GetClientConfig(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.IsActive)
}

func TestMemory_ListOutputs_Filter(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	col := "col-1"
	require.NoError(t, m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-1", ClientID: "acme", OutputTypeID: "design", Period: march, ColleagueID: &col}))
	require.NoError(t, m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-2", ClientID: "acme", OutputTypeID: "video", Period: march.Next()}))
	require.NoError(t, m.SaveOutput(ctx, credits.ClientMonthOutput{ID: "o-3", ClientID: "globex", OutputTypeID: "design", Period: march, ColleagueID: &col}))

	byColleague, err := m.ListOutputs(ctx, credits.OutputFilter{ColleagueID: "col-1"})
	require.NoError(t, err)
	assert.Len(t, byColleague, 2)

	byMonth, err := m.ListOutputs(ctx, credits.OutputFilter{ClientID: "acme", Year: 2025, Month: time.April})
	require.NoError(t, err)
	require.Len(t, byMonth, 1)
	assert.Equal(t, "o-2", byMonth[0].ID)
}

func TestDirectory_ListEngagementServices(t *testing.T) {
	ctx := context.Background()
	d := store.NewDirectory()
	require.NoError(t, d.SaveEngagementService(ctx, credits.EngagementService{ID: "es-2", ServiceID: "creative_boost"}))
	require.NoError(t, d.SaveEngagementService(ctx, credits.EngagementService{ID: "es-1", ServiceID: "creative_boost"}))
	require.NoError(t, d.SaveEngagementService(ctx, credits.EngagementService{ID: "es-3", ServiceID: "seo"}))

	lines, err := d.ListEngagementServices(ctx, "creative_boost")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "es-1", lines[0].ID)

	c, err := d.GetClient(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, c)
}
