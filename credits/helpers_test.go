package credits_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/creative-boost/credits"
	"github.com/warp/creative-boost/credits/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	march2025 = credits.NewPeriod(2025, time.March)
	april2025 = credits.NewPeriod(2025, time.April)

	alice = credits.Actor{ID: "user-alice", FullName: "Alice Martin"}
)

type fixture struct {
	ctx   context.Context
	svc   *credits.Service
	store *store.Memory
	dir   *store.Directory
}

// newFixture wires a Service over memory stores with deterministic ids and a
// clock that advances one minute per call.
func newFixture(t *testing.T, opts credits.Options, extra ...credits.ServiceOption) *fixture {
	t.Helper()

	mem := store.NewMemory()
	dir := store.NewDirectory()
	ctx := context.Background()

	seq := 0
	clock := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	options := []credits.ServiceOption{
		credits.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		credits.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	}
	svc := credits.NewService(mem, dir, dir, opts, append(options, extra...)...)

	require.NoError(t, mem.SaveOutputType(ctx, credits.OutputType{ID: "design", Name: "Design", BaseCredits: dec("2"), IsActive: true}))
	require.NoError(t, mem.SaveOutputType(ctx, credits.OutputType{ID: "video", Name: "Video", BaseCredits: dec("5"), IsActive: true}))
	require.NoError(t, dir.SaveClient(ctx, credits.Client{ID: "acme", Name: "Acme", BrandName: "Acme Brand"}))
	require.NoError(t, dir.SaveClient(ctx, credits.Client{ID: "globex", Name: "Globex", BrandName: "Globex Co"}))

	return &fixture{ctx: ctx, svc: svc, store: mem, dir: dir}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func statusPtr(s credits.Status) *credits.Status { return &s }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

func (f *fixture) setOutput(t *testing.T, clientID, outputTypeID string, p credits.Period, normal, express int) *credits.ClientMonthOutput {
	t.Helper()
	o, err := f.svc.UpdateClientOutput(f.ctx, alice, clientID, outputTypeID, p, credits.OutputPatch{
		NormalCount:  intPtr(normal),
		ExpressCount: intPtr(express),
	})
	require.NoError(t, err)
	return o
}
