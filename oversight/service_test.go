package oversight_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerline/payroll-engine/engine"
	"github.com/ledgerline/payroll-engine/oversight"
	"github.com/ledgerline/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*oversight.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return oversight.NewService(store, zap.NewNop()), store
}

func money(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func upsertInput(rate float64, lines ...engine.PayLine) oversight.UpsertEarningsInput {
	begin := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	return oversight.UpsertEarningsInput{
		AssignmentID: "mgr-asgn-1",
		PayeeID:      "manager-1",
		FlatRate:     money(rate),
		Period: engine.PeriodInput{
			PaystubID:   "stub-1",
			PeriodBegin: begin,
			PeriodEnd:   begin.AddDate(0, 0, 13),
			GrossPay:    money(1350),
			Lines:       lines,
		},
	}
}

func payLine(desc string, hours, rate, amount float64) engine.PayLine {
	return engine.PayLine{
		Description: desc,
		Hours:       decimal.NewFromFloat(hours),
		Rate:        decimal.NewFromFloat(rate),
		Amount:      decimal.NewFromFloat(amount),
	}
}

// =============================================================================
// FLAT-RATE EARNINGS TESTS
// =============================================================================

func TestUpsertEarnings_FlatRateOnSupervisedHours(t *testing.T) {
	// GIVEN: A supervised paystub with 80 billable hours and a premium line
	// WHEN: Upserting oversight earnings at $2.00/hr
	// THEN: Premium hours are excluded; the record totals 160

	svc, _ := newTestService(t)

	rec, err := svc.UpsertEarnings(context.Background(), upsertInput(2,
		payLine("Regular", 70, 15, 1050),
		payLine("Overtime", 10, 22.50, 225),
		payLine("Overtime Premium", 10, 7.50, 75),
	))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, engine.PayeeOversight, rec.PayeeKind)
	assert.True(t, rec.TotalHours.Equal(money(80)))
	assert.True(t, rec.TotalEarnings.Equal(money(160)))
	assert.True(t, rec.FlatHourlyRate.Equal(money(2)))
	assert.Equal(t, engine.StatusUnpaid, rec.PaymentStatus)
	assert.True(t, rec.AmountPending.Equal(money(160)))
}

func TestUpsertEarnings_RateChangeReplacesInPlace(t *testing.T) {
	// GIVEN: Oversight earnings recorded at $2.00/hr
	// WHEN: The paystub is reprocessed at $2.50/hr
	// THEN: The same record is updated, not duplicated

	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertEarnings(ctx, upsertInput(2, payLine("Regular", 80, 15, 1200)))
	require.NoError(t, err)

	second, err := svc.UpsertEarnings(ctx, upsertInput(2.5, payLine("Regular", 80, 15, 1200)))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.TotalEarnings.Equal(money(200)))

	records, err := store.EarningsByPaystub(ctx, "stub-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUpsertEarnings_ZeroHourPeriodSkipped(t *testing.T) {
	// GIVEN: A paystub whose only line is supplemental
	// WHEN: Upserting oversight earnings
	// THEN: No record is created

	svc, store := newTestService(t)
	ctx := context.Background()

	rec, err := svc.UpsertEarnings(ctx, upsertInput(2, payLine("Gross Up", 0, 0, 50)))
	require.NoError(t, err)
	assert.Nil(t, rec)

	records, err := store.EarningsByPaystub(ctx, "stub-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpsertEarnings_RejectsNonPositiveRate(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpsertEarnings(context.Background(), upsertInput(0, payLine("Regular", 80, 15, 1200)))
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestUpsertEarnings_SeparateFromContractorRecord(t *testing.T) {
	// GIVEN: A contractor record already on the paystub
	// WHEN: Oversight earnings are added for the same paystub
	// THEN: Both records coexist under their own payee kinds

	svc, store := newTestService(t)
	ctx := context.Background()

	contractorRec := &engine.EarningsRecord{
		AssignmentID:  "asgn-1",
		PaystubID:     "stub-1",
		PayeeID:       "payee-1",
		PayeeKind:     engine.PayeeContractor,
		TotalEarnings: money(320),
		PaymentStatus: engine.StatusUnpaid,
		AmountPending: money(320),
	}
	_, err := store.UpsertEarnings(ctx, contractorRec)
	require.NoError(t, err)

	_, err = svc.UpsertEarnings(ctx, upsertInput(2, payLine("Regular", 80, 15, 1200)))
	require.NoError(t, err)

	records, err := store.EarningsByPaystub(ctx, "stub-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
