package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/allowance/store"
	"github.com/warp/shift-allowance/service"
)

func fixedNow() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got}, msgAndArgs...)...)
}

func rec(emp, client, dept, duration, payroll string, shifts map[string]string) allowance.Record {
	r := allowance.Record{
		EmployeeID:     emp,
		EmployeeName:   "Name " + emp,
		Client:         client,
		Department:     dept,
		AccountManager: "Manager " + client,
		DurationMonth:  allowance.MustParseMonth(duration),
		PayrollMonth:   allowance.MustParseMonth(payroll),
		Shifts:         map[allowance.ShiftType]decimal.Decimal{},
	}
	for st, d := range shifts {
		r.Shifts[allowance.ShiftType(st)] = dec(d)
	}
	return r
}

// countingStore counts row fetches so tests can prove validation happens first.
type countingStore struct {
	*store.Memory
	rowFetches int
}

func (c *countingStore) RowsFor(ctx context.Context, q allowance.RowQuery) ([]allowance.Assignment, error) {
	c.rowFetches++
	return c.Memory.RowsFor(ctx, q)
}

type fixture struct {
	store *countingStore
	svc   *service.Service
	cache *allowance.MemoryCache
}

func newFixture(t *testing.T, records ...allowance.Record) fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	for _, r := range []allowance.Rate{
		{ShiftType: allowance.ShiftA, Year: 2024, Amount: dec("500")},
		{ShiftType: allowance.ShiftB, Year: 2024, Amount: dec("350")},
		{ShiftType: allowance.ShiftC, Year: 2024, Amount: dec("100")},
		{ShiftType: allowance.ShiftPrime, Year: 2024, Amount: dec("700")},
	} {
		require.NoError(t, mem.SaveRate(ctx, r))
	}
	if len(records) > 0 {
		_, err := mem.Replace(ctx, allowance.Batch{ID: "seed", Records: records})
		require.NoError(t, err)
	}

	cs := &countingStore{Memory: mem}
	cache := allowance.NewMemoryCache()
	svc := service.New(cs, service.Options{
		Cache:   cache,
		Now:     fixedNow,
		Aliases: service.ClientAliases{"ACME": "Acme Corporation"},
	})
	return fixture{store: cs, svc: svc, cache: cache}
}

func TestClientSummary_SingleMonth(t *testing.T) {
	// GIVEN: E1 worked 2 days of shift A for Acme in January 2024 at 500/day
	// WHEN: Summarizing January 2024
	// THEN: Every level totals 1000 with one head

	fx := newFixture(t, rec("E1", "Acme Corporation", "IT", "2024-01", "2024-02", map[string]string{"A": "2"}))

	got, err := fx.svc.ClientSummary(context.Background(), service.SummaryRequest{
		Criteria: allowance.Criteria{StartMonth: "2024-01"},
		Clients:  allowance.AllClients(),
	})
	require.NoError(t, err)
	require.Len(t, got.Forest.Periods, 1)

	p := got.Forest.Periods[0]
	assert.Equal(t, "2024-01", p.Key)
	assertDec(t, "1000", p.Total.Total)
	assert.Equal(t, 1, p.Total.HeadCount)

	c, ok := p.Client("acme corporation")
	require.True(t, ok)
	assertDec(t, "2", c.Days.A)
	assertDec(t, "1000", c.Allowance.A)
}

func TestClientSummary_RangeWithDeltasAndPlaceholder(t *testing.T) {
	// GIVEN: Data in January and March only
	// WHEN: Summarizing January through March with deltas
	// THEN: February is a placeholder and deltas compare consecutive periods

	fx := newFixture(t,
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "2"}),
		rec("E1", "Acme", "IT", "2024-03", "2024-04", map[string]string{"A": "3"}),
	)

	got, err := fx.svc.ClientSummary(context.Background(), service.SummaryRequest{
		Criteria:   allowance.Criteria{StartMonth: "2024-01", EndMonth: "2024-03"},
		WithDeltas: true,
	})
	require.NoError(t, err)
	require.Len(t, got.Forest.Periods, 3)
	assert.Equal(t, "No data found for 2024-02", got.Forest.Periods[1].Message)

	require.Len(t, got.Deltas, 3)
	assertDec(t, "0", got.Deltas[0].Deltas["Acme"])
	assertDec(t, "-1000", got.Deltas[1].Deltas["Acme"])
	assertDec(t, "1500", got.Deltas[2].Deltas["Acme"])
}

func TestClientSummary_InvalidCriteriaNeverFetches(t *testing.T) {
	fx := newFixture(t, rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "1"}))

	cases := []struct {
		name     string
		criteria allowance.Criteria
		want     error
	}{
		{"future year", allowance.Criteria{SelectedYear: 2030, SelectedMonths: []string{"01"}}, allowance.ErrInvalidYear},
		{"future month", allowance.Criteria{StartMonth: "2024-07"}, allowance.ErrFutureMonth},
		{"months without year", allowance.Criteria{SelectedMonths: []string{"01"}}, allowance.ErrInvalidCriteria},
		{"inverted range", allowance.Criteria{StartMonth: "2024-03", EndMonth: "2024-01"}, allowance.ErrInvalidRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.ClientSummary(context.Background(), service.SummaryRequest{Criteria: tc.criteria})
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, allowance.IsClientError(err))
		})
	}
	assert.Equal(t, 0, fx.store.rowFetches)
}

func TestClientSummary_DefaultsToLatestMonth(t *testing.T) {
	fx := newFixture(t,
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "1"}),
		rec("E2", "Acme", "IT", "2024-04", "2024-05", map[string]string{"B": "1"}),
	)

	got, err := fx.svc.ClientSummary(context.Background(), service.SummaryRequest{})
	require.NoError(t, err)
	require.Len(t, got.Forest.Periods, 1)
	assert.Equal(t, "2024-04", got.Forest.Periods[0].Key)
	assertDec(t, "350", got.Forest.Periods[0].Total.Total)
}

func TestClientSummary_EmptyStore(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.ClientSummary(context.Background(), service.SummaryRequest{})
	assert.ErrorIs(t, err, allowance.ErrNoDataAvailable)
	assert.True(t, allowance.IsNotFound(err))
}

func TestIntervalSummary_KeysByPayrollMonth(t *testing.T) {
	// GIVEN: Two duration months paid in the same payroll month
	// WHEN: Summarizing payroll month March
	// THEN: Both land in one period

	fx := newFixture(t,
		rec("E1", "Acme", "IT", "2024-01", "2024-03", map[string]string{"A": "1"}),
		rec("E2", "Acme", "IT", "2024-02", "2024-03", map[string]string{"C": "2"}),
	)

	f, err := fx.svc.IntervalSummary(context.Background(), "2024-03", "")
	require.NoError(t, err)
	require.Len(t, f.Periods, 1)
	assertDec(t, "700", f.Periods[0].Total.Total)
	assert.Equal(t, 2, f.Periods[0].Total.HeadCount)

	_, err = fx.svc.IntervalSummary(context.Background(), "", "2024-03")
	assert.ErrorIs(t, err, allowance.ErrInvalidCriteria)
}

func TestClientComparison(t *testing.T) {
	// GIVEN: Acme IT in January and February, Acme HR in February only
	// WHEN: Comparing January to March
	// THEN: Diffs, vertical totals, horizontal totals and a no-data March

	fx := newFixture(t,
		rec("E1", "Acme Corporation", "IT", "2024-01", "2024-02", map[string]string{"A": "2"}),
		rec("E1", "Acme Corporation", "IT", "2024-02", "2024-03", map[string]string{"A": "1"}),
		rec("E2", "Acme Corporation", "HR", "2024-02", "2024-03", map[string]string{"C": "1"}),
		rec("E3", "Globex", "IT", "2024-02", "2024-03", map[string]string{"A": "9"}),
	)

	got, err := fx.svc.ClientComparison(context.Background(), service.ComparisonRequest{
		Client:     "acme",
		StartMonth: "2024-01",
		EndMonth:   "2024-03",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", got.Client)
	assert.Equal(t, "ACME", got.ClientCode)
	require.Len(t, got.Months, 3)

	feb := got.Months[1]
	require.Len(t, feb.Departments, 2)
	assert.Equal(t, "HR", feb.Departments[0].Department)
	assertDec(t, "0", feb.Departments[0].Diff)
	assert.Equal(t, "IT", feb.Departments[1].Department)
	assertDec(t, "-500", feb.Departments[1].Diff)
	assertDec(t, "600", feb.VerticalTotal.TotalAllowance)
	assert.Equal(t, 2, feb.VerticalTotal.HeadCount)

	assert.Equal(t, "No data found", got.Months[2].Message)

	it := got.HorizontalTotal["IT"]
	assertDec(t, "1500", it.TotalAllowance)
	assert.Equal(t, 1, it.HeadCount)
}

func TestClientComparison_DiffSkipsMonthsWithoutData(t *testing.T) {
	// GIVEN: Globex IT in January, nothing in February, IT and a new HR in March
	// WHEN: Comparing January to March
	// THEN: March IT is compared with January, and the new HR department has no diff

	fx := newFixture(t,
		rec("E1", "Globex", "IT", "2024-01", "2024-02", map[string]string{"A": "2"}),
		rec("E1", "Globex", "IT", "2024-03", "2024-04", map[string]string{"A": "1"}),
		rec("E2", "Globex", "HR", "2024-03", "2024-04", map[string]string{"C": "1"}),
	)

	got, err := fx.svc.ClientComparison(context.Background(), service.ComparisonRequest{
		Client:     "Globex",
		StartMonth: "2024-01",
		EndMonth:   "2024-03",
	})
	require.NoError(t, err)
	require.Len(t, got.Months, 3)

	assertDec(t, "0", got.Months[0].Departments[0].Diff)
	assert.Equal(t, "No data found", got.Months[1].Message)

	mar := got.Months[2]
	require.Len(t, mar.Departments, 2)
	assert.Equal(t, "HR", mar.Departments[0].Department)
	assertDec(t, "0", mar.Departments[0].Diff)
	assert.Equal(t, "IT", mar.Departments[1].Department)
	assertDec(t, "-500", mar.Departments[1].Diff)
}

func TestClientComparison_StoredNameWinsOverAliasCode(t *testing.T) {
	// GIVEN: A stored client "Acme" whose name folds to the alias code ACME,
	// and the alias target "Acme Corporation"
	// WHEN: Comparing by each name
	// THEN: Each input reaches its own stored client

	fx := newFixture(t,
		rec("E1", "Acme", "IT", "2024-02", "2024-03", map[string]string{"A": "1"}),
		rec("E2", "Acme Corporation", "HR", "2024-02", "2024-03", map[string]string{"C": "1"}),
	)
	ctx := context.Background()

	got, err := fx.svc.ClientComparison(ctx, service.ComparisonRequest{Client: "ACME", StartMonth: "2024-02"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Client)
	assert.Equal(t, "Acme", got.ClientCode)
	assert.Equal(t, "IT", got.Months[0].Departments[0].Department)

	got, err = fx.svc.ClientComparison(ctx, service.ComparisonRequest{Client: "acme corporation", StartMonth: "2024-02"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", got.Client)
	assert.Equal(t, "ACME", got.ClientCode)
}

func TestClientComparison_DefaultsToClientLatestMonth(t *testing.T) {
	fx := newFixture(t,
		rec("E1", "Acme", "IT", "2024-02", "2024-03", map[string]string{"A": "1"}),
		rec("E2", "Globex", "IT", "2024-05", "2024-06", map[string]string{"A": "1"}),
	)

	got, err := fx.svc.ClientComparison(context.Background(), service.ComparisonRequest{Client: "Acme"})
	require.NoError(t, err)
	require.Len(t, got.Months, 1)
	assert.Equal(t, "2024-02", got.Months[0].Month)

	_, err = fx.svc.ClientComparison(context.Background(), service.ComparisonRequest{Client: "Initech"})
	assert.ErrorIs(t, err, allowance.ErrNoDataAvailable)

	_, err = fx.svc.ClientComparison(context.Background(), service.ComparisonRequest{Client: "Acme", EndMonth: "2024-02"})
	assert.ErrorIs(t, err, allowance.ErrIncompleteCriteria)
}

func TestIngest_ValidatesWholeBatch(t *testing.T) {
	// GIVEN: A batch with one good row and two bad rows
	// WHEN: Ingesting
	// THEN: Nothing is written and every bad row is reported

	fx := newFixture(t)
	good := rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "1"})
	badDays := rec("E2", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "0.3"})
	future := rec("E3", "Acme", "IT", "2024-08", "2024-09", map[string]string{"A": "1"})

	_, err := fx.svc.Ingest(context.Background(), service.IngestRequest{Records: []allowance.Record{good, badDays, future}})
	require.Error(t, err)
	assert.True(t, allowance.IsClientError(err))

	rowErrs := service.RowErrors(err)
	require.Len(t, rowErrs, 2)
	assert.Equal(t, 1, rowErrs[0].Index)
	assert.ErrorIs(t, rowErrs[0], allowance.ErrInvalidDays)
	assert.ErrorIs(t, rowErrs[1], allowance.ErrFutureMonth)

	_, ok, err := fx.store.LatestMonth(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngest_DuplicateKeysAndEmptyBatch(t *testing.T) {
	fx := newFixture(t)
	r := rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "1"})

	_, err := fx.svc.Ingest(context.Background(), service.IngestRequest{Records: []allowance.Record{r, r}})
	assert.ErrorIs(t, err, allowance.ErrDuplicateRecord)

	_, err = fx.svc.Ingest(context.Background(), service.IngestRequest{})
	assert.ErrorIs(t, err, allowance.ErrEmptyBatch)
}

func TestIngest_InvalidatesLatestMonth(t *testing.T) {
	// GIVEN: A cached latest month of 2024-01
	// WHEN: A batch for 2024-03 is ingested
	// THEN: The cache is invalidated and the default report moves to 2024-03

	fx := newFixture(t, rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "1"}))
	ctx := context.Background()

	got, err := fx.svc.ClientSummary(ctx, service.SummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2024-01", got.Forest.Periods[0].Key)

	res, err := fx.svc.Ingest(ctx, service.IngestRequest{Source: "march.xlsx", Records: []allowance.Record{
		rec("E2", "Acme", "IT", "2024-03", "2024-04", map[string]string{"B": "2"}),
	}})
	require.NoError(t, err)
	assert.True(t, res.Invalidated)
	assert.Equal(t, 1, res.Inserted)
	assert.NotEmpty(t, res.BatchID)

	got, err = fx.svc.ClientSummary(ctx, service.SummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03", got.Forest.Periods[0].Key)
}

func TestUpdateShifts(t *testing.T) {
	fx := newFixture(t, rec("E1", "Acme", "IT", "2024-01", "2024-02", map[string]string{"A": "2", "B": "1"}))
	ctx := context.Background()
	key := allowance.RecordKey{
		EmployeeID:    "E1",
		DurationMonth: allowance.MustParseMonth("2024-01"),
		PayrollMonth:  allowance.MustParseMonth("2024-02"),
	}

	t.Run("replaces breakdown and prices strictly", func(t *testing.T) {
		got, err := fx.svc.UpdateShifts(ctx, key, map[string]decimal.Decimal{"c": dec("3"), "prime shift": dec("0.5")})
		require.NoError(t, err)
		require.Len(t, got.Shifts, 2)
		assert.Equal(t, allowance.ShiftC, got.Shifts[0].ShiftType)
		assertDec(t, "3.5", got.TotalDays)
		assertDec(t, "650", got.TotalAllowance)

		stored, err := fx.store.Get(ctx, key)
		require.NoError(t, err)
		assert.Len(t, stored.Shifts, 2)
		_, hasA := stored.Shifts[allowance.ShiftA]
		assert.False(t, hasA)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := fx.svc.UpdateShifts(ctx, allowance.RecordKey{EmployeeID: "missing"}, map[string]decimal.Decimal{"A": dec("1")})
		assert.ErrorIs(t, err, allowance.ErrRecordNotFound)
		assert.True(t, allowance.IsNotFound(err))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := fx.svc.UpdateShifts(ctx, key, map[string]decimal.Decimal{"Z": dec("1")})
		assert.ErrorIs(t, err, allowance.ErrUnknownShiftType)

		_, err = fx.svc.UpdateShifts(ctx, key, map[string]decimal.Decimal{"A": dec("0")})
		assert.ErrorIs(t, err, allowance.ErrNoShiftDays)

		_, err = fx.svc.UpdateShifts(ctx, key, map[string]decimal.Decimal{"A": dec("1.2")})
		assert.ErrorIs(t, err, allowance.ErrInvalidDays)
	})
}

func TestUpdateShifts_MissingRate(t *testing.T) {
	// GIVEN: A record paid in 2025 and no 2025 rates
	// WHEN: Correcting its shifts
	// THEN: MissingRateError, and the stored record is untouched

	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.store.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2024-12", "2025-01", map[string]string{"A": "1"}),
	}})
	require.NoError(t, err)
	key := allowance.RecordKey{
		EmployeeID:    "E1",
		DurationMonth: allowance.MustParseMonth("2024-12"),
		PayrollMonth:  allowance.MustParseMonth("2025-01"),
	}

	_, err = fx.svc.UpdateShifts(ctx, key, map[string]decimal.Decimal{"B": dec("2")})
	var missing *allowance.MissingRateError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, allowance.ShiftB, missing.ShiftType)
	assert.Equal(t, 2025, missing.Year)

	stored, err := fx.store.Get(ctx, key)
	require.NoError(t, err)
	assertDec(t, "1", stored.Shifts[allowance.ShiftA])
}

func TestRates(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.SetRate(ctx, allowance.Rate{ShiftType: "prime", Year: 2025, Amount: dec("750")}))
	assert.ErrorIs(t, fx.svc.SetRate(ctx, allowance.Rate{ShiftType: "A", Year: 2025, Amount: dec("-1")}), allowance.ErrInvalidRate)
	assert.ErrorIs(t, fx.svc.SetRate(ctx, allowance.Rate{ShiftType: "A", Year: 0, Amount: dec("1")}), allowance.ErrInvalidRate)
	assert.ErrorIs(t, fx.svc.SetRate(ctx, allowance.Rate{ShiftType: "D", Year: 2025, Amount: dec("1")}), allowance.ErrUnknownShiftType)

	all, err := fx.svc.Rates(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	y2025, err := fx.svc.Rates(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, y2025, 1)
	assert.Equal(t, allowance.ShiftPrime, y2025[0].ShiftType)
}

func TestRefreshLatest(t *testing.T) {
	fx := newFixture(t, rec("E1", "Acme", "IT", "2024-02", "2024-03", map[string]string{"A": "1"}))

	m, ok, err := fx.svc.RefreshLatest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-02", m.String())

	cached, ok, err := fx.cache.Cached(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m, cached)
}
