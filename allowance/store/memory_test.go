package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/allowance/store"
)

func rec(emp, client, duration, payroll string, shifts map[allowance.ShiftType]int64) allowance.Record {
	r := allowance.Record{
		EmployeeID:    emp,
		Client:        client,
		Department:    "IT",
		DurationMonth: allowance.MustParseMonth(duration),
		PayrollMonth:  allowance.MustParseMonth(payroll),
		Shifts:        map[allowance.ShiftType]decimal.Decimal{},
	}
	for st, d := range shifts {
		r.Shifts[st] = decimal.NewFromInt(d)
	}
	return r
}

func TestMemory_ReplaceIsDeleteThenInsert(t *testing.T) {
	// GIVEN: E1 uploaded with shifts A and B
	// WHEN: The same (employee, duration, payroll) is uploaded with only C
	// THEN: The old breakdown is gone, not merged

	m := store.NewMemory()
	ctx := context.Background()

	res, err := m.Replace(ctx, allowance.Batch{ID: "b1", Records: []allowance.Record{
		rec("E1", "Acme", "2024-01", "2024-02", map[allowance.ShiftType]int64{"A": 2, "B": 1}),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	res, err = m.Replace(ctx, allowance.Batch{ID: "b2", Records: []allowance.Record{
		rec("E1", "Acme", "2024-01", "2024-02", map[allowance.ShiftType]int64{"c": 3}),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)

	rows, err := m.RowsFor(ctx, allowance.RowQuery{Months: []allowance.Month{allowance.MustParseMonth("2024-01")}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, allowance.ShiftC, rows[0].ShiftType)
	assert.Len(t, m.Batches(), 2)
}

func TestMemory_LatestMonthWhere(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	_, ok, err := m.LatestMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "2024-01", "2024-02", map[allowance.ShiftType]int64{"A": 1}),
		rec("E2", "Globex", "2024-03", "2024-04", map[allowance.ShiftType]int64{"A": 1}),
	}})
	require.NoError(t, err)

	latest, ok, err := m.LatestMonth(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03", latest.String())

	latest, ok, err = m.LatestMonthWhere(ctx, allowance.LatestQuery{Client: "acme"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01", latest.String())

	_, ok, err = m.LatestMonthWhere(ctx, allowance.LatestQuery{Client: "acme", Since: allowance.MustParseMonth("2024-02")})
	require.NoError(t, err)
	assert.False(t, ok)

	clients, err := m.Clients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex"}, clients)
}

func TestMemory_RecordsByPayrollMonthAndClient(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	_, err := m.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "2024-01", "2024-02", map[allowance.ShiftType]int64{"A": 1}),
		rec("E2", "Globex", "2024-01", "2024-03", map[allowance.ShiftType]int64{"A": 1}),
	}})
	require.NoError(t, err)

	recs, err := m.Records(ctx, allowance.RowQuery{
		Months: []allowance.Month{allowance.MustParseMonth("2024-03")},
		By:     allowance.ByPayrollMonth,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "E2", recs[0].EmployeeID)

	recs, err = m.Records(ctx, allowance.RowQuery{
		Months: []allowance.Month{allowance.MustParseMonth("2024-01")},
		Client: "ACME",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = m.Get(ctx, allowance.RecordKey{EmployeeID: "E9"})
	assert.ErrorIs(t, err, allowance.ErrRecordNotFound)
}

func TestMemory_Rates(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveRate(ctx, allowance.Rate{ShiftType: "a", Year: 2024, Amount: decimal.NewFromInt(500)}))
	require.NoError(t, m.SaveRate(ctx, allowance.Rate{ShiftType: "A", Year: 2024, Amount: decimal.NewFromInt(550)}))
	assert.Error(t, m.SaveRate(ctx, allowance.Rate{ShiftType: "Z", Year: 2024}))

	rates, err := m.LoadRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rates.Len())
	assert.True(t, decimal.NewFromInt(550).Equal(rates.RateOrZero("A", 2024)))
}

func TestMemory_Departments(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	r1 := rec("E1", "Acme", "2024-01", "2024-02", map[allowance.ShiftType]int64{"A": 1})
	r2 := rec("E2", "Acme", "2024-01", "2024-02", map[allowance.ShiftType]int64{"A": 1})
	r2.Department = "HR"
	r3 := rec("E3", "", "2024-01", "2024-02", map[allowance.ShiftType]int64{"A": 1})
	r3.Department = ""
	_, err := m.Replace(ctx, allowance.Batch{Records: []allowance.Record{r1, r2, r3}})
	require.NoError(t, err)

	depts, err := m.Departments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HR", "IT"}, depts["Acme"])
	assert.Empty(t, depts[allowance.UnknownClient])
}
