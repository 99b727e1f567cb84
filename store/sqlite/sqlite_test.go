package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(emp, client, dept, duration, payroll string, shifts map[allowance.ShiftType]string) allowance.Record {
	r := allowance.Record{
		EmployeeID:    emp,
		EmployeeName:  "Name " + emp,
		Client:        client,
		Department:    dept,
		DurationMonth: allowance.MustParseMonth(duration),
		PayrollMonth:  allowance.MustParseMonth(payroll),
		Shifts:        map[allowance.ShiftType]decimal.Decimal{},
	}
	for st, d := range shifts {
		r.Shifts[st] = decimal.RequireFromString(d)
	}
	return r
}

func TestStore_ReplaceAndRowsFor(t *testing.T) {
	// GIVEN: Two records uploaded in one batch
	// WHEN: Reading rows for January by duration month
	// THEN: One row per non-zero shift, days kept exactly

	s := newStore(t)
	ctx := context.Background()

	res, err := s.Replace(ctx, allowance.Batch{
		ID:     "batch-1",
		Source: "jan.xlsx",
		Records: []allowance.Record{
			rec("E1", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "2", "B": "1.5"}),
			rec("E2", "", "", "2024-01", "2024-02", map[allowance.ShiftType]string{"PRIME": "1"}),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Replaced)

	rows, err := s.RowsFor(ctx, allowance.RowQuery{Months: []allowance.Month{allowance.MustParseMonth("2024-01")}})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var e2 allowance.Assignment
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Days)
		if r.EmployeeID == "E2" {
			e2 = r
		}
	}
	assert.True(t, decimal.RequireFromString("4.5").Equal(total))
	assert.Equal(t, allowance.UnknownClient, e2.Client)
	assert.Equal(t, allowance.UnknownDepartment, e2.Department)
	assert.Equal(t, "2024-02", e2.PayrollMonth.String())

	uploads, err := s.Uploads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "jan.xlsx", uploads[0].Source)
	assert.Equal(t, 2, uploads[0].Inserted)
}

func TestStore_ReplaceDropsOldShifts(t *testing.T) {
	// GIVEN: E1 stored with shifts A and B
	// WHEN: The same key is uploaded again with only C
	// THEN: The record is replaced and the old shift rows are gone

	s := newStore(t)
	ctx := context.Background()

	_, err := s.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "2", "B": "1"}),
	}})
	require.NoError(t, err)

	res, err := s.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"c": "3"}),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)

	got, err := s.Get(ctx, allowance.RecordKey{
		EmployeeID:    "E1",
		DurationMonth: allowance.MustParseMonth("2024-01"),
		PayrollMonth:  allowance.MustParseMonth("2024-02"),
	})
	require.NoError(t, err)
	require.Len(t, got.Shifts, 1)
	assert.True(t, decimal.NewFromInt(3).Equal(got.Shifts[allowance.ShiftC]))
	assert.Equal(t, "Name E1", got.EmployeeName)
}

func TestStore_GetMissing(t *testing.T) {
	s := newStore(t)

	_, err := s.Get(context.Background(), allowance.RecordKey{EmployeeID: "nobody"})
	assert.ErrorIs(t, err, allowance.ErrRecordNotFound)
}

func TestStore_RecordsByPayrollMonthAndClient(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}),
		rec("E2", "Globex", "HR", "2024-01", "2024-03", map[allowance.ShiftType]string{"A": "1", "C": "2"}),
	}})
	require.NoError(t, err)

	recs, err := s.Records(ctx, allowance.RowQuery{
		Months: []allowance.Month{allowance.MustParseMonth("2024-03")},
		By:     allowance.ByPayrollMonth,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "E2", recs[0].EmployeeID)
	assert.Len(t, recs[0].Shifts, 2)

	rows, err := s.RowsFor(ctx, allowance.RowQuery{
		Months: []allowance.Month{allowance.MustParseMonth("2024-01")},
		Client: " acme ",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "E1", rows[0].EmployeeID)
}

func TestStore_LatestMonthAndClients(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2023-11", "2023-12", map[allowance.ShiftType]string{"A": "1"}),
		rec("E2", "Globex", "IT", "2024-02", "2024-03", map[allowance.ShiftType]string{"A": "1"}),
		rec("E3", "", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}),
	}})
	require.NoError(t, err)

	latest, ok, err := s.LatestMonth(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-02", latest.String())

	latest, ok, err = s.LatestMonthWhere(ctx, allowance.LatestQuery{Client: "ACME"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2023-11", latest.String())

	_, ok, err = s.LatestMonthWhere(ctx, allowance.LatestQuery{Client: "Acme", Since: allowance.MustParseMonth("2024-01")})
	require.NoError(t, err)
	assert.False(t, ok)

	clients, err := s.Clients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex", "Unknown"}, clients)
}

func TestStore_Rates(t *testing.T) {
	// GIVEN: A rate saved twice for the same (shift, year)
	// WHEN: Loading the table
	// THEN: The upsert kept only the latest amount

	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRate(ctx, allowance.Rate{ShiftType: "A", Year: 2024, Amount: decimal.NewFromInt(500)}))
	require.NoError(t, s.SaveRate(ctx, allowance.Rate{ShiftType: "a", Year: 2024, Amount: decimal.RequireFromString("525.50")}))
	require.NoError(t, s.SaveRate(ctx, allowance.Rate{ShiftType: "PRIME SHIFT", Year: 2025, Amount: decimal.NewFromInt(700)}))

	err := s.SaveRate(ctx, allowance.Rate{ShiftType: "Z", Year: 2024, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, allowance.ErrUnknownShiftType)

	rates, err := s.LoadRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rates.Len())
	assert.True(t, decimal.RequireFromString("525.5").Equal(rates.RateOrZero("A", 2024)))
	assert.True(t, decimal.NewFromInt(700).Equal(rates.RateOrZero("PRIME", 2025)))
}

func TestStore_Reset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Replace(ctx, allowance.Batch{ID: "b1", UploadedAt: time.Now(), Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}),
	}})
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	_, ok, err := s.LatestMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	uploads, err := s.Uploads(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestStore_Departments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Replace(ctx, allowance.Batch{Records: []allowance.Record{
		rec("E1", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}),
		rec("E2", "Acme", "HR", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}),
		rec("E3", "Acme", "IT", "2024-02", "2024-03", map[allowance.ShiftType]string{"A": "1"}),
		rec("E4", "Globex", "", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}),
	}})
	require.NoError(t, err)

	depts, err := s.Departments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HR", "IT"}, depts["Acme"])
	assert.Equal(t, []string{}, depts["Globex"])
}
