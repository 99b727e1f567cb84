package allowance_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
)

func record(emp, duration, payroll string, shifts map[allowance.ShiftType]string) allowance.Record {
	r := allowance.Record{
		EmployeeID:    emp,
		EmployeeName:  "Name " + emp,
		Client:        "Acme",
		Department:    "IT",
		DurationMonth: allowance.MustParseMonth(duration),
		PayrollMonth:  allowance.MustParseMonth(payroll),
		Shifts:        map[allowance.ShiftType]decimal.Decimal{},
	}
	for st, days := range shifts {
		r.Shifts[st] = dec(days)
	}
	return r
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name string
		rec  allowance.Record
		want error
	}{
		{"valid", record("E1", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "2.5"}), nil},
		{"payroll equals duration", record("E1", "2024-01", "2024-01", map[allowance.ShiftType]string{"A": "1"}), allowance.ErrPayrollBeforeDuration},
		{"payroll before duration", record("E1", "2024-02", "2024-01", map[allowance.ShiftType]string{"A": "1"}), allowance.ErrPayrollBeforeDuration},
		{"quarter day", record("E1", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "0.25"}), allowance.ErrInvalidDays},
		{"negative days", record("E1", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "-1", "B": "2"}), allowance.ErrInvalidDays},
		{"all zero", record("E1", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "0"}), allowance.ErrNoShiftDays},
		{"unknown shift", record("E1", "2024-01", "2024-02", map[allowance.ShiftType]string{"D": "1"}), allowance.ErrUnknownShiftType},
		{"no employee", record(" ", "2024-01", "2024-02", map[allowance.ShiftType]string{"A": "1"}), allowance.ErrMissingEmployee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, allowance.IsClientError(err))
		})
	}
}

func TestRecord_NormalizedAndFlattened(t *testing.T) {
	// GIVEN: A record using lower-case and alias labels with one zero shift
	// WHEN: Normalizing and flattening
	// THEN: Canonical shift types, zero shift dropped, ordered A..PRIME

	rec := record("E1", "2024-01", "2024-02", map[allowance.ShiftType]string{
		"prime shift": "1",
		"b":           "0",
		"a":           "2",
	})
	rec.Client = ""
	rows := rec.Normalized().Assignments()

	require.Len(t, rows, 2)
	assert.Equal(t, allowance.ShiftA, rows[0].ShiftType)
	assert.Equal(t, allowance.ShiftPrime, rows[1].ShiftType)
	assert.Equal(t, allowance.UnknownClient, rows[0].Client)
	assert.Equal(t, "E1/2024-01/2024-02", rec.Key().String())
}

func TestValidDays(t *testing.T) {
	assert.True(t, allowance.ValidDays(dec("0")))
	assert.True(t, allowance.ValidDays(dec("3.5")))
	assert.False(t, allowance.ValidDays(dec("3.4")))
	assert.False(t, allowance.ValidDays(dec("-0.5")))
}

func TestGroupFilter_JSON(t *testing.T) {
	var f allowance.GroupFilter
	require.NoError(t, json.Unmarshal([]byte(`"all"`), &f))
	assert.True(t, f.IsAll())

	require.NoError(t, json.Unmarshal([]byte(`{"Acme": ["IT"], "Globex": []}`), &f))
	require.False(t, f.IsAll())
	assert.True(t, f.Matches("acme", "it"))
	assert.False(t, f.Matches("acme", "hr"))
	assert.True(t, f.Matches("GLOBEX", "anything"))
	assert.False(t, f.Matches("Initech", "IT"))

	err := json.Unmarshal([]byte(`"some"`), &f)
	assert.ErrorIs(t, err, allowance.ErrInvalidCriteria)

	out, err := json.Marshal(allowance.AllClients())
	require.NoError(t, err)
	assert.JSONEq(t, `"ALL"`, string(out))
}

func TestRound_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "2.35", allowance.Round(dec("2.345")).String())
	assert.Equal(t, "-2.35", allowance.Round(dec("-2.345")).String())
	assert.Equal(t, "2.34", allowance.Round(dec("2.344")).String())
}
