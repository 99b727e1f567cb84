package allowance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
)

func TestDeltas_FirstPeriodIsExplicitZero(t *testing.T) {
	seq := []allowance.PeriodTotals{
		{Period: "2024-01", Totals: map[string]decimal.Decimal{"IT": dec("1000"), "HR": dec("200")}},
	}
	deltas := allowance.Deltas(seq)

	require.Len(t, deltas, 1)
	require.Contains(t, deltas[0].Deltas, "IT")
	require.Contains(t, deltas[0].Deltas, "HR")
	assertDec(t, "0", deltas[0].Deltas["IT"])
	assertDec(t, "0", deltas[0].Deltas["HR"])
}

func TestDeltas_AgainstPreviousPeriod(t *testing.T) {
	// GIVEN: IT goes 1000 -> 1500 -> 1200, HR appears in February, Ops leaves in March
	// WHEN: Computing deltas
	// THEN: Differences from the immediately preceding period

	seq := []allowance.PeriodTotals{
		{Period: "2024-01", Totals: map[string]decimal.Decimal{"IT": dec("1000"), "Ops": dec("50")}},
		{Period: "2024-02", Totals: map[string]decimal.Decimal{"IT": dec("1500"), "HR": dec("300"), "Ops": dec("50")}},
		{Period: "2024-03", Totals: map[string]decimal.Decimal{"IT": dec("1200"), "HR": dec("300")}},
	}
	deltas := allowance.Deltas(seq)
	require.Len(t, deltas, 3)

	assertDec(t, "500", deltas[1].Deltas["IT"])
	assertDec(t, "300", deltas[1].Deltas["HR"])
	assertDec(t, "0", deltas[1].Deltas["Ops"])

	assertDec(t, "-300", deltas[2].Deltas["IT"])
	assertDec(t, "0", deltas[2].Deltas["HR"])
	assertDec(t, "-50", deltas[2].Deltas["Ops"])
}

func TestForest_TotalsBy(t *testing.T) {
	buckets := months("2024-01", "2024-02")
	rows := []allowance.Assignment{
		row("E1", "Acme", "IT", "A", "2", "2024-01", "2024-02"),
		row("E2", "Globex", "IT", "B", "2", "2024-01", "2024-02"),
		row("E1", "Acme", "IT", "A", "1", "2024-02", "2024-03"),
	}
	forest, err := allowance.Aggregator{Rates: standardRates(t)}.Aggregate(rows, buckets, allowance.AllClients())
	require.NoError(t, err)
	forest = allowance.Reconcile(forest, buckets, allowance.AllClients())

	byClient := forest.TotalsBy(allowance.LevelClient)
	require.Len(t, byClient, 2)
	assertDec(t, "1000", byClient[0].Totals["Acme"])
	assertDec(t, "700", byClient[0].Totals["Globex"])

	byDept := forest.TotalsBy(allowance.LevelDepartment)
	assertDec(t, "1700", byDept[0].Totals["IT"])

	byPeriod := forest.TotalsBy(allowance.LevelPeriod)
	assertDec(t, "500", byPeriod[1].Totals[allowance.PeriodTotalKey])

	deltas := allowance.Deltas(byClient)
	assertDec(t, "-500", deltas[1].Deltas["Acme"])
	assertDec(t, "-700", deltas[1].Deltas["Globex"])
}
