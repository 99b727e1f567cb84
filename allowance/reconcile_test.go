package allowance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
)

func TestReconcile_EveryRequestedPeriodPresent(t *testing.T) {
	// GIVEN: Three requested months and no rows at all
	// WHEN: Aggregating and reconciling
	// THEN: Three placeholder periods, none omitted

	buckets := months("2024-01", "2024-02", "2024-03")
	forest, err := allowance.Aggregator{Rates: standardRates(t)}.Aggregate(nil, buckets, allowance.AllClients())
	require.NoError(t, err)
	assert.Empty(t, forest.Periods)

	filled := allowance.Reconcile(forest, buckets, allowance.AllClients())
	require.Len(t, filled.Periods, 3)
	for i, p := range filled.Periods {
		assert.Equal(t, buckets[i].Key, p.Key)
		assert.Equal(t, "No data found for "+p.Key, p.Message)
		assert.False(t, p.HasData())
		assertDec(t, "0", p.Total.Total)
		assert.Zero(t, p.Total.HeadCount)
	}
}

func TestReconcile_KeepsBucketOrderAroundData(t *testing.T) {
	buckets := months("2024-01", "2024-02", "2024-03")
	rows := []allowance.Assignment{row("E1", "Acme", "IT", "A", "1", "2024-02", "2024-03")}
	forest, err := allowance.Aggregator{Rates: standardRates(t)}.Aggregate(rows, buckets, allowance.AllClients())
	require.NoError(t, err)

	filled := allowance.Reconcile(forest, buckets, allowance.AllClients())
	require.Len(t, filled.Periods, 3)
	assert.Equal(t, "2024-02", filled.Periods[1].Key)
	assert.True(t, filled.Periods[1].HasData())
	assert.Empty(t, filled.Periods[1].Message)
	assert.False(t, filled.Periods[0].HasData())
}

func TestReconcile_ExplicitFilter_AddsDepartmentPlaceholder(t *testing.T) {
	// GIVEN: filter {"Acme": ["IT"]}, rows only for Acme/HR in 2024-02
	// WHEN: Aggregating and reconciling
	// THEN: 2024-02 contains Acme -> IT as a placeholder, HR is filtered out

	buckets := months("2024-02")
	filter := allowance.NewGroupFilter(map[string][]string{"Acme": {"IT"}})
	rows := []allowance.Assignment{row("E1", "Acme", "HR", "A", "1", "2024-02", "2024-03")}

	forest, err := allowance.Aggregator{Rates: standardRates(t)}.Aggregate(rows, buckets, filter)
	require.NoError(t, err)
	filled := allowance.Reconcile(forest, buckets, filter)

	period := filled.Periods[0]
	client, ok := period.Client("Acme")
	require.True(t, ok)
	require.Len(t, client.Departments, 1)

	it := client.Departments[0]
	assert.Equal(t, "IT", it.Name)
	assert.Equal(t, "No data available for Acme - IT in 2024-02", it.Message)
	assert.Empty(t, it.Employees)
	assertDec(t, "0", it.Total)

	_, hasHR := client.Department("HR")
	assert.False(t, hasHR)
}

func TestReconcile_ExplicitFilter_AddsMissingClientToEveryPeriod(t *testing.T) {
	buckets := months("2024-01", "2024-02")
	filter := allowance.NewGroupFilter(map[string][]string{"Acme": {"IT"}, "Globex": nil})
	rows := []allowance.Assignment{row("E1", "acme", "it", "A", "1", "2024-01", "2024-02")}

	forest, err := allowance.Aggregator{Rates: standardRates(t)}.Aggregate(rows, buckets, filter)
	require.NoError(t, err)
	filled := allowance.Reconcile(forest, buckets, filter)

	// January: acme/it has data (matched case-insensitively), Globex is a placeholder
	jan := filled.Periods[0]
	require.Len(t, jan.Clients, 2)
	acme, _ := jan.Client("Acme")
	assert.Equal(t, "acme", acme.Name)
	assert.Len(t, acme.Departments, 1)
	globex, _ := jan.Client("Globex")
	assert.Equal(t, "No data available for Globex in 2024-01", globex.Message)
	assert.Empty(t, globex.Departments)

	// February: no rows at all, still both clients, still no employees
	feb := filled.Periods[1]
	assert.Equal(t, "No data found for 2024-02", feb.Message)
	require.Len(t, feb.Clients, 2)
	for _, c := range feb.Clients {
		for _, d := range c.Departments {
			assert.Empty(t, d.Employees)
		}
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	buckets := months("2024-01", "2024-02")
	filter := allowance.NewGroupFilter(map[string][]string{"Acme": {"IT", "HR"}})
	rows := []allowance.Assignment{row("E1", "Acme", "IT", "A", "1", "2024-01", "2024-02")}

	forest, err := allowance.Aggregator{Rates: standardRates(t)}.Aggregate(rows, buckets, filter)
	require.NoError(t, err)
	once := allowance.Reconcile(forest, buckets, filter)
	twice := allowance.Reconcile(once, buckets, filter)
	assert.Equal(t, once, twice)
}
