/*
store.go - Persistence interfaces for allowance records and rates

PURPOSE:
  Defines the interface between the engine/services and the database.
  The engine itself never calls these; services fetch rows and rates
  first and hand them to the pure aggregation functions.

KEY INTERFACES:
  RowStore:    Flattened assignment rows for a set of months
  RecordStore: Whole records (search, corrections, ingestion)
  RateStore:   Rate reference data
  Store:       Everything above

REPLACE SEMANTICS:
  Replace() is delete-then-insert per (employee, duration month, payroll
  month). All records of a batch are written atomically: either every
  record of the batch lands, or none does.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via sqlx
  - allowance/store/memory.go: In-memory for tests, demos and the CLI

SEE ALSO:
  - cache.go: Latest-month cache in front of LatestMonth
  - service/: The callers
*/
package allowance

import (
	"context"
	"time"
)

// RowQuery selects rows by month. By picks the month column; Client, when
// set, narrows to one client (case-insensitive).
type RowQuery struct {
	Months []Month
	By     MonthField
	Client string
}

// LatestQuery narrows LatestMonthWhere.
type LatestQuery struct {
	Client string
	Since  Month
}

// Batch is one ingestion: an upload or a correction.
type Batch struct {
	ID         string
	Source     string
	UploadedAt time.Time
	Records    []Record
}

type ReplaceResult struct {
	Inserted int
	Replaced int
}

// RowStore is the read side the aggregator is fed from.
type RowStore interface {
	RowsFor(ctx context.Context, q RowQuery) ([]Assignment, error)

	// LatestMonth returns the most recent duration month with any record.
	LatestMonth(ctx context.Context) (Month, bool, error)
}

type RecordStore interface {
	RowStore

	Records(ctx context.Context, q RowQuery) ([]Record, error)
	Get(ctx context.Context, key RecordKey) (Record, error)
	Replace(ctx context.Context, batch Batch) (ReplaceResult, error)
	LatestMonthWhere(ctx context.Context, q LatestQuery) (Month, bool, error)
	Clients(ctx context.Context) ([]string, error)

	// Departments maps each client to its sorted department names.
	Departments(ctx context.Context) (map[string][]string, error)
}

type RateStore interface {
	LoadRates(ctx context.Context) (*RateTable, error)
	SaveRate(ctx context.Context, r Rate) error
}

type Store interface {
	RecordStore
	RateStore
}
