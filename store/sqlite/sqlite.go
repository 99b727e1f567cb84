/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements allowance.Store (records, flattened rows, rates) using SQLite
  through sqlx. The same queries run on PostgreSQL with only minor dialect
  changes.

INTERFACES IMPLEMENTED:
  allowance.RecordStore: Allowance records and their shift breakdowns
  allowance.RateStore:   Per-year shift rates

REPLACE SEMANTICS:
  An allowance record is unique per (emp_id, duration_month, payroll_month).
  Replace() deletes the existing row (shift_mapping rows cascade) and
  inserts the new one. A whole batch shares one transaction.

KEY TABLES:
  shift_allowances: One row per employee, duration month and payroll month
  shift_mapping:    Days per shift type for a shift_allowances row
  shifts_amount:    Rate per shift type and payroll year
  uploaded_files:   One row per ingested batch

MONEY AND DAYS:
  Stored as TEXT decimal strings and scanned into decimal.Decimal, so no
  value ever passes through a float.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The pool is limited to a single
  connection so ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/allowance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - allowance/store.go: Interface definitions
  - allowance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
)

// Store implements allowance.Store using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

var _ allowance.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (used by the health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shift_allowances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		emp_id TEXT NOT NULL,
		emp_name TEXT,
		grade TEXT,
		department TEXT,
		client TEXT,
		project TEXT,
		account_manager TEXT,
		duration_month TEXT NOT NULL,
		payroll_month TEXT NOT NULL,
		batch_id TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (emp_id, duration_month, payroll_month)
	);

	CREATE INDEX IF NOT EXISTS idx_shift_allowances_duration
		ON shift_allowances(duration_month);
	CREATE INDEX IF NOT EXISTS idx_shift_allowances_payroll
		ON shift_allowances(payroll_month);
	CREATE INDEX IF NOT EXISTS idx_shift_allowances_client
		ON shift_allowances(client);

	CREATE TABLE IF NOT EXISTS shift_mapping (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shiftallowance_id INTEGER NOT NULL REFERENCES shift_allowances(id) ON DELETE CASCADE,
		shift_type TEXT NOT NULL,
		days TEXT NOT NULL,
		UNIQUE (shiftallowance_id, shift_type)
	);

	CREATE TABLE IF NOT EXISTS shifts_amount (
		shift_type TEXT NOT NULL,
		payroll_year INTEGER NOT NULL,
		amount TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (shift_type, payroll_year)
	);

	CREATE TABLE IF NOT EXISTS uploaded_files (
		id TEXT PRIMARY KEY,
		source TEXT,
		record_count INTEGER NOT NULL,
		inserted INTEGER NOT NULL,
		replaced INTEGER NOT NULL,
		uploaded_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROW TYPES
// =============================================================================

type headerRow struct {
	ID             int64           `db:"id"`
	EmployeeID     string          `db:"emp_id"`
	EmployeeName   sql.NullString  `db:"emp_name"`
	Grade          sql.NullString  `db:"grade"`
	Department     sql.NullString  `db:"department"`
	Client         sql.NullString  `db:"client"`
	Project        sql.NullString  `db:"project"`
	AccountManager sql.NullString  `db:"account_manager"`
	DurationMonth  allowance.Month `db:"duration_month"`
	PayrollMonth   allowance.Month `db:"payroll_month"`
}

func (h headerRow) record() allowance.Record {
	return allowance.Record{
		EmployeeID:     h.EmployeeID,
		EmployeeName:   h.EmployeeName.String,
		Grade:          h.Grade.String,
		Client:         h.Client.String,
		Department:     h.Department.String,
		Project:        h.Project.String,
		AccountManager: h.AccountManager.String,
		DurationMonth:  h.DurationMonth,
		PayrollMonth:   h.PayrollMonth,
		Shifts:         make(map[allowance.ShiftType]decimal.Decimal),
	}
}

type mappingRow struct {
	AllowanceID int64           `db:"shiftallowance_id"`
	ShiftType   string          `db:"shift_type"`
	Days        decimal.Decimal `db:"days"`
}

type flatRow struct {
	EmployeeID     string          `db:"emp_id"`
	EmployeeName   sql.NullString  `db:"emp_name"`
	Client         sql.NullString  `db:"client"`
	Department     sql.NullString  `db:"department"`
	AccountManager sql.NullString  `db:"account_manager"`
	ShiftType      string          `db:"shift_type"`
	Days           decimal.Decimal `db:"days"`
	DurationMonth  allowance.Month `db:"duration_month"`
	PayrollMonth   allowance.Month `db:"payroll_month"`
}

type rateRow struct {
	ShiftType string          `db:"shift_type"`
	Year      int             `db:"payroll_year"`
	Amount    decimal.Decimal `db:"amount"`
}

// Upload is one row of uploaded_files.
type Upload struct {
	ID          string    `db:"id"`
	Source      string    `db:"source"`
	RecordCount int       `db:"record_count"`
	Inserted    int       `db:"inserted"`
	Replaced    int       `db:"replaced"`
	UploadedAt  time.Time `db:"-"`
	UploadedRaw string    `db:"uploaded_at"`
}

// =============================================================================
// WRITES
// =============================================================================

// Replace writes a batch atomically with delete-then-insert per record key.
func (s *Store) Replace(ctx context.Context, batch allowance.Batch) (allowance.ReplaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res allowance.ReplaceResult

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range batch.Records {
		r = r.Normalized()

		replaced, err := replaceRecordTx(ctx, tx, r, batch.ID, now)
		if err != nil {
			return allowance.ReplaceResult{}, err
		}
		if replaced {
			res.Replaced++
		} else {
			res.Inserted++
		}
	}

	uploadedAt := batch.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	if batch.ID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO uploaded_files (id, source, record_count, inserted, replaced, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			batch.ID, nullString(batch.Source), len(batch.Records), res.Inserted, res.Replaced,
			uploadedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return allowance.ReplaceResult{}, fmt.Errorf("failed to record upload: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return allowance.ReplaceResult{}, fmt.Errorf("failed to commit: %w", err)
	}
	return res, nil
}

func replaceRecordTx(ctx context.Context, tx *sqlx.Tx, r allowance.Record, batchID, now string) (bool, error) {
	deleted, err := tx.ExecContext(ctx, `
		DELETE FROM shift_allowances
		WHERE emp_id = ? AND duration_month = ? AND payroll_month = ?`,
		r.EmployeeID, r.DurationMonth, r.PayrollMonth)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", r.Key(), err)
	}
	n, _ := deleted.RowsAffected()

	inserted, err := tx.ExecContext(ctx, `
		INSERT INTO shift_allowances (
			emp_id, emp_name, grade, department, client, project, account_manager,
			duration_month, payroll_month, batch_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EmployeeID, nullString(r.EmployeeName), nullString(r.Grade), nullString(r.Department),
		nullString(r.Client), nullString(r.Project), nullString(r.AccountManager),
		r.DurationMonth, r.PayrollMonth, nullString(batchID), now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, fmt.Errorf("duplicate record %s in batch: %w", r.Key(), err)
		}
		return false, fmt.Errorf("failed to insert %s: %w", r.Key(), err)
	}
	id, err := inserted.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read id for %s: %w", r.Key(), err)
	}

	for st, days := range r.Shifts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shift_mapping (shiftallowance_id, shift_type, days) VALUES (?, ?, ?)`,
			id, string(st), days.String())
		if err != nil {
			return false, fmt.Errorf("failed to insert shift %s for %s: %w", st, r.Key(), err)
		}
	}
	return n > 0, nil
}

// =============================================================================
// READS
// =============================================================================

func monthColumn(by allowance.MonthField) string {
	if by == allowance.ByPayrollMonth {
		return "a.payroll_month"
	}
	return "a.duration_month"
}

func monthStrings(months []allowance.Month) []string {
	out := make([]string, len(months))
	for i, m := range months {
		out[i] = m.String()
	}
	return out
}

// RowsFor returns one Assignment per shift mapping row.
func (s *Store) RowsFor(ctx context.Context, q allowance.RowQuery) ([]allowance.Assignment, error) {
	if len(q.Months) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT a.emp_id, a.emp_name, a.client, a.department, a.account_manager,
		       m.shift_type, m.days, a.duration_month, a.payroll_month
		FROM shift_allowances a
		JOIN shift_mapping m ON m.shiftallowance_id = a.id
		WHERE ` + monthColumn(q.By) + ` IN (?)`
	args := []interface{}{monthStrings(q.Months)}
	if q.Client != "" {
		query += ` AND LOWER(TRIM(a.client)) = LOWER(TRIM(?))`
		args = append(args, q.Client)
	}
	query += ` ORDER BY a.duration_month, a.emp_id, m.shift_type`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build rows query: %w", err)
	}

	var rows []flatRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}

	out := make([]allowance.Assignment, len(rows))
	for i, r := range rows {
		out[i] = allowance.Assignment{
			EmployeeID:     r.EmployeeID,
			EmployeeName:   r.EmployeeName.String,
			Client:         r.Client.String,
			Department:     r.Department.String,
			AccountManager: r.AccountManager.String,
			ShiftType:      allowance.ShiftType(r.ShiftType),
			Days:           r.Days,
			DurationMonth:  r.DurationMonth,
			PayrollMonth:   r.PayrollMonth,
		}.Normalize()
	}
	return out, nil
}

// Records returns whole records with their shift breakdowns.
func (s *Store) Records(ctx context.Context, q allowance.RowQuery) ([]allowance.Record, error) {
	if len(q.Months) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT a.id, a.emp_id, a.emp_name, a.grade, a.department, a.client, a.project,
		       a.account_manager, a.duration_month, a.payroll_month
		FROM shift_allowances a
		WHERE ` + monthColumn(q.By) + ` IN (?)`
	args := []interface{}{monthStrings(q.Months)}
	if q.Client != "" {
		query += ` AND LOWER(TRIM(a.client)) = LOWER(TRIM(?))`
		args = append(args, q.Client)
	}
	query += ` ORDER BY a.duration_month, a.payroll_month, a.emp_id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build records query: %w", err)
	}

	var headers []headerRow
	if err := s.db.SelectContext(ctx, &headers, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return s.attachShifts(ctx, headers)
}

func (s *Store) attachShifts(ctx context.Context, headers []headerRow) ([]allowance.Record, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}

	query, args, err := sqlx.In(`
		SELECT shiftallowance_id, shift_type, days
		FROM shift_mapping
		WHERE shiftallowance_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapping query: %w", err)
	}
	var mappings []mappingRow
	if err := s.db.SelectContext(ctx, &mappings, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query shift mappings: %w", err)
	}

	byID := make(map[int64][]mappingRow, len(headers))
	for _, m := range mappings {
		byID[m.AllowanceID] = append(byID[m.AllowanceID], m)
	}

	records := make([]allowance.Record, len(headers))
	for i, h := range headers {
		r := h.record()
		for _, m := range byID[h.ID] {
			r.Shifts[allowance.ShiftType(m.ShiftType)] = m.Days
		}
		records[i] = r
	}
	return records, nil
}

// Get loads one record by identity.
func (s *Store) Get(ctx context.Context, key allowance.RecordKey) (allowance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var h headerRow
	err := s.db.GetContext(ctx, &h, `
		SELECT id, emp_id, emp_name, grade, department, client, project,
		       account_manager, duration_month, payroll_month
		FROM shift_allowances
		WHERE emp_id = ? AND duration_month = ? AND payroll_month = ?`,
		key.EmployeeID, key.DurationMonth, key.PayrollMonth)
	if errors.Is(err, sql.ErrNoRows) {
		return allowance.Record{}, allowance.ErrRecordNotFound
	}
	if err != nil {
		return allowance.Record{}, fmt.Errorf("failed to get record %s: %w", key, err)
	}

	records, err := s.attachShifts(ctx, []headerRow{h})
	if err != nil {
		return allowance.Record{}, err
	}
	return records[0], nil
}

func (s *Store) LatestMonth(ctx context.Context) (allowance.Month, bool, error) {
	return s.LatestMonthWhere(ctx, allowance.LatestQuery{})
}

// LatestMonthWhere returns MAX(duration_month), optionally for one client
// and not before Since.
func (s *Store) LatestMonthWhere(ctx context.Context, q allowance.LatestQuery) (allowance.Month, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT MAX(duration_month) FROM shift_allowances WHERE 1 = 1`
	var args []interface{}
	if q.Client != "" {
		query += ` AND LOWER(TRIM(client)) = LOWER(TRIM(?))`
		args = append(args, q.Client)
	}
	if !q.Since.IsZero() {
		query += ` AND duration_month >= ?`
		args = append(args, q.Since)
	}

	var latest sql.NullString
	if err := s.db.GetContext(ctx, &latest, query, args...); err != nil {
		return allowance.Month{}, false, fmt.Errorf("failed to query latest month: %w", err)
	}
	if !latest.Valid {
		return allowance.Month{}, false, nil
	}
	m, err := allowance.ParseMonth(latest.String)
	if err != nil {
		return allowance.Month{}, false, fmt.Errorf("corrupt duration_month %q: %w", latest.String, err)
	}
	return m, true, nil
}

// Clients lists distinct client names; empty names read as "Unknown".
func (s *Store) Clients(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var clients []string
	err := s.db.SelectContext(ctx, &clients, `
		SELECT DISTINCT COALESCE(NULLIF(TRIM(client), ''), ?) AS name
		FROM shift_allowances
		ORDER BY name`, allowance.UnknownClient)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// Departments maps each client to its distinct non-empty departments.
func (s *Store) Departments(ctx context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []struct {
		Client     string         `db:"client"`
		Department sql.NullString `db:"department"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT COALESCE(NULLIF(TRIM(client), ''), ?) AS client,
		       NULLIF(TRIM(department), '') AS department
		FROM shift_allowances
		ORDER BY client, department`, allowance.UnknownClient)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	out := make(map[string][]string)
	for _, r := range rows {
		if _, ok := out[r.Client]; !ok {
			out[r.Client] = []string{}
		}
		if r.Department.Valid {
			out[r.Client] = append(out[r.Client], r.Department.String)
		}
	}
	return out, nil
}

// Uploads lists recorded batches, most recent first.
func (s *Store) Uploads(ctx context.Context, limit int) ([]Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var uploads []Upload
	err := s.db.SelectContext(ctx, &uploads, `
		SELECT id, COALESCE(source, '') AS source, record_count, inserted, replaced, uploaded_at
		FROM uploaded_files
		ORDER BY uploaded_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	for i := range uploads {
		uploads[i].UploadedAt, _ = time.Parse(time.RFC3339, uploads[i].UploadedRaw)
	}
	return uploads, nil
}

// =============================================================================
// RATES
// =============================================================================

func (s *Store) LoadRates(ctx context.Context) (*allowance.RateTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []rateRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT shift_type, payroll_year, amount FROM shifts_amount
		ORDER BY payroll_year, shift_type`); err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}

	rates := make([]allowance.Rate, len(rows))
	for i, r := range rows {
		rates[i] = allowance.Rate{ShiftType: allowance.ShiftType(r.ShiftType), Year: r.Year, Amount: r.Amount}
	}
	return allowance.NewRateTable(rates...)
}

// SaveRate upserts the rate for (shift type, year).
func (s *Store) SaveRate(ctx context.Context, r allowance.Rate) error {
	st, ok := allowance.ParseShiftType(string(r.ShiftType))
	if !ok {
		return &allowance.UnknownShiftTypeError{Label: string(r.ShiftType)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts_amount (shift_type, payroll_year, amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (shift_type, payroll_year)
		DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		string(st), r.Year, r.Amount.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save rate %s/%d: %w", st, r.Year, err)
	}
	return nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (used by demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"shift_mapping", "shift_allowances", "shifts_amount", "uploaded_files"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
