package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// =============================================================================
// MIGRATIONS - Ordered, idempotent schema steps
// =============================================================================
//
// Each step runs once, in its own transaction, and is recorded in
// schema_migrations. Every step is also safe to run again on its own:
// tables use IF NOT EXISTS and column adds check PRAGMA table_info first.
// Files written by older releases of the app (REAL money columns,
// total_price/payment_mode column names, "NOT PAID" with a space) are
// upgraded in place. Append new steps; never reorder or edit old ones.

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{1, "create bills", createBills},
	{2, "create income", createIncome},
	{3, "create expenses", createExpenses},
	{4, "upgrade legacy bill columns", upgradeLegacyBills},
	{5, "link income postings to bills", linkIncomeToBills},
	{6, "ensure expense quantity", ensureExpenseQuantity},
	{7, "listing indexes", createListingIndexes},
	{8, "allow repeated final payments", narrowPostingIndex},
}

// MigrationRecord is one applied migration.
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// Migrate applies every pending migration in order and returns the
// versions it applied. Calling it on an up-to-date database applies none.
func (s *Store) Migrate(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	done, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		s.log.Info().Int("version", m.version).Str("name", m.name).Msg("applied migration")
		applied = append(applied, m.version)
	}
	return applied, nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// AppliedMigrations lists recorded migrations, oldest first.
func (s *Store) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT version, name, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &r.Name, &appliedAt); err != nil {
			return nil, err
		}
		r.AppliedAt = parseTimestamp(appliedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ---- steps ----

func createBills(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		serial_number TEXT NOT NULL UNIQUE,
		customer_name TEXT NOT NULL,
		mobile_number TEXT,
		order_date TEXT NOT NULL,
		delivery_date TEXT NOT NULL,
		current_status TEXT,
		unit_price TEXT NOT NULL,
		advance_amount TEXT NOT NULL DEFAULT '0',
		advance_payment_mode TEXT,
		amount_due TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'NOT_PAID',
		amount_due_payment_mode TEXT,
		product_size TEXT,
		thickness TEXT,
		quantity INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func createIncome(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS income (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_mode TEXT
	)`)
	if err != nil {
		return err
	}
	return addColumnIfMissing(ctx, tx, "income", "payment_mode", "TEXT")
}

func createExpenses(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1
	)`)
	return err
}

// upgradeLegacyBills brings bills tables from older releases up to the
// current column set. On a fresh database every statement is a no-op.
func upgradeLegacyBills(ctx context.Context, tx *sql.Tx) error {
	if err := renameColumnIfPresent(ctx, tx, "bills", "total_price", "unit_price"); err != nil {
		return err
	}
	if err := renameColumnIfPresent(ctx, tx, "bills", "payment_mode", "advance_payment_mode"); err != nil {
		return err
	}
	for _, col := range []struct{ name, decl string }{
		{"advance_payment_mode", "TEXT"},
		{"amount_due_payment_mode", "TEXT"},
		{"current_status", "TEXT"},
		{"product_size", "TEXT"},
		{"thickness", "TEXT"},
		{"quantity", "INTEGER NOT NULL DEFAULT 1"},
	} {
		if err := addColumnIfMissing(ctx, tx, "bills", col.name, col.decl); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, "UPDATE bills SET payment_status = 'NOT_PAID' WHERE payment_status = 'NOT PAID'")
	return err
}

func linkIncomeToBills(ctx context.Context, tx *sql.Tx) error {
	if err := addColumnIfMissing(ctx, tx, "income", "bill_id", "INTEGER"); err != nil {
		return err
	}
	if err := addColumnIfMissing(ctx, tx, "income", "posting_kind", "TEXT"); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_income_bill_posting
			ON income(bill_id, posting_kind) WHERE bill_id IS NOT NULL`)
	return err
}

func ensureExpenseQuantity(ctx context.Context, tx *sql.Tx) error {
	return addColumnIfMissing(ctx, tx, "expenses", "quantity", "INTEGER NOT NULL DEFAULT 1")
}

func createListingIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE INDEX IF NOT EXISTS idx_bills_payment_status ON bills(payment_status);
	CREATE INDEX IF NOT EXISTS idx_income_date ON income(date DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date DESC, id DESC);
	`)
	return err
}

// narrowPostingIndex keeps the one-per-bill rule for advances only. A bill
// reopened and paid again owes a second final payment.
func narrowPostingIndex(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP INDEX IF EXISTS idx_income_bill_posting;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_income_bill_advance
		ON income(bill_id) WHERE bill_id IS NOT NULL AND posting_kind = 'advance';
	CREATE INDEX IF NOT EXISTS idx_income_bill ON income(bill_id, posting_kind);
	`)
	return err
}

// ---- helpers ----

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, decl string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

func renameColumnIfPresent(ctx context.Context, tx *sql.Tx, table, from, to string) error {
	hasFrom, err := columnExists(ctx, tx, table, from)
	if err != nil || !hasFrom {
		return err
	}
	hasTo, err := columnExists(ctx, tx, table, to)
	if err != nil || hasTo {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, from, to))
	return err
}
