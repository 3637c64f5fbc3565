// Package store persists normalized transfers in sqlite, keyed by
// content hash so re-scraped pages never produce duplicate records, and
// exports per-company workbooks.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
	hash                TEXT PRIMARY KEY,
	operation_id        TEXT NOT NULL,
	detected_at         TEXT NOT NULL,
	value_date          TEXT,
	payer_name          TEXT,
	payer_tax_id        TEXT,
	payer_account       TEXT,
	amount              INTEGER NOT NULL,
	recipient_tax_id    TEXT,
	billing_class       TEXT NOT NULL,
	company_label       TEXT,
	destination_account TEXT,
	invoiced            INTEGER NOT NULL DEFAULT 0,
	inserted_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transfers_company ON transfers (company_label);
CREATE INDEX IF NOT EXISTS idx_transfers_invoiced ON transfers (invoiced);
`

// Store wraps the sqlite handle. One Store per process; sqlite handles
// the locking.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// BatchResult reports how a batch landed.
type BatchResult struct {
	Inserted   int
	Duplicates int
}

// InsertBatch stores records, silently skipping any whose content hash
// is already present. The whole batch commits or none of it does.
func (s *Store) InsertBatch(ctx context.Context, records []bank.Transfer) (BatchResult, error) {
	var res BatchResult
	if len(records) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transfers (
			hash, operation_id, detected_at, value_date, payer_name,
			payer_tax_id, payer_account, amount, recipient_tax_id,
			billing_class, company_label, destination_account, inserted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`)
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range records {
		r, err := stmt.ExecContext(ctx,
			t.ContentHash, t.OperationID, t.DetectedAt, t.ValueDate, t.PayerName,
			t.PayerTaxID, t.PayerAccount, t.Amount, t.RecipientTaxID,
			string(t.BillingClass), t.CompanyLabel, t.DestinationAccount, now)
		if err != nil {
			return res, fmt.Errorf("insert transfer %s: %w", t.OperationID, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit batch: %w", err)
	}
	return res, nil
}

// Uninvoiced returns stored transfers not yet marked invoiced, optionally
// filtered to one company label. Ordered oldest first.
func (s *Store) Uninvoiced(ctx context.Context, companyLabel string) ([]bank.Transfer, error) {
	query := `
		SELECT hash, operation_id, detected_at, value_date, payer_name,
		       payer_tax_id, payer_account, amount, recipient_tax_id,
		       billing_class, company_label, destination_account
		FROM transfers WHERE invoiced = 0`
	args := []any{}
	if companyLabel != "" {
		query += ` AND company_label = ?`
		args = append(args, companyLabel)
	}
	query += ` ORDER BY detected_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query uninvoiced: %w", err)
	}
	defer rows.Close()

	var out []bank.Transfer
	for rows.Next() {
		var t bank.Transfer
		var class string
		if err := rows.Scan(&t.ContentHash, &t.OperationID, &t.DetectedAt, &t.ValueDate,
			&t.PayerName, &t.PayerTaxID, &t.PayerAccount, &t.Amount, &t.RecipientTaxID,
			&class, &t.CompanyLabel, &t.DestinationAccount); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.BillingClass = bank.BillingClass(class)
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkInvoiced flags the given content hashes as invoiced.
func (s *Store) MarkInvoiced(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE transfers SET invoiced = 1 WHERE hash = ?`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, h := range hashes {
		if _, err := stmt.ExecContext(ctx, h); err != nil {
			return fmt.Errorf("mark invoiced %s: %w", h, err)
		}
	}
	return tx.Commit()
}

// Count returns the total number of stored transfers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&n)
	return n, err
}
