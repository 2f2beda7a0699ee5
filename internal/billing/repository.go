package billing

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following table exists:
//
//	CREATE TABLE invoices (
//	  id           TEXT PRIMARY KEY,
//	  branch_id    TEXT NOT NULL,
//	  patient_id   TEXT NOT NULL,
//	  number       TEXT NOT NULL,
//	  amount_minor BIGINT NOT NULL,
//	  currency     TEXT NOT NULL,
//	  status       TEXT NOT NULL,
//	  notes        TEXT NOT NULL DEFAULT '',
//	  created_by   TEXT NOT NULL,
//	  created_at   TIMESTAMPTZ NOT NULL,
//	  updated_at   TIMESTAMPTZ NOT NULL,
//	  UNIQUE (branch_id, number)
//	);

func lockInvoice(ctx context.Context, tx *sql.Tx, branchID, invoiceID string) (Invoice, error) {
	// Lock the invoice row to serialize concurrent mutations per invoice.
	const q = `
SELECT id, branch_id, patient_id, number, amount_minor, currency, status, notes, created_by, created_at, updated_at
FROM invoices
WHERE branch_id = $1 AND id = $2
FOR UPDATE
`
	var inv Invoice
	if err := tx.QueryRowContext(ctx, q, branchID, invoiceID).Scan(
		&inv.ID,
		&inv.BranchID,
		&inv.PatientID,
		&inv.Number,
		&inv.AmountMinor,
		&inv.Currency,
		&inv.Status,
		&inv.Notes,
		&inv.CreatedBy,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func getInvoice(ctx context.Context, db *sql.DB, branchID, invoiceID string) (Invoice, error) {
	const q = `
SELECT id, branch_id, patient_id, number, amount_minor, currency, status, notes, created_by, created_at, updated_at
FROM invoices
WHERE branch_id = $1 AND id = $2
`
	var inv Invoice
	if err := db.QueryRowContext(ctx, q, branchID, invoiceID).Scan(
		&inv.ID,
		&inv.BranchID,
		&inv.PatientID,
		&inv.Number,
		&inv.AmountMinor,
		&inv.Currency,
		&inv.Status,
		&inv.Notes,
		&inv.CreatedBy,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func insertInvoice(ctx context.Context, tx *sql.Tx, inv Invoice) error {
	const q = `
INSERT INTO invoices (
  id, branch_id, patient_id, number, amount_minor, currency, status, notes, created_by, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := tx.ExecContext(ctx, q,
		inv.ID,
		inv.BranchID,
		inv.PatientID,
		inv.Number,
		inv.AmountMinor,
		inv.Currency,
		inv.Status,
		inv.Notes,
		inv.CreatedBy,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	return err
}

func updateInvoice(ctx context.Context, tx *sql.Tx, inv Invoice) error {
	const q = `
UPDATE invoices
SET amount_minor = $3, currency = $4, status = $5, notes = $6, updated_at = $7
WHERE branch_id = $1 AND id = $2
`
	_, err := tx.ExecContext(ctx, q,
		inv.BranchID,
		inv.ID,
		inv.AmountMinor,
		inv.Currency,
		inv.Status,
		inv.Notes,
		inv.UpdatedAt,
	)
	return err
}

func deleteInvoice(ctx context.Context, tx *sql.Tx, branchID, invoiceID string) error {
	const q = `DELETE FROM invoices WHERE branch_id = $1 AND id = $2`
	_, err := tx.ExecContext(ctx, q, branchID, invoiceID)
	return err
}
