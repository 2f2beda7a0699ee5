package billing

import "time"

// ModelName is the entity name invoices carry in audit records.
const ModelName = "billing.Invoice"

// Invoice is a branch-scoped bill for a patient visit.
//
// Multi-tenant invariant: branch_id required and enforced in all queries.
// Audit invariant: every invoice mutation writes an audit record in the SAME
// transaction, so "no record" and "mutation not committed" stay consistent.
type Invoice struct {
	ID       string `json:"id" db:"id"`
	BranchID string `json:"branch_id" db:"branch_id"`

	PatientID string `json:"patient_id" db:"patient_id"`

	// Number is the human-facing invoice number (e.g. INV-001), unique per branch.
	Number string `json:"number" db:"number"`

	// AmountMinor is the billed amount in minor units (e.g., paise).
	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	Status InvoiceStatus `json:"status" db:"status"`

	Notes string `json:"notes,omitempty" db:"notes"`

	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

// payload renders the invoice as the audit before/after state.
// Amounts stay integral minor units; no floats enter the hash input.
func payload(inv Invoice) map[string]any {
	return map[string]any{
		"patient_id":   inv.PatientID,
		"number":       inv.Number,
		"amount_minor": inv.AmountMinor,
		"currency":     inv.Currency,
		"status":       string(inv.Status),
		"notes":        inv.Notes,
	}
}
