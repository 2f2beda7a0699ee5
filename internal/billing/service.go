package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinic-platform/internal/eod"
	"clinic-platform/internal/ledger"
	"clinic-platform/pkg/utils"

	"github.com/google/uuid"
)

// Service provides invoice operations.
//
// Invariants:
// - No invoice mutation without an audit record in the same transaction.
// - branch_id is required and enforced in all queries.
// - Days closed by an EOD lock reject invoice mutations.
type Service struct {
	db     *sql.DB
	ledger *ledger.Service
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB, ldg *ledger.Service) *Service {
	return &Service{db: db, ledger: ldg, clock: time.Now}
}

var (
	ErrNotFound        = errors.New("billing: invoice not found")
	ErrInvalidArgument = errors.New("billing: invalid argument")
	ErrDayLocked       = errors.New("billing: day is closed by an EOD lock")
)

type CreateInvoiceRequest struct {
	PatientID   string `json:"patient_id"`
	Number      string `json:"number"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Notes       string `json:"notes,omitempty"`
}

type UpdateInvoiceRequest struct {
	AmountMinor *int64  `json:"amount_minor,omitempty"`
	Status      *string `json:"status,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (s *Service) CreateInvoice(ctx context.Context, ec ledger.EventContext, req CreateInvoiceRequest) (Invoice, error) {
	if ec.BranchID == "" || req.PatientID == "" || req.Number == "" || req.Currency == "" {
		return Invoice{}, ErrInvalidArgument
	}
	if req.AmountMinor < 0 {
		return Invoice{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	inv := Invoice{
		ID:          uuid.NewString(),
		BranchID:    ec.BranchID,
		PatientID:   req.PatientID,
		Number:      req.Number,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Status:      InvoiceStatusDraft,
		Notes:       req.Notes,
		CreatedBy:   ec.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ensureDayOpen(ctx, tx, ec.BranchID, now); err != nil {
			return err
		}
		if err := insertInvoice(ctx, tx, inv); err != nil {
			return err
		}
		_, err := s.ledger.AppendEventTx(ctx, tx, ec, ledger.ActionCreate, ModelName, inv.ID, nil, payload(inv))
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, ec ledger.EventContext, invoiceID string, req UpdateInvoiceRequest) (Invoice, error) {
	if ec.BranchID == "" || invoiceID == "" {
		return Invoice{}, ErrInvalidArgument
	}
	if req.AmountMinor == nil && req.Status == nil && req.Notes == nil {
		return Invoice{}, ErrInvalidArgument
	}
	if req.AmountMinor != nil && *req.AmountMinor < 0 {
		return Invoice{}, ErrInvalidArgument
	}
	if req.Status != nil && !validStatus(*req.Status) {
		return Invoice{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	var out Invoice

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ensureDayOpen(ctx, tx, ec.BranchID, now); err != nil {
			return err
		}

		old, err := lockInvoice(ctx, tx, ec.BranchID, invoiceID)
		if err != nil {
			return err
		}
		before := payload(old)

		next := old
		if req.AmountMinor != nil {
			next.AmountMinor = *req.AmountMinor
		}
		if req.Status != nil {
			next.Status = InvoiceStatus(*req.Status)
		}
		if req.Notes != nil {
			next.Notes = *req.Notes
		}
		next.UpdatedAt = now

		if err := updateInvoice(ctx, tx, next); err != nil {
			return err
		}
		if _, err := s.ledger.AppendEventTx(ctx, tx, ec, ledger.ActionUpdate, ModelName, next.ID, before, payload(next)); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return out, nil
}

// DeleteInvoice removes the invoice row. Its final state survives in the
// audit chain as the DELETE record's before payload.
func (s *Service) DeleteInvoice(ctx context.Context, ec ledger.EventContext, invoiceID string) error {
	if ec.BranchID == "" || invoiceID == "" {
		return ErrInvalidArgument
	}

	now := s.clock().UTC()
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ensureDayOpen(ctx, tx, ec.BranchID, now); err != nil {
			return err
		}

		old, err := lockInvoice(ctx, tx, ec.BranchID, invoiceID)
		if err != nil {
			return err
		}
		if err := deleteInvoice(ctx, tx, ec.BranchID, invoiceID); err != nil {
			return err
		}
		_, err = s.ledger.AppendEventTx(ctx, tx, ec, ledger.ActionDelete, ModelName, old.ID, payload(old), nil)
		return err
	})
}

func (s *Service) GetInvoice(ctx context.Context, branchID, invoiceID string) (Invoice, error) {
	if branchID == "" || invoiceID == "" {
		return Invoice{}, ErrInvalidArgument
	}
	return getInvoice(ctx, s.db, branchID, invoiceID)
}

func (s *Service) ensureDayOpen(ctx context.Context, tx *sql.Tx, branchID string, now time.Time) error {
	locked, err := eod.IsLockedTx(ctx, tx, branchID, eod.Day(now))
	if err != nil {
		return err
	}
	if locked {
		return ErrDayLocked
	}
	return nil
}

func validStatus(s string) bool {
	switch InvoiceStatus(s) {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPaid:
		return true
	default:
		return false
	}
}
