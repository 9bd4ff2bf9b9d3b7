package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// ReceiptRepo provides persistence for custody receipts and their
// item rows. Issuing writes the receipt and all item links in one
// transaction; returns are per-item updates so concurrent return
// requests from different views stay idempotent.
type ReceiptRepo struct {
	db *sql.DB
}

// NewReceiptRepo returns a new ReceiptRepo bound to the given database.
func NewReceiptRepo(db *sql.DB) *ReceiptRepo { return &ReceiptRepo{db: db} }

func scanReceipt(row interface{ Scan(...any) error }) (*model.CustodyReceipt, error) {
	var (
		rec      model.CustodyReceipt
		returned sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.ReceiptNumber, &rec.HolderID, &rec.Status,
		&rec.DocumentRef, &rec.IssuedAt, &returned, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if returned.Valid {
		t := returned.Time
		rec.ReturnedAt = &t
	}
	return &rec, nil
}

const receiptCols = `id, receipt_number, holder_id, status, document_ref, issued_at, returned_at, created_at`

// Create inserts a receipt together with one item row per equipment
// ID, all inside a single transaction. For an ISSUED receipt each
// item row is inserted through a guard that re-checks the custody
// lock, so two concurrent issues of the same item cannot both commit:
// the loser's insert matches no rows and the transaction rolls back
// with ErrLocked.
func (r *ReceiptRepo) Create(ctx context.Context, rec *model.CustodyReceipt, itemIDs []uint64) (*model.CustodyReceipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO custody_receipts (receipt_number, holder_id, status, document_ref, issued_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ReceiptNumber, rec.HolderID, rec.Status, rec.DocumentRef, rec.IssuedAt.UTC())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, eid := range itemIDs {
		if rec.Status != model.ReceiptStatusIssued {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO custody_receipt_items (receipt_id, equipment_id) VALUES (?, ?)`,
				id, eid); err != nil {
				return nil, err
			}
			continue
		}
		// The NOT EXISTS guard runs inside the same transaction as the
		// receipt insert. Zero rows means another ISSUED receipt holds
		// the item, so the whole issue is abandoned.
		res, err := tx.ExecContext(ctx,
			`INSERT INTO custody_receipt_items (receipt_id, equipment_id)
			 SELECT ?, ? FROM DUAL
			 WHERE NOT EXISTS (
				SELECT 1 FROM custody_receipt_items cri
				JOIN custody_receipts cr ON cr.id = cri.receipt_id
				WHERE cri.equipment_id = ? AND cri.returned_at IS NULL AND cr.status = ?
			 )`,
			id, eid, eid, model.ReceiptStatusIssued)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrLocked
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a receipt or ErrNotFound.
func (r *ReceiptRepo) GetByID(ctx context.Context, id uint64) (*model.CustodyReceipt, error) {
	rec, err := scanReceipt(r.db.QueryRowContext(ctx,
		`SELECT `+receiptCols+` FROM custody_receipts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListByHolder returns all receipts issued to a holder, newest first.
func (r *ReceiptRepo) ListByHolder(ctx context.Context, holderID uint64) ([]model.CustodyReceipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptCols+` FROM custody_receipts WHERE holder_id = ? ORDER BY issued_at DESC, id DESC`, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CustodyReceipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Items returns the item rows of a receipt.
func (r *ReceiptRepo) Items(ctx context.Context, receiptID uint64) ([]model.CustodyReceiptItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, receipt_id, equipment_id, returned_at FROM custody_receipt_items WHERE receipt_id = ? ORDER BY id`,
		receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CustodyReceiptItem
	for rows.Next() {
		var (
			it       model.CustodyReceiptItem
			returned sql.NullTime
		)
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.EquipmentID, &returned); err != nil {
			return nil, err
		}
		if returned.Valid {
			t := returned.Time
			it.ReturnedAt = &t
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkItemReturned stamps the return time on a single item row. The
// update only applies when the row is still outstanding, so the bool
// result distinguishes a real return (true) from an idempotent
// no-op on an already-returned item (false). An item that is not on
// the receipt at all yields ErrNotFound.
func (r *ReceiptRepo) MarkItemReturned(ctx context.Context, receiptID, equipmentID uint64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE custody_receipt_items SET returned_at = ? WHERE receipt_id = ? AND equipment_id = ? AND returned_at IS NULL`,
		at.UTC(), receiptID, equipmentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custody_receipt_items WHERE receipt_id = ? AND equipment_id = ?`,
		receiptID, equipmentID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// MarkIssued finalizes a GENERATED receipt. The lock check and the
// status flip share one transaction: the outstanding rows of other
// ISSUED receipts holding any of this receipt's items are counted
// under FOR UPDATE, so a concurrent issue of the same item either
// blocks this finalize or is seen by it. ErrLocked when an item is
// held elsewhere, ErrInvalidTransition when the receipt is not a
// draft, ErrNotFound when it does not exist.
func (r *ReceiptRepo) MarkIssued(ctx context.Context, receiptID uint64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var held int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custody_receipt_items cri
		 JOIN custody_receipts cr ON cr.id = cri.receipt_id
		 WHERE cri.equipment_id IN (
			SELECT equipment_id FROM custody_receipt_items WHERE receipt_id = ?
		 )
		 AND cri.receipt_id <> ? AND cri.returned_at IS NULL AND cr.status = ?
		 FOR UPDATE`,
		receiptID, receiptID, model.ReceiptStatusIssued).Scan(&held)
	if err != nil {
		return err
	}
	if held > 0 {
		return ErrLocked
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE custody_receipts SET status = ?, issued_at = ? WHERE id = ? AND status = ?`,
		model.ReceiptStatusIssued, at.UTC(), receiptID, model.ReceiptStatusGenerated)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM custody_receipts WHERE id = ?`, receiptID).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrInvalidTransition
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// OutstandingCount returns how many items of the receipt have not
// been returned yet.
func (r *ReceiptRepo) OutstandingCount(ctx context.Context, receiptID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custody_receipt_items WHERE receipt_id = ? AND returned_at IS NULL`,
		receiptID).Scan(&n)
	return n, err
}

// Close flips the receipt to RETURNED and stamps the return time.
func (r *ReceiptRepo) Close(ctx context.Context, receiptID uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE custody_receipts SET status = ?, returned_at = ? WHERE id = ? AND status = ?`,
		model.ReceiptStatusReturned, at.UTC(), receiptID, model.ReceiptStatusIssued)
	return err
}
