package repository

import (
	"context"
	"database/sql"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// EquipmentRepo encapsulates database operations for equipment
// records and groups. Holder assignment is the only mutable field and
// every write to it is a compare-and-swap on the version column; a
// stale version yields ErrConflict so callers can re-read and retry.
type EquipmentRepo struct {
	db *sql.DB
}

// NewEquipmentRepo constructs an EquipmentRepo given a DB handle.
func NewEquipmentRepo(db *sql.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *EquipmentRepo) DB() *sql.DB { return r.db }

const equipmentCols = `id, nomenclature, serial_number, stock_number, group_id, holder_id, version, created_at, updated_at`

func scanEquipment(row interface{ Scan(...any) error }) (*model.EquipmentRecord, error) {
	var (
		rec    model.EquipmentRecord
		serial sql.NullString
		stock  sql.NullString
		group  sql.NullInt64
		holder sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Nomenclature, &serial, &stock, &group, &holder,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if serial.Valid {
		s := serial.String
		rec.SerialNumber = &s
	}
	if stock.Valid {
		s := stock.String
		rec.StockNumber = &s
	}
	if group.Valid {
		g := uint64(group.Int64)
		rec.GroupID = &g
	}
	if holder.Valid {
		h := uint64(holder.Int64)
		rec.HolderID = &h
	}
	return &rec, nil
}

// Create inserts an equipment record at version 1 and returns it.
func (r *EquipmentRepo) Create(ctx context.Context, nomenclature string, serial, stock *string, groupID *uint64) (*model.EquipmentRecord, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO equipment (nomenclature, serial_number, stock_number, group_id, version) VALUES (?, ?, ?, ?, 1)`,
		nomenclature, serial, stock, groupID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a single equipment record or ErrNotFound.
func (r *EquipmentRepo) GetByID(ctx context.Context, id uint64) (*model.EquipmentRecord, error) {
	rec, err := scanEquipment(r.db.QueryRowContext(ctx,
		`SELECT `+equipmentCols+` FROM equipment WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns all equipment records, optionally filtered by holder.
func (r *EquipmentRepo) List(ctx context.Context, holderID *uint64) ([]model.EquipmentRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if holderID != nil {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+equipmentCols+` FROM equipment WHERE holder_id = ? ORDER BY nomenclature, id`, *holderID)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+equipmentCols+` FROM equipment ORDER BY nomenclature, id`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EquipmentRecord
	for rows.Next() {
		rec, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GroupMembers returns all equipment records belonging to a group.
func (r *EquipmentRepo) GroupMembers(ctx context.Context, groupID uint64) ([]model.EquipmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+equipmentCols+` FROM equipment WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EquipmentRecord
	for rows.Next() {
		rec, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CreateGroup inserts an equipment group.
func (r *EquipmentRepo) CreateGroup(ctx context.Context, name string) (*model.EquipmentGroup, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO equipment_groups (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	var g model.EquipmentGroup
	err = r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM equipment_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CompareAndSwapHolder sets (or clears, when holder is nil) the
// holder of an equipment record if and only if the stored version
// equals expected. On success the new version is returned; a version
// mismatch yields ErrConflict and a missing row ErrNotFound.
func (r *EquipmentRepo) CompareAndSwapHolder(ctx context.Context, id uint64, holder *uint64, expected uint64) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE equipment SET holder_id = ?, version = version + 1 WHERE id = ? AND version = ?`,
		holder, id, expected)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Zero rows means either the record is gone or the version
		// was stale; a follow-up read tells the two apart.
		var cur uint64
		err := r.db.QueryRowContext(ctx, `SELECT version FROM equipment WHERE id = ?`, id).Scan(&cur)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, ErrConflict
	}
	return expected + 1, nil
}

// IsIssued reports whether the item belongs to a custody receipt with
// status ISSUED whose per-item return has not yet happened. Such an
// item is locked against reassignment.
func (r *EquipmentRepo) IsIssued(ctx context.Context, equipmentID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custody_receipt_items cri
		 JOIN custody_receipts cr ON cr.id = cri.receipt_id
		 WHERE cri.equipment_id = ? AND cr.status = ? AND cri.returned_at IS NULL`,
		equipmentID, model.ReceiptStatusIssued).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
