package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// SessionRepo provides persistence for accountability sessions and
// their per-item verification records. Item transitions are
// compare-and-swap updates on the item version so racing writers are
// detected rather than overwritten.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionCols = `id, scope_id, authority_id, status, item_count, created_at, closed_at`

func scanSession(row interface{ Scan(...any) error }) (*model.AccountabilitySession, error) {
	var (
		s      model.AccountabilitySession
		closed sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ScopeID, &s.AuthorityID, &s.Status, &s.ItemCount, &s.CreatedAt, &closed)
	if err != nil {
		return nil, err
	}
	if closed.Valid {
		t := closed.Time
		s.ClosedAt = &t
	}
	return &s, nil
}

const itemCols = `id, session_id, equipment_id, nomenclature, serial_number, holder_id,
	status, method, confirmation_status, verified_by, verified_at, confirmed_at,
	version, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*model.AccountabilityItem, error) {
	var (
		it        model.AccountabilityItem
		serial    sql.NullString
		verifier  sql.NullInt64
		verified  sql.NullTime
		confirmed sql.NullTime
	)
	err := row.Scan(&it.ID, &it.SessionID, &it.EquipmentID, &it.Nomenclature, &serial,
		&it.HolderID, &it.Status, &it.Method, &it.ConfirmationStatus,
		&verifier, &verified, &confirmed, &it.Version, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if serial.Valid {
		s := serial.String
		it.SerialNumber = &s
	}
	if verifier.Valid {
		v := uint64(verifier.Int64)
		it.VerifiedBy = &v
	}
	if verified.Valid {
		t := verified.Time
		it.VerifiedAt = &t
	}
	if confirmed.Valid {
		t := confirmed.Time
		it.ConfirmedAt = &t
	}
	return &it, nil
}

// ActiveForScope returns the ACTIVE session for a scope, or nil when
// the scope has none.
func (r *SessionRepo) ActiveForScope(ctx context.Context, scopeID string) (*model.AccountabilitySession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM accountability_sessions WHERE scope_id = ? AND status = ? LIMIT 1`,
		scopeID, model.SessionStatusActive))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// Create inserts the session and all of its item snapshots in one
// transaction and populates the generated IDs on the passed records.
// The active_scope unique key rejects a second ACTIVE session for the
// same scope at the database, so two concurrent opens cannot both
// commit; the loser gets ErrSessionConflict.
func (r *SessionRepo) Create(ctx context.Context, s *model.AccountabilitySession, items []model.AccountabilityItem) (*model.AccountabilitySession, error) {
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
		`INSERT INTO accountability_sessions (scope_id, authority_id, status, item_count) VALUES (?, ?, ?, ?)`,
		s.ScopeID, s.AuthorityID, s.Status, len(items))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return nil, ErrSessionConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		query := `INSERT INTO accountability_items
			(session_id, equipment_id, nomenclature, serial_number, holder_id, status, version) VALUES `
		args := make([]interface{}, 0, len(items)*7)
		for i := range items {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, 1)"
			args = append(args, id, items[i].EquipmentID, items[i].Nomenclature,
				items[i].SerialNumber, items[i].HolderID, model.ItemStatusNotAccountedFor)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a session or ErrNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.AccountabilitySession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM accountability_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

// Items returns all item records of a session.
func (r *SessionRepo) Items(ctx context.Context, sessionID uint64) ([]model.AccountabilityItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM accountability_items WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountabilityItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// GetItem returns a single accountability item or ErrNotFound.
func (r *SessionRepo) GetItem(ctx context.Context, itemID uint64) (*model.AccountabilityItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemCols+` FROM accountability_items WHERE id = ?`, itemID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return it, err
}

// FindActiveBySerial resolves a serial number against the item
// snapshots of ACTIVE sessions only. The live equipment table is
// deliberately not consulted: what a session verifies is what it
// snapshotted at open. Returns nil when no active snapshot carries
// the serial.
func (r *SessionRepo) FindActiveBySerial(ctx context.Context, serial string) (*model.AccountabilityItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT i.id, i.session_id, i.equipment_id, i.nomenclature, i.serial_number, i.holder_id,
			i.status, i.method, i.confirmation_status, i.verified_by, i.verified_at, i.confirmed_at,
			i.version, i.created_at, i.updated_at
		 FROM accountability_items i
		 JOIN accountability_sessions s ON s.id = i.session_id
		 WHERE i.serial_number = ? AND s.status = ?
		 LIMIT 1`,
		serial, model.SessionStatusActive))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return it, err
}

// CompareAndSwapItem writes the full transition state of an item if
// and only if the stored version equals expected and the owning
// session is still ACTIVE. The join makes the session check part of
// the same update, so a submission racing Cancel or Complete is
// rejected with the item left exactly as it was. A stale version
// yields ErrConflict, a closed session ErrSessionClosed.
func (r *SessionRepo) CompareAndSwapItem(ctx context.Context, it *model.AccountabilityItem, expected uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accountability_items i
		 JOIN accountability_sessions s ON s.id = i.session_id
		 SET i.status = ?, i.method = ?, i.confirmation_status = ?, i.verified_by = ?,
		     i.verified_at = ?, i.confirmed_at = ?, i.version = i.version + 1
		 WHERE i.id = ? AND i.version = ? AND s.status = ?`,
		it.Status, it.Method, it.ConfirmationStatus, it.VerifiedBy,
		nullableTime(it.VerifiedAt), nullableTime(it.ConfirmedAt),
		it.ID, expected, model.SessionStatusActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var (
			cur           uint64
			sessionStatus string
		)
		err := r.db.QueryRowContext(ctx,
			`SELECT i.version, s.status FROM accountability_items i
			 JOIN accountability_sessions s ON s.id = i.session_id
			 WHERE i.id = ?`, it.ID).Scan(&cur, &sessionStatus)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if sessionStatus != model.SessionStatusActive {
			return ErrSessionClosed
		}
		return ErrConflict
	}
	it.Version = expected + 1
	return nil
}

// PendingCount returns how many items of the session are still
// VERIFICATION_PENDING. Completion is gated on this being zero.
func (r *SessionRepo) PendingCount(ctx context.Context, sessionID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accountability_items WHERE session_id = ? AND status = ?`,
		sessionID, model.ItemStatusVerificationPending).Scan(&n)
	return n, err
}

// Close moves an ACTIVE session to a terminal status and stamps the
// close time. Closing an already-closed session affects no rows,
// which keeps terminal sessions immutable.
func (r *SessionRepo) Close(ctx context.Context, sessionID uint64, status string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accountability_sessions SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
		status, at.UTC(), sessionID, model.SessionStatusActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionClosed
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
