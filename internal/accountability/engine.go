// Package accountability implements the accountability session
// engine: the session lifecycle, the per-item verification state
// machine, the event hub that propagates committed transitions to
// viewers, and the completion summary.
//
// The legal item transitions are:
//
//	NOT_ACCOUNTED_FOR    --authority marks directly-->  ACCOUNTED_FOR         (DIRECT)
//	NOT_ACCOUNTED_FOR    --holder submits serial---->   VERIFICATION_PENDING  (SELF_SERVICE, PENDING)
//	VERIFICATION_PENDING --authority confirms------->   ACCOUNTED_FOR         (CONFIRMED)
//	VERIFICATION_PENDING --authority rejects-------->   NOT_ACCOUNTED_FOR     (FAILED)
//
// Anything else fails with repository.ErrInvalidTransition. Each
// transition is a compare-and-swap on the item version, so two
// writers racing on the same observed version resolve to one winner.
package accountability

import (
	"context"
	"fmt"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// SessionStore is the persistence surface of the engine. The
// repository package provides the MySQL implementation; tests use an
// in-memory fake.
type SessionStore interface {
	ActiveForScope(ctx context.Context, scopeID string) (*model.AccountabilitySession, error)
	Create(ctx context.Context, s *model.AccountabilitySession, items []model.AccountabilityItem) (*model.AccountabilitySession, error)
	GetByID(ctx context.Context, id uint64) (*model.AccountabilitySession, error)
	Items(ctx context.Context, sessionID uint64) ([]model.AccountabilityItem, error)
	GetItem(ctx context.Context, itemID uint64) (*model.AccountabilityItem, error)
	// FindActiveBySerial resolves a serial against ACTIVE-session
	// snapshots only; nil means no match.
	FindActiveBySerial(ctx context.Context, serial string) (*model.AccountabilityItem, error)
	// CompareAndSwapItem commits the full transition iff the stored
	// version equals expected and the owning session is ACTIVE;
	// repository.ErrConflict on a stale version,
	// repository.ErrSessionClosed on a closed session.
	CompareAndSwapItem(ctx context.Context, it *model.AccountabilityItem, expected uint64) error
	PendingCount(ctx context.Context, sessionID uint64) (int, error)
	Close(ctx context.Context, sessionID uint64, status string, at time.Time) error
}

// EquipmentReader is the slice of the ledger the engine reads when
// snapshotting items at session open. The engine never writes to the
// ledger.
type EquipmentReader interface {
	GetByID(ctx context.Context, id uint64) (*model.EquipmentRecord, error)
	IsIssued(ctx context.Context, equipmentID uint64) (bool, error)
}

// Publisher receives the full item snapshot of every committed
// transition. The engine treats publishing as fire-and-forget:
// propagation may lag, delivery is at-least-once, and a publish
// failure never rolls back a committed transition.
type Publisher interface {
	Publish(ev ItemEvent)
}

// Engine drives accountability sessions. Construct with NewEngine.
type Engine struct {
	sessions  SessionStore
	equipment EquipmentReader
	events    Publisher
}

// NewEngine returns an Engine. events may be nil when no propagation
// is wired (e.g. in tests that only exercise transitions).
func NewEngine(sessions SessionStore, equipment EquipmentReader, events Publisher) *Engine {
	if sessions == nil || equipment == nil {
		panic("nil dependency passed to accountability.NewEngine")
	}
	return &Engine{sessions: sessions, equipment: equipment, events: events}
}

// Start opens a session over the selected items. It fails with
// repository.ErrSessionConflict when the scope already has an ACTIVE
// session, and with repository.ErrNotEligible when a selected item is
// not currently on an ISSUED receipt. Each eligible item is
// snapshotted (nomenclature, serial, holder) so a ledger reassignment
// mid-session cannot change what the session is checking.
func (e *Engine) Start(ctx context.Context, scopeID string, authorityID uint64, itemIDs []uint64) (*model.AccountabilitySession, error) {
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("start: no items selected")
	}
	active, err := e.sessions.ActiveForScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("checking active session: %w", err)
	}
	if active != nil {
		return nil, repository.ErrSessionConflict
	}

	items := make([]model.AccountabilityItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		rec, err := e.equipment.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		issued, err := e.equipment.IsIssued(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("checking receipt status: %w", err)
		}
		if !issued || rec.HolderID == nil {
			return nil, repository.ErrNotEligible
		}
		items = append(items, model.AccountabilityItem{
			EquipmentID:  rec.ID,
			Nomenclature: rec.Nomenclature,
			SerialNumber: rec.SerialNumber,
			HolderID:     *rec.HolderID,
			Status:       model.ItemStatusNotAccountedFor,
		})
	}

	return e.sessions.Create(ctx, &model.AccountabilitySession{
		ScopeID:     scopeID,
		AuthorityID: authorityID,
		Status:      model.SessionStatusActive,
	}, items)
}

// MarkAccounted is the authority's direct verification of an item.
// Only NOT_ACCOUNTED_FOR items may be marked.
func (e *Engine) MarkAccounted(ctx context.Context, actorID, sessionID, itemID uint64) (*model.AccountabilityItem, error) {
	session, item, err := e.loadForTransition(ctx, actorID, sessionID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != model.ItemStatusNotAccountedFor {
		return nil, repository.ErrInvalidTransition
	}
	now := time.Now().UTC()
	item.Status = model.ItemStatusAccountedFor
	item.Method = model.MethodDirect
	item.ConfirmationStatus = ""
	item.VerifiedBy = &actorID
	item.VerifiedAt = &now
	item.ConfirmedAt = nil
	return e.commit(ctx, session, item)
}

// VerifyBySerial is the holder-side self-service submission. The
// serial is resolved against ACTIVE-session snapshots; no match, or a
// match that is already pending or accounted for, fails with
// repository.ErrNotEligible. The submitting actor must be the item's
// snapshot holder.
func (e *Engine) VerifyBySerial(ctx context.Context, actorID uint64, serial string) (*model.AccountabilityItem, error) {
	item, err := e.sessions.FindActiveBySerial(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("resolving serial: %w", err)
	}
	if item == nil {
		return nil, repository.ErrNotEligible
	}
	if item.HolderID != actorID {
		return nil, repository.ErrForbidden
	}
	if item.Status != model.ItemStatusNotAccountedFor {
		return nil, repository.ErrNotEligible
	}
	session, err := e.sessions.GetByID(ctx, item.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, repository.ErrSessionClosed
	}
	now := time.Now().UTC()
	item.Status = model.ItemStatusVerificationPending
	item.Method = model.MethodSelfService
	item.ConfirmationStatus = model.ConfirmationPending
	item.VerifiedBy = &actorID
	item.VerifiedAt = &now
	item.ConfirmedAt = nil
	return e.commit(ctx, session, item)
}

// ConfirmVerification is the authority's acceptance of a pending
// self-service submission.
func (e *Engine) ConfirmVerification(ctx context.Context, actorID, sessionID, itemID uint64) (*model.AccountabilityItem, error) {
	return e.resolvePending(ctx, actorID, sessionID, itemID, true)
}

// RejectVerification returns a pending item to NOT_ACCOUNTED_FOR with
// confirmation status FAILED. The holder may submit again, or the
// authority may mark directly.
func (e *Engine) RejectVerification(ctx context.Context, actorID, sessionID, itemID uint64) (*model.AccountabilityItem, error) {
	return e.resolvePending(ctx, actorID, sessionID, itemID, false)
}

func (e *Engine) resolvePending(ctx context.Context, actorID, sessionID, itemID uint64, confirm bool) (*model.AccountabilityItem, error) {
	session, item, err := e.loadForTransition(ctx, actorID, sessionID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != model.ItemStatusVerificationPending {
		return nil, repository.ErrInvalidTransition
	}
	now := time.Now().UTC()
	if confirm {
		item.Status = model.ItemStatusAccountedFor
		item.ConfirmationStatus = model.ConfirmationConfirmed
	} else {
		item.Status = model.ItemStatusNotAccountedFor
		item.ConfirmationStatus = model.ConfirmationFailed
	}
	item.ConfirmedAt = &now
	return e.commit(ctx, session, item)
}

// Complete closes an ACTIVE session. Zero VERIFICATION_PENDING items
// is a hard precondition: repository.ErrVerificationsPending is
// returned while any submission awaits confirmation. On success the
// final item snapshot is reduced into a Summary and the session
// becomes COMPLETED.
func (e *Engine) Complete(ctx context.Context, actorID, sessionID uint64) (*Summary, error) {
	if _, err := e.authorizedSession(ctx, actorID, sessionID); err != nil {
		return nil, err
	}
	pending, err := e.sessions.PendingCount(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting pending items: %w", err)
	}
	if pending > 0 {
		return nil, repository.ErrVerificationsPending
	}
	now := time.Now().UTC()
	if err := e.sessions.Close(ctx, sessionID, model.SessionStatusCompleted, now); err != nil {
		return nil, err
	}
	items, err := e.sessions.Items(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading final items: %w", err)
	}
	summary := Summarize(items, now)
	return &summary, nil
}

// Cancel discards an ACTIVE session unconditionally. The ledger is
// untouched and in-flight submissions racing the cancellation fail at
// commit time with repository.ErrSessionClosed.
func (e *Engine) Cancel(ctx context.Context, actorID, sessionID uint64) error {
	if _, err := e.authorizedSession(ctx, actorID, sessionID); err != nil {
		return err
	}
	return e.sessions.Close(ctx, sessionID, model.SessionStatusCancelled, time.Now().UTC())
}

// Get returns a session and its items.
func (e *Engine) Get(ctx context.Context, sessionID uint64) (*model.AccountabilitySession, []model.AccountabilityItem, error) {
	session, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	items, err := e.sessions.Items(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, items, nil
}

// authorizedSession loads a session and checks that actorID is its
// conducting authority and that the session is still ACTIVE.
func (e *Engine) authorizedSession(ctx context.Context, actorID, sessionID uint64) (*model.AccountabilitySession, error) {
	session, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AuthorityID != actorID {
		return nil, repository.ErrForbidden
	}
	if session.Status != model.SessionStatusActive {
		return nil, repository.ErrSessionClosed
	}
	return session, nil
}

func (e *Engine) loadForTransition(ctx context.Context, actorID, sessionID, itemID uint64) (*model.AccountabilitySession, *model.AccountabilityItem, error) {
	session, err := e.authorizedSession(ctx, actorID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	item, err := e.sessions.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.SessionID != sessionID {
		return nil, nil, repository.ErrNotFound
	}
	return session, item, nil
}

// commit compare-and-swaps the item at the version it was read at
// and, on success, publishes the full new state. The swap itself
// refuses to write into a session that is no longer ACTIVE, so a
// submission racing Cancel or Complete fails with ErrSessionClosed
// and leaves the item untouched.
func (e *Engine) commit(ctx context.Context, _ *model.AccountabilitySession, item *model.AccountabilityItem) (*model.AccountabilityItem, error) {
	if err := e.sessions.CompareAndSwapItem(ctx, item, item.Version); err != nil {
		return nil, err
	}
	if e.events != nil {
		e.events.Publish(ItemEvent{Item: *item, OccurredAt: time.Now().UTC()})
	}
	return item, nil
}
