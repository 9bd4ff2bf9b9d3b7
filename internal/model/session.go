package model

import "time"

// Accountability session statuses. A session is terminal once
// COMPLETED or CANCELLED and is never mutated afterwards.
const (
	SessionStatusActive    = "ACTIVE"
	SessionStatusCompleted = "COMPLETED"
	SessionStatusCancelled = "CANCELLED"
)

// Accountability item statuses.
const (
	ItemStatusNotAccountedFor     = "NOT_ACCOUNTED_FOR"
	ItemStatusVerificationPending = "VERIFICATION_PENDING"
	ItemStatusAccountedFor        = "ACCOUNTED_FOR"
)

// Verification methods.
const (
	MethodDirect      = "DIRECT"
	MethodSelfService = "SELF_SERVICE"
)

// Confirmation statuses, meaningful only for SELF_SERVICE items.
const (
	ConfirmationPending   = "PENDING"
	ConfirmationConfirmed = "CONFIRMED"
	ConfirmationFailed    = "FAILED"
)

// AccountabilitySession is one verification round conducted over a
// snapshot of issued equipment. At most one ACTIVE session may exist
// per scope at a time.
//
// Fields:
//  ID          - primary key identifier.
//  ScopeID     - organizational unit (UIC) the round covers.
//  AuthorityID - user conducting the session.
//  Status      - ACTIVE, COMPLETED or CANCELLED.
//  ItemCount   - number of items snapshotted at open.
//  CreatedAt   - when the session was opened.
//  ClosedAt    - when the session was completed or cancelled (nullable).
type AccountabilitySession struct {
	ID          uint64     // accountability_sessions.id
	ScopeID     string     // accountability_sessions.scope_id
	AuthorityID uint64     // accountability_sessions.authority_id
	Status      string     // accountability_sessions.status
	ItemCount   int        // accountability_sessions.item_count
	CreatedAt   time.Time  // accountability_sessions.created_at
	ClosedAt    *time.Time // accountability_sessions.closed_at (nullable)
}

// AccountabilityItem is the per-item verification record inside a
// session. Nomenclature, serial and holder are denormalized from the
// equipment record at session open so that a concurrent reassignment
// elsewhere does not change what the session is checking. All
// transitions are version-checked; the Version column increases by
// one per committed transition.
//
// Fields:
//  ID                 - primary key identifier.
//  SessionID          - owning session.
//  EquipmentID        - equipment record this item snapshots.
//  Nomenclature       - display name at session-open time.
//  SerialNumber       - serial at session-open time (nullable).
//  HolderID           - holder at session-open time.
//  Status             - NOT_ACCOUNTED_FOR, VERIFICATION_PENDING or ACCOUNTED_FOR.
//  Method             - DIRECT or SELF_SERVICE; empty until first transition.
//  ConfirmationStatus - PENDING/CONFIRMED/FAILED for SELF_SERVICE; empty otherwise.
//  VerifiedBy         - actor that drove the last transition (nullable).
//  VerifiedAt         - when the item entered VERIFICATION_PENDING or was
//                       marked directly (nullable).
//  ConfirmedAt        - when the authority confirmed or rejected (nullable).
//  Version            - optimistic locking token.
//  CreatedAt          - creation timestamp.
//  UpdatedAt          - last update timestamp.
type AccountabilityItem struct {
	ID                 uint64     // accountability_items.id
	SessionID          uint64     // accountability_items.session_id
	EquipmentID        uint64     // accountability_items.equipment_id
	Nomenclature       string     // accountability_items.nomenclature
	SerialNumber       *string    // accountability_items.serial_number (nullable)
	HolderID           uint64     // accountability_items.holder_id
	Status             string     // accountability_items.status
	Method             string     // accountability_items.method
	ConfirmationStatus string     // accountability_items.confirmation_status
	VerifiedBy         *uint64    // accountability_items.verified_by (nullable)
	VerifiedAt         *time.Time // accountability_items.verified_at (nullable)
	ConfirmedAt        *time.Time // accountability_items.confirmed_at (nullable)
	Version            uint64     // accountability_items.version
	CreatedAt          time.Time  // accountability_items.created_at
	UpdatedAt          time.Time  // accountability_items.updated_at
}
