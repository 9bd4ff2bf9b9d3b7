package model

import "time"

// Custody receipt statuses.
const (
	ReceiptStatusGenerated = "GENERATED"
	ReceiptStatusIssued    = "ISSUED"
	ReceiptStatusReturned  = "RETURNED"
)

// CustodyReceipt records the transfer of physical custody of one or
// more equipment items to a holder. While the receipt is ISSUED its
// items are locked against reassignment through the ledger; returning
// every item flips the receipt to RETURNED.
//
// Fields:
//  ID            - primary key identifier.
//  ReceiptNumber - caller-chosen number used as a stable grouping key.
//  HolderID      - user taking custody of the items.
//  Status        - GENERATED, ISSUED or RETURNED.
//  DocumentRef   - opaque reference to the rendered receipt document.
//  IssuedAt      - when custody was transferred.
//  ReturnedAt    - when the last item came back (nullable).
//  CreatedAt     - creation timestamp.
type CustodyReceipt struct {
	ID            uint64     // custody_receipts.id
	ReceiptNumber string     // custody_receipts.receipt_number
	HolderID      uint64     // custody_receipts.holder_id
	Status        string     // custody_receipts.status
	DocumentRef   string     // custody_receipts.document_ref
	IssuedAt      time.Time  // custody_receipts.issued_at
	ReturnedAt    *time.Time // custody_receipts.returned_at (nullable)
	CreatedAt     time.Time  // custody_receipts.created_at
}

// CustodyReceiptItem links a receipt to a single equipment record.
// ReturnedAt is set per item so that partial returns are visible and
// a second return of the same item is a no-op.
type CustodyReceiptItem struct {
	ID          uint64     // custody_receipt_items.id
	ReceiptID   uint64     // custody_receipt_items.receipt_id
	EquipmentID uint64     // custody_receipt_items.equipment_id
	ReturnedAt  *time.Time // custody_receipt_items.returned_at (nullable)
}
