// Package custody implements the custody receipt store. Issuing a
// receipt is the only path that locks equipment against reassignment;
// returning items clears the lock per item.
package custody

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bekzatkhan/supply-accountability/internal/docgen"
	"github.com/bekzatkhan/supply-accountability/internal/model"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// Store is the persistence surface the custody service needs.
type Store interface {
	Create(ctx context.Context, rec *model.CustodyReceipt, itemIDs []uint64) (*model.CustodyReceipt, error)
	GetByID(ctx context.Context, id uint64) (*model.CustodyReceipt, error)
	ListByHolder(ctx context.Context, holderID uint64) ([]model.CustodyReceipt, error)
	Items(ctx context.Context, receiptID uint64) ([]model.CustodyReceiptItem, error)
	// MarkItemReturned stamps a single item row; false means the item
	// was already returned (idempotent no-op), repository.ErrNotFound
	// means the item is not on the receipt.
	MarkItemReturned(ctx context.Context, receiptID, equipmentID uint64, at time.Time) (bool, error)
	OutstandingCount(ctx context.Context, receiptID uint64) (int, error)
	// MarkIssued finalizes a GENERATED receipt in one transaction:
	// repository.ErrLocked when an item sits on another ISSUED
	// receipt, repository.ErrInvalidTransition when the receipt is
	// not a draft.
	MarkIssued(ctx context.Context, receiptID uint64, at time.Time) error
	Close(ctx context.Context, receiptID uint64, at time.Time) error
}

// EquipmentReader is the slice of the ledger the custody service
// reads: item lookup and the issued-lock check.
type EquipmentReader interface {
	GetByID(ctx context.Context, id uint64) (*model.EquipmentRecord, error)
	IsIssued(ctx context.Context, equipmentID uint64) (bool, error)
}

// ReturnResult summarizes a multi-item return. Each item is attempted
// independently; already-returned items land in Skipped rather than
// failing because concurrent return requests from different views are
// expected.
type ReturnResult struct {
	Returned []uint64 `json:"returned"`
	Skipped  []uint64 `json:"skipped,omitempty"`
	Failed   []uint64 `json:"failed,omitempty"`
}

// Service is the custody receipt service handle.
type Service struct {
	store     Store
	equipment EquipmentReader
	docs      docgen.Generator
}

// New returns a custody Service. The generator may be nil, in which
// case Issue requires the caller to supply a document reference.
func New(store Store, equipment EquipmentReader, docs docgen.Generator) *Service {
	if store == nil || equipment == nil {
		panic("nil dependency passed to custody.New")
	}
	return &Service{store: store, equipment: equipment, docs: docs}
}

// Issue transfers custody of itemIDs to holderID under one receipt.
// Every item must exist and must not already sit on an ISSUED
// receipt (repository.ErrLocked otherwise). When documentRef is
// empty the document generator produces one. The receipt is created
// with status ISSUED and stamps the issuance time.
func (s *Service) Issue(ctx context.Context, receiptNumber string, holderID uint64, itemIDs []uint64, documentRef string) (*model.CustodyReceipt, error) {
	receiptNumber = strings.TrimSpace(receiptNumber)
	if receiptNumber == "" {
		receiptNumber = uuid.NewString()
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("issue: no items")
	}

	items := make([]model.EquipmentRecord, 0, len(itemIDs))
	for _, id := range itemIDs {
		rec, err := s.equipment.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		issued, err := s.equipment.IsIssued(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("checking custody lock: %w", err)
		}
		if issued {
			return nil, repository.ErrLocked
		}
		items = append(items, *rec)
	}

	if documentRef == "" && s.docs != nil {
		ref, err := s.docs.Generate(ctx, holderID, items)
		if err != nil {
			return nil, fmt.Errorf("generating receipt document: %w", err)
		}
		documentRef = ref
	}

	rec := &model.CustodyReceipt{
		ReceiptNumber: receiptNumber,
		HolderID:      holderID,
		Status:        model.ReceiptStatusIssued,
		DocumentRef:   documentRef,
		IssuedAt:      time.Now().UTC(),
	}
	return s.store.Create(ctx, rec, itemIDs)
}

// Generate drafts a receipt without transferring custody. The draft
// carries the item list and the generated document but places no
// lock, so the items stay free to issue elsewhere until the draft is
// finalized. IssuedAt holds the draft time until Finalize restamps it.
func (s *Service) Generate(ctx context.Context, receiptNumber string, holderID uint64, itemIDs []uint64, documentRef string) (*model.CustodyReceipt, error) {
	receiptNumber = strings.TrimSpace(receiptNumber)
	if receiptNumber == "" {
		receiptNumber = uuid.NewString()
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("generate: no items")
	}

	items := make([]model.EquipmentRecord, 0, len(itemIDs))
	for _, id := range itemIDs {
		rec, err := s.equipment.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}

	if documentRef == "" && s.docs != nil {
		ref, err := s.docs.Generate(ctx, holderID, items)
		if err != nil {
			return nil, fmt.Errorf("generating receipt document: %w", err)
		}
		documentRef = ref
	}

	rec := &model.CustodyReceipt{
		ReceiptNumber: receiptNumber,
		HolderID:      holderID,
		Status:        model.ReceiptStatusGenerated,
		DocumentRef:   documentRef,
		IssuedAt:      time.Now().UTC(),
	}
	return s.store.Create(ctx, rec, itemIDs)
}

// Finalize flips a GENERATED draft to ISSUED, the moment custody
// actually transfers. The store re-checks the lock inside the flip,
// so a draft whose item was issued elsewhere in the meantime fails
// with repository.ErrLocked and stays a draft.
func (s *Service) Finalize(ctx context.Context, receiptID uint64) (*model.CustodyReceipt, error) {
	if err := s.store.MarkIssued(ctx, receiptID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, receiptID)
}

// ReturnItems returns the named items of a receipt. Per-item
// idempotent: an item already returned is skipped, an item that is
// not on the receipt is counted as failed, and neither stops the
// rest of the batch. When the last outstanding item comes back the
// receipt itself flips to RETURNED.
func (s *Service) ReturnItems(ctx context.Context, receiptID uint64, itemIDs []uint64) (ReturnResult, error) {
	rec, err := s.store.GetByID(ctx, receiptID)
	if err != nil {
		return ReturnResult{}, err
	}
	if rec.Status == model.ReceiptStatusGenerated {
		return ReturnResult{}, fmt.Errorf("receipt %s was never issued: %w", rec.ReceiptNumber, repository.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	var result ReturnResult
	for _, id := range itemIDs {
		returned, err := s.store.MarkItemReturned(ctx, receiptID, id, now)
		if err != nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		if returned {
			result.Returned = append(result.Returned, id)
		} else {
			result.Skipped = append(result.Skipped, id)
		}
	}

	outstanding, err := s.store.OutstandingCount(ctx, receiptID)
	if err != nil {
		return result, fmt.Errorf("counting outstanding items: %w", err)
	}
	if outstanding == 0 && rec.Status == model.ReceiptStatusIssued {
		if err := s.store.Close(ctx, receiptID, now); err != nil {
			return result, fmt.Errorf("closing receipt: %w", err)
		}
	}
	return result, nil
}

// Get returns a receipt together with its item rows.
func (s *Service) Get(ctx context.Context, receiptID uint64) (*model.CustodyReceipt, []model.CustodyReceiptItem, error) {
	rec, err := s.store.GetByID(ctx, receiptID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.Items(ctx, receiptID)
	if err != nil {
		return nil, nil, err
	}
	return rec, items, nil
}

// ListByHolder returns the receipts issued to a holder.
func (s *Service) ListByHolder(ctx context.Context, holderID uint64) ([]model.CustodyReceipt, error) {
	return s.store.ListByHolder(ctx, holderID)
}
