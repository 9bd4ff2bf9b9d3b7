package custody

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// fakeReceiptStore is an in-memory Store for custody tests. The
// issued-lock check is derived from its own receipt state, and Create
// re-checks it under the store mutex, so the lock semantics match the
// SQL implementation including its in-transaction guard.
type fakeReceiptStore struct {
	mu       sync.Mutex
	receipts map[uint64]*model.CustodyReceipt
	items    map[uint64][]model.CustodyReceiptItem // by receipt ID
	records  map[uint64]*model.EquipmentRecord
	nextID   uint64
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{
		receipts: make(map[uint64]*model.CustodyReceipt),
		items:    make(map[uint64][]model.CustodyReceiptItem),
		records:  make(map[uint64]*model.EquipmentRecord),
	}
}

func (f *fakeReceiptStore) addEquipment(id uint64, nomenclature string) {
	f.records[id] = &model.EquipmentRecord{ID: id, Nomenclature: nomenclature, Version: 1}
}

func (f *fakeReceiptStore) Create(_ context.Context, rec *model.CustodyReceipt, itemIDs []uint64) (*model.CustodyReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Status == model.ReceiptStatusIssued {
		for _, eid := range itemIDs {
			if f.heldOnIssued(eid, 0) {
				return nil, repository.ErrLocked
			}
		}
	}
	f.nextID++
	cp := *rec
	cp.ID = f.nextID
	cp.CreatedAt = time.Now().UTC()
	f.receipts[cp.ID] = &cp
	for _, eid := range itemIDs {
		f.nextID++
		f.items[cp.ID] = append(f.items[cp.ID], model.CustodyReceiptItem{
			ID: f.nextID, ReceiptID: cp.ID, EquipmentID: eid,
		})
	}
	out := cp
	return &out, nil
}

func (f *fakeReceiptStore) GetByID(_ context.Context, id uint64) (*model.CustodyReceipt, error) {
	r, ok := f.receipts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReceiptStore) ListByHolder(_ context.Context, holderID uint64) ([]model.CustodyReceipt, error) {
	var out []model.CustodyReceipt
	for _, r := range f.receipts {
		if r.HolderID == holderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReceiptStore) Items(_ context.Context, receiptID uint64) ([]model.CustodyReceiptItem, error) {
	return append([]model.CustodyReceiptItem(nil), f.items[receiptID]...), nil
}

func (f *fakeReceiptStore) MarkItemReturned(_ context.Context, receiptID, equipmentID uint64, at time.Time) (bool, error) {
	rows := f.items[receiptID]
	for i := range rows {
		if rows[i].EquipmentID != equipmentID {
			continue
		}
		if rows[i].ReturnedAt != nil {
			return false, nil
		}
		t := at
		rows[i].ReturnedAt = &t
		return true, nil
	}
	return false, repository.ErrNotFound
}

func (f *fakeReceiptStore) OutstandingCount(_ context.Context, receiptID uint64) (int, error) {
	n := 0
	for _, it := range f.items[receiptID] {
		if it.ReturnedAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeReceiptStore) Close(_ context.Context, receiptID uint64, at time.Time) error {
	r, ok := f.receipts[receiptID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status == model.ReceiptStatusIssued {
		r.Status = model.ReceiptStatusReturned
		t := at
		r.ReturnedAt = &t
	}
	return nil
}

func (f *fakeReceiptStore) getEquipment(id uint64) (*model.EquipmentRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReceiptStore) IsIssued(_ context.Context, equipmentID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heldOnIssued(equipmentID, 0), nil
}

// heldOnIssued reports whether the item sits outstanding on an ISSUED
// receipt other than except. Callers hold f.mu.
func (f *fakeReceiptStore) heldOnIssued(equipmentID, except uint64) bool {
	for rid, rows := range f.items {
		rec := f.receipts[rid]
		if rid == except || rec == nil || rec.Status != model.ReceiptStatusIssued {
			continue
		}
		for _, it := range rows {
			if it.EquipmentID == equipmentID && it.ReturnedAt == nil {
				return true
			}
		}
	}
	return false
}

func (f *fakeReceiptStore) MarkIssued(_ context.Context, receiptID uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[receiptID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != model.ReceiptStatusGenerated {
		return repository.ErrInvalidTransition
	}
	for _, it := range f.items[receiptID] {
		if f.heldOnIssued(it.EquipmentID, receiptID) {
			return repository.ErrLocked
		}
	}
	r.Status = model.ReceiptStatusIssued
	r.IssuedAt = at
	return nil
}

// equipmentView adapts the fake store to the EquipmentReader
// interface without colliding with the Store's GetByID.
type equipmentView struct{ f *fakeReceiptStore }

func (v equipmentView) GetByID(_ context.Context, id uint64) (*model.EquipmentRecord, error) {
	return v.f.getEquipment(id)
}
func (v equipmentView) IsIssued(ctx context.Context, id uint64) (bool, error) {
	return v.f.IsIssued(ctx, id)
}

func newTestService() (*Service, *fakeReceiptStore) {
	f := newFakeReceiptStore()
	f.addEquipment(1, "M4 Carbine")
	f.addEquipment(2, "AN/PRC-152")
	f.addEquipment(3, "Compass")
	return New(f, equipmentView{f}, nil), f
}

func TestIssueCreatesIssuedReceipt(t *testing.T) {
	svc, store := newTestService()

	rec, err := svc.Issue(context.Background(), "HR-2026-001", 7, []uint64{1, 2}, "receipts/7/abc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rec.Status != model.ReceiptStatusIssued {
		t.Errorf("expected ISSUED, got %s", rec.Status)
	}
	if rec.ReceiptNumber != "HR-2026-001" || rec.DocumentRef != "receipts/7/abc" {
		t.Errorf("unexpected receipt fields: %+v", rec)
	}
	if len(store.items[rec.ID]) != 2 {
		t.Errorf("expected 2 item rows, got %d", len(store.items[rec.ID]))
	}
}

func TestIssueRejectsAlreadyIssuedItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "HR-1", 7, []uint64{1}, "doc"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	_, err := svc.Issue(ctx, "HR-2", 8, []uint64{1}, "doc")
	if !errors.Is(err, repository.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestIssueUnknownItem(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Issue(context.Background(), "HR-1", 7, []uint64{99}, "doc"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnIsPerItemIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "HR-1", 7, []uint64{1, 2}, "doc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	first, err := svc.ReturnItems(ctx, rec.ID, []uint64{1})
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	if len(first.Returned) != 1 || first.Returned[0] != 1 {
		t.Errorf("expected item 1 returned, got %+v", first)
	}

	// Returning the same item again is a no-op, not an error.
	second, err := svc.ReturnItems(ctx, rec.ID, []uint64{1})
	if err != nil {
		t.Fatalf("second return: %v", err)
	}
	if len(second.Returned) != 0 || len(second.Skipped) != 1 {
		t.Errorf("expected skip on repeat return, got %+v", second)
	}

	// Receipt still ISSUED while item 2 is outstanding.
	current, _, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Status != model.ReceiptStatusIssued {
		t.Errorf("expected receipt to stay ISSUED, got %s", current.Status)
	}
}

func TestReturnLastItemClosesReceipt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "HR-1", 7, []uint64{1, 2}, "doc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	res, err := svc.ReturnItems(ctx, rec.ID, []uint64{1, 2})
	if err != nil {
		t.Fatalf("ReturnItems: %v", err)
	}
	if len(res.Returned) != 2 {
		t.Fatalf("expected both items returned, got %+v", res)
	}

	current, _, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Status != model.ReceiptStatusReturned {
		t.Errorf("expected RETURNED, got %s", current.Status)
	}
	if current.ReturnedAt == nil {
		t.Error("expected return timestamp")
	}

	// Once custody is back, the item can be issued again.
	if _, err := svc.Issue(ctx, "HR-2", 8, []uint64{1}, "doc"); err != nil {
		t.Errorf("re-issue after return: %v", err)
	}
}

func TestReturnReportsUnknownItemsAsFailed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "HR-1", 7, []uint64{1}, "doc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	res, err := svc.ReturnItems(ctx, rec.ID, []uint64{1, 99})
	if err != nil {
		t.Fatalf("ReturnItems: %v", err)
	}
	if len(res.Returned) != 1 || len(res.Failed) != 1 || res.Failed[0] != 99 {
		t.Errorf("expected 1 returned / 1 failed, got %+v", res)
	}
}

func TestIssueSingleWinnerForContestedItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Issue(ctx, fmt.Sprintf("HR-%d", i), uint64(10+i), []uint64{1}, "doc")
		}(i)
	}
	wg.Wait()

	var won, locked int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrLocked):
			locked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || locked != len(errs)-1 {
		t.Fatalf("expected exactly one issue to win, got %d winners / %d locked", won, locked)
	}
}

func TestStoreCreateEnforcesCustodyLock(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "HR-1", 7, []uint64{1}, "doc"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Even a caller that skipped the service-level check cannot land a
	// second ISSUED receipt on the item.
	_, err := store.Create(ctx, &model.CustodyReceipt{
		ReceiptNumber: "HR-2",
		HolderID:      8,
		Status:        model.ReceiptStatusIssued,
		IssuedAt:      time.Now().UTC(),
	}, []uint64{1})
	if !errors.Is(err, repository.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestGenerateThenFinalize(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	draft, err := svc.Generate(ctx, "HR-1", 7, []uint64{1, 2}, "receipts/7/draft")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Status != model.ReceiptStatusGenerated {
		t.Fatalf("expected GENERATED, got %s", draft.Status)
	}

	issued, err := svc.Finalize(ctx, draft.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if issued.Status != model.ReceiptStatusIssued {
		t.Errorf("expected ISSUED after finalize, got %s", issued.Status)
	}

	// Finalizing is what places the lock.
	if _, err := svc.Issue(ctx, "HR-2", 8, []uint64{1}, "doc"); !errors.Is(err, repository.ErrLocked) {
		t.Errorf("expected ErrLocked after finalize, got %v", err)
	}
}

func TestFinalizeRejectsItemIssuedMeanwhile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	draft, err := svc.Generate(ctx, "HR-1", 7, []uint64{1}, "doc")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// A draft places no lock, so the item can still be issued directly.
	if _, err := svc.Issue(ctx, "HR-2", 8, []uint64{1}, "doc"); err != nil {
		t.Fatalf("issue while drafted: %v", err)
	}

	if _, err := svc.Finalize(ctx, draft.ID); !errors.Is(err, repository.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	current, _, err := svc.Get(ctx, draft.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Status != model.ReceiptStatusGenerated {
		t.Errorf("expected draft to stay GENERATED, got %s", current.Status)
	}
}

func TestFinalizeRejectsNonDraft(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Issue(ctx, "HR-1", 7, []uint64{1}, "doc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Finalize(ctx, rec.ID); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReturnRejectsDraftReceipt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	draft, err := svc.Generate(ctx, "HR-1", 7, []uint64{1}, "doc")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.ReturnItems(ctx, draft.ID, []uint64{1}); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestIssueFillsReceiptNumberWhenBlank(t *testing.T) {
	svc, _ := newTestService()

	rec, err := svc.Issue(context.Background(), "  ", 7, []uint64{3}, "doc")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.TrimSpace(rec.ReceiptNumber) == "" {
		t.Error("expected generated receipt number")
	}
}
