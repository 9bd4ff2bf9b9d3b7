package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/bekzatkhan/supply-accountability/internal/model"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// fakeStore is an in-memory Store with compare-and-swap semantics
// matching the MySQL repository.
type fakeStore struct {
	records map[uint64]*model.EquipmentRecord
	issued  map[uint64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[uint64]*model.EquipmentRecord),
		issued:  make(map[uint64]bool),
	}
}

func (f *fakeStore) add(id uint64, nomenclature string, groupID *uint64) {
	f.records[id] = &model.EquipmentRecord{ID: id, Nomenclature: nomenclature, GroupID: groupID, Version: 1}
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*model.EquipmentRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GroupMembers(_ context.Context, groupID uint64) ([]model.EquipmentRecord, error) {
	var out []model.EquipmentRecord
	for _, r := range f.records {
		if r.GroupID != nil && *r.GroupID == groupID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) CompareAndSwapHolder(_ context.Context, id uint64, holder *uint64, expected uint64) (uint64, error) {
	r, ok := f.records[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if r.Version != expected {
		return 0, repository.ErrConflict
	}
	r.HolderID = holder
	r.Version++
	return r.Version, nil
}

func (f *fakeStore) IsIssued(_ context.Context, id uint64) (bool, error) {
	return f.issued[id], nil
}

func TestAssignAndUnassign(t *testing.T) {
	store := newFakeStore()
	store.add(1, "M4 Carbine", nil)
	svc := New(store)
	ctx := context.Background()

	v, err := svc.Assign(ctx, 1, 7, 1)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
	if store.records[1].HolderID == nil || *store.records[1].HolderID != 7 {
		t.Errorf("holder not set: %v", store.records[1].HolderID)
	}

	v, err = svc.Unassign(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	if v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
	if store.records[1].HolderID != nil {
		t.Errorf("holder not cleared: %v", store.records[1].HolderID)
	}
}

// Two writers read the record at the same version; exactly one write
// succeeds and the loser gets ErrConflict.
func TestConcurrentAssignSingleWinner(t *testing.T) {
	store := newFakeStore()
	store.add(1, "M4 Carbine", nil)
	svc := New(store)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, 1, 7, 1); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	_, err := svc.Assign(ctx, 1, 8, 1)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("second writer: expected ErrConflict, got %v", err)
	}
	if store.records[1].Version != 2 {
		t.Errorf("expected exactly one version bump, got %d", store.records[1].Version)
	}
	if *store.records[1].HolderID != 7 {
		t.Errorf("loser overwrote winner: holder %d", *store.records[1].HolderID)
	}
}

func TestAssignRejectsCustodyLockedItem(t *testing.T) {
	store := newFakeStore()
	store.add(1, "M4 Carbine", nil)
	store.issued[1] = true
	svc := New(store)

	if _, err := svc.Assign(context.Background(), 1, 8, 1); !errors.Is(err, repository.ErrLocked) {
		t.Errorf("assign: expected ErrLocked, got %v", err)
	}
	if _, err := svc.Unassign(context.Background(), 1, 1); !errors.Is(err, repository.ErrLocked) {
		t.Errorf("unassign: expected ErrLocked, got %v", err)
	}
}

func TestAssignUnknownItem(t *testing.T) {
	svc := New(newFakeStore())
	if _, err := svc.Assign(context.Background(), 42, 7, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupAssignReportsPartialFailure(t *testing.T) {
	store := newFakeStore()
	group := uint64(5)
	store.add(1, "Radio", &group)
	store.add(2, "Antenna", &group)
	store.add(3, "Handset", &group)
	store.issued[2] = true // locked member
	svc := New(store)

	res, err := svc.AssignGroup(context.Background(), group, 7)
	if err != nil {
		t.Fatalf("AssignGroup: %v", err)
	}
	if res.SuccessCount != 2 || res.FailCount != 1 {
		t.Fatalf("expected 2 ok / 1 failed, got %d/%d", res.SuccessCount, res.FailCount)
	}
	if len(res.Failed) != 1 || res.Failed[0].EquipmentID != 2 {
		t.Errorf("unexpected failure detail: %+v", res.Failed)
	}
	// Partial application is visible: the other members did move.
	if store.records[1].HolderID == nil || store.records[3].HolderID == nil {
		t.Error("expected unlocked members to be assigned")
	}
	if store.records[2].HolderID != nil {
		t.Error("locked member must not move")
	}
}

func TestGroupUnassign(t *testing.T) {
	store := newFakeStore()
	group := uint64(5)
	store.add(1, "Radio", &group)
	store.add(2, "Antenna", &group)
	svc := New(store)
	ctx := context.Background()

	if _, err := svc.AssignGroup(ctx, group, 7); err != nil {
		t.Fatalf("AssignGroup: %v", err)
	}
	res, err := svc.UnassignGroup(ctx, group)
	if err != nil {
		t.Fatalf("UnassignGroup: %v", err)
	}
	if res.SuccessCount != 2 || res.FailCount != 0 {
		t.Fatalf("expected 2/0, got %d/%d", res.SuccessCount, res.FailCount)
	}
	for id, r := range store.records {
		if r.HolderID != nil {
			t.Errorf("member %d still assigned", id)
		}
	}
}

func TestGroupAssignUnknownGroup(t *testing.T) {
	svc := New(newFakeStore())
	if _, err := svc.AssignGroup(context.Background(), 99, 7); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
