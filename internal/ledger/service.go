// Package ledger implements the equipment ledger: the single
// mutation authority for who holds what. Every holder write is
// conditioned on the version the caller last observed, so concurrent
// writers contending on the same record resolve to exactly one
// winner per version.
package ledger

import (
	"context"
	"fmt"

	"github.com/bekzatkhan/supply-accountability/internal/model"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// Store is the persistence surface the ledger needs. The repository
// package provides the MySQL implementation; tests substitute an
// in-memory fake.
type Store interface {
	GetByID(ctx context.Context, id uint64) (*model.EquipmentRecord, error)
	GroupMembers(ctx context.Context, groupID uint64) ([]model.EquipmentRecord, error)
	// CompareAndSwapHolder sets (nil clears) the holder iff the stored
	// version equals expected, returning the new version. A stale
	// version yields repository.ErrConflict.
	CompareAndSwapHolder(ctx context.Context, id uint64, holder *uint64, expected uint64) (uint64, error)
	// IsIssued reports whether the item is locked by an ISSUED
	// custody receipt.
	IsIssued(ctx context.Context, equipmentID uint64) (bool, error)
}

// BatchFailure records one member of a group operation that could
// not be applied.
type BatchFailure struct {
	EquipmentID uint64 `json:"equipment_id"`
	Reason      string `json:"reason"`
}

// BatchResult summarizes a group fan-out. Group operations are not
// transactions: each member write is attempted independently and
// partial application is reported, never rolled back.
type BatchResult struct {
	SuccessCount int            `json:"success_count"`
	FailCount    int            `json:"fail_count"`
	Failed       []BatchFailure `json:"failed,omitempty"`
}

// Service is the ledger service handle. Construct with New and pass
// it to handlers; it holds no state beyond its store.
type Service struct {
	store Store
}

// New returns a ledger Service over the given store.
func New(store Store) *Service {
	if store == nil {
		panic("nil store passed to ledger.New")
	}
	return &Service{store: store}
}

// Assign gives custody of a single item to holderID. The write only
// applies when expected matches the stored version; otherwise
// repository.ErrConflict is returned and the caller must re-read and
// retry. An item on an ISSUED receipt is rejected with
// repository.ErrLocked: custody must be returned first.
func (s *Service) Assign(ctx context.Context, itemID, holderID, expected uint64) (uint64, error) {
	return s.writeHolder(ctx, itemID, &holderID, expected)
}

// Unassign clears the holder of a single item under the same version
// and lock rules as Assign.
func (s *Service) Unassign(ctx context.Context, itemID, expected uint64) (uint64, error) {
	return s.writeHolder(ctx, itemID, nil, expected)
}

func (s *Service) writeHolder(ctx context.Context, itemID uint64, holder *uint64, expected uint64) (uint64, error) {
	if _, err := s.store.GetByID(ctx, itemID); err != nil {
		return 0, err
	}
	issued, err := s.store.IsIssued(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("checking custody lock: %w", err)
	}
	if issued {
		return 0, repository.ErrLocked
	}
	return s.store.CompareAndSwapHolder(ctx, itemID, holder, expected)
}

// AssignGroup binds every member of a group to holderID. One
// version-checked write is issued per member at the version read
// here; members that are custody-locked or lose a version race are
// counted as failures and the rest still apply.
func (s *Service) AssignGroup(ctx context.Context, groupID, holderID uint64) (BatchResult, error) {
	return s.writeGroup(ctx, groupID, &holderID)
}

// UnassignGroup clears the holder of every member of a group,
// reporting partial failures the same way as AssignGroup.
func (s *Service) UnassignGroup(ctx context.Context, groupID uint64) (BatchResult, error) {
	return s.writeGroup(ctx, groupID, nil)
}

func (s *Service) writeGroup(ctx context.Context, groupID uint64, holder *uint64) (BatchResult, error) {
	members, err := s.store.GroupMembers(ctx, groupID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("loading group members: %w", err)
	}
	if len(members) == 0 {
		return BatchResult{}, repository.ErrNotFound
	}

	var result BatchResult
	for _, m := range members {
		issued, err := s.store.IsIssued(ctx, m.ID)
		if err != nil {
			result.FailCount++
			result.Failed = append(result.Failed, BatchFailure{EquipmentID: m.ID, Reason: err.Error()})
			continue
		}
		if issued {
			result.FailCount++
			result.Failed = append(result.Failed, BatchFailure{EquipmentID: m.ID, Reason: repository.ErrLocked.Error()})
			continue
		}
		if _, err := s.store.CompareAndSwapHolder(ctx, m.ID, holder, m.Version); err != nil {
			result.FailCount++
			result.Failed = append(result.Failed, BatchFailure{EquipmentID: m.ID, Reason: err.Error()})
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}
