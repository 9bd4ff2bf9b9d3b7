package accountability

import (
	"testing"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

func TestSummarizeGroupsByNomenclature(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	items := []model.AccountabilityItem{
		{Nomenclature: "M4 Carbine", Status: model.ItemStatusAccountedFor},
		{Nomenclature: "M4 Carbine", Status: model.ItemStatusNotAccountedFor},
		{Nomenclature: "AN/PRC-152", Status: model.ItemStatusAccountedFor},
	}

	s := Summarize(items, now)

	if s.Total != 3 || s.AccountedFor != 2 {
		t.Errorf("expected 2/3, got %d/%d", s.AccountedFor, s.Total)
	}
	if s.PercentComplete < 66.6 || s.PercentComplete > 66.8 {
		t.Errorf("expected ~66.7%%, got %f", s.PercentComplete)
	}
	if !s.CompletedAt.Equal(now) {
		t.Errorf("expected completedAt %v, got %v", now, s.CompletedAt)
	}

	if len(s.PerNomenclature) != 2 {
		t.Fatalf("expected 2 nomenclature rows, got %d", len(s.PerNomenclature))
	}
	// Rows are sorted by name.
	if s.PerNomenclature[0].Name != "AN/PRC-152" || s.PerNomenclature[0].Total != 1 || s.PerNomenclature[0].AccountedFor != 1 {
		t.Errorf("unexpected first row: %+v", s.PerNomenclature[0])
	}
	if s.PerNomenclature[1].Name != "M4 Carbine" || s.PerNomenclature[1].Total != 2 || s.PerNomenclature[1].AccountedFor != 1 {
		t.Errorf("unexpected second row: %+v", s.PerNomenclature[1])
	}
}

// Two distinct equipment records sharing a display name are merged
// into one summary row; the grouping key is the name, not the master
// record.
func TestSummarizeMergesSharedDisplayNames(t *testing.T) {
	items := []model.AccountabilityItem{
		{EquipmentID: 1, Nomenclature: "Flashlight", Status: model.ItemStatusAccountedFor},
		{EquipmentID: 2, Nomenclature: "Flashlight", Status: model.ItemStatusAccountedFor},
	}

	s := Summarize(items, time.Now().UTC())
	if len(s.PerNomenclature) != 1 {
		t.Fatalf("expected merged row, got %d rows", len(s.PerNomenclature))
	}
	if s.PerNomenclature[0].Total != 2 {
		t.Errorf("expected total 2, got %d", s.PerNomenclature[0].Total)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now().UTC())
	if s.Total != 0 || s.AccountedFor != 0 || s.PercentComplete != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

// VERIFICATION_PENDING never reaches Summarize in practice, but the
// function must still count it as unaccounted.
func TestSummarizePendingCountsAsUnaccounted(t *testing.T) {
	items := []model.AccountabilityItem{
		{Nomenclature: "Compass", Status: model.ItemStatusVerificationPending},
	}
	s := Summarize(items, time.Now().UTC())
	if s.AccountedFor != 0 || s.Total != 1 {
		t.Errorf("expected 0/1, got %d/%d", s.AccountedFor, s.Total)
	}
}
