package queue

// ItemChangedEvent is published after every committed accountability
// item transition. It carries the full item state, not a diff, so
// consumers can overwrite their local view idempotently no matter how
// often or in what cross-item order deliveries arrive.
type ItemChangedEvent struct {
	SessionID          uint64 `json:"session_id"`
	ItemID             uint64 `json:"item_id"`
	EquipmentID        uint64 `json:"equipment_id"`
	Nomenclature       string `json:"nomenclature"`
	SerialNumber       string `json:"serial_number,omitempty"`
	HolderID           uint64 `json:"holder_id"`
	Status             string `json:"status"`
	Method             string `json:"method,omitempty"`
	ConfirmationStatus string `json:"confirmation_status,omitempty"`
	VerifiedBy         uint64 `json:"verified_by,omitempty"`
	Version            uint64 `json:"version"`
	OccurredAt         string `json:"occurred_at"`
}
