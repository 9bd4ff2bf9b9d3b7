package model

import "time"

// EquipmentRecord represents a single tracked piece of equipment as
// stored in the `equipment` table. The holder reference is the only
// mutable assignment field and every write to it is conditioned on
// the Version column; stale writers are rejected rather than
// overwritten.
//
// Fields:
//  ID           - primary key identifier.
//  Nomenclature - display name of the equipment type (e.g. "M4 Carbine").
//  SerialNumber - manufacturer serial, when the item is serialized.
//  StockNumber  - national/stock number, when catalogued.
//  GroupID      - owning equipment group, when the item is part of a set.
//  HolderID     - user currently holding the item (nil = in storage).
//  Version      - optimistic locking token; increases by one per write.
//  CreatedAt    - timestamp when the record was created.
//  UpdatedAt    - timestamp when the record was last updated.
type EquipmentRecord struct {
	ID           uint64     // equipment.id
	Nomenclature string     // equipment.nomenclature
	SerialNumber *string    // equipment.serial_number (nullable)
	StockNumber  *string    // equipment.stock_number (nullable)
	GroupID      *uint64    // equipment.group_id (nullable)
	HolderID     *uint64    // equipment.holder_id (nullable)
	Version      uint64     // equipment.version
	CreatedAt    time.Time  // equipment.created_at
	UpdatedAt    time.Time  // equipment.updated_at
}

// EquipmentGroup is a named set of equipment records that share one
// custody assignment. Assigning or returning a group fans out to a
// per-member write; members always carry the group's holder.
type EquipmentGroup struct {
	ID        uint64    // equipment_groups.id
	Name      string    // equipment_groups.name
	CreatedAt time.Time // equipment_groups.created_at
}
