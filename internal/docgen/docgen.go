// Package docgen is the document generator collaborator. The custody
// service hands it a holder and the equipment snapshots going onto a
// receipt and gets back an opaque document reference; rendering and
// storage of the actual document happen elsewhere.
package docgen

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// Generator produces an opaque document reference for a receipt.
type Generator interface {
	Generate(ctx context.Context, holderID uint64, items []model.EquipmentRecord) (string, error)
}

// KeyGenerator is the default Generator. It mints a storage key of
// the form receipts/<holder>/<uuid> without rendering anything; a
// real renderer can later resolve the key to a stored document.
type KeyGenerator struct{}

// NewKeyGenerator returns a KeyGenerator.
func NewKeyGenerator() *KeyGenerator { return &KeyGenerator{} }

// Generate returns a fresh storage key for the receipt document.
func (g *KeyGenerator) Generate(_ context.Context, holderID uint64, _ []model.EquipmentRecord) (string, error) {
	return fmt.Sprintf("receipts/%d/%s", holderID, uuid.NewString()), nil
}
