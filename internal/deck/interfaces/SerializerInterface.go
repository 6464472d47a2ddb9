package interfaces

import (
	"context"
	"deckpack/internal/models"
)

// SerializerInterface encodes a sealed collection into the bytes stored under
// the archive's collection entry, and back.
type SerializerInterface interface {
	Name() string
	EntryName() string
	// Detect reports whether payload looks like this serializer's output.
	Detect(payload []byte) bool
	Marshal(ctx context.Context, coll *models.Collection) ([]byte, error)
	Unmarshal(ctx context.Context, payload []byte) (*models.Collection, error)
}
