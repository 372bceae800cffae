package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a tracked entity. Mutated only by admin operations; the
// pipeline reads it for alias matching.
type Product struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	Aliases        []string  `json:"aliases"`
	CreatedAt      time.Time `json:"created_at"`
}
