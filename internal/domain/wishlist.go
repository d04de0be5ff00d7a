package domain

import (
	"time"

	"github.com/google/uuid"
)

// WishlistItem links a user to a product they saved
type WishlistItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
