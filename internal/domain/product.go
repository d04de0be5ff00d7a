package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

type Gender string

const (
	GenderMen    Gender = "men"
	GenderWomen  Gender = "women"
	GenderUnisex Gender = "unisex"
)

// Product represents a catalog item. Images and Variants are owned by the product.
type Product struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Brand       string           `json:"brand"`
	Status      ProductStatus    `json:"status"`
	Gender      Gender           `json:"gender"`
	CategoryID  uuid.UUID        `json:"category_id"`
	Category    *Category        `json:"category,omitempty"`
	Images      []ProductImage   `json:"images"`
	Variants    []ProductVariant `json:"variants"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ProductImage struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	URL        string    `json:"url"`
	AltText    string    `json:"alt_text"`
	OrderIndex int       `json:"order_index"`
}

// ProductVariant is a purchasable SKU for one (size, color) combination of a product
type ProductVariant struct {
	ID                   uuid.UUID `json:"id"`
	ProductID            uuid.UUID `json:"product_id"`
	SizeID               uuid.UUID `json:"size_id"`
	ColorID              uuid.UUID `json:"color_id"`
	Size                 *Size     `json:"size,omitempty"`
	Color                *Color    `json:"color,omitempty"`
	SKU                  string    `json:"sku"`
	PriceInCents         int       `json:"price_in_cents"`
	DiscountPriceInCents *int      `json:"discount_price_in_cents"`
	Stock                int       `json:"stock"`
}
