package domain

import (
	"time"

	"github.com/google/uuid"
)

type PromotionStatus string

const (
	PromotionStatusActive   PromotionStatus = "active"
	PromotionStatusInactive PromotionStatus = "inactive"
)

type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypePercentage DiscountType = "percentage"
)

type Promotion struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Status       PromotionStatus `json:"status"`
	DiscountType DiscountType    `json:"discount_type"`
	Value        int             `json:"value"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}
