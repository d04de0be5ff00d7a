package domain

// Resource names used in error responses and as cache key prefixes
const (
	ResourceUser         = "User"
	ResourceRefreshToken = "RefreshToken"
	ResourceAddress      = "Address"
	ResourceCategory     = "Category"
	ResourceColor        = "Color"
	ResourceSize         = "Size"
	ResourceProduct      = "Product"
	ResourceImage        = "ProductImage"
	ResourceVariant      = "ProductVariant"
	ResourcePromotion    = "Promotion"
	ResourceWishlist     = "Wishlist"
)
