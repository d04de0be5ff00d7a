package service

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/cache"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService manages products together with their images and variants.
// Any authenticated user may read the catalog; every mutation is admin-only.
type ProductService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Product], error)
	Create(ctx context.Context, actor *domain.User, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input ProductUpdate) (*domain.Product, error)
	SoftDelete(ctx context.Context, actor *domain.User, id uuid.UUID) error
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error

	GetImage(ctx context.Context, actor *domain.User, imageID uuid.UUID) (*domain.ProductImage, error)
	AddImage(ctx context.Context, actor *domain.User, productID uuid.UUID, input ImageInput) (*domain.ProductImage, error)
	DeleteImage(ctx context.Context, actor *domain.User, imageID uuid.UUID) error

	GetVariant(ctx context.Context, actor *domain.User, variantID uuid.UUID) (*domain.ProductVariant, error)
	ListVariants(ctx context.Context, actor *domain.User, productID uuid.UUID, params repository.ListParams) (domain.Page[*domain.ProductVariant], error)
	AddVariant(ctx context.Context, actor *domain.User, productID uuid.UUID, input VariantInput) (*domain.ProductVariant, error)
	UpdateVariant(ctx context.Context, actor *domain.User, productID, variantID uuid.UUID, input VariantUpdate) (*domain.ProductVariant, error)
	DeleteVariant(ctx context.Context, actor *domain.User, productID, variantID uuid.UUID) error
}

type ProductInput struct {
	Name        string               `json:"name" validate:"required,notblank,max=200"`
	Description string               `json:"description" validate:"max=5000"`
	Brand       string               `json:"brand" validate:"max=100"`
	Status      domain.ProductStatus `json:"status" validate:"omitempty,oneof=active inactive"`
	Gender      domain.Gender        `json:"gender" validate:"required,oneof=men women unisex"`
	CategoryID  uuid.UUID            `json:"category_id" validate:"required"`
	Images      []ImageInput         `json:"images" validate:"omitempty,dive"`
	Variants    []VariantInput       `json:"variants" validate:"omitempty,dive"`
}

type ProductUpdate struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string               `json:"description,omitempty" validate:"omitempty,max=5000"`
	Brand       *string               `json:"brand,omitempty" validate:"omitempty,max=100"`
	Status      *domain.ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Gender      *domain.Gender        `json:"gender,omitempty" validate:"omitempty,oneof=men women unisex"`
	CategoryID  *uuid.UUID            `json:"category_id,omitempty"`
}

func (u ProductUpdate) fields() map[string]any {
	fields := map[string]any{}
	if u.Name != nil {
		fields["name"] = collapseSpaces(*u.Name)
	}
	if u.Description != nil {
		fields["description"] = strings.TrimSpace(*u.Description)
	}
	if u.Brand != nil {
		fields["brand"] = collapseSpaces(*u.Brand)
	}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	if u.Gender != nil {
		fields["gender"] = string(*u.Gender)
	}
	if u.CategoryID != nil {
		fields["category_id"] = *u.CategoryID
	}
	return fields
}

type ImageInput struct {
	URL        string `json:"url" validate:"required,url,max=500"`
	AltText    string `json:"alt_text" validate:"max=255"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
}

type VariantInput struct {
	SizeID               uuid.UUID `json:"size_id" validate:"required"`
	ColorID              uuid.UUID `json:"color_id" validate:"required"`
	SKU                  string    `json:"sku" validate:"required,notblank,max=100"`
	PriceInCents         int       `json:"price_in_cents" validate:"gte=0"`
	DiscountPriceInCents *int      `json:"discount_price_in_cents,omitempty" validate:"omitempty,gte=0"`
	Stock                int       `json:"stock" validate:"gte=0"`
}

type VariantUpdate struct {
	SizeID               *uuid.UUID `json:"size_id,omitempty"`
	ColorID              *uuid.UUID `json:"color_id,omitempty"`
	SKU                  *string    `json:"sku,omitempty" validate:"omitempty,notblank,max=100"`
	PriceInCents         *int       `json:"price_in_cents,omitempty" validate:"omitempty,gte=0"`
	DiscountPriceInCents *int       `json:"discount_price_in_cents,omitempty" validate:"omitempty,gte=0"`
	Stock                *int       `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

func (u VariantUpdate) empty() bool {
	return u.SizeID == nil && u.ColorID == nil && u.SKU == nil &&
		u.PriceInCents == nil && u.DiscountPriceInCents == nil && u.Stock == nil
}

type productService struct {
	productRepo  repository.ProductRepository
	imageRepo    repository.ImageRepository
	variantRepo  repository.VariantRepository
	categoryRepo repository.CategoryRepository
	sizeRepo     repository.SizeRepository
	colorRepo    repository.ColorRepository
	tx           database.Transactor
	cache        *cache.Service
	logger       *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	imageRepo repository.ImageRepository,
	variantRepo repository.VariantRepository,
	categoryRepo repository.CategoryRepository,
	sizeRepo repository.SizeRepository,
	colorRepo repository.ColorRepository,
	tx database.Transactor,
	cacheService *cache.Service,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		imageRepo:    imageRepo,
		variantRepo:  variantRepo,
		categoryRepo: categoryRepo,
		sizeRepo:     sizeRepo,
		colorRepo:    colorRepo,
		tx:           tx,
		cache:        cacheService,
		logger:       logger,
	}
}

func (s *productService) load(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := cache.GetOrSet(ctx, s.cache, domain.ResourceProduct, id, func(ctx context.Context) (*domain.Product, error) {
		return s.productRepo.Get(ctx, id)
	}, s.cache.TTL())
	if err != nil {
		return nil, err
	}

	category, err := cache.GetOrSet(ctx, s.cache, domain.ResourceCategory, product.CategoryID, func(ctx context.Context) (*domain.Category, error) {
		return s.categoryRepo.Get(ctx, product.CategoryID)
	}, s.cache.TTL())
	if err != nil {
		return nil, err
	}
	product.Category = category

	for i := range product.Variants {
		if err := s.attachAttributes(ctx, &product.Variants[i]); err != nil {
			return nil, err
		}
	}
	return product, nil
}

// attachAttributes replaces the size and color copied into a cached variant with
// the entries cached under their own keys, which attribute updates invalidate.
func (s *productService) attachAttributes(ctx context.Context, variant *domain.ProductVariant) error {
	size, err := cache.GetOrSet(ctx, s.cache, domain.ResourceSize, variant.SizeID, func(ctx context.Context) (*domain.Size, error) {
		return s.sizeRepo.Get(ctx, variant.SizeID)
	}, s.cache.TTL())
	if err != nil {
		return err
	}
	color, err := cache.GetOrSet(ctx, s.cache, domain.ResourceColor, variant.ColorID, func(ctx context.Context) (*domain.Color, error) {
		return s.colorRepo.Get(ctx, variant.ColorID)
	}, s.cache.TTL())
	if err != nil {
		return err
	}
	variant.Size, variant.Color = size, color
	return nil
}

func (s *productService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Product, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Product retrieved", zap.String("product_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return product, nil
}

func (s *productService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Product], error) {
	if err := requireAuthenticated(actor); err != nil {
		return domain.Page[*domain.Product]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.Product]{}, err
	}

	products, total, err := s.productRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.Product]{}, err
	}

	s.logger.Info("Product list retrieved", zap.String("actor_id", actor.ID.String()), zap.Int("count", len(products)))
	return domain.NewPage(products, total, params.Skip, params.Limit), nil
}

// Create inserts the product, its images and its variants in one transaction.
// A duplicate SKU or a repeated (size, color) pair aborts the whole creation.
func (s *productService) Create(ctx context.Context, actor *domain.User, input ProductInput) (*domain.Product, error) {
	if err := requireAdmin(actor, "create", domain.ResourceProduct); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        collapseSpaces(input.Name),
		Description: strings.TrimSpace(input.Description),
		Brand:       collapseSpaces(input.Brand),
		Status:      input.Status,
		Gender:      input.Gender,
		CategoryID:  input.CategoryID,
	}
	if product.Status == "" {
		product.Status = domain.ProductStatusActive
	}

	if err := s.checkName(ctx, uuid.Nil, product.Name); err != nil {
		return nil, err
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.productRepo.Create(ctx, product); err != nil {
			return err
		}

		for _, in := range input.Images {
			image := newImage(product.ID, in)
			if err := s.imageRepo.Create(ctx, image); err != nil {
				return err
			}
		}

		for _, in := range input.Variants {
			variant, err := s.newVariant(ctx, product.ID, in)
			if err != nil {
				return err
			}
			if err := s.variantRepo.Create(ctx, variant); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("Product creation rolled back", zap.String("name", product.Name), zap.Error(err))
		return nil, err
	}

	created, err := s.productRepo.Get(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", created.ID.String()),
		zap.Int("images", len(created.Images)),
		zap.Int("variants", len(created.Variants)),
	)
	return created, nil
}

func (s *productService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input ProductUpdate) (*domain.Product, error) {
	if err := requireAdmin(actor, "update", domain.ResourceProduct); err != nil {
		return nil, err
	}

	fields := input.fields()
	if len(fields) == 0 {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	existing, err := s.productRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if name, ok := fields["name"].(string); ok && name != existing.Name {
		if err := s.checkName(ctx, id, name); err != nil {
			return nil, err
		}
	}

	updated, err := s.productRepo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceProduct, id)

	s.logger.Info("Product updated",
		zap.String("product_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Strings("updated_fields", fieldNames(fields)),
	)
	return updated, nil
}

// SoftDelete marks the product inactive
func (s *productService) SoftDelete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceProduct); err != nil {
		return err
	}

	existing, err := s.productRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == domain.ProductStatusInactive {
		return domain.Validation("Product is already inactive")
	}

	if _, err := s.productRepo.Update(ctx, id, map[string]any{"status": string(domain.ProductStatusInactive)}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceProduct, id)

	s.logger.Warn("Product soft deleted", zap.String("product_id", id.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

// Delete removes the product for good; its images and variants go with it
func (s *productService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceProduct); err != nil {
		return err
	}

	existing, err := s.productRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, domain.ResourceProduct, id)
	for _, v := range existing.Variants {
		s.cache.Invalidate(ctx, domain.ResourceVariant, v.ID)
	}

	s.logger.Warn("Product permanently deleted",
		zap.String("product_id", id.String()),
		zap.String("deleter_id", actor.ID.String()),
		zap.String("product_name", existing.Name),
	)
	return nil
}

func (s *productService) GetImage(ctx context.Context, actor *domain.User, imageID uuid.UUID) (*domain.ProductImage, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.imageRepo.Get(ctx, imageID)
}

func (s *productService) AddImage(ctx context.Context, actor *domain.User, productID uuid.UUID, input ImageInput) (*domain.ProductImage, error) {
	if err := requireAdmin(actor, "create", domain.ResourceImage); err != nil {
		return nil, err
	}

	if _, err := s.productRepo.Get(ctx, productID); err != nil {
		return nil, err
	}

	image := newImage(productID, input)
	if err := s.imageRepo.Create(ctx, image); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceProduct, productID)

	s.logger.Info("Product image created", zap.String("product_id", productID.String()), zap.String("url", image.URL))
	return image, nil
}

func (s *productService) DeleteImage(ctx context.Context, actor *domain.User, imageID uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceImage); err != nil {
		return err
	}

	image, err := s.imageRepo.Get(ctx, imageID)
	if err != nil {
		return err
	}

	if err := s.imageRepo.Delete(ctx, imageID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceProduct, image.ProductID)

	s.logger.Warn("Product image permanently deleted", zap.String("image_id", imageID.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

func (s *productService) GetVariant(ctx context.Context, actor *domain.User, variantID uuid.UUID) (*domain.ProductVariant, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	variant, err := cache.GetOrSet(ctx, s.cache, domain.ResourceVariant, variantID, func(ctx context.Context) (*domain.ProductVariant, error) {
		return s.variantRepo.Get(ctx, variantID)
	}, s.cache.TTL())
	if err != nil {
		return nil, err
	}
	if err := s.attachAttributes(ctx, variant); err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *productService) ListVariants(ctx context.Context, actor *domain.User, productID uuid.UUID, params repository.ListParams) (domain.Page[*domain.ProductVariant], error) {
	if err := requireAuthenticated(actor); err != nil {
		return domain.Page[*domain.ProductVariant]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.ProductVariant]{}, err
	}

	if _, err := s.load(ctx, productID); err != nil {
		return domain.Page[*domain.ProductVariant]{}, err
	}

	params = withFilter(params, "product_id", productID.String())
	variants, total, err := s.variantRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.ProductVariant]{}, err
	}
	return domain.NewPage(variants, total, params.Skip, params.Limit), nil
}

func (s *productService) AddVariant(ctx context.Context, actor *domain.User, productID uuid.UUID, input VariantInput) (*domain.ProductVariant, error) {
	if err := requireAdmin(actor, "create", domain.ResourceVariant); err != nil {
		return nil, err
	}

	if _, err := s.productRepo.Get(ctx, productID); err != nil {
		return nil, err
	}

	variant, err := s.newVariant(ctx, productID, input)
	if err != nil {
		return nil, err
	}
	if err := s.variantRepo.Create(ctx, variant); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceProduct, productID)

	s.logger.Info("Product variant created", zap.String("product_id", productID.String()), zap.String("sku", variant.SKU))
	return s.variantRepo.Get(ctx, variant.ID)
}

func (s *productService) UpdateVariant(ctx context.Context, actor *domain.User, productID, variantID uuid.UUID, input VariantUpdate) (*domain.ProductVariant, error) {
	if err := requireAdmin(actor, "update", domain.ResourceVariant); err != nil {
		return nil, err
	}
	if input.empty() {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	existing, err := s.ownedVariant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}

	if input.SKU != nil {
		sku := strings.TrimSpace(*input.SKU)
		if sku != existing.SKU {
			if err := s.checkSKU(ctx, variantID, sku); err != nil {
				return nil, err
			}
			fields["sku"] = sku
		}
	}

	sizeID, colorID := existing.SizeID, existing.ColorID
	if input.SizeID != nil {
		sizeID = *input.SizeID
	}
	if input.ColorID != nil {
		colorID = *input.ColorID
	}
	if sizeID != existing.SizeID || colorID != existing.ColorID {
		if err := s.checkCombination(ctx, variantID, productID, sizeID, colorID); err != nil {
			return nil, err
		}
		fields["size_id"] = sizeID
		fields["color_id"] = colorID
	}

	price, discount := existing.PriceInCents, existing.DiscountPriceInCents
	if input.PriceInCents != nil {
		price = *input.PriceInCents
		fields["price_in_cents"] = price
	}
	if input.DiscountPriceInCents != nil {
		discount = input.DiscountPriceInCents
		fields["discount_price_in_cents"] = *discount
	}
	if err := checkDiscount(price, discount); err != nil {
		return nil, err
	}

	if input.Stock != nil {
		fields["stock"] = *input.Stock
	}

	if len(fields) == 0 {
		return existing, nil
	}

	updated, err := s.variantRepo.Update(ctx, variantID, fields)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceVariant, variantID)
	s.cache.Invalidate(ctx, domain.ResourceProduct, productID)

	s.logger.Info("Product variant updated",
		zap.String("variant_id", variantID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Strings("updated_fields", fieldNames(fields)),
	)
	return updated, nil
}

func (s *productService) DeleteVariant(ctx context.Context, actor *domain.User, productID, variantID uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceVariant); err != nil {
		return err
	}

	if _, err := s.ownedVariant(ctx, productID, variantID); err != nil {
		return err
	}

	if err := s.variantRepo.Delete(ctx, variantID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceVariant, variantID)
	s.cache.Invalidate(ctx, domain.ResourceProduct, productID)

	s.logger.Warn("Product variant permanently deleted", zap.String("variant_id", variantID.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

// ownedVariant loads the product and the variant and checks that one belongs to the other
func (s *productService) ownedVariant(ctx context.Context, productID, variantID uuid.UUID) (*domain.ProductVariant, error) {
	if _, err := s.productRepo.Get(ctx, productID); err != nil {
		return nil, err
	}

	variant, err := s.variantRepo.Get(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if variant.ProductID != productID {
		return nil, domain.NotAuthorized("This variant does not belong to the specified product.")
	}
	return variant, nil
}

// newVariant validates in against the store and the product's existing variants
func (s *productService) newVariant(ctx context.Context, productID uuid.UUID, in VariantInput) (*domain.ProductVariant, error) {
	variant := &domain.ProductVariant{
		ID:                   uuid.New(),
		ProductID:            productID,
		SizeID:               in.SizeID,
		ColorID:              in.ColorID,
		SKU:                  strings.TrimSpace(in.SKU),
		PriceInCents:         in.PriceInCents,
		DiscountPriceInCents: in.DiscountPriceInCents,
		Stock:                in.Stock,
	}

	if err := checkDiscount(variant.PriceInCents, variant.DiscountPriceInCents); err != nil {
		return nil, err
	}
	if err := s.checkSKU(ctx, uuid.Nil, variant.SKU); err != nil {
		return nil, err
	}
	if err := s.checkCombination(ctx, uuid.Nil, productID, variant.SizeID, variant.ColorID); err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *productService) checkName(ctx context.Context, selfID uuid.UUID, name string) error {
	other, err := s.productRepo.GetByName(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if other != nil && other.ID != selfID {
		return domain.AlreadyExists(domain.ResourceProduct, "Product with name %s already exists.", name)
	}
	return nil
}

func (s *productService) checkSKU(ctx context.Context, selfID uuid.UUID, sku string) error {
	other, err := s.variantRepo.GetBySKU(ctx, sku)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if other != nil && other.ID != selfID {
		return domain.AlreadyExists(domain.ResourceVariant, "Variant SKU '%s' already exists.", sku)
	}
	return nil
}

func (s *productService) checkCombination(ctx context.Context, selfID, productID, sizeID, colorID uuid.UUID) error {
	other, err := s.variantRepo.GetByCombination(ctx, productID, sizeID, colorID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if other != nil && other.ID != selfID {
		return domain.AlreadyExists(domain.ResourceVariant, "Variant with this Size and Color already exists for this product.")
	}
	return nil
}

func checkDiscount(price int, discount *int) error {
	if discount != nil && *discount > price {
		return domain.Validation("Discount price cannot exceed the regular price")
	}
	return nil
}

func newImage(productID uuid.UUID, in ImageInput) *domain.ProductImage {
	return &domain.ProductImage{
		ID:         uuid.New(),
		ProductID:  productID,
		URL:        strings.TrimSpace(in.URL),
		AltText:    strings.TrimSpace(in.AltText),
		OrderIndex: in.OrderIndex,
	}
}
