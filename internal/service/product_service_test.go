package service

import (
	"context"
	"fmt"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(i int) *int { return &i }

func productInput(categoryID uuid.UUID, variants ...VariantInput) ProductInput {
	return ProductInput{
		Name:        "Classic Tee " + uuid.NewString()[:6],
		Description: "Plain cotton t-shirt",
		Brand:       "Acme",
		Gender:      domain.GenderUnisex,
		CategoryID:  categoryID,
		Images: []ImageInput{
			{URL: "https://cdn.example.com/back.jpg", OrderIndex: 1},
			{URL: "https://cdn.example.com/front.jpg", AltText: "front", OrderIndex: 0},
		},
		Variants: variants,
	}
}

func TestProductService_CreateLoadsFullProduct(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	category, size, color := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID,
		VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "TEE-M-RED", PriceInCents: 1999, DiscountPriceInCents: intPtr(1499), Stock: 5},
	))
	require.NoError(t, err)

	assert.Equal(t, domain.ProductStatusActive, product.Status)
	require.NotNil(t, product.Category)
	assert.Equal(t, category.Name, product.Category.Name)
	require.Len(t, product.Images, 2)
	assert.Equal(t, "https://cdn.example.com/front.jpg", product.Images[0].URL)
	require.Len(t, product.Variants, 1)
	require.NotNil(t, product.Variants[0].Size)
	assert.Equal(t, size.Name, product.Variants[0].Size.Name)
	assert.Equal(t, 1, f.tx.commits)
}

func TestProductService_CreateRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	category, size, color := f.addCatalog()
	_, otherSize, _ := f.addCatalog()

	existing, err := svc.Create(ctx, admin, productInput(category.ID,
		VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "TAKEN", PriceInCents: 1000},
	))
	require.NoError(t, err)

	t.Run("duplicate name", func(t *testing.T) {
		input := productInput(category.ID)
		input.Name = existing.Name
		_, err := svc.Create(ctx, admin, input)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("sku already used by another product", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, productInput(category.ID,
			VariantInput{SizeID: otherSize.ID, ColorID: color.ID, SKU: "TAKEN", PriceInCents: 1000},
		))
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.Equal(t, domain.ResourceVariant, err.(*domain.Error).ResourceType)
	})

	t.Run("repeated size and color", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, productInput(category.ID,
			VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "A-1", PriceInCents: 1000},
			VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "A-2", PriceInCents: 1000},
		))
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("discount above price", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, productInput(category.ID,
			VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "B-1", PriceInCents: 1000, DiscountPriceInCents: intPtr(1001)},
		))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	assert.Len(t, f.db.products, 1)
	assert.Len(t, f.db.images, 2)
	assert.Len(t, f.db.variants, 1)
}

// A product with a bad variant leaves nothing behind: no product row, no images,
// no earlier variants.
func TestProperty_ProductCreationIsAllOrNothing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("either everything is stored or nothing is", prop.ForAll(
		func(variantCount int, clashAt int, clash bool) bool {
			f := newFixture(t)
			svc := f.productService()
			ctx := context.Background()
			admin := f.addUser(domain.RoleAdmin)
			category, _, _ := f.addCatalog()

			var variants []VariantInput
			for i := 0; i < variantCount; i++ {
				_, size, color := f.addCatalog()
				variants = append(variants, VariantInput{
					SizeID: size.ID, ColorID: color.ID, SKU: fmt.Sprintf("SKU-%d", i), PriceInCents: 100 * (i + 1),
				})
			}
			if clash {
				// same SKU as an earlier variant, on an otherwise free combination
				_, size, _ := f.addCatalog()
				dup := variants[clashAt%variantCount]
				dup.SizeID = size.ID
				variants = append(variants, dup)
			}

			product, err := svc.Create(ctx, admin, productInput(category.ID, variants...))
			if clash {
				return err != nil &&
					len(f.db.products) == 0 && len(f.db.images) == 0 && len(f.db.variants) == 0
			}
			return err == nil &&
				len(product.Variants) == variantCount &&
				len(f.db.products) == 1 && len(f.db.images) == 2 && len(f.db.variants) == variantCount
		},
		gen.IntRange(1, 5),
		gen.IntRange(0, 4),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProductService_Authorization(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	user := f.addUser(domain.RoleUser)
	category, _, _ := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID))
	require.NoError(t, err)

	_, err = svc.Create(ctx, user, productInput(category.ID))
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	// capability is checked before existence
	_, err = svc.Update(ctx, user, uuid.New(), ProductUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	_, err = svc.Update(ctx, admin, uuid.New(), ProductUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, user, product.ID), domain.ErrNotAuthorized)
	assert.ErrorIs(t, svc.SoftDelete(ctx, user, product.ID), domain.ErrNotAuthorized)

	got, err := svc.Get(ctx, user, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, got.Name)

	_, err = svc.Get(ctx, nil, product.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestProductService_UpdateInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	category, _, _ := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID))
	require.NoError(t, err)
	other, err := svc.Create(ctx, admin, productInput(category.ID))
	require.NoError(t, err)

	_, err = svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, admin, product.ID, ProductUpdate{Name: strPtr(other.Name)})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Update(ctx, admin, product.ID, ProductUpdate{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	updated, err := svc.Update(ctx, admin, product.ID, ProductUpdate{Name: strPtr("Renamed Tee"), Brand: strPtr(" Globex ")})
	require.NoError(t, err)
	assert.Equal(t, "Globex", updated.Brand)

	got, err := svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Tee", got.Name)
}

func TestProductService_CachedReadsFollowAttributeUpdates(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	category, size, color := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID,
		VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "ATTR-1", PriceInCents: 900},
	))
	require.NoError(t, err)
	variantID := product.Variants[0].ID

	// warm the product and variant entries
	_, err = svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	_, err = svc.GetVariant(ctx, admin, variantID)
	require.NoError(t, err)

	_, err = NewCategoryService(f.categories, f.cache, zap.NewNop()).Update(ctx, admin, category.ID, CategoryUpdate{Name: strPtr("Outerwear")})
	require.NoError(t, err)
	_, err = NewSizeService(f.sizes, f.cache, zap.NewNop()).Update(ctx, admin, size.ID, SizeUpdate{Name: strPtr("XXL")})
	require.NoError(t, err)
	_, err = NewColorService(f.colors, f.cache, zap.NewNop()).Update(ctx, admin, color.ID, ColorUpdate{HexCode: strPtr("#000080")})
	require.NoError(t, err)

	got, err := svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Outerwear", got.Category.Name)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "XXL", got.Variants[0].Size.Name)
	assert.Equal(t, "#000080", got.Variants[0].Color.HexCode)

	variant, err := svc.GetVariant(ctx, admin, variantID)
	require.NoError(t, err)
	assert.Equal(t, "XXL", variant.Size.Name)
	assert.Equal(t, "#000080", variant.Color.HexCode)
}

func TestProductService_SoftAndHardDelete(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	category, size, color := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID,
		VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "DEL-1", PriceInCents: 500},
	))
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, admin, product.ID))
	got, err := svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusInactive, got.Status)

	assert.ErrorIs(t, svc.SoftDelete(ctx, admin, product.ID), domain.ErrValidation)

	variantID := product.Variants[0].ID
	_, err = svc.GetVariant(ctx, admin, variantID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, product.ID))
	assert.Empty(t, f.db.images)
	assert.Empty(t, f.db.variants)

	_, err = svc.Get(ctx, admin, product.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetVariant(ctx, admin, variantID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "cached variant is evicted with its product")
}

func TestProductService_Images(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	user := f.addUser(domain.RoleUser)
	category, _, _ := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID))
	require.NoError(t, err)

	_, err = svc.AddImage(ctx, admin, uuid.New(), ImageInput{URL: "https://cdn.example.com/x.jpg"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.AddImage(ctx, user, product.ID, ImageInput{URL: "https://cdn.example.com/x.jpg"})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)

	image, err := svc.AddImage(ctx, admin, product.ID, ImageInput{URL: " https://cdn.example.com/side.jpg ", OrderIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/side.jpg", image.URL)

	got, err := svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 3)

	fetched, err := svc.GetImage(ctx, user, image.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, fetched.ProductID)

	require.NoError(t, svc.DeleteImage(ctx, admin, image.ID))
	assert.ErrorIs(t, svc.DeleteImage(ctx, admin, image.ID), domain.ErrNotFound)

	got, err = svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 2)
}

func TestProductService_Variants(t *testing.T) {
	f := newFixture(t)
	svc := f.productService()
	ctx := context.Background()
	admin := f.addUser(domain.RoleAdmin)
	user := f.addUser(domain.RoleUser)
	category, size, color := f.addCatalog()
	_, otherSize, _ := f.addCatalog()

	product, err := svc.Create(ctx, admin, productInput(category.ID,
		VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "V-1", PriceInCents: 1000, Stock: 3},
	))
	require.NoError(t, err)
	other, err := svc.Create(ctx, admin, productInput(category.ID))
	require.NoError(t, err)
	first := product.Variants[0]

	added, err := svc.AddVariant(ctx, admin, product.ID, VariantInput{SizeID: otherSize.ID, ColorID: color.ID, SKU: " V-2 ", PriceInCents: 1200})
	require.NoError(t, err)
	assert.Equal(t, "V-2", added.SKU)
	require.NotNil(t, added.Size)
	assert.Equal(t, otherSize.Name, added.Size.Name)

	_, err = svc.AddVariant(ctx, admin, product.ID, VariantInput{SizeID: size.ID, ColorID: color.ID, SKU: "V-3", PriceInCents: 1200})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	page, err := svc.ListVariants(ctx, user, product.ID, repository.ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	_, err = svc.ListVariants(ctx, user, uuid.New(), repository.ListParams{Limit: 10})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t.Run("variant must belong to the product", func(t *testing.T) {
		_, err := svc.UpdateVariant(ctx, admin, other.ID, first.ID, VariantUpdate{Stock: intPtr(1)})
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
		assert.ErrorIs(t, svc.DeleteVariant(ctx, admin, other.ID, first.ID), domain.ErrNotAuthorized)
	})

	t.Run("update moves onto a taken combination", func(t *testing.T) {
		_, err := svc.UpdateVariant(ctx, admin, product.ID, added.ID, VariantUpdate{SizeID: &size.ID})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("discount checked against the stored price", func(t *testing.T) {
		_, err := svc.UpdateVariant(ctx, admin, product.ID, first.ID, VariantUpdate{DiscountPriceInCents: intPtr(1500)})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("update evicts the cached variant", func(t *testing.T) {
		_, err := svc.GetVariant(ctx, user, first.ID)
		require.NoError(t, err)

		_, err = svc.UpdateVariant(ctx, admin, product.ID, first.ID, VariantUpdate{Stock: intPtr(42), DiscountPriceInCents: intPtr(900)})
		require.NoError(t, err)

		got, err := svc.GetVariant(ctx, user, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 42, got.Stock)
		require.NotNil(t, got.DiscountPriceInCents)
		assert.Equal(t, 900, *got.DiscountPriceInCents)
	})

	_, err = svc.UpdateVariant(ctx, admin, product.ID, first.ID, VariantUpdate{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.DeleteVariant(ctx, admin, product.ID, added.ID))
	got, err := svc.Get(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Len(t, got.Variants, 1)
}
