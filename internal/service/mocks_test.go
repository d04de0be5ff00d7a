package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memDB is an in-memory stand-in for the Postgres schema. It enforces the same
// unique and foreign key constraints the migrations declare, so service code
// that forgets a check fails here the way it would against the real database.
type memDB struct {
	users      map[uuid.UUID]domain.User
	tokens     map[string]domain.RefreshToken
	addresses  map[uuid.UUID]domain.Address
	categories map[uuid.UUID]domain.Category
	colors     map[uuid.UUID]domain.Color
	sizes      map[uuid.UUID]domain.Size
	products   map[uuid.UUID]domain.Product
	images     map[uuid.UUID]domain.ProductImage
	variants   map[uuid.UUID]domain.ProductVariant
	promotions map[uuid.UUID]domain.Promotion
	wishlist   map[uuid.UUID]domain.WishlistItem

	clock time.Time
	// now stamps refresh tokens, which are compared against service clocks
	now func() time.Time

	// failOn makes the named operation ("addresses.update", ...) return failErr
	failOn  string
	failErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[uuid.UUID]domain.User{},
		tokens:     map[string]domain.RefreshToken{},
		addresses:  map[uuid.UUID]domain.Address{},
		categories: map[uuid.UUID]domain.Category{},
		colors:     map[uuid.UUID]domain.Color{},
		sizes:      map[uuid.UUID]domain.Size{},
		products:   map[uuid.UUID]domain.Product{},
		images:     map[uuid.UUID]domain.ProductImage{},
		variants:   map[uuid.UUID]domain.ProductVariant{},
		promotions: map[uuid.UUID]domain.Promotion{},
		wishlist:   map[uuid.UUID]domain.WishlistItem{},
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		now:        time.Now,
	}
}

// tick returns a strictly increasing creation timestamp
func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) fail(op string) error {
	if db.failOn == op {
		return db.failErr
	}
	return nil
}

func (db *memDB) snapshot() *memDB {
	return &memDB{
		users:      maps.Clone(db.users),
		tokens:     maps.Clone(db.tokens),
		addresses:  maps.Clone(db.addresses),
		categories: maps.Clone(db.categories),
		colors:     maps.Clone(db.colors),
		sizes:      maps.Clone(db.sizes),
		products:   maps.Clone(db.products),
		images:     maps.Clone(db.images),
		variants:   maps.Clone(db.variants),
		promotions: maps.Clone(db.promotions),
		wishlist:   maps.Clone(db.wishlist),
		clock:      db.clock,
	}
}

func (db *memDB) restore(snap *memDB) {
	db.users = snap.users
	db.tokens = snap.tokens
	db.addresses = snap.addresses
	db.categories = snap.categories
	db.colors = snap.colors
	db.sizes = snap.sizes
	db.products = snap.products
	db.images = snap.images
	db.variants = snap.variants
	db.promotions = snap.promotions
	db.wishlist = snap.wishlist
}

// snapshotTx rolls the whole memDB back when the unit of work fails
type snapshotTx struct {
	db      *memDB
	commits int
}

type inTxKey struct{}

func (t *snapshotTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	snap := t.db.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		t.db.restore(snap)
		return err
	}
	t.commits++
	return nil
}

func unknownField(resource, field string) error {
	return domain.Validation("Unknown field '%s' for %s", field, resource)
}

func paginate[T any](rows []*T, params repository.ListParams) ([]*T, int, error) {
	total := len(rows)
	if params.Skip >= total {
		return []*T{}, total, nil
	}
	end := min(params.Skip+params.Limit, total)
	return rows[params.Skip:end], total, nil
}

// users

type memUserRepo struct{ db *memDB }

func (r *memUserRepo) Get(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceUser, "User with id %s not found", id)
	}
	return &u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.NotFound(domain.ResourceUser, "User with email %s not found", email)
}

func (r *memUserRepo) List(_ context.Context, params repository.ListParams) ([]*domain.User, int, error) {
	var rows []*domain.User
	for _, u := range r.db.users {
		if role, ok := params.Filters["role"]; ok && string(u.Role) != role {
			continue
		}
		rows = append(rows, &u)
	}
	slices.SortFunc(rows, func(a, b *domain.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return paginate(rows, params)
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	if err := r.db.fail("users.create"); err != nil {
		return err
	}
	for _, u := range r.db.users {
		if u.Email == user.Email {
			return domain.AlreadyExists(domain.ResourceUser, "User with this email already exists")
		}
	}
	user.CreatedAt = r.db.tick()
	user.UpdatedAt = user.CreatedAt
	r.db.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.User, error) {
	if err := r.db.fail("users.update"); err != nil {
		return nil, err
	}
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceUser, "User with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "email":
			u.Email = v.(string)
			for otherID, other := range r.db.users {
				if otherID != id && other.Email == u.Email {
					return nil, domain.AlreadyExists(domain.ResourceUser, "User with this email already exists")
				}
			}
		case "is_active":
			u.IsActive = v.(bool)
		case "role":
			u.Role = domain.Role(v.(string))
		case "hashed_password":
			u.HashedPassword = v.(string)
		case "tokens_valid_from":
			t := v.(time.Time)
			u.TokensValidFrom = &t
		default:
			return nil, unknownField("users", k)
		}
	}
	u.UpdatedAt = r.db.tick()
	r.db.users[id] = u
	return &u, nil
}

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.users[id]; !ok {
		return domain.NotFound(domain.ResourceUser, "User with id %s not found", id)
	}
	delete(r.db.users, id)
	for aid, a := range r.db.addresses {
		if a.UserID == id {
			delete(r.db.addresses, aid)
		}
	}
	for tok, t := range r.db.tokens {
		if t.UserID == id {
			delete(r.db.tokens, tok)
		}
	}
	for wid, w := range r.db.wishlist {
		if w.UserID == id {
			delete(r.db.wishlist, wid)
		}
	}
	return nil
}

type memRefreshTokenRepo struct{ db *memDB }

func (r *memRefreshTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	token.CreatedAt = r.db.now().UTC()
	r.db.tokens[token.Token] = *token
	return nil
}

func (r *memRefreshTokenRepo) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	t, ok := r.db.tokens[token]
	if !ok {
		return nil, domain.NotFound(domain.ResourceRefreshToken, "Refresh token not found")
	}
	return &t, nil
}

func (r *memRefreshTokenRepo) Revoke(_ context.Context, token string) error {
	if err := r.db.fail("tokens.revoke"); err != nil {
		return err
	}
	t, ok := r.db.tokens[token]
	if !ok || t.Revoked {
		return domain.NotFound(domain.ResourceRefreshToken, "active refresh token not found")
	}
	t.Revoked = true
	r.db.tokens[token] = t
	return nil
}

func (r *memRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	if err := r.db.fail("tokens.revoke_all"); err != nil {
		return err
	}
	for k, t := range r.db.tokens {
		if t.UserID == userID {
			t.Revoked = true
			r.db.tokens[k] = t
		}
	}
	return nil
}

// addresses

type memAddressRepo struct{ db *memDB }

func (r *memAddressRepo) Get(_ context.Context, id uuid.UUID) (*domain.Address, error) {
	a, ok := r.db.addresses[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceAddress, "Address with id %s not found", id)
	}
	return &a, nil
}

func (r *memAddressRepo) forUser(userID uuid.UUID) []*domain.Address {
	var rows []*domain.Address
	for _, a := range r.db.addresses {
		if a.UserID == userID {
			rows = append(rows, &a)
		}
	}
	slices.SortFunc(rows, func(a, b *domain.Address) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return rows
}

func (r *memAddressRepo) List(_ context.Context, params repository.ListParams) ([]*domain.Address, int, error) {
	userID, err := uuid.Parse(params.Filters["user_id"])
	if err != nil {
		return nil, 0, fmt.Errorf("address list without user_id filter")
	}
	return paginate(r.forUser(userID), params)
}

// checkDefault mirrors the partial unique index on (user_id) WHERE is_default
func (r *memAddressRepo) checkDefault(a domain.Address) error {
	if !a.IsDefault {
		return nil
	}
	for id, other := range r.db.addresses {
		if id != a.ID && other.UserID == a.UserID && other.IsDefault {
			return domain.AlreadyExists(domain.ResourceAddress, "Address with this user default already exists")
		}
	}
	return nil
}

func (r *memAddressRepo) Create(_ context.Context, address *domain.Address) error {
	if err := r.db.fail("addresses.create"); err != nil {
		return err
	}
	if _, ok := r.db.users[address.UserID]; !ok {
		return domain.Validation("Referenced user does not exist")
	}
	if err := r.checkDefault(*address); err != nil {
		return err
	}
	address.CreatedAt = r.db.tick()
	r.db.addresses[address.ID] = *address
	return nil
}

func (r *memAddressRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.Address, error) {
	if err := r.db.fail("addresses.update"); err != nil {
		return nil, err
	}
	a, ok := r.db.addresses[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceAddress, "Address with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "street_address":
			a.StreetAddress = v.(string)
		case "city":
			a.City = v.(string)
		case "state":
			a.State = v.(string)
		case "zip_code":
			a.ZipCode = v.(string)
		case "is_default":
			a.IsDefault = v.(bool)
		default:
			return nil, unknownField("addresses", k)
		}
	}
	if err := r.checkDefault(a); err != nil {
		return nil, err
	}
	r.db.addresses[id] = a
	return &a, nil
}

func (r *memAddressRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.addresses[id]; !ok {
		return domain.NotFound(domain.ResourceAddress, "Address with id %s not found", id)
	}
	delete(r.db.addresses, id)
	return nil
}

func (r *memAddressRepo) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	return len(r.forUser(userID)), nil
}

func (r *memAddressRepo) UnsetDefaultForUser(_ context.Context, userID, exceptID uuid.UUID) ([]uuid.UUID, error) {
	var cleared []uuid.UUID
	for id, a := range r.db.addresses {
		if a.UserID == userID && id != exceptID && a.IsDefault {
			a.IsDefault = false
			r.db.addresses[id] = a
			cleared = append(cleared, id)
		}
	}
	return cleared, nil
}

func (r *memAddressRepo) OldestForUser(_ context.Context, userID, excludeID uuid.UUID) (*domain.Address, error) {
	for _, a := range r.forUser(userID) {
		if a.ID != excludeID {
			return a, nil
		}
	}
	return nil, domain.NotFound(domain.ResourceAddress, "No other address for user %s", userID)
}

// catalog

type memCategoryRepo struct{ db *memDB }

func (r *memCategoryRepo) Get(_ context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := r.db.categories[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceCategory, "Category with id %s not found", id)
	}
	return &c, nil
}

func (r *memCategoryRepo) find(match func(domain.Category) bool) (*domain.Category, error) {
	for _, c := range r.db.categories {
		if match(c) {
			return &c, nil
		}
	}
	return nil, domain.NotFound(domain.ResourceCategory, "Category not found")
}

func (r *memCategoryRepo) GetByName(_ context.Context, name string) (*domain.Category, error) {
	return r.find(func(c domain.Category) bool { return strings.EqualFold(c.Name, name) })
}

func (r *memCategoryRepo) GetBySlug(_ context.Context, slug string) (*domain.Category, error) {
	return r.find(func(c domain.Category) bool { return c.Slug == slug })
}

func (r *memCategoryRepo) List(_ context.Context, params repository.ListParams) ([]*domain.Category, int, error) {
	var rows []*domain.Category
	for _, c := range r.db.categories {
		rows = append(rows, &c)
	}
	slices.SortFunc(rows, func(a, b *domain.Category) int { return strings.Compare(a.Name, b.Name) })
	return paginate(rows, params)
}

func (r *memCategoryRepo) Create(_ context.Context, category *domain.Category) error {
	for _, c := range r.db.categories {
		if c.Name == category.Name || c.Slug == category.Slug {
			return domain.AlreadyExists(domain.ResourceCategory, "Category with this name already exists")
		}
	}
	r.db.categories[category.ID] = *category
	return nil
}

func (r *memCategoryRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.Category, error) {
	c, ok := r.db.categories[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceCategory, "Category with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "name":
			c.Name = v.(string)
		case "slug":
			c.Slug = v.(string)
		default:
			return nil, unknownField("categories", k)
		}
	}
	r.db.categories[id] = c
	return &c, nil
}

func (r *memCategoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.categories[id]; !ok {
		return domain.NotFound(domain.ResourceCategory, "Category with id %s not found", id)
	}
	for _, p := range r.db.products {
		if p.CategoryID == id {
			return domain.Validation("Category is still referenced by products")
		}
	}
	delete(r.db.categories, id)
	return nil
}

type memColorRepo struct{ db *memDB }

func (r *memColorRepo) Get(_ context.Context, id uuid.UUID) (*domain.Color, error) {
	c, ok := r.db.colors[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceColor, "Color with id %s not found", id)
	}
	return &c, nil
}

func (r *memColorRepo) find(match func(domain.Color) bool) (*domain.Color, error) {
	for _, c := range r.db.colors {
		if match(c) {
			return &c, nil
		}
	}
	return nil, domain.NotFound(domain.ResourceColor, "Color not found")
}

func (r *memColorRepo) GetByName(_ context.Context, name string) (*domain.Color, error) {
	return r.find(func(c domain.Color) bool { return strings.EqualFold(c.Name, name) })
}

func (r *memColorRepo) GetByHexCode(_ context.Context, hexCode string) (*domain.Color, error) {
	return r.find(func(c domain.Color) bool { return c.HexCode == hexCode })
}

func (r *memColorRepo) List(_ context.Context, params repository.ListParams) ([]*domain.Color, int, error) {
	var rows []*domain.Color
	for _, c := range r.db.colors {
		rows = append(rows, &c)
	}
	slices.SortFunc(rows, func(a, b *domain.Color) int { return strings.Compare(a.Name, b.Name) })
	return paginate(rows, params)
}

func (r *memColorRepo) Create(_ context.Context, color *domain.Color) error {
	for _, c := range r.db.colors {
		if c.Name == color.Name || c.HexCode == color.HexCode {
			return domain.AlreadyExists(domain.ResourceColor, "Color with this hex code already exists")
		}
	}
	r.db.colors[color.ID] = *color
	return nil
}

func (r *memColorRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.Color, error) {
	c, ok := r.db.colors[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceColor, "Color with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "name":
			c.Name = v.(string)
		case "hex_code":
			c.HexCode = v.(string)
		default:
			return nil, unknownField("colors", k)
		}
	}
	r.db.colors[id] = c
	return &c, nil
}

func (r *memColorRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.colors[id]; !ok {
		return domain.NotFound(domain.ResourceColor, "Color with id %s not found", id)
	}
	for _, v := range r.db.variants {
		if v.ColorID == id {
			return domain.Validation("Color is still referenced by product variants")
		}
	}
	delete(r.db.colors, id)
	return nil
}

type memSizeRepo struct{ db *memDB }

func (r *memSizeRepo) Get(_ context.Context, id uuid.UUID) (*domain.Size, error) {
	s, ok := r.db.sizes[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceSize, "Size with id %s not found", id)
	}
	return &s, nil
}

func (r *memSizeRepo) GetByName(_ context.Context, name string) (*domain.Size, error) {
	for _, s := range r.db.sizes {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, domain.NotFound(domain.ResourceSize, "Size %s not found", name)
}

func (r *memSizeRepo) List(_ context.Context, params repository.ListParams) ([]*domain.Size, int, error) {
	var rows []*domain.Size
	for _, s := range r.db.sizes {
		rows = append(rows, &s)
	}
	slices.SortFunc(rows, func(a, b *domain.Size) int { return strings.Compare(a.Name, b.Name) })
	return paginate(rows, params)
}

func (r *memSizeRepo) Create(_ context.Context, size *domain.Size) error {
	for _, s := range r.db.sizes {
		if s.Name == size.Name {
			return domain.AlreadyExists(domain.ResourceSize, "Size with this name already exists")
		}
	}
	r.db.sizes[size.ID] = *size
	return nil
}

func (r *memSizeRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.Size, error) {
	s, ok := r.db.sizes[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceSize, "Size with id %s not found", id)
	}
	for k, v := range fields {
		if k != "name" {
			return nil, unknownField("sizes", k)
		}
		s.Name = v.(string)
	}
	r.db.sizes[id] = s
	return &s, nil
}

func (r *memSizeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.sizes[id]; !ok {
		return domain.NotFound(domain.ResourceSize, "Size with id %s not found", id)
	}
	for _, v := range r.db.variants {
		if v.SizeID == id {
			return domain.Validation("Size is still referenced by product variants")
		}
	}
	delete(r.db.sizes, id)
	return nil
}

// products

type memProductRepo struct{ db *memDB }

// assemble joins category, images and variants the way the SQL repository does
func (r *memProductRepo) assemble(p domain.Product) *domain.Product {
	if c, ok := r.db.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	p.Images = []domain.ProductImage{}
	for _, img := range r.db.images {
		if img.ProductID == p.ID {
			p.Images = append(p.Images, img)
		}
	}
	slices.SortFunc(p.Images, func(a, b domain.ProductImage) int { return a.OrderIndex - b.OrderIndex })
	p.Variants = []domain.ProductVariant{}
	for _, v := range r.db.variants {
		if v.ProductID == p.ID {
			p.Variants = append(p.Variants, *withOptions(r.db, v))
		}
	}
	slices.SortFunc(p.Variants, func(a, b domain.ProductVariant) int { return strings.Compare(a.SKU, b.SKU) })
	return &p
}

func (r *memProductRepo) Get(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := r.db.products[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceProduct, "Product with id %s not found", id)
	}
	return r.assemble(p), nil
}

func (r *memProductRepo) GetByName(_ context.Context, name string) (*domain.Product, error) {
	for _, p := range r.db.products {
		if strings.EqualFold(p.Name, name) {
			return r.assemble(p), nil
		}
	}
	return nil, domain.NotFound(domain.ResourceProduct, "Product %s not found", name)
}

func (r *memProductRepo) List(_ context.Context, params repository.ListParams) ([]*domain.Product, int, error) {
	var rows []*domain.Product
	for _, p := range r.db.products {
		if status, ok := params.Filters["status"]; ok && string(p.Status) != status {
			continue
		}
		rows = append(rows, r.assemble(p))
	}
	slices.SortFunc(rows, func(a, b *domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return paginate(rows, params)
}

func (r *memProductRepo) Create(_ context.Context, product *domain.Product) error {
	if err := r.db.fail("products.create"); err != nil {
		return err
	}
	if _, ok := r.db.categories[product.CategoryID]; !ok {
		return domain.Validation("Referenced category does not exist")
	}
	for _, p := range r.db.products {
		if p.Name == product.Name {
			return domain.AlreadyExists(domain.ResourceProduct, "Product with this name already exists")
		}
	}
	product.CreatedAt = r.db.tick()
	product.UpdatedAt = product.CreatedAt
	stored := *product
	stored.Images, stored.Variants, stored.Category = nil, nil, nil
	r.db.products[product.ID] = stored
	return nil
}

func (r *memProductRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.Product, error) {
	p, ok := r.db.products[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceProduct, "Product with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "name":
			p.Name = v.(string)
		case "description":
			p.Description = v.(string)
		case "brand":
			p.Brand = v.(string)
		case "status":
			p.Status = domain.ProductStatus(v.(string))
		case "gender":
			p.Gender = domain.Gender(v.(string))
		case "category_id":
			p.CategoryID = v.(uuid.UUID)
			if _, ok := r.db.categories[p.CategoryID]; !ok {
				return nil, domain.Validation("Referenced category does not exist")
			}
		default:
			return nil, unknownField("products", k)
		}
	}
	p.UpdatedAt = r.db.tick()
	r.db.products[id] = p
	return r.assemble(p), nil
}

func (r *memProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.products[id]; !ok {
		return domain.NotFound(domain.ResourceProduct, "Product with id %s not found", id)
	}
	delete(r.db.products, id)
	for k, img := range r.db.images {
		if img.ProductID == id {
			delete(r.db.images, k)
		}
	}
	for k, v := range r.db.variants {
		if v.ProductID == id {
			delete(r.db.variants, k)
		}
	}
	for k, w := range r.db.wishlist {
		if w.ProductID == id {
			delete(r.db.wishlist, k)
		}
	}
	return nil
}

type memImageRepo struct{ db *memDB }

func (r *memImageRepo) Get(_ context.Context, id uuid.UUID) (*domain.ProductImage, error) {
	img, ok := r.db.images[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceImage, "Image with id %s not found", id)
	}
	return &img, nil
}

func (r *memImageRepo) List(_ context.Context, params repository.ListParams) ([]*domain.ProductImage, int, error) {
	var rows []*domain.ProductImage
	for _, img := range r.db.images {
		if pid, ok := params.Filters["product_id"]; ok && img.ProductID.String() != pid {
			continue
		}
		rows = append(rows, &img)
	}
	slices.SortFunc(rows, func(a, b *domain.ProductImage) int { return a.OrderIndex - b.OrderIndex })
	return paginate(rows, params)
}

func (r *memImageRepo) Create(_ context.Context, image *domain.ProductImage) error {
	if _, ok := r.db.products[image.ProductID]; !ok {
		return domain.Validation("Referenced product does not exist")
	}
	r.db.images[image.ID] = *image
	return nil
}

func (r *memImageRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.ProductImage, error) {
	img, ok := r.db.images[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceImage, "Image with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "url":
			img.URL = v.(string)
		case "alt_text":
			img.AltText = v.(string)
		case "order_index":
			img.OrderIndex = v.(int)
		default:
			return nil, unknownField("product_images", k)
		}
	}
	r.db.images[id] = img
	return &img, nil
}

func (r *memImageRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.images[id]; !ok {
		return domain.NotFound(domain.ResourceImage, "Image with id %s not found", id)
	}
	delete(r.db.images, id)
	return nil
}

type memVariantRepo struct{ db *memDB }

func withOptions(db *memDB, v domain.ProductVariant) *domain.ProductVariant {
	if s, ok := db.sizes[v.SizeID]; ok {
		v.Size = &s
	}
	if c, ok := db.colors[v.ColorID]; ok {
		v.Color = &c
	}
	return &v
}

func (r *memVariantRepo) find(match func(domain.ProductVariant) bool) (*domain.ProductVariant, error) {
	for _, v := range r.db.variants {
		if match(v) {
			return withOptions(r.db, v), nil
		}
	}
	return nil, domain.NotFound(domain.ResourceVariant, "Variant not found")
}

func (r *memVariantRepo) Get(_ context.Context, id uuid.UUID) (*domain.ProductVariant, error) {
	return r.find(func(v domain.ProductVariant) bool { return v.ID == id })
}

func (r *memVariantRepo) GetBySKU(_ context.Context, sku string) (*domain.ProductVariant, error) {
	return r.find(func(v domain.ProductVariant) bool { return v.SKU == sku })
}

func (r *memVariantRepo) GetByCombination(_ context.Context, productID, sizeID, colorID uuid.UUID) (*domain.ProductVariant, error) {
	return r.find(func(v domain.ProductVariant) bool {
		return v.ProductID == productID && v.SizeID == sizeID && v.ColorID == colorID
	})
}

func (r *memVariantRepo) List(_ context.Context, params repository.ListParams) ([]*domain.ProductVariant, int, error) {
	var rows []*domain.ProductVariant
	for _, v := range r.db.variants {
		if pid, ok := params.Filters["product_id"]; ok && v.ProductID.String() != pid {
			continue
		}
		rows = append(rows, withOptions(r.db, v))
	}
	slices.SortFunc(rows, func(a, b *domain.ProductVariant) int { return strings.Compare(a.SKU, b.SKU) })
	return paginate(rows, params)
}

func (r *memVariantRepo) check(v domain.ProductVariant) error {
	if _, ok := r.db.products[v.ProductID]; !ok {
		return domain.Validation("Referenced product does not exist")
	}
	if _, ok := r.db.sizes[v.SizeID]; !ok {
		return domain.Validation("Referenced size does not exist")
	}
	if _, ok := r.db.colors[v.ColorID]; !ok {
		return domain.Validation("Referenced color does not exist")
	}
	for id, other := range r.db.variants {
		if id == v.ID {
			continue
		}
		if other.SKU == v.SKU {
			return domain.AlreadyExists(domain.ResourceVariant, "ProductVariant with this sku already exists")
		}
		if other.ProductID == v.ProductID && other.SizeID == v.SizeID && other.ColorID == v.ColorID {
			return domain.AlreadyExists(domain.ResourceVariant, "ProductVariant with this combination already exists")
		}
	}
	return nil
}

func (r *memVariantRepo) Create(_ context.Context, variant *domain.ProductVariant) error {
	if err := r.db.fail("variants.create"); err != nil {
		return err
	}
	if err := r.check(*variant); err != nil {
		return err
	}
	stored := *variant
	stored.Size, stored.Color = nil, nil
	r.db.variants[variant.ID] = stored
	return nil
}

func (r *memVariantRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.ProductVariant, error) {
	v, ok := r.db.variants[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceVariant, "Variant with id %s not found", id)
	}
	for k, val := range fields {
		switch k {
		case "size_id":
			v.SizeID = val.(uuid.UUID)
		case "color_id":
			v.ColorID = val.(uuid.UUID)
		case "sku":
			v.SKU = val.(string)
		case "price_in_cents":
			v.PriceInCents = val.(int)
		case "discount_price_in_cents":
			d := val.(int)
			v.DiscountPriceInCents = &d
		case "stock":
			v.Stock = val.(int)
		default:
			return nil, unknownField("product_variants", k)
		}
	}
	if err := r.check(v); err != nil {
		return nil, err
	}
	r.db.variants[id] = v
	return withOptions(r.db, v), nil
}

func (r *memVariantRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.variants[id]; !ok {
		return domain.NotFound(domain.ResourceVariant, "Variant with id %s not found", id)
	}
	delete(r.db.variants, id)
	return nil
}

// promotions

type memPromotionRepo struct{ db *memDB }

func (r *memPromotionRepo) Get(_ context.Context, id uuid.UUID) (*domain.Promotion, error) {
	p, ok := r.db.promotions[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourcePromotion, "Promotion with id %s not found", id)
	}
	return &p, nil
}

func (r *memPromotionRepo) GetByCode(_ context.Context, code string) (*domain.Promotion, error) {
	for _, p := range r.db.promotions {
		if p.Code == strings.ToUpper(code) {
			return &p, nil
		}
	}
	return nil, domain.NotFound(domain.ResourcePromotion, "Promotion %s not found", code)
}

func (r *memPromotionRepo) List(_ context.Context, params repository.ListParams) ([]*domain.Promotion, int, error) {
	var rows []*domain.Promotion
	for _, p := range r.db.promotions {
		if status, ok := params.Filters["status"]; ok && string(p.Status) != status {
			continue
		}
		rows = append(rows, &p)
	}
	slices.SortFunc(rows, func(a, b *domain.Promotion) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return paginate(rows, params)
}

func (r *memPromotionRepo) Create(_ context.Context, promotion *domain.Promotion) error {
	for _, p := range r.db.promotions {
		if p.Code == promotion.Code {
			return domain.AlreadyExists(domain.ResourcePromotion, "Promotion with this code already exists")
		}
	}
	promotion.CreatedAt = r.db.tick()
	r.db.promotions[promotion.ID] = *promotion
	return nil
}

func (r *memPromotionRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*domain.Promotion, error) {
	p, ok := r.db.promotions[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourcePromotion, "Promotion with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "code":
			p.Code = v.(string)
		case "status":
			p.Status = domain.PromotionStatus(v.(string))
		case "discount_type":
			p.DiscountType = domain.DiscountType(v.(string))
		case "value":
			p.Value = v.(int)
		case "expires_at":
			p.ExpiresAt = v.(time.Time)
		default:
			return nil, unknownField("promotions", k)
		}
	}
	r.db.promotions[id] = p
	return &p, nil
}

func (r *memPromotionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.promotions[id]; !ok {
		return domain.NotFound(domain.ResourcePromotion, "Promotion with id %s not found", id)
	}
	delete(r.db.promotions, id)
	return nil
}

// wishlist

type memWishlistRepo struct{ db *memDB }

func (r *memWishlistRepo) Get(_ context.Context, id uuid.UUID) (*domain.WishlistItem, error) {
	w, ok := r.db.wishlist[id]
	if !ok {
		return nil, domain.NotFound(domain.ResourceWishlist, "Wishlist item with id %s not found", id)
	}
	return &w, nil
}

func (r *memWishlistRepo) GetByUserAndProduct(_ context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	for _, w := range r.db.wishlist {
		if w.UserID == userID && w.ProductID == productID {
			return &w, nil
		}
	}
	return nil, domain.NotFound(domain.ResourceWishlist, "Wishlist item not found")
}

func (r *memWishlistRepo) List(_ context.Context, params repository.ListParams) ([]*domain.WishlistItem, int, error) {
	var rows []*domain.WishlistItem
	for _, w := range r.db.wishlist {
		if uid, ok := params.Filters["user_id"]; ok && w.UserID.String() != uid {
			continue
		}
		rows = append(rows, &w)
	}
	slices.SortFunc(rows, func(a, b *domain.WishlistItem) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return paginate(rows, params)
}

func (r *memWishlistRepo) Create(_ context.Context, item *domain.WishlistItem) error {
	for _, w := range r.db.wishlist {
		if w.UserID == item.UserID && w.ProductID == item.ProductID {
			return domain.AlreadyExists(domain.ResourceWishlist, "Wishlist with this combination already exists")
		}
	}
	item.CreatedAt = r.db.tick()
	r.db.wishlist[item.ID] = *item
	return nil
}

func (r *memWishlistRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.wishlist[id]; !ok {
		return domain.NotFound(domain.ResourceWishlist, "Wishlist item with id %s not found", id)
	}
	delete(r.db.wishlist, id)
	return nil
}

// fixture wires every service against one memDB

type fixture struct {
	db    *memDB
	tx    *snapshotTx
	cache *cache.Service

	users      *memUserRepo
	tokens     *memRefreshTokenRepo
	addresses  *memAddressRepo
	categories *memCategoryRepo
	colors     *memColorRepo
	sizes      *memSizeRepo
	products   *memProductRepo
	images     *memImageRepo
	variants   *memVariantRepo
	promotions *memPromotionRepo
	wishlist   *memWishlistRepo
}

func newFixture(t interface{ Fatalf(string, ...any) }) *fixture {
	store, err := cache.NewMemoryStore(cache.DefaultMemoryConfig())
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	db := newMemDB()
	return &fixture{
		db:         db,
		tx:         &snapshotTx{db: db},
		cache:      cache.NewService(store, zap.NewNop()),
		users:      &memUserRepo{db: db},
		tokens:     &memRefreshTokenRepo{db: db},
		addresses:  &memAddressRepo{db: db},
		categories: &memCategoryRepo{db: db},
		colors:     &memColorRepo{db: db},
		sizes:      &memSizeRepo{db: db},
		products:   &memProductRepo{db: db},
		images:     &memImageRepo{db: db},
		variants:   &memVariantRepo{db: db},
		promotions: &memPromotionRepo{db: db},
		wishlist:   &memWishlistRepo{db: db},
	}
}

func (f *fixture) addUser(role domain.Role) *domain.User {
	u := &domain.User{
		ID:       uuid.New(),
		Name:     "user " + uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@example.com",
		Role:     role,
		IsActive: true,
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) addCatalog() (domain.Category, domain.Size, domain.Color) {
	c := domain.Category{ID: uuid.New(), Name: "Shirts " + uuid.NewString()[:6], Slug: "shirts-" + uuid.NewString()[:6]}
	s := domain.Size{ID: uuid.New(), Name: "M" + strings.ToUpper(uuid.NewString()[:4])}
	col := domain.Color{ID: uuid.New(), Name: "Red " + uuid.NewString()[:4], HexCode: "#" + strings.ToUpper(uuid.NewString()[:6])}
	f.db.categories[c.ID] = c
	f.db.sizes[s.ID] = s
	f.db.colors[col.ID] = col
	return c, s, col
}

func (f *fixture) addressService() AddressService {
	return NewAddressService(f.addresses, f.tx, f.cache, zap.NewNop())
}

func (f *fixture) productService() ProductService {
	return NewProductService(f.products, f.images, f.variants, f.categories, f.sizes, f.colors, f.tx, f.cache, zap.NewNop())
}

func (f *fixture) promotionService(now time.Time) PromotionService {
	svc := NewPromotionService(f.promotions, f.cache, zap.NewNop())
	svc.(*promotionService).now = func() time.Time { return now }
	return svc
}

// defaults returns the ids of userID's default addresses
func (f *fixture) defaults(userID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for id, a := range f.db.addresses {
		if a.UserID == userID && a.IsDefault {
			ids = append(ids, id)
		}
	}
	return ids
}

func isKind(err error, kind domain.ErrorKind) bool {
	var appErr *domain.Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
