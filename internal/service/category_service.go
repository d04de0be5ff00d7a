package service

import (
	"context"
	"errors"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryService manages product categories. Reads are open to any authenticated
// user, writes are admin-only.
type CategoryService interface {
	Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Category, error)
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Category], error)
	Create(ctx context.Context, actor *domain.User, input CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, input CategoryUpdate) (*domain.Category, error)
	Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

type CategoryUpdate struct {
	Name *string `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	cache        *cache.Service
	logger       *zap.Logger
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository, cacheService *cache.Service, logger *zap.Logger) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		cache:        cacheService,
		logger:       logger,
	}
}

func (s *categoryService) Get(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Category, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, domain.ResourceCategory, id, func(ctx context.Context) (*domain.Category, error) {
		return s.categoryRepo.Get(ctx, id)
	}, s.cache.TTL())
}

func (s *categoryService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.Category], error) {
	if err := requireAuthenticated(actor); err != nil {
		return domain.Page[*domain.Category]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.Category]{}, err
	}

	categories, total, err := s.categoryRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.Category]{}, err
	}
	return domain.NewPage(categories, total, params.Skip, params.Limit), nil
}

// Create stores a category with a slug derived from its name. Both must be unique.
func (s *categoryService) Create(ctx context.Context, actor *domain.User, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor, "create", domain.ResourceCategory); err != nil {
		return nil, err
	}

	category := &domain.Category{ID: uuid.New(), Name: collapseSpaces(input.Name)}
	category.Slug = Slugify(category.Name)

	if err := s.checkConflicts(ctx, uuid.Nil, category.Name, category.Slug); err != nil {
		return nil, err
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("slug", category.Slug))
	return category, nil
}

// Update renames a category; the slug follows the new name
func (s *categoryService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, input CategoryUpdate) (*domain.Category, error) {
	if err := requireAdmin(actor, "update", domain.ResourceCategory); err != nil {
		return nil, err
	}
	if input.Name == nil {
		return nil, domain.Validation("At least one field must be provided for update")
	}

	existing, err := s.categoryRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := collapseSpaces(*input.Name)
	if name == existing.Name {
		return existing, nil
	}

	slug := Slugify(name)
	if err := s.checkConflicts(ctx, id, name, slug); err != nil {
		return nil, err
	}

	updated, err := s.categoryRepo.Update(ctx, id, map[string]any{"name": name, "slug": slug})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, domain.ResourceCategory, id)

	s.logger.Info("Category updated", zap.String("category_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return updated, nil
}

// Delete fails with a validation error while products still reference the category
func (s *categoryService) Delete(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if err := requireAdmin(actor, "delete", domain.ResourceCategory); err != nil {
		return err
	}

	if _, err := s.categoryRepo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, domain.ResourceCategory, id)

	s.logger.Warn("Category deleted", zap.String("category_id", id.String()), zap.String("deleter_id", actor.ID.String()))
	return nil
}

func (s *categoryService) checkConflicts(ctx context.Context, selfID uuid.UUID, name, slug string) error {
	byName, err := s.categoryRepo.GetByName(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if byName != nil && byName.ID != selfID {
		return domain.AlreadyExists(domain.ResourceCategory, "Category already exists with %s", name)
	}

	bySlug, err := s.categoryRepo.GetBySlug(ctx, slug)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if bySlug != nil && bySlug.ID != selfID {
		return domain.AlreadyExists(domain.ResourceCategory, "A category resulting in the slug '%s' already exists.", slug)
	}
	return nil
}
