package service

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WishlistService manages the products a user saved for later. Users only ever
// see and change their own wishlist.
type WishlistService interface {
	List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.WishlistItem], error)
	Add(ctx context.Context, actor *domain.User, productID uuid.UUID) (*domain.WishlistItem, error)
	Remove(ctx context.Context, actor *domain.User, productID uuid.UUID) error
}

type wishlistService struct {
	wishlistRepo repository.WishlistRepository
	productRepo  repository.ProductRepository
	logger       *zap.Logger
}

// NewWishlistService creates a new instance of WishlistService
func NewWishlistService(wishlistRepo repository.WishlistRepository, productRepo repository.ProductRepository, logger *zap.Logger) WishlistService {
	return &wishlistService{
		wishlistRepo: wishlistRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

func (s *wishlistService) List(ctx context.Context, actor *domain.User, params repository.ListParams) (domain.Page[*domain.WishlistItem], error) {
	if err := requireAuthenticated(actor); err != nil {
		return domain.Page[*domain.WishlistItem]{}, err
	}
	if err := checkPage(params); err != nil {
		return domain.Page[*domain.WishlistItem]{}, err
	}

	params = withFilter(params, "user_id", actor.ID.String())
	items, total, err := s.wishlistRepo.List(ctx, params)
	if err != nil {
		return domain.Page[*domain.WishlistItem]{}, err
	}

	s.logger.Info("Wishlist retrieved", zap.String("user_id", actor.ID.String()), zap.Int("count", len(items)))
	return domain.NewPage(items, total, params.Skip, params.Limit), nil
}

func (s *wishlistService) Add(ctx context.Context, actor *domain.User, productID uuid.UUID) (*domain.WishlistItem, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}

	if _, err := s.productRepo.Get(ctx, productID); err != nil {
		return nil, err
	}

	existing, err := s.wishlistRepo.GetByUserAndProduct(ctx, actor.ID, productID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.AlreadyExists(domain.ResourceWishlist, "Product already in wishlist")
	}

	item := &domain.WishlistItem{ID: uuid.New(), UserID: actor.ID, ProductID: productID}
	if err := s.wishlistRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Product added to wishlist", zap.String("user_id", actor.ID.String()), zap.String("product_id", productID.String()))
	return item, nil
}

func (s *wishlistService) Remove(ctx context.Context, actor *domain.User, productID uuid.UUID) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}

	item, err := s.wishlistRepo.GetByUserAndProduct(ctx, actor.ID, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound(domain.ResourceWishlist, "Product %s is not in your wishlist.", productID)
		}
		return err
	}

	if err := s.wishlistRepo.Delete(ctx, item.ID); err != nil {
		return err
	}

	s.logger.Info("Product removed from wishlist", zap.String("user_id", actor.ID.String()), zap.String("product_id", productID.String()))
	return nil
}
