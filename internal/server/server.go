package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix     = "storefront:"
	loginLimiterPrefix = "login_attempts"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) (*Server, error) {
	redisClient := connectRedis(cfg, logger)

	cacheService, err := newCacheService(cfg, redisClient, logger)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, err
	}

	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", healthHandler(db))

	// Repositories
	dates := repository.DateMode{Lenient: !cfg.Repository.StrictDates}
	userRepo := repository.NewUserRepository(db, dates)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	colorRepo := repository.NewColorRepository(db)
	sizeRepo := repository.NewSizeRepository(db)
	productRepo := repository.NewProductRepository(db)
	imageRepo := repository.NewImageRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	promotionRepo := repository.NewPromotionRepository(db, dates)
	wishlistRepo := repository.NewWishlistRepository(db)
	tx := database.NewTransactor(db)

	// Services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, tx, cacheService, service.AuthConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, logger)
	userService := service.NewUserService(userRepo, refreshTokenRepo, tx, cacheService, logger)
	addressService := service.NewAddressService(addressRepo, tx, cacheService, logger)
	categoryService := service.NewCategoryService(categoryRepo, cacheService, logger)
	colorService := service.NewColorService(colorRepo, cacheService, logger)
	sizeService := service.NewSizeService(sizeRepo, cacheService, logger)
	productService := service.NewProductService(productRepo, imageRepo, variantRepo, categoryRepo, sizeRepo, colorRepo, tx, cacheService, logger)
	promotionService := service.NewPromotionService(promotionRepo, cacheService, logger)
	wishlistService := service.NewWishlistService(wishlistRepo, productRepo, logger)

	// Handlers
	authHandler := transport.NewAuthHandler(authService, logger)
	userHandler := transport.NewUserHandler(userService, logger)
	addressHandler := transport.NewAddressHandler(addressService, logger)
	categoryHandler := transport.NewCategoryHandler(categoryService, logger)
	colorHandler := transport.NewColorHandler(colorService, logger)
	sizeHandler := transport.NewSizeHandler(sizeService, logger)
	productHandler := transport.NewProductHandler(productService, logger)
	promotionHandler := transport.NewPromotionHandler(promotionService, logger)
	wishlistHandler := transport.NewWishlistHandler(wishlistService, logger)

	authMiddleware := custommiddleware.AuthMiddleware(authService, logger)
	requireAdmin := custommiddleware.RequireAdmin(logger)
	loginLimiter := newLoginLimiter(cfg, redisClient, logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			authHandler.Routes(r, authMiddleware, loginLimiter)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Route("/users", func(r chi.Router) { userHandler.Routes(r, requireAdmin) })
			r.Route("/addresses", addressHandler.Routes)
			r.Route("/categories", categoryHandler.Routes)
			r.Route("/colors", colorHandler.Routes)
			r.Route("/sizes", sizeHandler.Routes)
			r.Route("/products", productHandler.Routes)
			r.Route("/wishlists", wishlistHandler.Routes)
			r.Route("/promotions", func(r chi.Router) {
				r.Use(requireAdmin)
				promotionHandler.Routes(r)
			})
		})
	})

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  cfg.Server.IdleTimeout,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}, nil
}

// connectRedis returns nil when Redis is unreachable; callers degrade instead of failing
func connectRedis(cfg *config.Config, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, continuing without it",
			zap.String("addr", cfg.Redis.Addr()),
			zap.Error(err),
		)
		client.Close()
		return nil
	}
	return client
}

func newCacheService(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (*cache.Service, error) {
	opts := []cache.Option{cache.WithTTL(cfg.Cache.TTL)}
	if cfg.Cache.SingleFlight {
		opts = append(opts, cache.WithSingleFlight())
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "none":
		store = cache.NopStore{}
	case "redis":
		if redisClient != nil {
			store = cache.NewRedisStore(redisClient, cacheKeyPrefix)
			break
		}
		logger.Warn("Redis cache backend requested but Redis is unavailable, using memory cache")
		fallthrough
	case "memory", "":
		memCfg := cache.DefaultMemoryConfig()
		if cfg.Cache.Capacity > 0 {
			memCfg.Capacity = cfg.Cache.Capacity
		}
		if cfg.Cache.NumShards > 0 {
			memCfg.NumShards = cfg.Cache.NumShards
		}
		if cfg.Cache.TTL > 0 {
			memCfg.TTL = cfg.Cache.TTL
		}
		memCfg.EvictionPercentage = cfg.Cache.EvictionPercentage

		memStore, err := cache.NewMemoryStore(memCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		store = memStore
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	logger.Info("Cache configured",
		zap.String("backend", cfg.Cache.Backend),
		zap.Duration("ttl", cfg.Cache.TTL),
		zap.Bool("single_flight", cfg.Cache.SingleFlight),
	)
	return cache.NewService(store, logger, opts...), nil
}

func newLoginLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	if redisClient == nil || cfg.RateLimit.LoginAttempts <= 0 {
		logger.Warn("Login rate limiting disabled")
		return func(next http.Handler) http.Handler { return next }
	}
	return custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		MaxFailures: cfg.RateLimit.LoginAttempts,
		Window:      cfg.RateLimit.Window,
		KeyPrefix:   loginLimiterPrefix,
	}, logger)
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := database.Health(r.Context(), db)
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]any{
			"status":   stats["status"],
			"database": stats,
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
			return err
		}
	}

	return nil
}
