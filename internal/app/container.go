package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staydrive/inventory-engine/internal/api"
	"github.com/staydrive/inventory-engine/internal/auth"
	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/booking"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/driver"
	"github.com/staydrive/inventory-engine/internal/inventory"
	"github.com/staydrive/inventory-engine/internal/ledger"
	"github.com/staydrive/inventory-engine/internal/retention"
)

// Config holds the dependencies and settings required to start the application.
// A nil DBPool selects the in-process storage backend; a nil RedisClient
// keeps the availability cache in process.
type Config struct {
	IsProduction    bool
	ProdOrigins     []string
	DBPool          *pgxpool.Pool
	RedisClient     *redis.Client
	JWTSecret       string
	JWTTTL          time.Duration
	Location        *time.Location
	InitHorizonDays int
	TxMaxAttempts   int
	LockTimeout     time.Duration
	CacheTTL        time.Duration
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	CatalogService catalog.Service
	Initializer    *inventory.Initializer
	Resolver       *driver.Resolver
	Ledger         *ledger.Ledger
	Cleaner        *retention.Cleaner
	BookingService booking.Service
}

// repositories groups one storage backend.
type repositories struct {
	tm           db.TxManager
	catalog      catalog.Repository
	capacity     capacity.Repository
	drivers      driver.Repository
	reservations ledger.Repository
	bookings     booking.Repository
}

func newPgxRepositories(cfg Config) repositories {
	return repositories{
		tm:           db.NewPgxTxManager(cfg.DBPool, cfg.TxMaxAttempts, cfg.LockTimeout),
		catalog:      catalog.NewPgxRepository(cfg.DBPool),
		capacity:     capacity.NewPgxRepository(cfg.DBPool),
		drivers:      driver.NewPgxRepository(cfg.DBPool),
		reservations: ledger.NewPgxRepository(cfg.DBPool),
		bookings:     booking.NewPgxRepository(cfg.DBPool),
	}
}

// newMemoryRepositories shares one LocalTxManager so a transaction spans
// every in-process repository.
func newMemoryRepositories() repositories {
	tm := db.NewLocalTxManager()
	return repositories{
		tm:           tm,
		catalog:      catalog.NewMemoryRepository(),
		capacity:     capacity.NewMemoryRepository(tm),
		drivers:      driver.NewMemoryRepository(tm),
		reservations: ledger.NewMemoryRepository(tm),
		bookings:     booking.NewMemoryRepository(),
	}
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	repos := newMemoryRepositories()
	if cfg.DBPool != nil {
		repos = newPgxRepositories(cfg)
	}

	var cache availability.Cache
	if cfg.RedisClient != nil {
		cache = availability.NewRedisCache(cfg.RedisClient, cfg.CacheTTL)
	} else {
		cache = availability.NewMemoryCache(cfg.CacheTTL)
	}

	// Catalog Module
	catalogService := catalog.NewService(repos.catalog)

	// Availability Module
	calculator := availability.NewCalculator(repos.capacity, catalogService, cache)

	// Inventory Module
	initializer := inventory.NewInitializer(repos.tm, repos.capacity, catalogService, cache, inventory.Options{
		HorizonDays: cfg.InitHorizonDays,
		Location:    cfg.Location,
	})

	// Driver Module
	resolver := driver.NewResolver(repos.tm, repos.drivers, catalogService)

	// Ledger Module
	bookingLedger := ledger.NewLedger(repos.tm, repos.capacity, repos.reservations, resolver, cache)

	// Retention Module
	cleaner := retention.NewCleaner(repos.capacity, repos.drivers, catalogService, cache, cfg.Location)

	// Booking Module
	bookingService := booking.NewService(repos.bookings, catalogService, bookingLedger, cfg.Location)

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		CatalogService: catalogService,
		Calculator:     calculator,
		Initializer:    initializer,
		Resolver:       resolver,
		Cleaner:        cleaner,
		BookingService: bookingService,
		JWTManager:     jwtManager,
	})

	return &Container{
		Router:         router,
		JWTManager:     jwtManager,
		CatalogService: catalogService,
		Initializer:    initializer,
		Resolver:       resolver,
		Ledger:         bookingLedger,
		Cleaner:        cleaner,
		BookingService: bookingService,
	}
}
