package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/auth"
	"github.com/staydrive/inventory-engine/internal/availability"
	availabilityHttp "github.com/staydrive/inventory-engine/internal/availability/http"
	"github.com/staydrive/inventory-engine/internal/booking"
	bookingHttp "github.com/staydrive/inventory-engine/internal/booking/http"
	"github.com/staydrive/inventory-engine/internal/catalog"
	catalogHttp "github.com/staydrive/inventory-engine/internal/catalog/http"
	"github.com/staydrive/inventory-engine/internal/driver"
	driverHttp "github.com/staydrive/inventory-engine/internal/driver/http"
	"github.com/staydrive/inventory-engine/internal/inventory"
	inventoryHttp "github.com/staydrive/inventory-engine/internal/inventory/http"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
	"github.com/staydrive/inventory-engine/internal/pkg/request"
	"github.com/staydrive/inventory-engine/internal/retention"
	retentionHttp "github.com/staydrive/inventory-engine/internal/retention/http"
)

// Config holds the services the router exposes.
type Config struct {
	IsProduction   bool
	ProdOrigins    []string
	CatalogService catalog.Service
	Calculator     *availability.Calculator
	Initializer    *inventory.Initializer
	Resolver       *driver.Resolver
	Cleaner        *retention.Cleaner
	BookingService booking.Service
	JWTManager     *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	// Custom binding tags must exist before the first request is bound.
	if err := request.RegisterValidators(); err != nil {
		log.Error(context.Background(), "failed to register validators", log.Err("error", err))
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: Logs one structured line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	if cfg.IsProduction {
		config.AllowOrigins = cfg.ProdOrigins
	} else {
		config.AllowOrigins = append([]string{
			"http://localhost:8081", // Swagger
			"http://localhost:5173", // Back office
		}, cfg.ProdOrigins...)
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	config.ExposeHeaders = []string{"Retry-After"}
	if len(config.AllowOrigins) > 0 {
		r.Use(cors.New(config))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// staffOnly / adminOnly: Further check the role claim of the token.
	staffOnly := auth.RequireRole(auth.RoleStaff, auth.RoleAdmin)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	authHandler := NewAuthHandler()
	catalogHandler := catalogHttp.NewHandler(cfg.CatalogService)
	availabilityHandler := availabilityHttp.NewHandler(cfg.Calculator)
	inventoryHandler := inventoryHttp.NewHandler(cfg.Initializer)
	driverHandler := driverHttp.NewHandler(cfg.Resolver)
	retentionHandler := retentionHttp.NewHandler(cfg.Cleaner)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		v1.GET("/auth/me", authMiddleware, authHandler.Me)
		catalogHttp.RegisterRoutes(v1, catalogHandler, authMiddleware, adminOnly)
		availabilityHttp.RegisterRoutes(v1, availabilityHandler)
		inventoryHttp.RegisterRoutes(v1, inventoryHandler, authMiddleware, staffOnly)
		retentionHttp.RegisterRoutes(v1, retentionHandler, authMiddleware, staffOnly)
		driverHttp.RegisterRoutes(v1, driverHandler, authMiddleware, staffOnly)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
	}

	return r
}
