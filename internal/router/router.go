// Package router registers the HTTP routes of the reservation API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/config"
	"github.com/iliyamo/block-seat-reservation/internal/handler"
	"github.com/iliyamo/block-seat-reservation/internal/middleware"
)

// Deps are the collaborators route registration needs.  Redis may be nil,
// which disables rate limiting and response caching.
type Deps struct {
	Config   config.Config
	Redis    *redis.Client
	Log      logrus.FieldLogger
	Bookings *handler.BookingHandler
	Catalog  *handler.CatalogHandler
	DB       handler.Pinger
}

// RegisterRoutes registers the probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterCatalog registers the unauthenticated catalog reads.  Layouts and
// categories are served through the response cache; availability is
// cached separately by the reservation manager.
func RegisterCatalog(e *echo.Echo, d Deps) {
	cache := middleware.NewRedisCache(d.Config.Cache, d.Redis, d.Log)

	g := e.Group("/v1")
	g.GET("/venues/:id/blocks", d.Catalog.VenueBlocks, cache)
	g.GET("/events/:id/categories", d.Catalog.EventCategories, cache)
	g.GET("/events/:id/blocks/:block/availability", d.Catalog.BlockAvailability)
}

// RegisterBookings registers the authenticated booking routes.  Creating a
// booking is limited to customers and rate limited per user.
func RegisterBookings(e *echo.Echo, d Deps) {
	auth := e.Group("/v1", middleware.JWTAuth(d.Config.JWT.Secret))

	limiter := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log)
	auth.POST("/events/:id/bookings", d.Bookings.Reserve,
		middleware.RequireRole(middleware.RoleCustomer), limiter)

	auth.GET("/bookings", d.Bookings.List)
	auth.GET("/bookings/:id", d.Bookings.Get)
	auth.POST("/bookings/:id/cancel", d.Bookings.Cancel)
	auth.POST("/bookings/:id/attend", d.Bookings.Attend, middleware.RequireRole(middleware.RoleStaff))
}

// Register installs every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterCatalog(e, d)
	RegisterBookings(e, d)
}
