package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/service"
)

// CatalogHandler exposes venue layouts, ticket categories and block
// availability without authentication.
type CatalogHandler struct {
	manager *service.Manager
	log     logrus.FieldLogger
}

func NewCatalogHandler(m *service.Manager, log logrus.FieldLogger) *CatalogHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CatalogHandler{manager: m, log: log.WithField("component", "catalog_handler")}
}

// VenueBlocks handles GET /v1/venues/:id/blocks.
func (h *CatalogHandler) VenueBlocks(c echo.Context) error {
	v, err := h.manager.Venue(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// EventCategories handles GET /v1/events/:id/categories.
func (h *CatalogHandler) EventCategories(c echo.Context) error {
	cats, err := h.manager.Categories(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": c.Param("id"), "categories": cats})
}

// BlockAvailability handles GET /v1/events/:id/blocks/:block/availability.
func (h *CatalogHandler) BlockAvailability(c echo.Context) error {
	a, err := h.manager.Availability(c.Request().Context(), c.Param("id"), c.Param("block"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}
