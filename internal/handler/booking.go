package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/middleware"
	"github.com/iliyamo/block-seat-reservation/internal/service"
)

// BookingHandler serves the booking endpoints.  JWTAuth must run first;
// every method reads the caller from the token subject.
type BookingHandler struct {
	manager *service.Manager
	log     logrus.FieldLogger
}

// NewBookingHandler wires a handler to the reservation manager.
func NewBookingHandler(m *service.Manager, log logrus.FieldLogger) *BookingHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookingHandler{manager: m, log: log.WithField("component", "booking_handler")}
}

type reserveRequest struct {
	Selections       []service.Selection `json:"selections"`
	PaymentReference string              `json:"payment_reference"`
	ExpectedTotal    *decimal.Decimal    `json:"expected_total"`
}

// Reserve handles POST /v1/events/:id/bookings.  It answers 201 with the
// new booking, or 200 when the payment reference replays an earlier one.
func (h *BookingHandler) Reserve(c echo.Context) error {
	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.manager.Reserve(c.Request().Context(), service.ReserveRequest{
		EventID:          c.Param("id"),
		UserID:           middleware.UserID(c),
		Selections:       body.Selections,
		PaymentReference: strings.TrimSpace(body.PaymentReference),
		ExpectedTotal:    body.ExpectedTotal,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res.Booking)
}

// List handles GET /v1/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	bs, err := h.manager.ListBookings(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bs})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.manager.GetBooking(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.manager.Cancel(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Attend handles POST /v1/bookings/:id/attend (staff only).
func (h *BookingHandler) Attend(c echo.Context) error {
	b, err := h.manager.MarkAttended(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}
