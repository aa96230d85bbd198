package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/service"
)

// Retry-After values for 503 responses.  Lock contention clears quickly;
// other store failures get a longer pause.
const (
	retryAfterTransient = 1
	retryAfterOutage    = 5
)

// conflictSeat is one unavailable range in a 409 response.
type conflictSeat struct {
	BlockName string `json:"block_name"`
	FromSeat  int    `json:"from_seat"`
	ToSeat    int    `json:"to_seat"`
	Label     string `json:"label"`
}

// writeError maps service errors onto HTTP responses.  Unknown errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	var (
		ve *service.ValidationError
		ce *service.ConflictError
		pe *service.PriceMismatchError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Reason == service.ReasonUnknownEvent {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found", "reason": ve.Reason})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message, "reason": ve.Reason})
	case errors.As(err, &ce):
		seats := make([]conflictSeat, 0, len(ce.Seats))
		for _, r := range ce.Seats {
			seats = append(seats, conflictSeat{BlockName: r.BlockName, FromSeat: r.FromSeat, ToSeat: r.ToSeat, Label: r.Label()})
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "unavailable": seats})
	case errors.As(err, &pe):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    "price mismatch",
			"expected": pe.Expected.StringFixed(2),
			"actual":   pe.Actual.StringFixed(2),
		})
	case errors.Is(err, service.ErrStoreUnavailable):
		retry := retryAfterOutage
		var se *service.StoreUnavailableError
		if errors.As(err, &se) && se.Transient {
			retry = retryAfterTransient
		}
		log.WithError(err).WithField("retry_after", retry).Error("booking store unavailable")
		c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking store unavailable, retry"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking cannot change to the requested status"})
	case errors.Is(err, service.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, service.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, service.ErrVenueNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
	case errors.Is(err, service.ErrBlockNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
	}
	log.WithError(err).Error("unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
