package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated caller's id, or "" when JWTAuth has not
// run for this request.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// Role returns the caller's role claim, upper-cased.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// rateSubject identifies the caller for rate limiting; "anon" when the
// request is unauthenticated.
func rateSubject(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
