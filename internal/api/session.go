package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/redharvest/redharvest-go/internal/security"
)

// GetSessionView returns where the user currently is in the analysis flow.
func (c *Controller) GetSessionView(ctx echo.Context) error {
	view := c.views.Get(security.UserID(ctx))
	return ctx.JSON(http.StatusOK, view)
}

// ResetSessionView discards the analysis flow state, returning the session
// to idle.
func (c *Controller) ResetSessionView(ctx echo.Context) error {
	view := c.views.Reset(security.UserID(ctx))
	return ctx.JSON(http.StatusOK, view)
}
