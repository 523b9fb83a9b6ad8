package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/redharvest/redharvest-go/internal/security"
)

// GetDashboard returns the summary statistics over everything the
// signed-in user has saved.
func (c *Controller) GetDashboard(ctx echo.Context) error {
	userID := security.UserID(ctx)

	stats, err := c.DS.Dashboard(ctx.Request().Context(), userID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to compute dashboard", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}
