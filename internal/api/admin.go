package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// adminUserResponse is one account row in the admin listing.
type adminUserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// adminRecordResponse is a saved analysis with its owner exposed.
type adminRecordResponse struct {
	OwnerID string `json:"ownerId"`
	RecordResponse
}

// AdminListUsers returns every registered account.
func (c *Controller) AdminListUsers(ctx echo.Context) error {
	users, err := c.DS.ListUsers(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to list accounts", http.StatusInternalServerError)
	}

	resp := make([]adminUserResponse, 0, len(users))
	for i := range users {
		u := &users[i]
		resp = append(resp, adminUserResponse{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}

// AdminListAnalyses returns saved analyses across every owner, newest
// first, with optional limit/offset paging.
func (c *Controller) AdminListAnalyses(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	offset, _ := strconv.Atoi(ctx.QueryParam("offset"))

	records, err := c.DS.ListAnalyses(ctx.Request().Context(), limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list analyses", http.StatusInternalServerError)
	}

	resp := make([]adminRecordResponse, 0, len(records))
	for i := range records {
		resp = append(resp, adminRecordResponse{
			OwnerID:        records[i].OwnerID,
			RecordResponse: c.recordResponse(&records[i]),
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}
