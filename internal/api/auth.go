package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/redharvest/redharvest-go/internal/security"
)

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Register creates an account and signs the new user straight in.
func (c *Controller) Register(ctx echo.Context) error {
	var req registerRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid registration payload", http.StatusBadRequest)
	}

	user, err := c.auth.Register(ctx.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return c.HandleError(ctx, err, security.MessageFor(err), http.StatusBadRequest)
	}

	if err := c.auth.SignIn(ctx, user); err != nil {
		return c.HandleError(ctx, err, security.MessageFor(err), http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	})
}

// Login verifies credentials and issues the session cookie.
func (c *Controller) Login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid login payload", http.StatusBadRequest)
	}

	user, err := c.auth.Authenticate(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return c.HandleError(ctx, err, security.MessageFor(err), http.StatusUnauthorized)
	}

	if err := c.auth.SignIn(ctx, user); err != nil {
		return c.HandleError(ctx, err, security.MessageFor(err), http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	})
}

// Logout expires the session cookie.
func (c *Controller) Logout(ctx echo.Context) error {
	if err := c.auth.SignOut(ctx); err != nil {
		return c.HandleError(ctx, err, "failed to end session", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AuthStatus reports whether the request carries a valid session.
func (c *Controller) AuthStatus(ctx echo.Context) error {
	id, name, ok := c.auth.SessionUser(ctx)
	if !ok {
		return ctx.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          userResponse{ID: id, Name: name},
	})
}
