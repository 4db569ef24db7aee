package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/hash"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/models"
	"github.com/mirrorstack/mirror_server/internal/mykafka"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/sanitize"
	"github.com/mirrorstack/mirror_server/internal/session"
)

type UserHandler struct {
	Repo     *repo.Repo
	Issuer   *session.Issuer
	Producer mykafka.Publisher
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		l.Warn("register_failed", "status", 400, "reason", "missing_fields")
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	if !sanitize.AllClean(req.Email, req.Password, req.FirstName, req.LastName) {
		l.Warn("register_failed", "status", 400, "reason", "invalid_characters")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fields, please check for special characters")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: pwHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsAdmin:      false,
	}
	if err := h.Repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserExists) {
			l.Warn("register_failed", "status", 409, "reason", "email_taken")
			return echo.NewHTTPError(http.StatusConflict, "a user with this email already exists")
		}
		l.Error("register_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	publish(ctx, h.Producer, fmt.Sprint(user.ID), map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	l.Info("register_success", "status", 201, "user_id", user.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user created",
		"user":    user,
	})
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		l.Warn("login_failed", "status", 400, "reason", "missing_fields")
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	if !sanitize.AllClean(req.Email, req.Password) {
		l.Warn("login_failed", "status", 400, "reason", "invalid_characters")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fields, please check for special characters")
	}

	res, err := h.Issuer.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		}
		l.Error("login_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	publish(ctx, h.Producer, fmt.Sprint(res.User.ID), map[string]interface{}{
		"type":    "user_logged_in",
		"user_id": res.User.ID,
		"email":   res.User.Email,
	})

	l.Info("login_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *UserHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_logout")

	identity := middleware.IdentityFrom(c)
	raw := middleware.RawTokenFrom(c)
	if err := h.Issuer.Logout(ctx, raw, identity.ID); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("successful_logout", "user_id", identity.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged out",
	})
}

func (h *UserHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	identity := middleware.IdentityFrom(c)

	user, err := h.Repo.FindUserByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}
