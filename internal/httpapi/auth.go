package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/auth"
	"storefront-backend/internal/models"
	"storefront-backend/internal/scope"
)

type AuthHandler struct {
	Auth   *auth.Service
	Scopes *scope.Builder
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, token, err := h.Auth.Register(c.Request.Context(), scope.From(c).Session, in)
	if err != nil {
		h.fail(c, "register", "Registration failed. Please try again.", err)
		return
	}
	h.Scopes.SetToken(c, token)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"user": u, "token": token}})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, token, err := h.Auth.SignIn(c.Request.Context(), scope.From(c).Session, in.Email, in.Password)
	if err != nil {
		h.fail(c, "login", "Login failed. Please try again.", err)
		return
	}
	h.Scopes.SetToken(c, token)
	respondData(c, http.StatusOK, gin.H{"user": u, "token": token})
}

func (h *AuthHandler) FirebaseLogin(c *gin.Context) {
	var in struct {
		IDToken string `json:"idToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request payload")
		return
	}
	u, token, err := h.Auth.SignInWithIDToken(c.Request.Context(), scope.From(c).Session, in.IDToken)
	if err != nil {
		h.fail(c, "firebase login", "Login failed. Please try again.", err)
		return
	}
	h.Scopes.SetToken(c, token)
	respondData(c, http.StatusOK, gin.H{"user": u, "token": token})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sc := scope.From(c)
	if err := h.Auth.SignOut(c.Request.Context(), sc.Session, sc.Token); err != nil {
		respondError(c, "logout", "Logout failed", err)
		return
	}
	h.Scopes.ClearToken(c)
	respondMessage(c, http.StatusOK, "Signed out", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	respondData(c, http.StatusOK, scope.From(c).User())
}

// Profile returns a user's profile document to that user or an admin.
func (h *AuthHandler) Profile(c *gin.Context) {
	sess := scope.From(c).Session
	id := c.Param("id")
	if me := sess.User(); me.ID != id && !sess.HasRole(models.RoleAdmin) {
		respondFail(c, http.StatusForbidden, "Insufficient permissions")
		return
	}
	u, err := h.Auth.Profile(c.Request.Context(), id)
	if errors.Is(err, auth.ErrUserNotFound) {
		respondFail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		respondError(c, "get profile", "Failed to fetch profile", err)
		return
	}
	respondData(c, http.StatusOK, u)
}

func (h *AuthHandler) fail(c *gin.Context, op, fallback string, err error) {
	code := auth.Code(err)
	if code == "" {
		respondError(c, op, fallback, err)
		return
	}
	c.AbortWithStatusJSON(authStatus(err), gin.H{
		"success": false,
		"message": auth.MessageFor(err, fallback),
		"error":   code,
	})
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrInvalidAccessKey), errors.Is(err, auth.ErrUserDisabled):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrWrongPassword), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
