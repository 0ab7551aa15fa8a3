package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/scope"
	"storefront-backend/internal/theme"
)

func themeState(h *theme.Holder) gin.H {
	return gin.H{"mode": h.Mode(), "rootClass": h.RootClass()}
}

func GetTheme(c *gin.Context) {
	respondData(c, http.StatusOK, themeState(scope.From(c).Theme))
}

func SetTheme(c *gin.Context) {
	var in struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	mode, err := theme.ParseMode(in.Mode)
	if err != nil {
		respondFail(c, http.StatusBadRequest, err.Error())
		return
	}
	h := scope.From(c).Theme
	if err := h.Set(c.Request.Context(), mode); err != nil {
		respondError(c, "set theme", "Failed to save theme", err)
		return
	}
	respondData(c, http.StatusOK, themeState(h))
}

func ToggleTheme(c *gin.Context) {
	h := scope.From(c).Theme
	if _, err := h.Toggle(c.Request.Context()); err != nil {
		respondError(c, "toggle theme", "Failed to save theme", err)
		return
	}
	respondData(c, http.StatusOK, themeState(h))
}
