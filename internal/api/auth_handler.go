package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/auth"
)

// AuthHandler exposes the caller's identity. Tokens are issued by the
// identity provider; this service only verifies them.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

//
// GET /v1/auth/me
//

func (h *AuthHandler) Me(c *gin.Context) {
	role := auth.GetRole(c)
	c.JSON(http.StatusOK, MeResponse{
		UserID:  auth.GetUserID(c),
		Role:    role,
		IsStaff: auth.IsStaff(role),
	})
}
