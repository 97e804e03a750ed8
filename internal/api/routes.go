package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Register wires every route onto r. Shared by the daemon and the tests.
func Register(r *gin.Engine, h *Handler) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", h.Health)
		apiGroup.POST("/claims", h.SubmitClaim)
		apiGroup.GET("/claims", h.ListClaims)
		apiGroup.POST("/claims/:id/documents", h.AddDocuments)
		apiGroup.GET("/files/:name", h.Download)
		apiGroup.POST("/admin/login", h.Login)
		apiGroup.POST("/admin/logout", h.Logout)
	}

	admin := apiGroup.Group("/admin", h.RequireAdmin)
	{
		admin.GET("/claims", h.ListAllClaims)
		admin.GET("/claims/:id", h.GetClaim)
		admin.POST("/claims/:id", h.UpdateClaim)
		admin.GET("/export", h.Export)
		admin.POST("/import", h.Import)
	}
}

// RequireAdmin aborts with 401 unless the request carries a live session
// token, as a cookie or a bearer header.
func (h *Handler) RequireAdmin(c *gin.Context) {
	if err := h.Sessions.Authenticate(sessionToken(c)); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
