package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fulfillment_backend/utils"
)

// AuthMiddleware requires a bearer operator token when OPERATOR_TOKEN_SECRET is set.
// The operator name from the token is stored in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.OperatorAuthEnabled() || c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
		bearer := "Bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = strings.TrimSpace(auth[len(bearer):])

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)
		if customClaim == nil || customClaim.Operator == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(utils.SetOperatorInContext(c.Request.Context(), customClaim.Operator))
		c.Next()
	}
}
