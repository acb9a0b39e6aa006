package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		op, _ := utils.GetOperatorFromContext(c.Request.Context())
		c.String(http.StatusOK, op)
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	t.Setenv("OPERATOR_TOKEN_SECRET", "")
	w := get(router(), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_RequiresValidToken(t *testing.T) {
	t.Setenv("OPERATOR_TOKEN_SECRET", "s3cret")
	r := router()

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer not-a-token").Code)

	token, err := utils.JwtGenerate("warehouse-kim")
	require.NoError(t, err)
	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "warehouse-kim", w.Body.String())

	t.Setenv("OPERATOR_TOKEN_SECRET", "rotated")
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
}
