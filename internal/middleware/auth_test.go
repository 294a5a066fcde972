package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picimpact-go/pkg/token"
)

func newProtectedRouter(m *token.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	g := r.Group("/admin", AuthMiddleware(m), AdminAuthMiddleware("ADMIN"))
	g.GET("/ping", func(c *gin.Context) {
		claims := c.MustGet(ClaimsKey).(*token.CustomClaims)
		c.JSON(http.StatusOK, gin.H{"user": claims.Username})
	})
	return r
}

func doGet(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	m := token.NewJWTManager("secret", 1, 7)
	r := newProtectedRouter(m)

	admin, err := m.GenerateToken("admin", "ADMIN")
	require.NoError(t, err)
	viewer, err := m.GenerateToken("guest", "VIEWER")
	require.NoError(t, err)
	refresh, err := m.GenerateRefreshToken("admin", "ADMIN")
	require.NoError(t, err)

	cases := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"non admin", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doGet(r, tc.auth)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestAdminAuthMiddleware_WithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", AdminAuthMiddleware("ADMIN"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
