package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-middleware"

func init() {
	gin.SetMode(gin.TestMode)
}

func signClaims(t *testing.T, claims jwt.Claims, secret string, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func setupJWTRouter(config *JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(JWTMiddleware(config))
	router.GET("/protected", func(c *gin.Context) {
		userID, _ := GetUserID(c)
		email, _ := GetEmail(c)
		role, _ := GetRole(c)
		ctxUser, _ := c.Request.Context().Value(logger.UserIDKey).(string)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "email": email, "role": role, "ctx_user": ctxUser})
	})
	router.GET("/skip", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "skipped"})
	})
	return router
}

func doRequest(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	config := &JWTConfig{Secret: testSecret, Issuer: "fashionistas", SkipPaths: []string{"/skip"}}
	router := setupJWTRouter(config)

	t.Run("valid token", func(t *testing.T) {
		token, err := NewToken(testSecret, "fashionistas", "buyer-123", "ada@example.com", RoleBuyer, time.Hour)
		require.NoError(t, err)

		w := doRequest(router, http.MethodGet, "/protected", "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "buyer-123", body["user_id"])
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, RoleBuyer, body["role"])
		assert.Equal(t, "buyer-123", body["ctx_user"])
	})

	tests := []struct {
		name string
		auth func(t *testing.T) string
	}{
		{"missing header", func(*testing.T) string { return "" }},
		{"wrong scheme", func(*testing.T) string { return "Basic abc" }},
		{"empty bearer", func(*testing.T) string { return "Bearer " }},
		{"malformed token", func(*testing.T) string { return "Bearer not-a-jwt" }},
		{"expired", func(t *testing.T) string {
			token, err := NewToken(testSecret, "fashionistas", "buyer-1", "", RoleBuyer, -time.Minute)
			require.NoError(t, err)
			return "Bearer " + token
		}},
		{"wrong secret", func(t *testing.T) string {
			token, err := NewToken("other-secret", "fashionistas", "buyer-1", "", RoleBuyer, time.Hour)
			require.NoError(t, err)
			return "Bearer " + token
		}},
		{"wrong issuer", func(t *testing.T) string {
			token, err := NewToken(testSecret, "someone-else", "buyer-1", "", RoleBuyer, time.Hour)
			require.NoError(t, err)
			return "Bearer " + token
		}},
		{"wrong algorithm", func(t *testing.T) string {
			claims := &Claims{UserID: "buyer-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "fashionistas"}}
			return "Bearer " + signClaims(t, claims, testSecret, jwt.SigningMethodHS512)
		}},
		{"missing user_id", func(t *testing.T) string {
			claims := &Claims{Role: RoleBuyer, RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "fashionistas",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}
			return "Bearer " + signClaims(t, claims, testSecret, jwt.SigningMethodHS256)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/protected", tt.auth(t))
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "fail", body["status"])
			assert.Equal(t, "UNAUTHORIZED", body["code"])
		})
	}

	t.Run("skip path", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/skip", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	router := gin.New()
	router.Use(JWTMiddleware(&JWTConfig{Secret: testSecret}))
	router.GET("/admin", RequireRole(RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": IsAdmin(c)})
	})

	admin, err := NewToken(testSecret, "", "admin-1", "", RoleAdmin, time.Hour)
	require.NoError(t, err)
	buyer, err := NewToken(testSecret, "", "buyer-1", "", RoleBuyer, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/admin", "Bearer "+admin).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, "/admin", "Bearer "+buyer).Code)
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	router := gin.New()
	router.GET("/admin", RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/admin", "").Code)
}
