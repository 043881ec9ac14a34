package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthMiddleware(testSecret))
	router.GET("/protected", func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sub": claims["sub"]})
	})
	return router
}

func requestWithHeader(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	router := authTestRouter()

	validToken := signToken(t, testSecret, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{
			name:           "valid token",
			header:         "Bearer " + validToken,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			header:         "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "not a bearer token",
			header:         "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			header:         "Bearer not.a.token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			header: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
				"sub": "operator",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "operator",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := requestWithHeader(router, tt.header)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d\nBody: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareRejectsUnsignedToken(t *testing.T) {
	router := authTestRouter()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "operator"})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to create unsigned token: %v", err)
	}

	w := requestWithHeader(router, "Bearer "+unsigned)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for alg=none token, got %d", w.Code)
	}
}

func TestGetAuthClaimsWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if _, ok := GetAuthClaims(c); ok {
		t.Error("expected no claims on a bare context")
	}
}
