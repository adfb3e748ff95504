package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/utils"
)

const testSecret = "middleware-test-secret"

func runProtected(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"user_id": c.Get("user_id"),
			"role":    c.Get("role"),
		})
	}
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	require.NoError(t, h(c))
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "user-1", "9876543210", "Farmer", 15)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token, JWTAuth(testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user-1")
	assert.Contains(t, rec.Body.String(), "Farmer")
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec := runProtected(t, "", JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")
}

func TestJWTAuthRejectsBadToken(t *testing.T) {
	rec := runProtected(t, "Bearer garbage", JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid access token")
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", "user-1", "9876543210", "Farmer", 15)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token, JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthDistinguishesExpired(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "user-1", "9876543210", "Farmer", -1)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token, JWTAuth(testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token expired")
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "user-1", "9876543210", "Farmer", 15)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token,
		JWTAuth(testSecret), RequireRole(model.RoleFarmer, model.RoleCooperative))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "user-1", "9876543210", "Buyer", 15)
	require.NoError(t, err)

	rec := runProtected(t, "Bearer "+tok.Token,
		JWTAuth(testSecret), RequireRole(model.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
