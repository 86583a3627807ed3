package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisDB(client)
	t.Cleanup(func() { config.SetRedisDB(nil) })
	return mr, client
}

func seedSession(t *testing.T, mr *miniredis.Miniredis, token string, user models.User) {
	t.Helper()
	b, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, mr.Set("User:"+user.Email, string(b)))
	require.NoError(t, mr.Set("Token:"+token, user.Email))
}

// whoami echoes what the middlewares put on the context.
func whoami(c *gin.Context) {
	ctx := c.Request.Context()
	companyId, _ := utils.GetCompanyIdFromContext(ctx)
	role, _ := utils.GetUserRoleFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)
	c.JSON(http.StatusOK, gin.H{"company_id": companyId, "role": role, "user_id": userId})
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionMiddleware(t *testing.T) {
	mr, _ := setupRedis(t)
	seedSession(t, mr, "tok-1", models.User{ID: 3, Email: "ar@demo.com", CompanyId: "c1", Role: models.UserRoleARManager, IsActive: utils.NewTrue()})
	seedSession(t, mr, "tok-off", models.User{ID: 4, Email: "off@demo.com", CompanyId: "c1", Role: models.UserRoleViewer, IsActive: utils.NewFalse()})

	r := gin.New()
	r.Use(SessionMiddleware())
	r.GET("/me", whoami)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("token", "tok-1")
		w := do(r, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"company_id":"c1","role":"AR_MANAGER","user_id":3}`, w.Body.String())
	})
	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("token", "nope")
		assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)
	})
	t.Run("inactive user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("token", "tok-off")
		assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)
	})
	t.Run("no token passes through", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"company_id":"","role":"","user_id":0}`, w.Body.String())
	})
}

func TestAuthMiddleware_Jwt(t *testing.T) {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", whoami)

	token, err := utils.JwtGenerate(9, string(models.UserRoleAccountant), "c2", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"company_id":"c2","role":"ACCOUNTANT","user_id":9}`, w.Body.String())

	expired, err := utils.JwtGenerate(9, string(models.UserRoleAccountant), "c2", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)
}

func TestRequirePermission(t *testing.T) {
	mr, _ := setupRedis(t)
	seedSession(t, mr, "viewer", models.User{ID: 1, Email: "v@demo.com", CompanyId: "c1", Role: models.UserRoleViewer, IsActive: utils.NewTrue()})
	seedSession(t, mr, "accountant", models.User{ID: 2, Email: "a@demo.com", CompanyId: "c1", Role: models.UserRoleAccountant, IsActive: utils.NewTrue()})

	r := gin.New()
	r.Use(SessionMiddleware())
	r.POST("/post", RequirePermission(models.PermissionJournalPost), whoami)

	cases := map[string]int{"": http.StatusUnauthorized, "viewer": http.StatusForbidden, "accountant": http.StatusOK}
	for token, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/post", nil)
		if token != "" {
			req.Header.Set("token", token)
		}
		assert.Equal(t, want, do(r, req).Code, "token %q", token)
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, cid)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := do(r, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationHeader))

	w = do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(CorrelationHeader))
}

func TestRateLimiter(t *testing.T) {
	mr, client := setupRedis(t)
	r := gin.New()
	r.Use(NewRateLimiter(client, 2, time.Minute).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}
