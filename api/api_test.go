package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/mmdatafocus/ledger_backend/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRouter builds the API with a stub identity middleware standing in for sessions.
func newRouter(role models.UserRole, companyId string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if role != "" {
			ctx := utils.SetUserRoleInContext(c.Request.Context(), string(role))
			ctx = utils.SetCompanyIdInContext(ctx, companyId)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	})
	RegisterRoutes(r)
	return r
}

func serve(r *gin.Engine, method, path string, body []byte) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestStatusFor(t *testing.T) {
	validationErr := utils.ValidateStruct(struct {
		Name string `validate:"required"`
	}{})
	require.Error(t, validationErr)

	cases := []struct {
		err  error
		want int
	}{
		{utils.ErrorRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", utils.ErrorRecordNotFound), http.StatusNotFound},
		{utils.ErrorUnauthorized, http.StatusUnauthorized},
		{utils.ErrorForbidden, http.StatusForbidden},
		{validationErr, http.StatusBadRequest},
		{errInvalidId, http.StatusBadRequest},
		{ledger.ErrUnbalanced, http.StatusUnprocessableEntity},
		{&ledger.ValidationError{Rule: "x", Line: 2}, http.StatusUnprocessableEntity},
		{models.ErrOverpayment, http.StatusUnprocessableEntity},
		{&utils.DuplicateError{Column: "code"}, http.StatusConflict},
		{models.ErrPostedEntryImmutable, http.StatusConflict},
		{models.ErrPeriodClosed, http.StatusConflict},
		{models.ErrPostingBusy, http.StatusServiceUnavailable},
		{workflow.ErrIdempotencyInProgress, http.StatusServiceUnavailable},
		{utils.InvalidInput("entry date is required"), http.StatusBadRequest},
		{utils.ErrPasswordTooShort, http.StatusBadRequest},
		{models.ErrAccountTypeNotFound, http.StatusBadRequest},
		{fmt.Errorf("%w: invalid email or password", utils.ErrorUnauthorized), http.StatusUnauthorized},
		{models.ErrBankAccountHasPayments, http.StatusConflict},
		{errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestRoutesRequireIdentity(t *testing.T) {
	r := newRouter("", "")
	for _, path := range []string{"/api/accounts", "/api/journal-entries", "/api/dashboard", "/api/auth/me"} {
		w, resp := serve(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.False(t, resp.Success)
	}
	w, _ := serve(r, http.MethodGet, "/internal/ops/outbox", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPermissionsAreEnforced(t *testing.T) {
	viewer := newRouter(models.UserRoleViewer, "c1")
	w, resp := serve(viewer, http.MethodPost, "/api/accounts", []byte(`{}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.ErrorForbidden.Error(), resp.Error)

	w, _ = serve(viewer, http.MethodPost, "/api/journal-entries/1/post", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ar := newRouter(models.UserRoleARManager, "c1")
	w, _ = serve(ar, http.MethodPost, "/api/bills", []byte(`{}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	accountant := newRouter(models.UserRoleAccountant, "c1")
	w, _ = serve(accountant, http.MethodPost, "/internal/ops/outbox/replay", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOpsCompanyScope(t *testing.T) {
	admin := newRouter(models.UserRoleAdmin, "c1")
	w, resp := serve(admin, http.MethodPost, "/internal/ops/outbox/replay", []byte(`{"company_id":"c2"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, resp.Success)
}

func TestInvalidPathAndQuery(t *testing.T) {
	r := newRouter(models.UserRoleAccountant, "c1")

	w, resp := serve(r, http.MethodGet, "/api/accounts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errInvalidId.Error(), resp.Error)

	w, _ = serve(r, http.MethodGet, "/api/invoices/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = serve(r, http.MethodGet, "/api/reports/trial-balance?as_of=31-12-2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errInvalidDate.Error(), resp.Error)

	w, resp = serve(r, http.MethodPatch, "/api/accounts/3/active", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errIsActiveRequired.Error(), resp.Error)

	w, _ = serve(r, http.MethodPatch, "/api/accounts/3/active", []byte(`{"is_active":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serve(r, http.MethodGet, "/api/journal-entries?min_amount=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serve(r, http.MethodPost, "/api/auth/login", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFailHidesServerFaults(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		fail(c, errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"))
	})
	w, resp := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), resp.Error)
}

func TestFailRendersValidationDetails(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		fail(c, utils.ValidateStruct(struct {
			Email string `validate:"required,email"`
		}{Email: "nope"}))
	})
	w, resp := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, map[string]any{"Email": "email"}, resp.Details)

	r = gin.New()
	r.GET("/", func(c *gin.Context) {
		fail(c, &ledger.ValidationError{Rule: "one_side", Line: 2, Description: "both sides set"})
	})
	w, resp = serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, map[string]any{"rule": "one_side", "line": float64(2)}, resp.Details)

	r = gin.New()
	r.GET("/", func(c *gin.Context) { fail(c, models.ErrPostingBusy) })
	w, _ = serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestPubSubPushDropsPoisonMessages(t *testing.T) {
	r := newRouter("", "")

	w, _ := serve(r, http.MethodPost, "/pubsub", []byte(`not json`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	bad := base64.StdEncoding.EncodeToString([]byte(`{"id":"x"`))
	w, _ = serve(r, http.MethodPost, "/pubsub", []byte(`{"message":{"data":"`+bad+`","id":"m1"}}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	missing := base64.StdEncoding.EncodeToString([]byte(`{"id":7,"event_type":"JOURNAL_POSTED"}`))
	w, _ = serve(r, http.MethodPost, "/pubsub", []byte(`{"message":{"data":"`+missing+`","id":"m2"}}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	unknown := base64.StdEncoding.EncodeToString([]byte(`{"id":7,"company_id":"c1","event_type":"SOMETHING_ELSE"}`))
	w, _ = serve(r, http.MethodPost, "/pubsub", []byte(`{"message":{"data":"`+unknown+`","id":"m3"}}`))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
