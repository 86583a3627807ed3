package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/mmdatafocus/ledger_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Response is the envelope every /api route answers with.
type Response struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	Details    any                `json:"details,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	PageInfo   *models.PageInfo   `json:"pageInfo,omitempty"`
}

var (
	errInvalidId   = utils.InvalidInput("invalid id")
	errInvalidDate = utils.InvalidInput("dates must be formatted as YYYY-MM-DD")
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func okMessage(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Message: message})
}

func created(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data, Message: message})
}

func page(c *gin.Context, data any, p *models.Pagination) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Pagination: p})
}

// StatusFor maps domain errors to HTTP status codes. Anything unrecognised is a server fault.
func StatusFor(err error) int {
	var validationErrs validator.ValidationErrors
	var ledgerErr *ledger.ValidationError
	var dupErr *utils.DuplicateError
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrorForbidden):
		return http.StatusForbidden
	case errors.As(err, &validationErrs), errors.Is(err, utils.ErrorInvalidInput),
		errors.Is(err, utils.ErrorCompanyRequired), errors.Is(err, models.ErrAccountTypeNotFound):
		return http.StatusBadRequest
	case errors.As(err, &ledgerErr),
		errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, ledger.ErrZeroTotal),
		errors.Is(err, ledger.ErrTooFewLines),
		errors.Is(err, models.ErrOverpayment),
		errors.Is(err, models.ErrAccountInactive),
		errors.Is(err, models.ErrAccountNoPosting),
		errors.Is(err, models.ErrSystemAccountMissing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dupErr),
		errors.Is(err, ledger.ErrAlreadyPosted),
		errors.Is(err, models.ErrAccountCodeExists),
		errors.Is(err, models.ErrAccountHasChildren),
		errors.Is(err, models.ErrAccountInUse),
		errors.Is(err, models.ErrAccountFrozen),
		errors.Is(err, models.ErrPostedEntryImmutable),
		errors.Is(err, models.ErrPostedEntryDelete),
		errors.Is(err, models.ErrConcurrentPost),
		errors.Is(err, models.ErrEntryNotPosted),
		errors.Is(err, models.ErrEntryAlreadyReversed),
		errors.Is(err, models.ErrPeriodClosed),
		errors.Is(err, models.ErrPeriodOverlap),
		errors.Is(err, models.ErrDocumentNotDraft),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrDocumentHasPayments),
		errors.Is(err, models.ErrPartyInUse),
		errors.Is(err, models.ErrBankAccountLinkExists),
		errors.Is(err, models.ErrAccountLinkedToBank),
		errors.Is(err, models.ErrBankAccountHasPayments):
		return http.StatusConflict
	case errors.Is(err, models.ErrPostingBusy), errors.Is(err, workflow.ErrIdempotencyInProgress):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err in the envelope. Validation failures carry field details.
func fail(c *gin.Context, err error) {
	status := StatusFor(err)
	resp := Response{Success: false, Error: err.Error()}
	var ledgerErr *ledger.ValidationError
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		resp.Error = "validation failed"
		resp.Details = fields
	} else if errors.As(err, &ledgerErr) {
		resp.Details = gin.H{"rule": ledgerErr.Rule, "line": ledgerErr.Line}
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError || status == http.StatusBadRequest {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		entry := config.GetLogger().WithFields(logrus.Fields{
			"path":           c.FullPath(),
			"status":         status,
			"correlation_id": cid,
		})
		if status == http.StatusInternalServerError {
			entry.Error(err.Error())
			resp.Error = http.StatusText(status)
		} else {
			entry.Warn(err.Error())
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		fail(c, errInvalidId)
		return 0, false
	}
	return id, true
}

// queryDate parses a YYYY-MM-DD query value, returning def when absent.
func queryDate(c *gin.Context, key string, def time.Time) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	if err != nil {
		fail(c, errInvalidDate)
		return time.Time{}, false
	}
	return t, true
}

func bindJSON(c *gin.Context, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		fail(c, bindError(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, input any) bool {
	if err := c.ShouldBindQuery(input); err != nil {
		fail(c, bindError(err))
		return false
	}
	return true
}

// bindError marks malformed bodies and query strings as caller errors.
// Validator errors pass through so fail can render field details.
func bindError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) || errors.Is(err, utils.ErrorInvalidInput) {
		return err
	}
	return utils.InvalidInput("%s", err.Error())
}

var errIsActiveRequired = utils.InvalidInput("is_active is required")

func bindActive(c *gin.Context, req *activeRequest) bool {
	if !bindJSON(c, req) {
		return false
	}
	if req.IsActive == nil {
		fail(c, errIsActiveRequired)
		return false
	}
	return true
}
