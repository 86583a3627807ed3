package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/mmdatafocus/ledger_backend/workflow"
	"github.com/sirupsen/logrus"
)

// PushEnvelope is the body Pub/Sub push subscriptions POST.
type PushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// pubSubPushHandler acks (204) malformed messages so they are not redelivered
// and answers 500 on processing failures so Pub/Sub retries.
func pubSubPushHandler(c *gin.Context) {
	logger := config.GetLogger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "ops.go", "pubSubPushHandler", "io.ReadAll", nil, err)
		c.Status(http.StatusNoContent)
		return
	}
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		config.LogError(logger, "ops.go", "pubSubPushHandler", "Unmarshal body", string(body), err)
		c.Status(http.StatusNoContent)
		return
	}
	var msg config.PubSubMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
		config.LogError(logger, "ops.go", "pubSubPushHandler", "Unmarshal message", string(envelope.Message.Data), err)
		c.Status(http.StatusNoContent)
		return
	}
	if msg.CompanyId == "" || msg.EventType == "" || msg.ID == 0 {
		config.LogError(logger, "ops.go", "pubSubPushHandler", "Invalid message", msg, errors.New("id, company_id and event_type are required"))
		c.Status(http.StatusNoContent)
		return
	}
	if msg.CorrelationId == "" {
		msg.CorrelationId = envelope.Message.ID
	}
	fields := logrus.Fields{
		"field":          "pubSubPushHandler",
		"company_id":     msg.CompanyId,
		"event_type":     msg.EventType,
		"record_id":      msg.ID,
		"message_id":     envelope.Message.ID,
		"correlation_id": msg.CorrelationId,
	}

	// Best effort: the idempotency keys are what make redelivery safe.
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		lock, err = locker.Obtain(c.Request.Context(), "lock:ledger-event:"+msg.CompanyId, 30*time.Second, nil)
		if err != nil {
			logger.WithFields(fields).Warn("proceeding without redis lock: " + err.Error())
			lock = nil
		}
	}
	defer func() {
		if lock == nil {
			return
		}
		if err := lock.Release(c.Request.Context()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.WithFields(fields).Warn("failed to release redis lock: " + err.Error())
		}
	}()

	if err := workflow.ProcessLedgerEvent(c.Request.Context(), logger, msg); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.Is(err, workflow.ErrUnknownLedgerEvent) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			logger.WithFields(fields).Warn("dropping ledger event: " + err.Error())
			c.Status(http.StatusNoContent)
			return
		}
		logger.WithFields(fields).Error("ledger event processing failed: " + err.Error())
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

type outboxReplayRequest struct {
	CompanyId string `json:"company_id"`
	RecordIds []int  `json:"record_ids"`
}

type reconcileRequest struct {
	CompanyId string `json:"company_id"`
}

type overdueRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// opsCompany limits company admins to their own company; super admins may name any
// company or none (meaning all).
func opsCompany(c *gin.Context, requested string) (string, bool) {
	ctx := c.Request.Context()
	role, _ := utils.GetUserRoleFromContext(ctx)
	if models.UserRole(role) == models.UserRoleSuperAdmin {
		return requested, true
	}
	companyId, _ := utils.GetCompanyIdFromContext(ctx)
	if companyId == "" {
		fail(c, utils.ErrorCompanyRequired)
		return "", false
	}
	if requested != "" && requested != companyId {
		fail(c, utils.ErrorForbidden)
		return "", false
	}
	return companyId, true
}

func outboxSummary(c *gin.Context) {
	summary, err := models.GetOutboxSummary(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}

func outboxReplay(c *gin.Context) {
	var req outboxReplayRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	companyId, allowed := opsCompany(c, req.CompanyId)
	if !allowed {
		return
	}
	count, err := models.ReplayOutbox(c.Request.Context(), companyId, req.RecordIds)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, gin.H{"replayed": count}, fmt.Sprintf("%d outbox records requeued", count))
}

func reconcile(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	companyId, allowed := opsCompany(c, req.CompanyId)
	if !allowed {
		return
	}
	logger := config.GetLogger()
	if companyId == "" {
		results, err := workflow.ReconcileAllCompanies(c.Request.Context(), logger)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, results)
		return
	}
	result, err := workflow.ReconcileCompany(c.Request.Context(), logger, companyId)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func listReconciliationReports(c *gin.Context) {
	companyId, allowed := opsCompany(c, c.Query("company_id"))
	if !allowed {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := models.ListReconciliationReports(c.Request.Context(), companyId, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

func sweepOverdue(c *gin.Context) {
	var req overdueRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	companyId, allowed := opsCompany(c, "")
	if !allowed {
		return
	}
	if companyId != "" {
		result, err := models.MarkOverdueDocuments(c.Request.Context(), companyId, asOf)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, map[string]*models.OverdueResult{companyId: result})
		return
	}
	results, err := workflow.SweepOverdue(c.Request.Context(), config.GetLogger(), asOf)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, results)
}
