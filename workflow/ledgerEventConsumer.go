package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/models/reports"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrUnknownLedgerEvent = errors.New("unknown ledger event type")

type eventHandler struct {
	name string
	fn   func(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage, payload *models.LedgerEventPayload) error
}

// every handler keeps its own idempotency key, so a retry only reruns the ones that failed
var ledgerEventHandlers = map[models.LedgerEventType][]eventHandler{
	models.LedgerEventJournalPosted: {
		{name: "ReportCache", fn: invalidateReportCaches},
		{name: "JournalAudit", fn: auditJournalEvent},
	},
	models.LedgerEventJournalReversed: {
		{name: "ReportCache", fn: invalidateReportCaches},
		{name: "JournalAudit", fn: auditJournalEvent},
	},
}

// ProcessLedgerEvent is the consumer for published outbox records. Delivery is at
// least once; handlers that already succeeded for msg are skipped.
func ProcessLedgerEvent(ctx context.Context, logger *logrus.Logger, msg config.PubSubMessage) error {
	handlers, ok := ledgerEventHandlers[models.LedgerEventType(msg.EventType)]
	if !ok {
		return ErrUnknownLedgerEvent
	}
	if msg.CompanyId == "" {
		return utils.ErrorCompanyRequired
	}
	var payload models.LedgerEventPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
	}
	ctx = utils.SystemContext(ctx, msg.CompanyId)
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	messageId := strconv.Itoa(msg.ID)

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, h := range handlers {
			skip, err := BeginIdempotency(tx, msg.CompanyId, h.name, messageId)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			if err := h.fn(ctx, tx, logger, msg, &payload); err != nil {
				_ = MarkIdempotencyFailed(tx, msg.CompanyId, h.name, messageId, err)
				return err
			}
			if err := MarkIdempotencySucceeded(tx, msg.CompanyId, h.name, messageId); err != nil {
				return err
			}
		}
		return nil
	})
}

func invalidateReportCaches(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage, payload *models.LedgerEventPayload) error {
	if err := reports.InvalidateDashboard(msg.CompanyId); err != nil {
		return err
	}
	return reports.InvalidateCompanyReports(msg.CompanyId)
}

func auditJournalEvent(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage, payload *models.LedgerEventPayload) error {
	if logger == nil {
		return nil
	}
	logger.WithFields(logrus.Fields{
		"field":            "LedgerEvent",
		"company_id":       msg.CompanyId,
		"event_type":       msg.EventType,
		"journal_entry_id": msg.JournalEntryId,
		"entry_number":     msg.EntryNumber,
		"total_amount":     payload.TotalAmount.String(),
		"source_type":      payload.SourceType,
		"accounts":         len(payload.Deltas),
		"correlation_id":   msg.CorrelationId,
	}).Info("ledger event processed")
	return nil
}
