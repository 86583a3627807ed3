package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Outbox publish statuses for PubSubMessageRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// PubSubMessageRecord is the transactional outbox: a ledger event written in the
// same DB transaction as the posting and published after commit by the dispatcher.
type PubSubMessageRecord struct {
	ID               int             `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	CompanyId        string          `gorm:"size:64;not null;index" json:"company_id"`
	EventType        LedgerEventType `gorm:"size:30;not null;index" json:"event_type"`
	JournalEntryId   int             `gorm:"not null;index" json:"journal_entry_id"`
	EntryNumber      string          `gorm:"size:30" json:"entry_number"`
	OccurredAt       time.Time       `gorm:"not null" json:"occurred_at"`
	Payload          []byte          `gorm:"type:blob" json:"payload"`
	PublishStatus    string          `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time      `gorm:"index" json:"published_at"`
	PubSubMessageId  *string         `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int             `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time      `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time      `gorm:"index" json:"locked_at"`
	LockedBy         *string         `gorm:"size:100" json:"locked_by"`
	LastPublishError *string         `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// LedgerEventPayload is the body carried by JOURNAL_POSTED / JOURNAL_REVERSED events.
type LedgerEventPayload struct {
	EntryDate   time.Time                `json:"entry_date"`
	TotalAmount decimal.Decimal          `json:"total_amount"`
	SourceType  JournalSourceType        `json:"source_type"`
	SourceId    *int                     `json:"source_id,omitempty"`
	Deltas      map[int]decimal.Decimal  `json:"deltas"`
	Lines       []LedgerEventPayloadLine `json:"lines"`
}

type LedgerEventPayloadLine struct {
	AccountId    int             `json:"account_id"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

func ConvertToPubSubMessage(record PubSubMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:             record.ID,
		CompanyId:      record.CompanyId,
		EventType:      string(record.EventType),
		OccurredAt:     record.OccurredAt,
		JournalEntryId: record.JournalEntryId,
		EntryNumber:    record.EntryNumber,
		Payload:        record.Payload,
		CorrelationId:  record.CorrelationId,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// writeLedgerEvent stores the event inside the caller's transaction. Nothing is published here.
func writeLedgerEvent(ctx context.Context, tx *gorm.DB, eventType LedgerEventType, entry *JournalEntry, deltas map[int]decimal.Decimal) error {
	payload := LedgerEventPayload{
		EntryDate:   entry.EntryDate,
		TotalAmount: entry.TotalAmount,
		SourceType:  entry.SourceType,
		SourceId:    entry.SourceId,
		Deltas:      deltas,
	}
	for _, l := range entry.Lines {
		payload.Lines = append(payload.Lines, LedgerEventPayloadLine{
			AccountId:    l.AccountId,
			DebitAmount:  l.DebitAmount,
			CreditAmount: l.CreditAmount,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := PubSubMessageRecord{
		CompanyId:      entry.CompanyId,
		EventType:      eventType,
		JournalEntryId: entry.ID,
		EntryNumber:    entry.EntryNumber,
		OccurredAt:     time.Now().UTC(),
		Payload:        body,
		PublishStatus:  OutboxPublishStatusPending,
		CorrelationId:  correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}

// OutboxSummary counts outbox rows per publish status.
type OutboxSummary struct {
	PublishStatus string `json:"publish_status"`
	Count         int64  `json:"count"`
}

func GetOutboxSummary(ctx context.Context) ([]*OutboxSummary, error) {
	var results []*OutboxSummary
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&PubSubMessageRecord{})
	if companyId, ok := utils.GetCompanyIdFromContext(ctx); ok && companyId != "" {
		dbCtx = dbCtx.Where("company_id = ?", companyId)
	}
	if err := dbCtx.Select("publish_status, COUNT(*) AS count").Group("publish_status").Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplayOutbox moves DEAD/FAILED rows back to PENDING. An empty companyId replays every company.
func ReplayOutbox(ctx context.Context, companyId string, ids []int) (int64, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).Model(&PubSubMessageRecord{}).
		Where("publish_status IN ?", []string{OutboxPublishStatusDead, OutboxPublishStatusFailed})
	if companyId != "" {
		dbCtx = dbCtx.Where("company_id = ?", companyId)
	}
	if len(ids) > 0 {
		dbCtx = dbCtx.Where("id IN ?", ids)
	}
	res := dbCtx.Updates(map[string]interface{}{
		"publish_status":   OutboxPublishStatusPending,
		"publish_attempts": 0,
		"next_attempt_at":  nil,
		"locked_at":        nil,
		"locked_by":        nil,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 && len(ids) > 0 {
		return 0, fmt.Errorf("%w: no replayable outbox records found", utils.ErrorRecordNotFound)
	}
	return res.RowsAffected, nil
}
