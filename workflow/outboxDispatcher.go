package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Publisher delivers one ledger event and returns the broker message id.
type Publisher func(ctx context.Context, msg config.PubSubMessage) (string, error)

// OutboxDispatcher drains PubSubMessageRecord rows written by postings.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publish      Publisher

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        defaultPublisher,
		BatchSize:      config.IntFromEnv("OUTBOX_BATCH_SIZE", 50),
		PollInterval:   time.Duration(config.IntFromEnv("OUTBOX_POLL_MS", 500)) * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    config.IntFromEnv("OUTBOX_MAX_ATTEMPTS", 20),
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

// defaultPublisher sends to Pub/Sub when a topic is configured. Otherwise the
// event is handed straight to the local consumer.
func defaultPublisher(ctx context.Context, msg config.PubSubMessage) (string, error) {
	if config.PubSubEnabled() {
		return config.PublishLedgerEvent(ctx, msg)
	}
	if err := ProcessLedgerEvent(ctx, config.GetLogger(), msg); err != nil {
		return "", err
	}
	return fmt.Sprintf("local-%d", msg.ID), nil
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// claim locks a batch of due rows, moves them to PROCESSING and returns them.
// Rows over MaxAttempts are moved to DEAD and not returned.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.PubSubMessageRecord, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var due []models.PubSubMessageRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// PENDING/FAILED rows whose backoff expired, or PROCESSING rows left behind by a crashed dispatcher
		err := tx.Where(`(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR (publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?)`,
			[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
			models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&due).Error
		if err != nil {
			return err
		}
		claimed := due[:0]
		for _, rec := range due {
			if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if err := tx.Model(&models.PubSubMessageRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&models.PubSubMessageRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
			rec.PublishStatus = models.OutboxPublishStatusProcessing
			rec.PublishAttempts++
			claimed = append(claimed, rec)
		}
		due = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// DispatchOnce publishes one batch and returns how many rows were sent.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil {
		return 0
	}
	now := time.Now().UTC()
	claimed, err := d.claim(systemScope(ctx), now)
	if err != nil {
		if d.Logger != nil {
			config.LogError(d.Logger, "outboxDispatcher.go", "DispatchOnce", "claiming outbox records", nil, err)
		}
		return 0
	}

	sent := 0
	for _, rec := range claimed {
		msg := models.ConvertToPubSubMessage(rec)
		pubID, pubErr := d.Publish(ctx, msg)
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID)
		sent++
	}
	return sent
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string) {
	now := time.Now().UTC()
	_ = d.DB.WithContext(systemScope(ctx)).Model(&models.PubSubMessageRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &pubsubMsgID,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error
}

// Backoff returns the wait before retry number attempt+1: InitialBackoff doubled per attempt, capped.
func (d *OutboxDispatcher) Backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.PubSubMessageRecord, err error) {
	db := d.DB.WithContext(systemScope(ctx))
	msg := err.Error()
	fields := logrus.Fields{
		"field":      "OutboxDispatcher",
		"company_id": rec.CompanyId,
		"record_id":  rec.ID,
		"event_type": rec.EventType,
		"attempt":    rec.PublishAttempts,
	}

	if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
		_ = db.Model(&models.PubSubMessageRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(fields).Error("outbox publish moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(d.Backoff(rec.PublishAttempts))
	_ = db.Model(&models.PubSubMessageRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	if d.Logger != nil {
		fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
		d.Logger.WithFields(fields).Error("outbox publish failed: " + msg)
	}
}
