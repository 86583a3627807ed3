package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func idempotencyRow(status models.IdempotencyStatus, updatedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "handler_name", "message_id", "status", "last_error", "created_at", "updated_at"}).
		AddRow(7, "c1", "ReportCache", "42", string(status), nil, updatedAt, updatedAt)
}

func TestBeginIdempotency_FirstDelivery(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO `idempotency_keys`").WillReturnResult(sqlmock.NewResult(1, 1))

	skip, err := BeginIdempotency(db, "c1", "ReportCache", "42")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginIdempotency_AlreadySucceeded(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO `idempotency_keys`").WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery("SELECT \\* FROM `idempotency_keys`").
		WillReturnRows(idempotencyRow(models.IdempotencyStatusSucceeded, time.Now()))

	skip, err := BeginIdempotency(db, "c1", "ReportCache", "42")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginIdempotency_InProgress(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO `idempotency_keys`").WillReturnError(&mysqlDriver.MySQLError{Number: 1062})
	mock.ExpectQuery("SELECT \\* FROM `idempotency_keys`").
		WillReturnRows(idempotencyRow(models.IdempotencyStatusStarted, time.Now()))

	_, err := BeginIdempotency(db, "c1", "ReportCache", "42")
	assert.ErrorIs(t, err, ErrIdempotencyInProgress)
}

func TestBeginIdempotency_RetriesFailedAndStale(t *testing.T) {
	cases := map[string]*sqlmock.Rows{
		"failed": idempotencyRow(models.IdempotencyStatusFailed, time.Now()),
		"stale":  idempotencyRow(models.IdempotencyStatusStarted, time.Now().Add(-time.Hour)),
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec("INSERT INTO `idempotency_keys`").WillReturnError(&mysqlDriver.MySQLError{Number: 1062})
			mock.ExpectQuery("SELECT \\* FROM `idempotency_keys`").WillReturnRows(rows)
			mock.ExpectExec("UPDATE `idempotency_keys` SET").WillReturnResult(sqlmock.NewResult(0, 1))

			skip, err := BeginIdempotency(db, "c1", "ReportCache", "42")
			require.NoError(t, err)
			assert.False(t, skip)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBeginIdempotency_OtherErrorsPassThrough(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO `idempotency_keys`").WillReturnError(boom)

	_, err := BeginIdempotency(db, "c1", "ReportCache", "42")
	assert.ErrorIs(t, err, boom)
}

func TestOutboxDispatcher_Backoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second, MaxBackoff: time.Minute}
	assert.Equal(t, 5*time.Second, d.Backoff(1))
	assert.Equal(t, 10*time.Second, d.Backoff(2))
	assert.Equal(t, 40*time.Second, d.Backoff(4))
	assert.Equal(t, time.Minute, d.Backoff(5))
	assert.Equal(t, time.Minute, d.Backoff(30))
}

func outboxRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "company_id", "event_type", "journal_entry_id", "entry_number", "occurred_at", "payload", "publish_status", "publish_attempts", "correlation_id"}).
		AddRow(1, "c1", "JOURNAL_POSTED", 10, "JE-2601-0001", now, []byte(`{}`), models.OutboxPublishStatusPending, 0, "corr-1").
		AddRow(2, "c1", "JOURNAL_POSTED", 11, "JE-2601-0002", now, []byte(`{}`), models.OutboxPublishStatusFailed, 20, "corr-2")
}

func TestOutboxDispatcher_DispatchOnce(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT \\* FROM `pub_sub_message_records` .* FOR UPDATE SKIP LOCKED").WillReturnRows(outboxRows())
	// row 1 claimed, row 2 exhausted its attempts
	mock.ExpectExec("UPDATE `pub_sub_message_records` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `pub_sub_message_records` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE `pub_sub_message_records` SET").WillReturnResult(sqlmock.NewResult(0, 1))

	var published []config.PubSubMessage
	d := NewOutboxDispatcher(db, logrus.New())
	d.MaxAttempts = 20
	d.Publish = func(ctx context.Context, msg config.PubSubMessage) (string, error) {
		published = append(published, msg)
		return "pub-1", nil
	}

	sent := d.DispatchOnce(context.Background())
	assert.Equal(t, 1, sent)
	require.Len(t, published, 1)
	assert.Equal(t, 1, published[0].ID)
	assert.Equal(t, "c1", published[0].CompanyId)
	assert.Equal(t, "corr-1", published[0].CorrelationId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxDispatcher_PublishFailureSchedulesRetry(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `pub_sub_message_records`").WillReturnRows(
		sqlmock.NewRows([]string{"id", "company_id", "event_type", "publish_status", "publish_attempts", "occurred_at"}).
			AddRow(3, "c2", "JOURNAL_REVERSED", models.OutboxPublishStatusPending, 0, now))
	mock.ExpectExec("UPDATE `pub_sub_message_records` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE `pub_sub_message_records` SET .*`next_attempt_at`").WillReturnResult(sqlmock.NewResult(0, 1))

	d := NewOutboxDispatcher(db, nil)
	d.Publish = func(ctx context.Context, msg config.PubSubMessage) (string, error) {
		return "", errors.New("broker unavailable")
	}
	assert.Equal(t, 0, d.DispatchOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessLedgerEvent_RejectsUnknownType(t *testing.T) {
	err := ProcessLedgerEvent(context.Background(), nil, config.PubSubMessage{ID: 1, CompanyId: "c1", EventType: "SOMETHING"})
	assert.ErrorIs(t, err, ErrUnknownLedgerEvent)
}

func TestProcessLedgerEvent_InvalidatesCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	config.SetRedisDB(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { config.SetRedisDB(nil) })
	require.NoError(t, mr.Set("Report:c1:Dashboard", "{}"))
	require.NoError(t, mr.Set("Report:c1:TrialBalance:2026-01-31", "{}"))
	require.NoError(t, mr.Set("Report:c2:Dashboard", "{}"))

	db, mock := newMockDB(t)
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })
	mock.ExpectBegin()
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO `idempotency_keys`").WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
		mock.ExpectExec("UPDATE `idempotency_keys` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := ProcessLedgerEvent(context.Background(), logrus.New(), config.PubSubMessage{
		ID:             42,
		CompanyId:      "c1",
		EventType:      string(models.LedgerEventJournalPosted),
		JournalEntryId: 10,
		Payload:        []byte(`{"total_amount":"100","deltas":{"1":"100","2":"-100"}}`),
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("Report:c1:Dashboard"))
	assert.False(t, mr.Exists("Report:c1:TrialBalance:2026-01-31"))
	assert.True(t, mr.Exists("Report:c2:Dashboard"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
