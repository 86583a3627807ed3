package models

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		conn.Close()
	})
	return mock
}

func TestCalculateDocumentLine(t *testing.T) {
	line := CalculateDocumentLine(1, NewDocumentLine{
		Description: "  Consulting  ",
		Quantity:    dec("3"),
		UnitPrice:   dec("19.99"),
		TaxRate:     dec("10"),
		AccountId:   9,
	})
	assert.Equal(t, "Consulting", line.Description)
	assert.True(t, line.LineSubtotal.Equal(dec("59.97")), line.LineSubtotal.String())
	assert.True(t, line.TaxAmount.Equal(dec("6.00")), line.TaxAmount.String())
	assert.True(t, line.LineTotal.Equal(dec("65.97")), line.LineTotal.String())
	assert.Equal(t, 9, line.AccountId)
}

func TestSumDocumentLines(t *testing.T) {
	lines := []DocumentLine{
		CalculateDocumentLine(1, NewDocumentLine{Description: "a", Quantity: dec("2"), UnitPrice: dec("50"), TaxRate: dec("8.25")}),
		CalculateDocumentLine(2, NewDocumentLine{Description: "b", Quantity: dec("1"), UnitPrice: dec("12.50"), TaxRate: decimal.Zero}),
	}
	totals := SumDocumentLines(lines)
	assert.True(t, totals.Subtotal.Equal(dec("112.50")))
	assert.True(t, totals.Tax.Equal(dec("8.25")))
	assert.True(t, totals.Total.Equal(dec("120.75")))

	empty := SumDocumentLines(nil)
	assert.True(t, empty.Total.IsZero())
}

func TestPageRequestNormalize(t *testing.T) {
	cases := []struct {
		in          PageRequest
		page, limit int
	}{
		{PageRequest{}, 1, DefaultPageLimit},
		{PageRequest{Page: 3, Limit: 10}, 3, 10},
		{PageRequest{Page: -1, Limit: 500}, 1, MaxPageLimit},
	}
	for _, tc := range cases {
		page, limit := tc.in.normalize()
		assert.Equal(t, tc.page, page)
		assert.Equal(t, tc.limit, limit)
	}
}

func TestDecodeCompositeCursor(t *testing.T) {
	cursor := EncodeCompositeCursor("2025-01-31", 42)
	value, id := DecodeCompositeCursor(&cursor)
	assert.Equal(t, "2025-01-31", value)
	assert.Equal(t, 42, id)

	for _, bad := range []string{"", "%%%", EncodeCursor("no-separator"), EncodeCursor("x|y")} {
		value, id = DecodeCompositeCursor(&bad)
		assert.Empty(t, value, bad)
		assert.Zero(t, id, bad)
	}
	value, id = DecodeCompositeCursor(nil)
	assert.Empty(t, value)
	assert.Zero(t, id)
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, HasPermission(UserRoleSuperAdmin, PermissionUsersWrite))
	assert.True(t, HasPermission(UserRoleAccountant, PermissionJournalPost))
	assert.False(t, HasPermission(UserRoleAccountant, PermissionUsersWrite))
	assert.True(t, HasPermission(UserRoleARManager, PermissionSalesWrite))
	assert.False(t, HasPermission(UserRoleARManager, PermissionPurchasesWrite))
	assert.True(t, HasPermission(UserRoleAPManager, PermissionPurchasesWrite))
	assert.False(t, HasPermission(UserRoleAPManager, PermissionJournalWrite))
	assert.Equal(t, []Permission{PermissionReportsRead}, PermissionsFor(UserRoleViewer))
	assert.Empty(t, PermissionsFor(UserRole("GUEST")))
}

func TestEnumsRejectUnknownValues(t *testing.T) {
	var role UserRole
	require.NoError(t, json.Unmarshal([]byte(`"ACCOUNTANT"`), &role))
	assert.Equal(t, UserRoleAccountant, role)
	assert.Error(t, json.Unmarshal([]byte(`"ROOT"`), &role))

	var terms PaymentTerms
	assert.NoError(t, json.Unmarshal([]byte(`"NET_30"`), &terms))
	assert.Error(t, json.Unmarshal([]byte(`"NET_31"`), &terms))
}

func TestNewPaymentValidate(t *testing.T) {
	valid := NewPayment{PaymentDate: time.Now(), Amount: dec("10.50"), Method: " bank_transfer "}
	require.NoError(t, valid.validate())
	assert.Equal(t, "BANK_TRANSFER", valid.Method)

	zero := NewPayment{PaymentDate: time.Now(), Amount: decimal.Zero}
	assert.Error(t, zero.validate())

	negative := NewPayment{PaymentDate: time.Now(), Amount: dec("-1")}
	assert.Error(t, negative.validate())

	method := NewPayment{PaymentDate: time.Now(), Amount: dec("1"), Method: "BITCOIN"}
	assert.Error(t, method.validate())

	trailingZeros := NewPayment{PaymentDate: time.Now(), Amount: dec("10.00000")}
	assert.NoError(t, trailingZeros.validate())

	tooPrecise := NewPayment{PaymentDate: time.Now(), Amount: dec("10.00001")}
	err := tooPrecise.validate()
	assert.ErrorIs(t, err, utils.ErrorInvalidInput)
}

func TestInvoiceIsOpen(t *testing.T) {
	for status, open := range map[InvoiceStatus]bool{
		InvoiceStatusDraft:     false,
		InvoiceStatusSent:      true,
		InvoiceStatusPartial:   true,
		InvoiceStatusOverdue:   true,
		InvoiceStatusPaid:      false,
		InvoiceStatusCancelled: false,
	} {
		assert.Equal(t, open, Invoice{Status: status}.IsOpen(), status)
	}
}

func TestListReconciliationReports(t *testing.T) {
	mock := useMockDB(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `reconciliation_reports` WHERE company_id = ? ORDER BY id DESC LIMIT")).
		WithArgs("c1", DefaultPageLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "check_type", "entity_type", "entity_id", "details", "correlation_id", "created_at"}).
			AddRow(2, "c1", ReconciliationCheckTrialBalance, "Company", 0, `{"total_debit":"10"}`, "cid", now).
			AddRow(1, "c1", ReconciliationCheckAccountBalance, "Account", 5, `{}`, "cid", now))

	reports, err := ListReconciliationReports(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, ReconciliationCheckTrialBalance, reports[0].CheckType)
	assert.Equal(t, 5, reports[1].EntityId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplayOutbox(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectExec("UPDATE `pub_sub_message_records` SET").
		WillReturnResult(sqlmock.NewResult(0, 2))
	count, err := ReplayOutbox(context.Background(), "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	mock.ExpectExec("UPDATE `pub_sub_message_records` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = ReplayOutbox(context.Background(), "c1", []int{99})
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
