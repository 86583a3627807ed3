package models

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// decimalArg matches a decimal bind argument by value, ignoring scale.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return false
	}
	got, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(string(d)))
}

var entryDate = time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC)

func companyCtx() context.Context {
	return utils.SetCompanyIdInContext(context.Background(), "c1")
}

func expectPostingLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT GET_LOCK\(\?, 30\)`).WithArgs("posting:c1").
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(1))
	mock.ExpectBegin()
}

func expectPostingUnlock(mock sqlmock.Sqlmock, commit bool) {
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
	mock.ExpectQuery(`SELECT RELEASE_LOCK\(\?\)`).WithArgs("posting:c1").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))
}

func journalEntryRows(id int, posted bool, reversedById any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "entry_number", "entry_date", "is_posted", "reversed_by_id", "source_type"}).
		AddRow(id, "c1", "JE-2410-0001", entryDate, posted, reversedById, string(JournalSourceManual))
}

type lineRow struct {
	accountId     int
	debit, credit string
}

func journalLineRows(entryId int, lines ...lineRow) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "company_id", "journal_entry_id", "line_no", "account_id", "description", "debit_amount", "credit_amount"})
	for i, l := range lines {
		rows.AddRow(i+1, "c1", entryId, i+1, l.accountId, "", l.debit, l.credit)
	}
	return rows
}

type accountRow struct {
	id   int
	code string
	side NormalSide
}

func accountRows(accounts ...accountRow) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "company_id", "code", "name", "normal_side", "is_active", "allow_posting"})
	for _, a := range accounts {
		rows.AddRow(a.id, "c1", a.code, a.code, string(a.side), true, true)
	}
	return rows
}

func noPeriods() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "name", "status"})
}

// expectPostTx covers postJournalEntryTx from the row lock up to the outbox write.
func expectPostTx(mock sqlmock.Sqlmock, entryId int, lines []lineRow, accounts []accountRow, deltas map[int]string) {
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` WHERE company_id = \\? AND id = \\?.* FOR UPDATE").
		WillReturnRows(journalEntryRows(entryId, false, nil))
	mock.ExpectQuery("SELECT \\* FROM `journal_line_items` WHERE company_id = \\? AND journal_entry_id = \\?").
		WillReturnRows(journalLineRows(entryId, lines...))
	mock.ExpectQuery("SELECT \\* FROM `financial_periods`").WillReturnRows(noPeriods())
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND id IN .* FOR UPDATE").
		WillReturnRows(accountRows(accounts...))
	for _, a := range accounts {
		mock.ExpectExec("UPDATE `accounts` SET `current_balance`=current_balance \\+ \\?").
			WithArgs(decimalArg(deltas[a.id]), "c1", a.id).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("UPDATE `journal_entries` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `pub_sub_message_records`").WillReturnResult(sqlmock.NewResult(1, 1))
}

func expectNextSequence(mock sqlmock.Sqlmock, table string) {
	mock.ExpectQuery("SELECT max\\(sequence_no\\) FROM `" + table + "`").
		WillReturnRows(sqlmock.NewRows([]string{"max(sequence_no)"}).AddRow(nil))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `" + table + "`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
}

var balancedLines = []lineRow{{accountId: 1, debit: "250.0000", credit: "0"}, {accountId: 4, debit: "0", credit: "250.0000"}}

func TestPostJournalEntryMovesBalances(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	expectPostTx(mock, 10, balancedLines,
		[]accountRow{{1, "1001", NormalSideDebit}, {4, "4001", NormalSideCredit}},
		map[int]string{1: "250", 4: "250"})
	expectPostingUnlock(mock, true)

	entry, err := PostJournalEntry(companyCtx(), 10)
	require.NoError(t, err)
	assert.True(t, entry.IsPosted)
	assert.NotNil(t, entry.PostedAt)
	assert.True(t, entry.TotalAmount.Equal(dec("250")), entry.TotalAmount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostJournalEntryTwiceChangesNothing(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
		WillReturnRows(journalEntryRows(10, true, nil))
	mock.ExpectQuery("SELECT \\* FROM `journal_line_items`").
		WillReturnRows(journalLineRows(10, balancedLines...))
	expectPostingUnlock(mock, false)

	_, err := PostJournalEntry(companyCtx(), 10)
	assert.ErrorIs(t, err, ledger.ErrAlreadyPosted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostJournalEntryRejectsUnbalancedDraft(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
		WillReturnRows(journalEntryRows(10, false, nil))
	mock.ExpectQuery("SELECT \\* FROM `journal_line_items`").
		WillReturnRows(journalLineRows(10, lineRow{1, "250", "0"}, lineRow{4, "0", "200"}))
	expectPostingUnlock(mock, false)

	_, err := PostJournalEntry(companyCtx(), 10)
	assert.ErrorIs(t, err, ledger.ErrUnbalanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostJournalEntryRejectsClosedPeriod(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
		WillReturnRows(journalEntryRows(10, false, nil))
	mock.ExpectQuery("SELECT \\* FROM `journal_line_items`").
		WillReturnRows(journalLineRows(10, balancedLines...))
	mock.ExpectQuery("SELECT \\* FROM `financial_periods`").
		WillReturnRows(noPeriods().AddRow(3, "c1", "FY2024", string(PeriodStatusClosed)))
	expectPostingUnlock(mock, false)

	_, err := PostJournalEntry(companyCtx(), 10)
	assert.ErrorIs(t, err, ErrPeriodClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostJournalEntryLosesRace(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
		WillReturnRows(journalEntryRows(10, false, nil))
	mock.ExpectQuery("SELECT \\* FROM `journal_line_items`").
		WillReturnRows(journalLineRows(10, balancedLines...))
	mock.ExpectQuery("SELECT \\* FROM `financial_periods`").WillReturnRows(noPeriods())
	mock.ExpectQuery("SELECT \\* FROM `accounts` .* FOR UPDATE").
		WillReturnRows(accountRows(accountRow{1, "1001", NormalSideDebit}, accountRow{4, "4001", NormalSideCredit}))
	mock.ExpectExec("UPDATE `accounts` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `accounts` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `journal_entries` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	expectPostingUnlock(mock, false)

	_, err := PostJournalEntry(companyCtx(), 10)
	assert.ErrorIs(t, err, ErrConcurrentPost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostJournalEntryLockTimeoutIsNotNotFound(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	lockErr := errors.New("Lock wait timeout exceeded")
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").WillReturnError(lockErr)
	expectPostingUnlock(mock, false)

	_, err := PostJournalEntry(companyCtx(), 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrorRecordNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").WillReturnError(lockErr)
	mock.ExpectRollback()
	_, err = DeleteJournalEntry(companyCtx(), 10)
	assert.ErrorIs(t, err, lockErr)
	assert.NotErrorIs(t, err, utils.ErrorRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJournalEntryPostNowRejectsUnbalanced(t *testing.T) {
	t.Setenv("ALLOW_POST_ON_CREATE", "true")
	mock := useMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND id IN").
		WillReturnRows(accountRows(accountRow{1, "1001", NormalSideDebit}, accountRow{4, "4001", NormalSideCredit}))

	_, err := CreateJournalEntry(companyCtx(), &NewJournalEntry{
		EntryDate: entryDate,
		Lines: []NewJournalLine{
			{AccountId: 1, DebitAmount: dec("100")},
			{AccountId: 4, CreditAmount: dec("90")},
		},
	}, true)
	assert.ErrorIs(t, err, ledger.ErrUnbalanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostedJournalEntryIsImmutable(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `journal_entries`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND id IN").
		WillReturnRows(accountRows(accountRow{1, "1001", NormalSideDebit}, accountRow{4, "4001", NormalSideCredit}))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
		WillReturnRows(journalEntryRows(10, true, nil))
	mock.ExpectRollback()

	_, err := UpdateJournalEntry(companyCtx(), 10, &NewJournalEntry{
		EntryDate: entryDate,
		Lines: []NewJournalLine{
			{AccountId: 1, DebitAmount: dec("100")},
			{AccountId: 4, CreditAmount: dec("100")},
		},
	})
	assert.ErrorIs(t, err, ErrPostedEntryImmutable)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
		WillReturnRows(journalEntryRows(10, true, nil))
	mock.ExpectRollback()

	_, err = DeleteJournalEntry(companyCtx(), 10)
	assert.ErrorIs(t, err, ErrPostedEntryDelete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseJournalEntryGuards(t *testing.T) {
	cases := []struct {
		name       string
		posted     bool
		reversedBy any
		want       error
	}{
		{"draft", false, nil, ErrEntryNotPosted},
		{"already reversed", true, 12, ErrEntryAlreadyReversed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := useMockDB(t)
			expectPostingLock(mock)
			mock.ExpectQuery("SELECT \\* FROM `journal_entries` .* FOR UPDATE").
				WillReturnRows(journalEntryRows(10, tc.posted, tc.reversedBy))
			expectPostingUnlock(mock, false)

			_, err := ReverseJournalEntry(companyCtx(), 10, "wrong account", nil)
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	_, err := ReverseJournalEntry(companyCtx(), 10, "  ", nil)
	assert.ErrorIs(t, err, utils.ErrorInvalidInput)
}

func TestCreateAccountRejectsDuplicateCode(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `account_types`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "category", "normal_side"}).
			AddRow(1, "bank", "Bank", string(AccountCategoryAsset), string(NormalSideDebit)))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `accounts`").
		WithArgs("c1", "1001").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	_, err := CreateAccount(companyCtx(), &NewAccount{Code: "1001", Name: "Cash", AccountTypeId: 1})
	assert.ErrorIs(t, err, ErrAccountCodeExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func invoiceRows(status InvoiceStatus, total, paid, balance string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "invoice_number", "customer_id", "issue_date", "due_date", "status",
		"subtotal", "tax_amount", "total_amount", "amount_paid", "balance_due", "journal_entry_id"}).
		AddRow(5, "c1", "INV-2410-0001", 8, entryDate, entryDate.AddDate(0, 0, 30), string(status),
			"100", "10", total, paid, balance, nil)
}

func systemAccountRows(id int, code string, side NormalSide, system SystemCode) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "code", "normal_side", "system_code", "is_active", "allow_posting"}).
		AddRow(id, "c1", code, string(side), string(system), true, true)
}

func TestSendInvoicePostsReceivable(t *testing.T) {
	mock := useMockDB(t)
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `invoices` .* FOR UPDATE").
		WillReturnRows(invoiceRows(InvoiceStatusDraft, "110", "0", "110"))
	mock.ExpectQuery("SELECT \\* FROM `invoice_line_items`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "invoice_id", "line_no", "description", "account_id", "line_subtotal", "tax_amount", "line_total"}).
			AddRow(1, "c1", 5, 1, "Consulting", 40, "100", "10", "110"))
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND system_code = \\?").
		WillReturnRows(systemAccountRows(3, "1200", NormalSideDebit, SystemCodeReceivable))
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND system_code = \\?").
		WillReturnRows(systemAccountRows(21, "2200", NormalSideCredit, SystemCodeTax))
	expectNextSequence(mock, "journal_entries")
	mock.ExpectExec("INSERT INTO `journal_entries`").WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectExec("INSERT INTO `journal_line_items`").WillReturnResult(sqlmock.NewResult(500, 3))
	expectPostTx(mock, 77,
		[]lineRow{{3, "110", "0"}, {40, "0", "100"}, {21, "0", "10"}},
		[]accountRow{{3, "1200", NormalSideDebit}, {21, "2200", NormalSideCredit}, {40, "4001", NormalSideCredit}},
		map[int]string{3: "110", 21: "10", 40: "100"})
	mock.ExpectExec("UPDATE `invoices` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	expectPostingUnlock(mock, true)

	sent := invoiceRows(InvoiceStatusSent, "110", "0", "110")
	mock.ExpectQuery("SELECT \\* FROM `invoices` WHERE company_id = \\?").WillReturnRows(sent)
	mock.ExpectQuery("SELECT \\* FROM `customers`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "customer_number", "name"}).AddRow(8, "c1", "CUST001", "Acme"))
	mock.ExpectQuery("SELECT \\* FROM `invoice_line_items`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "invoice_id", "line_no", "account_id"}).AddRow(1, "c1", 5, 1, 40))

	invoice, err := SendInvoice(companyCtx(), 5)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusSent, invoice.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInvoicePaymentPostsCash(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND system_code = \\?").
		WillReturnRows(systemAccountRows(1, "1001", NormalSideDebit, SystemCodeCash))
	expectNextSequence(mock, "payments")
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `invoices` .* FOR UPDATE").
		WillReturnRows(invoiceRows(InvoiceStatusSent, "110", "0", "110"))
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND system_code = \\?").
		WillReturnRows(systemAccountRows(3, "1200", NormalSideDebit, SystemCodeReceivable))
	mock.ExpectExec("INSERT INTO `payments`").WillReturnResult(sqlmock.NewResult(9, 1))
	expectNextSequence(mock, "journal_entries")
	mock.ExpectExec("INSERT INTO `journal_entries`").WillReturnResult(sqlmock.NewResult(78, 1))
	mock.ExpectExec("INSERT INTO `journal_line_items`").WillReturnResult(sqlmock.NewResult(600, 2))
	expectPostTx(mock, 78,
		[]lineRow{{1, "60", "0"}, {3, "0", "60"}},
		[]accountRow{{1, "1001", NormalSideDebit}, {3, "1200", NormalSideDebit}},
		map[int]string{1: "60", 3: "-60"})
	mock.ExpectExec("UPDATE `payments` SET `journal_entry_id`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `invoices` SET").
		WithArgs(decimalArg("60"), decimalArg("50"), string(InvoiceStatusPartial), sqlmock.AnyArg(), "c1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectPostingUnlock(mock, true)

	payment, err := RecordInvoicePayment(companyCtx(), 5, &NewPayment{PaymentDate: entryDate, Amount: dec("60")})
	require.NoError(t, err)
	require.NotNil(t, payment.JournalEntryId)
	assert.Equal(t, 78, *payment.JournalEntryId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInvoicePaymentRejectsOverpayment(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE company_id = \\? AND system_code = \\?").
		WillReturnRows(systemAccountRows(1, "1001", NormalSideDebit, SystemCodeCash))
	expectNextSequence(mock, "payments")
	expectPostingLock(mock)
	mock.ExpectQuery("SELECT \\* FROM `invoices` .* FOR UPDATE").
		WillReturnRows(invoiceRows(InvoiceStatusPartial, "110", "70", "40"))
	expectPostingUnlock(mock, false)

	_, err := RecordInvoicePayment(companyCtx(), 5, &NewPayment{PaymentDate: entryDate, Amount: dec("40.01")})
	assert.ErrorIs(t, err, ErrOverpayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginFailuresAreUnauthorized(t *testing.T) {
	prevCost := utils.PasswordCost
	utils.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { utils.PasswordCost = prevCost })
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)

	mock := useMockDB(t)
	userColumns := []string{"id", "email", "password", "is_active", "company_id"}

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns))
	_, err = Login(context.Background(), "nobody@demo.com", "whatever1")
	assert.ErrorIs(t, err, utils.ErrorUnauthorized)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "admin@demo.com", string(hash), true, "c1"))
	_, err = Login(context.Background(), "admin@demo.com", "wrong-horse")
	assert.ErrorIs(t, err, utils.ErrorUnauthorized)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "admin@demo.com", string(hash), false, "c1"))
	_, err = Login(context.Background(), "admin@demo.com", "correct-horse")
	assert.ErrorIs(t, err, utils.ErrorUnauthorized)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnError(errors.New("connection refused"))
	_, err = Login(context.Background(), "admin@demo.com", "correct-horse")
	require.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrorUnauthorized)
	assert.NoError(t, mock.ExpectationsWereMet())
}
