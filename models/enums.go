package models

import (
	"encoding/json"
	"strings"

	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/utils"
)

// unmarshalEnum decodes a JSON string into one of the allowed values (case-insensitive).
func unmarshalEnum[T ~string](data []byte, name string, allowed ...T) (T, error) {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return "", utils.InvalidInput(name + " must be string")
	}
	str = strings.ToUpper(strings.TrimSpace(str))
	for _, v := range allowed {
		if string(v) == str {
			return v, nil
		}
	}
	return "", utils.InvalidInput("invalid " + name)
}

type AccountCategory string

const (
	AccountCategoryAsset     AccountCategory = AccountCategory(ledger.Asset)
	AccountCategoryLiability AccountCategory = AccountCategory(ledger.Liability)
	AccountCategoryEquity    AccountCategory = AccountCategory(ledger.Equity)
	AccountCategoryRevenue   AccountCategory = AccountCategory(ledger.Revenue)
	AccountCategoryExpense   AccountCategory = AccountCategory(ledger.Expense)
)

var allAccountCategories = []AccountCategory{
	AccountCategoryAsset, AccountCategoryLiability, AccountCategoryEquity, AccountCategoryRevenue, AccountCategoryExpense,
}

func (t AccountCategory) IsValid() bool {
	for _, v := range allAccountCategories {
		if v == t {
			return true
		}
	}
	return false
}

func (t *AccountCategory) UnmarshalJSON(data []byte) (err error) {
	*t, err = unmarshalEnum(data, "account category", allAccountCategories...)
	return err
}

type NormalSide string

const (
	NormalSideDebit  NormalSide = NormalSide(ledger.Debit)
	NormalSideCredit NormalSide = NormalSide(ledger.Credit)
)

func (t *NormalSide) UnmarshalJSON(data []byte) (err error) {
	*t, err = unmarshalEnum(data, "normal side", NormalSideDebit, NormalSideCredit)
	return err
}

// SystemCode marks the accounts that automatic postings (invoices, bills, payments) resolve to.
type SystemCode string

const (
	SystemCodeNone       SystemCode = ""
	SystemCodeCash       SystemCode = "CASH"
	SystemCodeReceivable SystemCode = "AR"
	SystemCodePayable    SystemCode = "AP"
	SystemCodeSales      SystemCode = "SALES"
	SystemCodeTax        SystemCode = "TAX"
	SystemCodeExpense    SystemCode = "EXPENSE"
)

type UserRole string

const (
	UserRoleSuperAdmin UserRole = "SUPER_ADMIN"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleAccountant UserRole = "ACCOUNTANT"
	UserRoleAPManager  UserRole = "AP_MANAGER"
	UserRoleARManager  UserRole = "AR_MANAGER"
	UserRoleViewer     UserRole = "VIEWER"
)

var allUserRoles = []UserRole{
	UserRoleSuperAdmin, UserRoleAdmin, UserRoleAccountant, UserRoleAPManager, UserRoleARManager, UserRoleViewer,
}

func (t UserRole) IsValid() bool {
	for _, v := range allUserRoles {
		if v == t {
			return true
		}
	}
	return false
}

func (t *UserRole) UnmarshalJSON(data []byte) (err error) {
	*t, err = unmarshalEnum(data, "user role", allUserRoles...)
	return err
}

type PaymentTerms string

const (
	PaymentTermsDueOnReceipt PaymentTerms = "DUE_ON_RECEIPT"
	PaymentTermsNet15        PaymentTerms = "NET_15"
	PaymentTermsNet30        PaymentTerms = "NET_30"
	PaymentTermsNet45        PaymentTerms = "NET_45"
	PaymentTermsNet60        PaymentTerms = "NET_60"
	PaymentTermsNet90        PaymentTerms = "NET_90"
)

func (t *PaymentTerms) UnmarshalJSON(data []byte) (err error) {
	*t, err = unmarshalEnum(data, "payment terms",
		PaymentTermsDueOnReceipt, PaymentTermsNet15, PaymentTermsNet30, PaymentTermsNet45, PaymentTermsNet60, PaymentTermsNet90)
	return err
}

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

type BillStatus string

const (
	BillStatusDraft     BillStatus = "DRAFT"
	BillStatusOpen      BillStatus = "OPEN"
	BillStatusPartial   BillStatus = "PARTIAL"
	BillStatusPaid      BillStatus = "PAID"
	BillStatusOverdue   BillStatus = "OVERDUE"
	BillStatusCancelled BillStatus = "CANCELLED"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

type BankAccountType string

const (
	BankAccountTypeChecking BankAccountType = "CHECKING"
	BankAccountTypeSavings  BankAccountType = "SAVINGS"
	BankAccountTypeCredit   BankAccountType = "CREDIT"
)

func (t *BankAccountType) UnmarshalJSON(data []byte) (err error) {
	*t, err = unmarshalEnum(data, "bank account type", BankAccountTypeChecking, BankAccountTypeSavings, BankAccountTypeCredit)
	return err
}

// JournalSourceType records what produced a journal entry.
type JournalSourceType string

const (
	JournalSourceManual         JournalSourceType = "MANUAL"
	JournalSourceInvoice        JournalSourceType = "INVOICE"
	JournalSourceInvoicePayment JournalSourceType = "INVOICE_PAYMENT"
	JournalSourceBill           JournalSourceType = "BILL"
	JournalSourceBillPayment    JournalSourceType = "BILL_PAYMENT"
	JournalSourceReversal       JournalSourceType = "REVERSAL"
)

// JournalStatusFilter selects entries in ListJournalEntries.
type JournalStatusFilter string

const (
	JournalStatusAll       JournalStatusFilter = ""
	JournalStatusPosted    JournalStatusFilter = "posted"
	JournalStatusDraft     JournalStatusFilter = "draft"
	JournalStatusRecurring JournalStatusFilter = "recurring"
)

type LedgerEventType string

const (
	LedgerEventJournalPosted   LedgerEventType = "JOURNAL_POSTED"
	LedgerEventJournalReversed LedgerEventType = "JOURNAL_REVERSED"
)
