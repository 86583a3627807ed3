package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const paymentNumberPrefix = "PAY"

type PaymentDocumentType string

const (
	PaymentDocumentInvoice PaymentDocumentType = "INVOICE"
	PaymentDocumentBill    PaymentDocumentType = "BILL"
)

// Payment settles part or all of an invoice (money in) or a bill (money out).
type Payment struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	CompanyId      string              `gorm:"size:64;not null;uniqueIndex:uniq_payment_number;index:idx_payment_document" json:"company_id"`
	PaymentNumber  string              `gorm:"size:30;not null;uniqueIndex:uniq_payment_number" json:"payment_number"`
	SequenceNo     int64               `gorm:"not null;default:0" json:"-"`
	DocumentType   PaymentDocumentType `gorm:"size:20;not null;index:idx_payment_document" json:"document_type"`
	DocumentId     int                 `gorm:"not null;index:idx_payment_document" json:"document_id"`
	PaymentDate    time.Time           `gorm:"type:date;not null" json:"payment_date"`
	Amount         decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method         string              `gorm:"size:20;not null" json:"method"`
	Reference      string              `gorm:"size:100" json:"reference"`
	BankAccountId  *int                `json:"bank_account_id"`
	JournalEntryId *int                `json:"journal_entry_id"`
	Notes          string              `gorm:"type:text" json:"notes"`
	CreatedBy      int                 `json:"created_by"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" validate:"omitempty,oneof=CASH BANK_TRANSFER CHECK CARD OTHER"`
	Reference     string          `json:"reference" validate:"max=100"`
	BankAccountId *int            `json:"bank_account_id"`
	Notes         string          `json:"notes"`
}

func (input *NewPayment) validate() error {
	input.Method = strings.ToUpper(strings.TrimSpace(input.Method))
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return utils.InvalidInput("payment amount must be greater than zero")
	}
	if !input.Amount.Equal(input.Amount.Truncate(ledger.MaxScale)) {
		return utils.InvalidInput("payment amount has too many decimal places")
	}
	return nil
}

func (input *NewPayment) newPayment(ctx context.Context, companyId string, docType PaymentDocumentType, docId int) (*Payment, error) {
	seq, err := utils.GetSequence[Payment](ctx, companyId)
	if err != nil {
		return nil, err
	}
	method := input.Method
	if method == "" {
		method = "CASH"
		if input.BankAccountId != nil {
			method = "BANK_TRANSFER"
		}
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	return &Payment{
		CompanyId:     companyId,
		PaymentNumber: utils.GenerateDocumentNumber(paymentNumberPrefix, input.PaymentDate, seq),
		SequenceNo:    seq,
		DocumentType:  docType,
		DocumentId:    docId,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		Method:        method,
		Reference:     strings.TrimSpace(input.Reference),
		BankAccountId: input.BankAccountId,
		Notes:         input.Notes,
		CreatedBy:     userId,
	}, nil
}

func ensureNoPayments(ctx context.Context, tx *gorm.DB, companyId string, docType PaymentDocumentType, docId int) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("company_id = ? AND document_type = ? AND document_id = ?", companyId, docType, docId).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDocumentHasPayments
	}
	return nil
}

func ListPayments(ctx context.Context, docType PaymentDocumentType, docId int) ([]*Payment, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var payments []*Payment
	if err := db.WithContext(ctx).
		Where("company_id = ? AND document_type = ? AND document_id = ?", companyId, docType, docId).
		Order("payment_date, id").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

type OverdueResult struct {
	Invoices int64 `json:"invoices"`
	Bills    int64 `json:"bills"`
}

// MarkOverdueDocuments flips open invoices and bills whose due date is before asOf to OVERDUE.
func MarkOverdueDocuments(ctx context.Context, companyId string, asOf time.Time) (*OverdueResult, error) {
	cutoff := utils.StartOfDay(asOf)
	db := config.GetDB()
	var result OverdueResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Invoice{}).
			Where("company_id = ? AND status IN ? AND due_date < ?", companyId,
				[]InvoiceStatus{InvoiceStatusSent, InvoiceStatusPartial}, cutoff).
			UpdateColumn("status", InvoiceStatusOverdue)
		if res.Error != nil {
			return res.Error
		}
		result.Invoices = res.RowsAffected

		res = tx.Model(&Bill{}).
			Where("company_id = ? AND status IN ? AND due_date < ?", companyId,
				[]BillStatus{BillStatusOpen, BillStatusPartial}, cutoff).
			UpdateColumn("status", BillStatusOverdue)
		if res.Error != nil {
			return res.Error
		}
		result.Bills = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Invoices > 0 || result.Bills > 0 {
		config.GetLogger().WithFields(logrus.Fields{
			"company_id": companyId,
			"invoices":   result.Invoices,
			"bills":      result.Bills,
		}).Info("documents marked overdue")
	}
	return &result, nil
}
