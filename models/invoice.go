package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const invoiceNumberPrefix = "INV"

type Invoice struct {
	ID             int               `gorm:"primary_key" json:"id"`
	CompanyId      string            `gorm:"size:64;not null;uniqueIndex:uniq_invoice_number;index:idx_invoice_status" json:"company_id"`
	InvoiceNumber  string            `gorm:"size:30;not null;uniqueIndex:uniq_invoice_number" json:"invoice_number"`
	SequenceNo     int64             `gorm:"not null;default:0" json:"-"`
	CustomerId     int               `gorm:"not null;index" json:"customer_id"`
	Customer       *Customer         `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	IssueDate      time.Time         `gorm:"type:date;not null" json:"issue_date"`
	DueDate        time.Time         `gorm:"type:date;not null;index:idx_invoice_status" json:"due_date"`
	PaymentTerms   PaymentTerms      `gorm:"size:20;not null" json:"payment_terms"`
	Status         InvoiceStatus     `gorm:"size:20;not null;default:'DRAFT';index:idx_invoice_status" json:"status"`
	Reference      string            `gorm:"size:100" json:"reference"`
	Notes          string            `gorm:"type:text" json:"notes"`
	Subtotal       decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	AmountPaid     decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"amount_paid"`
	BalanceDue     decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"balance_due"`
	JournalEntryId *int              `json:"journal_entry_id"`
	SentAt         *time.Time        `json:"sent_at"`
	CancelledAt    *time.Time        `json:"cancelled_at"`
	CreatedBy      int               `json:"created_by"`
	Lines          []InvoiceLineItem `gorm:"foreignKey:InvoiceId" json:"lines"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceLineItem struct {
	ID           int    `gorm:"primary_key" json:"id"`
	CompanyId    string `gorm:"size:64;not null;index" json:"-"`
	InvoiceId    int    `gorm:"not null;index" json:"invoice_id"`
	DocumentLine `gorm:"embedded"`
}

type NewInvoice struct {
	CustomerId   int               `json:"customer_id" validate:"required"`
	IssueDate    time.Time         `json:"issue_date" validate:"required"`
	DueDate      *time.Time        `json:"due_date"`
	PaymentTerms PaymentTerms      `json:"payment_terms"`
	Reference    string            `json:"reference" validate:"max=100"`
	Notes        string            `json:"notes"`
	Lines        []NewDocumentLine `json:"lines" validate:"required,min=1,dive"`
}

func (i Invoice) GetCompanyId() string {
	return i.CompanyId
}

func (i Invoice) IsOpen() bool {
	switch i.Status {
	case InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusOverdue:
		return true
	}
	return false
}

// validate resolves the customer and prices the lines.
func (input *NewInvoice) validate(ctx context.Context, companyId string) (*Customer, []DocumentLine, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, companyId, input.CustomerId)
	if err != nil {
		return nil, nil, utils.InvalidInput("customer not found")
	}
	if customer.IsActive != nil && !*customer.IsActive {
		return nil, nil, utils.InvalidInput("customer is inactive")
	}
	if input.DueDate != nil && input.DueDate.Before(utils.StartOfDay(input.IssueDate)) {
		return nil, nil, utils.InvalidInput("due date cannot be before issue date")
	}
	lines, err := prepareDocumentLines(ctx, companyId, input.Lines, SystemCodeSales, AccountCategoryRevenue)
	if err != nil {
		return nil, nil, err
	}
	return customer, lines, nil
}

// apply copies header fields; terms fall back to the customer's and the due date is derived from them.
func (input *NewInvoice) apply(invoice *Invoice, customer *Customer, lines []DocumentLine) {
	terms := input.PaymentTerms
	if terms == "" {
		terms = customer.PaymentTerms
	}
	dueDate := utils.CalculateDueDate(input.IssueDate, string(terms))
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}
	totals := SumDocumentLines(lines)

	invoice.CustomerId = customer.ID
	invoice.IssueDate = input.IssueDate
	invoice.DueDate = dueDate
	invoice.PaymentTerms = terms
	invoice.Reference = strings.TrimSpace(input.Reference)
	invoice.Notes = input.Notes
	invoice.Subtotal = totals.Subtotal
	invoice.TaxAmount = totals.Tax
	invoice.TotalAmount = totals.Total
	invoice.BalanceDue = totals.Total.Sub(invoice.AmountPaid)
	invoice.Lines = make([]InvoiceLineItem, 0, len(lines))
	for _, l := range lines {
		invoice.Lines = append(invoice.Lines, InvoiceLineItem{CompanyId: invoice.CompanyId, InvoiceId: invoice.ID, DocumentLine: l})
	}
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	customer, lines, err := input.validate(ctx, companyId)
	if err != nil {
		return nil, err
	}
	seq, err := utils.GetSequence[Invoice](ctx, companyId)
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	invoice := Invoice{
		CompanyId:     companyId,
		InvoiceNumber: utils.GenerateDocumentNumber(invoiceNumberPrefix, input.IssueDate, seq),
		SequenceNo:    seq,
		Status:        InvoiceStatusDraft,
		AmountPaid:    decimal.Zero,
		CreatedBy:     userId,
	}
	input.apply(&invoice, customer, lines)

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpdateInvoice replaces a draft invoice's header and lines.
func UpdateInvoice(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	customer, lines, err := input.validate(ctx, companyId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	var invoice Invoice
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(&invoice).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if invoice.Status != InvoiceStatusDraft {
		tx.Rollback()
		return nil, ErrDocumentNotDraft
	}
	input.apply(&invoice, customer, lines)

	if err := tx.WithContext(ctx).Where("company_id = ? AND invoice_id = ?", companyId, id).
		Delete(&InvoiceLineItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&invoice.Lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&invoice).Omit("Lines").Updates(map[string]interface{}{
		"customer_id":   invoice.CustomerId,
		"issue_date":    invoice.IssueDate,
		"due_date":      invoice.DueDate,
		"payment_terms": invoice.PaymentTerms,
		"reference":     invoice.Reference,
		"notes":         invoice.Notes,
		"subtotal":      invoice.Subtotal,
		"tax_amount":    invoice.TaxAmount,
		"total_amount":  invoice.TotalAmount,
		"balance_due":   invoice.BalanceDue,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetInvoice(ctx, id)
}

func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	invoice, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusDraft {
		return nil, ErrDocumentNotDraft
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ? AND invoice_id = ?", companyId, id).Delete(&InvoiceLineItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("company_id = ? AND id = ? AND status = ?", companyId, id, InvoiceStatusDraft).Delete(&Invoice{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrDocumentNotDraft
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// SendInvoice posts Dr receivable / Cr revenue per line / Cr tax payable and opens the invoice.
func SendInvoice(ctx context.Context, id int) (*Invoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	ctx, span := tracer.Start(ctx, "SendInvoice")
	defer span.End()

	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		var invoice Invoice
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if invoice.Status != InvoiceStatusDraft {
			return ErrDocumentNotDraft
		}
		if err := tx.WithContext(ctx).Where("company_id = ? AND invoice_id = ?", companyId, id).
			Order("line_no").Find(&invoice.Lines).Error; err != nil {
			return err
		}
		receivable, err := GetSystemAccount(ctx, tx, companyId, SystemCodeReceivable)
		if err != nil {
			return err
		}
		journalLines := []NewJournalLine{{
			AccountId:   receivable.ID,
			Description: "Invoice " + invoice.InvoiceNumber,
			DebitAmount: invoice.TotalAmount,
		}}
		for _, l := range invoice.Lines {
			journalLines = append(journalLines, NewJournalLine{AccountId: l.AccountId, Description: l.Description, CreditAmount: l.LineSubtotal})
		}
		if invoice.TaxAmount.IsPositive() {
			taxAccount, err := GetSystemAccount(ctx, tx, companyId, SystemCodeTax)
			if err != nil {
				return err
			}
			journalLines = append(journalLines, NewJournalLine{AccountId: taxAccount.ID, Description: "Sales tax", CreditAmount: invoice.TaxAmount})
		}

		entry, err := postSystemEntry(ctx, tx, companyId, &NewJournalEntry{
			EntryDate:   invoice.IssueDate,
			Reference:   invoice.InvoiceNumber,
			Description: "Invoice " + invoice.InvoiceNumber,
			Lines:       mergeLines(journalLines),
		}, JournalSourceInvoice, invoice.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.WithContext(ctx).Model(&Invoice{}).
			Where("company_id = ? AND id = ? AND status = ?", companyId, id, InvoiceStatusDraft).
			Updates(map[string]interface{}{
				"status":           InvoiceStatusSent,
				"sent_at":          now,
				"journal_entry_id": entry.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrDocumentNotDraft
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return GetInvoice(ctx, id)
}

// RecordInvoicePayment posts Dr cash / Cr receivable and moves the invoice to PARTIAL or PAID.
func RecordInvoicePayment(ctx context.Context, id int, input *NewPayment) (*Payment, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	cash, err := resolveCashAccount(ctx, companyId, input.BankAccountId)
	if err != nil {
		return nil, err
	}
	payment, err := input.newPayment(ctx, companyId, PaymentDocumentInvoice, id)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "RecordInvoicePayment")
	defer span.End()

	err = WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		var invoice Invoice
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if !invoice.IsOpen() {
			return fmt.Errorf("%w: invoice is %s", ErrInvalidStatus, invoice.Status)
		}
		if input.Amount.GreaterThan(invoice.BalanceDue) {
			return ErrOverpayment
		}
		receivable, err := GetSystemAccount(ctx, tx, companyId, SystemCodeReceivable)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}
		entry, err := postSystemEntry(ctx, tx, companyId, &NewJournalEntry{
			EntryDate:   payment.PaymentDate,
			Reference:   payment.PaymentNumber,
			Description: fmt.Sprintf("Payment %s for invoice %s", payment.PaymentNumber, invoice.InvoiceNumber),
			Lines: []NewJournalLine{
				{AccountId: cash.ID, DebitAmount: payment.Amount},
				{AccountId: receivable.ID, CreditAmount: payment.Amount},
			},
		}, JournalSourceInvoicePayment, payment.ID)
		if err != nil {
			return err
		}
		payment.JournalEntryId = &entry.ID
		if err := tx.WithContext(ctx).Model(payment).UpdateColumn("journal_entry_id", entry.ID).Error; err != nil {
			return err
		}

		paid := invoice.AmountPaid.Add(payment.Amount)
		balance := invoice.TotalAmount.Sub(paid)
		status := InvoiceStatusPartial
		if !balance.IsPositive() {
			status = InvoiceStatusPaid
		}
		return tx.WithContext(ctx).Model(&Invoice{}).Where("company_id = ? AND id = ?", companyId, id).
			Updates(map[string]interface{}{"amount_paid": paid, "balance_due": balance, "status": status}).Error
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return payment, nil
}

// CancelInvoice voids an unpaid invoice; a sent invoice has its journal reversed.
func CancelInvoice(ctx context.Context, id int, reason string) (*Invoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "invoice cancelled"
	}

	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		var invoice Invoice
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if invoice.Status == InvoiceStatusCancelled || invoice.Status == InvoiceStatusPaid {
			return fmt.Errorf("%w: invoice is %s", ErrInvalidStatus, invoice.Status)
		}
		if err := ensureNoPayments(ctx, tx, companyId, PaymentDocumentInvoice, id); err != nil {
			return err
		}
		if invoice.JournalEntryId != nil {
			if _, err := reverseJournalEntryTx(ctx, tx, companyId, *invoice.JournalEntryId, reason, nil); err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Model(&Invoice{}).Where("company_id = ? AND id = ?", companyId, id).
			Updates(map[string]interface{}{
				"status":       InvoiceStatusCancelled,
				"cancelled_at": time.Now().UTC(),
				"balance_due":  decimal.Zero,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	config.GetLogger().WithFields(logrus.Fields{
		"company_id": companyId,
		"invoice_id": id,
	}).Info("invoice cancelled")
	return GetInvoice(ctx, id)
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var invoice Invoice
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Preload("Customer").
		Where("company_id = ?", companyId).First(&invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func ListInvoices(ctx context.Context, filter DocumentFilter) ([]*Invoice, *Pagination, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Invoice{}).Preload("Customer").Where("company_id = ?", companyId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", strings.ToUpper(filter.Status))
	}
	if filter.PartyId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", filter.PartyId)
	}
	if filter.From != nil {
		dbCtx = dbCtx.Where("issue_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("issue_date <= ?", utils.EndOfDay(*filter.To))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		dbCtx = dbCtx.Where("(invoice_number LIKE ? OR reference LIKE ?)", like, like)
	}
	return FetchPage[Invoice](dbCtx, filter.PageRequest, "issue_date DESC", "id DESC")
}

// InvoiceSummary backs the dashboard's pending invoice figures.
type InvoiceSummary struct {
	Count      int64           `json:"count"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

func GetPendingInvoiceSummary(ctx context.Context, companyId string) (*InvoiceSummary, error) {
	var summary InvoiceSummary
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Invoice{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance_due), 0) AS balance_due").
		Where("company_id = ? AND status IN ?", companyId,
			[]InvoiceStatus{InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusOverdue}).
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
