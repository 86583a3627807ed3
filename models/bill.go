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

const billNumberPrefix = "BILL"

type Bill struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"size:64;not null;uniqueIndex:uniq_bill_number;index:idx_bill_status" json:"company_id"`
	BillNumber     string          `gorm:"size:30;not null;uniqueIndex:uniq_bill_number" json:"bill_number"`
	SequenceNo     int64           `gorm:"not null;default:0" json:"-"`
	VendorId       int             `gorm:"not null;index" json:"vendor_id"`
	Vendor         *Vendor         `gorm:"foreignKey:VendorId" json:"vendor,omitempty"`
	VendorRef      string          `gorm:"size:100" json:"vendor_ref"`
	BillDate       time.Time       `gorm:"type:date;not null" json:"bill_date"`
	DueDate        time.Time       `gorm:"type:date;not null;index:idx_bill_status" json:"due_date"`
	PaymentTerms   PaymentTerms    `gorm:"size:20;not null" json:"payment_terms"`
	Status         BillStatus      `gorm:"size:20;not null;default:'DRAFT';index:idx_bill_status" json:"status"`
	Notes          string          `gorm:"type:text" json:"notes"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount_paid"`
	BalanceDue     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance_due"`
	JournalEntryId *int            `json:"journal_entry_id"`
	ApprovedAt     *time.Time      `json:"approved_at"`
	ApprovedBy     *int            `json:"approved_by"`
	CancelledAt    *time.Time      `json:"cancelled_at"`
	CreatedBy      int             `json:"created_by"`
	Lines          []BillLineItem  `gorm:"foreignKey:BillId" json:"lines"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillLineItem struct {
	ID           int    `gorm:"primary_key" json:"id"`
	CompanyId    string `gorm:"size:64;not null;index" json:"-"`
	BillId       int    `gorm:"not null;index" json:"bill_id"`
	DocumentLine `gorm:"embedded"`
}

type NewBill struct {
	VendorId     int               `json:"vendor_id" validate:"required"`
	VendorRef    string            `json:"vendor_ref" validate:"max=100"`
	BillDate     time.Time         `json:"bill_date" validate:"required"`
	DueDate      *time.Time        `json:"due_date"`
	PaymentTerms PaymentTerms      `json:"payment_terms"`
	Notes        string            `json:"notes"`
	Lines        []NewDocumentLine `json:"lines" validate:"required,min=1,dive"`
}

func (b Bill) GetCompanyId() string {
	return b.CompanyId
}

func (b Bill) IsOpen() bool {
	switch b.Status {
	case BillStatusOpen, BillStatusPartial, BillStatusOverdue:
		return true
	}
	return false
}

func (input *NewBill) validate(ctx context.Context, companyId string) (*Vendor, []DocumentLine, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	vendor, err := utils.FetchModel[Vendor](ctx, companyId, input.VendorId)
	if err != nil {
		return nil, nil, utils.InvalidInput("vendor not found")
	}
	if vendor.IsActive != nil && !*vendor.IsActive {
		return nil, nil, utils.InvalidInput("vendor is inactive")
	}
	if input.DueDate != nil && input.DueDate.Before(utils.StartOfDay(input.BillDate)) {
		return nil, nil, utils.InvalidInput("due date cannot be before bill date")
	}
	// bills may also capitalise purchases into asset accounts
	lines, err := prepareDocumentLines(ctx, companyId, input.Lines, SystemCodeExpense, AccountCategoryExpense, AccountCategoryAsset)
	if err != nil {
		return nil, nil, err
	}
	return vendor, lines, nil
}

func (input *NewBill) apply(bill *Bill, vendor *Vendor, lines []DocumentLine) {
	terms := input.PaymentTerms
	if terms == "" {
		terms = vendor.PaymentTerms
	}
	dueDate := utils.CalculateDueDate(input.BillDate, string(terms))
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}
	totals := SumDocumentLines(lines)

	bill.VendorId = vendor.ID
	bill.VendorRef = strings.TrimSpace(input.VendorRef)
	bill.BillDate = input.BillDate
	bill.DueDate = dueDate
	bill.PaymentTerms = terms
	bill.Notes = input.Notes
	bill.Subtotal = totals.Subtotal
	bill.TaxAmount = totals.Tax
	bill.TotalAmount = totals.Total
	bill.BalanceDue = totals.Total.Sub(bill.AmountPaid)
	bill.Lines = make([]BillLineItem, 0, len(lines))
	for _, l := range lines {
		bill.Lines = append(bill.Lines, BillLineItem{CompanyId: bill.CompanyId, BillId: bill.ID, DocumentLine: l})
	}
}

func CreateBill(ctx context.Context, input *NewBill) (*Bill, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	vendor, lines, err := input.validate(ctx, companyId)
	if err != nil {
		return nil, err
	}
	seq, err := utils.GetSequence[Bill](ctx, companyId)
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	bill := Bill{
		CompanyId:  companyId,
		BillNumber: utils.GenerateDocumentNumber(billNumberPrefix, input.BillDate, seq),
		SequenceNo: seq,
		Status:     BillStatusDraft,
		AmountPaid: decimal.Zero,
		CreatedBy:  userId,
	}
	input.apply(&bill, vendor, lines)

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func UpdateBill(ctx context.Context, id int, input *NewBill) (*Bill, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	vendor, lines, err := input.validate(ctx, companyId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	var bill Bill
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(&bill).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if bill.Status != BillStatusDraft {
		tx.Rollback()
		return nil, ErrDocumentNotDraft
	}
	input.apply(&bill, vendor, lines)

	if err := tx.WithContext(ctx).Where("company_id = ? AND bill_id = ?", companyId, id).
		Delete(&BillLineItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&bill.Lines).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&bill).Omit("Lines").Updates(map[string]interface{}{
		"vendor_id":     bill.VendorId,
		"vendor_ref":    bill.VendorRef,
		"bill_date":     bill.BillDate,
		"due_date":      bill.DueDate,
		"payment_terms": bill.PaymentTerms,
		"notes":         bill.Notes,
		"subtotal":      bill.Subtotal,
		"tax_amount":    bill.TaxAmount,
		"total_amount":  bill.TotalAmount,
		"balance_due":   bill.BalanceDue,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetBill(ctx, id)
}

func DeleteBill(ctx context.Context, id int) (*Bill, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	bill, err := GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != BillStatusDraft {
		return nil, ErrDocumentNotDraft
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ? AND bill_id = ?", companyId, id).Delete(&BillLineItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("company_id = ? AND id = ? AND status = ?", companyId, id, BillStatusDraft).Delete(&Bill{})
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
	return bill, nil
}

// ApproveBill posts Dr expense per line / Dr tax / Cr payable and opens the bill.
func ApproveBill(ctx context.Context, id int) (*Bill, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	ctx, span := tracer.Start(ctx, "ApproveBill")
	defer span.End()

	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		var bill Bill
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&bill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if bill.Status != BillStatusDraft {
			return ErrDocumentNotDraft
		}
		if err := tx.WithContext(ctx).Where("company_id = ? AND bill_id = ?", companyId, id).
			Order("line_no").Find(&bill.Lines).Error; err != nil {
			return err
		}
		payable, err := GetSystemAccount(ctx, tx, companyId, SystemCodePayable)
		if err != nil {
			return err
		}
		journalLines := make([]NewJournalLine, 0, len(bill.Lines)+2)
		for _, l := range bill.Lines {
			journalLines = append(journalLines, NewJournalLine{AccountId: l.AccountId, Description: l.Description, DebitAmount: l.LineSubtotal})
		}
		if bill.TaxAmount.IsPositive() {
			taxAccount, err := GetSystemAccount(ctx, tx, companyId, SystemCodeTax)
			if err != nil {
				return err
			}
			journalLines = append(journalLines, NewJournalLine{AccountId: taxAccount.ID, Description: "Purchase tax", DebitAmount: bill.TaxAmount})
		}
		journalLines = append(journalLines, NewJournalLine{
			AccountId:    payable.ID,
			Description:  "Bill " + bill.BillNumber,
			CreditAmount: bill.TotalAmount,
		})

		entry, err := postSystemEntry(ctx, tx, companyId, &NewJournalEntry{
			EntryDate:   bill.BillDate,
			Reference:   bill.BillNumber,
			Description: "Bill " + bill.BillNumber,
			Lines:       mergeLines(journalLines),
		}, JournalSourceBill, bill.ID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":           BillStatusOpen,
			"approved_at":      time.Now().UTC(),
			"journal_entry_id": entry.ID,
		}
		if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
			updates["approved_by"] = userId
		}
		res := tx.WithContext(ctx).Model(&Bill{}).
			Where("company_id = ? AND id = ? AND status = ?", companyId, id, BillStatusDraft).
			Updates(updates)
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
	return GetBill(ctx, id)
}

// RecordBillPayment posts Dr payable / Cr cash and moves the bill to PARTIAL or PAID.
func RecordBillPayment(ctx context.Context, id int, input *NewPayment) (*Payment, error) {
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
	payment, err := input.newPayment(ctx, companyId, PaymentDocumentBill, id)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "RecordBillPayment")
	defer span.End()

	err = WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		var bill Bill
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&bill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if !bill.IsOpen() {
			return fmt.Errorf("%w: bill is %s", ErrInvalidStatus, bill.Status)
		}
		if input.Amount.GreaterThan(bill.BalanceDue) {
			return ErrOverpayment
		}
		payable, err := GetSystemAccount(ctx, tx, companyId, SystemCodePayable)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}
		entry, err := postSystemEntry(ctx, tx, companyId, &NewJournalEntry{
			EntryDate:   payment.PaymentDate,
			Reference:   payment.PaymentNumber,
			Description: fmt.Sprintf("Payment %s for bill %s", payment.PaymentNumber, bill.BillNumber),
			Lines: []NewJournalLine{
				{AccountId: payable.ID, DebitAmount: payment.Amount},
				{AccountId: cash.ID, CreditAmount: payment.Amount},
			},
		}, JournalSourceBillPayment, payment.ID)
		if err != nil {
			return err
		}
		payment.JournalEntryId = &entry.ID
		if err := tx.WithContext(ctx).Model(payment).UpdateColumn("journal_entry_id", entry.ID).Error; err != nil {
			return err
		}

		paid := bill.AmountPaid.Add(payment.Amount)
		balance := bill.TotalAmount.Sub(paid)
		status := BillStatusPartial
		if !balance.IsPositive() {
			status = BillStatusPaid
		}
		return tx.WithContext(ctx).Model(&Bill{}).Where("company_id = ? AND id = ?", companyId, id).
			Updates(map[string]interface{}{"amount_paid": paid, "balance_due": balance, "status": status}).Error
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return payment, nil
}

func CancelBill(ctx context.Context, id int, reason string) (*Bill, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "bill cancelled"
	}

	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		var bill Bill
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&bill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if bill.Status == BillStatusCancelled || bill.Status == BillStatusPaid {
			return fmt.Errorf("%w: bill is %s", ErrInvalidStatus, bill.Status)
		}
		if err := ensureNoPayments(ctx, tx, companyId, PaymentDocumentBill, id); err != nil {
			return err
		}
		if bill.JournalEntryId != nil {
			if _, err := reverseJournalEntryTx(ctx, tx, companyId, *bill.JournalEntryId, reason, nil); err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Model(&Bill{}).Where("company_id = ? AND id = ?", companyId, id).
			Updates(map[string]interface{}{
				"status":       BillStatusCancelled,
				"cancelled_at": time.Now().UTC(),
				"balance_due":  decimal.Zero,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	config.GetLogger().WithFields(logrus.Fields{
		"company_id": companyId,
		"bill_id":    id,
	}).Info("bill cancelled")
	return GetBill(ctx, id)
}

func GetBill(ctx context.Context, id int) (*Bill, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var bill Bill
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Preload("Vendor").
		Where("company_id = ?", companyId).First(&bill, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &bill, nil
}

func ListBills(ctx context.Context, filter DocumentFilter) ([]*Bill, *Pagination, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Bill{}).Preload("Vendor").Where("company_id = ?", companyId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", strings.ToUpper(filter.Status))
	}
	if filter.PartyId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", filter.PartyId)
	}
	if filter.From != nil {
		dbCtx = dbCtx.Where("bill_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("bill_date <= ?", utils.EndOfDay(*filter.To))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		dbCtx = dbCtx.Where("(bill_number LIKE ? OR vendor_ref LIKE ?)", like, like)
	}
	return FetchPage[Bill](dbCtx, filter.PageRequest, "bill_date DESC", "id DESC")
}

func CountOverdueBills(ctx context.Context, companyId string) (int64, error) {
	return utils.ResourceCountWhere[Bill](ctx, companyId, "status = ?", BillStatusOverdue)
}
