package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
)

const (
	ReconciliationCheckAccountBalance  = "ACCOUNT_BALANCE"
	ReconciliationCheckTrialBalance    = "TRIAL_BALANCE"
	ReconciliationCheckDocumentJournal = "DOCUMENT_JOURNAL"
)

// ReconciliationReport is one mismatch found by a reconciliation run.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CompanyId     string    `gorm:"size:64;index;not null" json:"company_id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SaveReconciliationReports stores mismatches; details are marshalled to JSON.
func SaveReconciliationReports(ctx context.Context, companyId string, checkType string, entityType string, findings map[int]interface{}) error {
	if len(findings) == 0 {
		return nil
	}
	correlationId := correlationIdFromContextOrNew(ctx)
	reports := make([]ReconciliationReport, 0, len(findings))
	for entityId, detail := range findings {
		b, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		reports = append(reports, ReconciliationReport{
			CompanyId:     companyId,
			CheckType:     checkType,
			EntityType:    entityType,
			EntityId:      entityId,
			Details:       string(b),
			CorrelationId: correlationId,
		})
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&reports).Error
}

func ListReconciliationReports(ctx context.Context, companyId string, limit int) ([]*ReconciliationReport, error) {
	if limit <= 0 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}
	var reports []*ReconciliationReport
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).
		Order("id DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// DocumentJournalMismatch is an issued invoice or bill whose journal entry is missing or not posted.
type DocumentJournalMismatch struct {
	DocumentType   PaymentDocumentType `json:"document_type"`
	DocumentId     int                 `json:"document_id"`
	Number         string              `json:"number"`
	Status         string              `json:"status"`
	JournalEntryId *int                `json:"journal_entry_id"`
}

func ListDocumentJournalMismatches(ctx context.Context, companyId string) ([]*DocumentJournalMismatch, error) {
	db := config.GetDB()
	var invoices []*DocumentJournalMismatch
	if err := db.WithContext(ctx).Table("invoices").
		Select("'INVOICE' AS document_type, invoices.id AS document_id, invoices.invoice_number AS number, invoices.status, invoices.journal_entry_id").
		Joins("LEFT JOIN journal_entries je ON je.id = invoices.journal_entry_id").
		Where("invoices.company_id = ? AND invoices.status NOT IN ?", companyId,
			[]InvoiceStatus{InvoiceStatusDraft, InvoiceStatusCancelled}).
		Where("je.id IS NULL OR je.is_posted = ?", false).
		Scan(&invoices).Error; err != nil {
		return nil, err
	}
	var bills []*DocumentJournalMismatch
	if err := db.WithContext(ctx).Table("bills").
		Select("'BILL' AS document_type, bills.id AS document_id, bills.bill_number AS number, bills.status, bills.journal_entry_id").
		Joins("LEFT JOIN journal_entries je ON je.id = bills.journal_entry_id").
		Where("bills.company_id = ? AND bills.status NOT IN ?", companyId,
			[]BillStatus{BillStatusDraft, BillStatusCancelled}).
		Where("je.id IS NULL OR je.is_posted = ?", false).
		Scan(&bills).Error; err != nil {
		return nil, err
	}
	return append(invoices, bills...), nil
}
