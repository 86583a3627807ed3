package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/models/reports"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ReconciliationResult struct {
	CompanyId          string                            `json:"company_id"`
	AccountDrifts      []*models.AccountDrift            `json:"account_drifts"`
	TrialBalanceOk     bool                              `json:"trial_balance_ok"`
	TotalDebit         decimal.Decimal                   `json:"total_debit"`
	TotalCredit        decimal.Decimal                   `json:"total_credit"`
	DocumentMismatches []*models.DocumentJournalMismatch `json:"document_mismatches"`
}

func (r *ReconciliationResult) Clean() bool {
	return len(r.AccountDrifts) == 0 && r.TrialBalanceOk && len(r.DocumentMismatches) == 0
}

// ReconcileCompany rebuilds stored account balances from posted lines, checks the trial
// balance and the document to journal links. Every mismatch is written to reconciliation_reports.
func ReconcileCompany(ctx context.Context, logger *logrus.Logger, companyId string) (*ReconciliationResult, error) {
	ctx = utils.SystemContext(ctx, companyId)
	result := ReconciliationResult{CompanyId: companyId}

	drifts, err := models.RecalculateAccountBalances(ctx)
	if err != nil {
		return nil, err
	}
	result.AccountDrifts = drifts
	findings := make(map[int]interface{}, len(drifts))
	for _, d := range drifts {
		findings[d.AccountId] = d
	}
	if err := models.SaveReconciliationReports(ctx, companyId, models.ReconciliationCheckAccountBalance, "Account", findings); err != nil {
		return nil, err
	}

	balances, err := models.GetAccountBalances(ctx, companyId, nil)
	if err != nil {
		return nil, err
	}
	tb := reports.BuildTrialBalance(time.Now().UTC(), balances)
	result.TrialBalanceOk = tb.IsBalanced
	result.TotalDebit = tb.TotalDebit
	result.TotalCredit = tb.TotalCredit
	if !tb.IsBalanced {
		if err := models.SaveReconciliationReports(ctx, companyId, models.ReconciliationCheckTrialBalance, "Company",
			map[int]interface{}{0: map[string]string{
				"total_debit":  tb.TotalDebit.String(),
				"total_credit": tb.TotalCredit.String(),
			}}); err != nil {
			return nil, err
		}
	}

	mismatches, err := models.ListDocumentJournalMismatches(ctx, companyId)
	if err != nil {
		return nil, err
	}
	result.DocumentMismatches = mismatches
	byType := map[models.PaymentDocumentType]map[int]interface{}{}
	for _, m := range mismatches {
		if byType[m.DocumentType] == nil {
			byType[m.DocumentType] = map[int]interface{}{}
		}
		byType[m.DocumentType][m.DocumentId] = m
	}
	for docType, f := range byType {
		if err := models.SaveReconciliationReports(ctx, companyId, models.ReconciliationCheckDocumentJournal, string(docType), f); err != nil {
			return nil, err
		}
	}

	if len(drifts) > 0 {
		if err := reports.InvalidateCompanyReports(companyId); err != nil {
			return nil, err
		}
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":               "Reconciliation",
			"company_id":          companyId,
			"account_drifts":      len(drifts),
			"trial_balance_ok":    result.TrialBalanceOk,
			"document_mismatches": len(mismatches),
		}).Info("reconciliation completed")
	}
	return &result, nil
}

// ReconcileAllCompanies runs ReconcileCompany for every active company. A failing
// company is logged and skipped.
func ReconcileAllCompanies(ctx context.Context, logger *logrus.Logger) ([]*ReconciliationResult, error) {
	ids, err := models.ListActiveCompanyIds(systemScope(ctx))
	if err != nil {
		return nil, err
	}
	results := make([]*ReconciliationResult, 0, len(ids))
	for _, id := range ids {
		r, err := ReconcileCompany(ctx, logger, id)
		if err != nil {
			if logger != nil {
				logger.WithField("company_id", id).Error("reconciliation failed: " + err.Error())
			}
			continue
		}
		results = append(results, r)
	}
	return results, nil
}
