package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type TrialBalanceRow struct {
	AccountId int                    `json:"account_id"`
	Code      string                 `json:"code"`
	Name      string                 `json:"name"`
	Category  models.AccountCategory `json:"category"`
	Debit     decimal.Decimal        `json:"debit"`
	Credit    decimal.Decimal        `json:"credit"`
}

type TrialBalanceReport struct {
	AsOf        time.Time          `json:"as_of"`
	Rows        []*TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	IsBalanced  bool               `json:"is_balanced"`
}

// GetTrialBalanceReport lists every account with a non-zero balance as of the end of asOf,
// in the debit or credit column its sign and normal side call for.
func GetTrialBalanceReport(ctx context.Context, asOf time.Time) (*TrialBalanceReport, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	started := time.Now()
	defer logSlowReport(ctx, "TrialBalance", started, map[string]any{"as_of": asOf.Format(time.DateOnly)})

	key := reportCacheKey(companyId, "TrialBalance", asOf.Format(time.DateOnly))
	var cached TrialBalanceReport
	if hit, err := cacheGet(key, &cached); err == nil && hit {
		return &cached, nil
	}

	ctx, span := tracer.Start(ctx, "GetTrialBalanceReport")
	defer span.End()

	end := utils.EndOfDay(asOf)
	balances, err := models.GetAccountBalances(ctx, companyId, &end)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	report := BuildTrialBalance(asOf, balances)
	if !report.IsBalanced {
		config.GetLogger().WithFields(logrus.Fields{
			"company_id":   companyId,
			"as_of":        asOf.Format(time.DateOnly),
			"total_debit":  report.TotalDebit.String(),
			"total_credit": report.TotalCredit.String(),
		}).Warn("trial balance does not balance")
	}
	if err := cacheSet(key, report, reportCacheTTL()); err != nil {
		return nil, err
	}
	return report, nil
}

// BuildTrialBalance turns derived balances into trial balance columns and totals.
func BuildTrialBalance(asOf time.Time, balances []*models.AccountBalance) *TrialBalanceReport {
	report := TrialBalanceReport{
		AsOf:        asOf,
		Rows:        make([]*TrialBalanceRow, 0, len(balances)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, b := range balances {
		if b.Balance.IsZero() {
			continue
		}
		debit, credit := ledger.TrialBalanceColumns(ledger.Side(b.NormalSide), b.Balance)
		report.Rows = append(report.Rows, &TrialBalanceRow{
			AccountId: b.AccountId,
			Code:      b.Code,
			Name:      b.Name,
			Category:  b.Category,
			Debit:     debit,
			Credit:    credit,
		})
		report.TotalDebit = report.TotalDebit.Add(debit)
		report.TotalCredit = report.TotalCredit.Add(credit)
	}
	report.IsBalanced = report.TotalDebit.Equal(report.TotalCredit)
	return &report
}
