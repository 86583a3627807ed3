package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

type GeneralLedgerLine struct {
	JournalEntryId int             `json:"journal_entry_id"`
	EntryNumber    string          `json:"entry_number"`
	EntryDate      time.Time       `json:"entry_date"`
	Reference      string          `json:"reference"`
	Description    string          `json:"description"`
	DebitAmount    decimal.Decimal `json:"debit_amount"`
	CreditAmount   decimal.Decimal `json:"credit_amount"`
	Balance        decimal.Decimal `json:"balance"`
}

type GeneralLedgerReport struct {
	AccountId      int                  `json:"account_id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	NormalSide     models.NormalSide    `json:"normal_side"`
	From           time.Time            `json:"from"`
	To             time.Time            `json:"to"`
	OpeningBalance decimal.Decimal      `json:"opening_balance"`
	TotalDebit     decimal.Decimal      `json:"total_debit"`
	TotalCredit    decimal.Decimal      `json:"total_credit"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
	Lines          []*GeneralLedgerLine `json:"lines"`
}

// GetGeneralLedgerReport lists the account's posted lines between from and to with a running balance
// that starts from the opening balance plus everything posted before from.
func GetGeneralLedgerReport(ctx context.Context, accountId int, from time.Time, to time.Time) (*GeneralLedgerReport, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	from, to = utils.StartOfDay(from), utils.EndOfDay(to)
	if to.Before(from) {
		return nil, utils.InvalidInput("from date must not be after to date")
	}
	started := time.Now()
	defer logSlowReport(ctx, "GeneralLedger", started, map[string]any{"account_id": accountId})
	ctx, span := tracer.Start(ctx, "GetGeneralLedgerReport")
	defer span.End()

	account, err := utils.FetchModel[models.Account](ctx, companyId, accountId)
	if err != nil {
		return nil, err
	}
	side := account.Side()
	db := config.GetDB()

	var before struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	if err := db.WithContext(ctx).Table("journal_line_items AS li").
		Select("COALESCE(SUM(li.debit_amount),0) AS debit, COALESCE(SUM(li.credit_amount),0) AS credit").
		Joins("JOIN journal_entries je ON je.id = li.journal_entry_id").
		Where("li.company_id = ? AND li.account_id = ? AND je.is_posted = ? AND je.entry_date < ?", companyId, accountId, true, from).
		Scan(&before).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}

	var lines []*GeneralLedgerLine
	if err := db.WithContext(ctx).Table("journal_line_items AS li").
		Select("je.id AS journal_entry_id, je.entry_number, je.entry_date, je.reference, "+
			"COALESCE(NULLIF(li.description, ''), je.description) AS description, li.debit_amount, li.credit_amount").
		Joins("JOIN journal_entries je ON je.id = li.journal_entry_id").
		Where("li.company_id = ? AND li.account_id = ? AND je.is_posted = ? AND je.entry_date BETWEEN ? AND ?",
			companyId, accountId, true, from, to).
		Order("je.entry_date, je.id, li.line_no").
		Scan(&lines).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := GeneralLedgerReport{
		AccountId:      account.ID,
		Code:           account.Code,
		Name:           account.Name,
		NormalSide:     account.NormalSide,
		From:           from,
		To:             to,
		OpeningBalance: account.OpeningBalance.Add(ledger.SignedAmount(side, before.Debit, before.Credit)),
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		Lines:          lines,
	}
	ApplyRunningBalance(&report, side)
	return &report, nil
}

// ApplyRunningBalance fills each line's balance and the report totals.
func ApplyRunningBalance(report *GeneralLedgerReport, side ledger.Side) {
	running := report.OpeningBalance
	for _, l := range report.Lines {
		running = running.Add(ledger.SignedAmount(side, l.DebitAmount, l.CreditAmount))
		l.Balance = running
		report.TotalDebit = report.TotalDebit.Add(l.DebitAmount)
		report.TotalCredit = report.TotalCredit.Add(l.CreditAmount)
	}
	report.ClosingBalance = running
}
