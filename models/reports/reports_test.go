package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balance(id int, code string, category models.AccountCategory, side models.NormalSide, amount string) *models.AccountBalance {
	return &models.AccountBalance{
		AccountId:  id,
		Code:       code,
		Name:       code,
		Category:   category,
		NormalSide: side,
		Balance:    d(amount),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	balances := []*models.AccountBalance{
		balance(1, "1001", models.AccountCategoryAsset, models.NormalSideDebit, "1500"),
		balance(2, "1200", models.AccountCategoryAsset, models.NormalSideDebit, "0"),
		balance(3, "2001", models.AccountCategoryLiability, models.NormalSideCredit, "400"),
		balance(4, "4001", models.AccountCategoryRevenue, models.NormalSideCredit, "1250"),
		balance(5, "5010", models.AccountCategoryExpense, models.NormalSideDebit, "150"),
	}

	report := BuildTrialBalance(asOf, balances)

	require.Len(t, report.Rows, 4, "zero balances are left out")
	assert.True(t, report.TotalDebit.Equal(d("1650")))
	assert.True(t, report.TotalCredit.Equal(d("1650")))
	assert.True(t, report.IsBalanced)
	assert.True(t, report.Rows[1].Credit.Equal(d("400")))
	assert.True(t, report.Rows[1].Debit.IsZero())
}

func TestBuildTrialBalanceNegativeBalanceSwitchesColumn(t *testing.T) {
	report := BuildTrialBalance(time.Now(), []*models.AccountBalance{
		balance(1, "1001", models.AccountCategoryAsset, models.NormalSideDebit, "-200"),
		balance(2, "3001", models.AccountCategoryEquity, models.NormalSideCredit, "-200"),
	})

	require.Len(t, report.Rows, 2)
	assert.True(t, report.Rows[0].Credit.Equal(d("200")))
	assert.True(t, report.Rows[1].Debit.Equal(d("200")))
	assert.True(t, report.IsBalanced)
}

func TestBuildTrialBalanceReportsImbalance(t *testing.T) {
	report := BuildTrialBalance(time.Now(), []*models.AccountBalance{
		balance(1, "1001", models.AccountCategoryAsset, models.NormalSideDebit, "100"),
		balance(2, "3001", models.AccountCategoryEquity, models.NormalSideCredit, "90"),
	})
	assert.False(t, report.IsBalanced)
}

func TestApplyRunningBalance(t *testing.T) {
	report := &GeneralLedgerReport{
		OpeningBalance: d("1000"),
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		Lines: []*GeneralLedgerLine{
			{EntryNumber: "JE-2406-0001", DebitAmount: d("250"), CreditAmount: decimal.Zero},
			{EntryNumber: "JE-2406-0002", DebitAmount: decimal.Zero, CreditAmount: d("100.5")},
			{EntryNumber: "JE-2406-0003", DebitAmount: d("0.5"), CreditAmount: decimal.Zero},
		},
	}

	ApplyRunningBalance(report, ledger.Debit)

	assert.True(t, report.Lines[0].Balance.Equal(d("1250")))
	assert.True(t, report.Lines[1].Balance.Equal(d("1149.5")))
	assert.True(t, report.Lines[2].Balance.Equal(d("1150")))
	assert.True(t, report.ClosingBalance.Equal(d("1150")))
	assert.True(t, report.TotalDebit.Equal(d("250.5")))
	assert.True(t, report.TotalCredit.Equal(d("100.5")))
}

func TestApplyRunningBalanceCreditNormal(t *testing.T) {
	report := &GeneralLedgerReport{
		OpeningBalance: decimal.Zero,
		Lines: []*GeneralLedgerLine{
			{CreditAmount: d("300"), DebitAmount: decimal.Zero},
			{DebitAmount: d("50"), CreditAmount: decimal.Zero},
		},
	}
	ApplyRunningBalance(report, ledger.Credit)
	assert.True(t, report.ClosingBalance.Equal(d("250")))
}

func TestTrialBalanceWorkbook(t *testing.T) {
	report := BuildTrialBalance(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), []*models.AccountBalance{
		balance(1, "1001", models.AccountCategoryAsset, models.NormalSideDebit, "100"),
		balance(2, "3001", models.AccountCategoryEquity, models.NormalSideCredit, "100"),
	})

	data, err := TrialBalanceWorkbook(report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Trial Balance")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, "Code", rows[0][0])
	assert.Equal(t, "1001", rows[1][0])
	assert.Equal(t, "3001", rows[2][0])
	assert.Equal(t, "Total", rows[3][1])

	asOf, err := f.GetCellValue("Trial Balance", "H1")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", asOf)
}

func TestReportCacheKey(t *testing.T) {
	assert.Equal(t, "Report:c1:TrialBalance:2024-06-30", reportCacheKey("c1", "TrialBalance", "2024-06-30"))
	assert.Equal(t, "Report:c1:Dashboard", dashboardCacheKey("c1"))
}
