package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

type RecentTransaction struct {
	Id          int             `json:"id"`
	EntryNumber string          `json:"entry_number"`
	EntryDate   time.Time       `json:"entry_date"`
	Description string          `json:"description"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	SourceType  string          `json:"source_type"`
}

type DashboardStats struct {
	TotalRevenue       decimal.Decimal      `json:"total_revenue"`
	TotalExpenses      decimal.Decimal      `json:"total_expenses"`
	NetIncome          decimal.Decimal      `json:"net_income"`
	CashBalance        decimal.Decimal      `json:"cash_balance"`
	PendingInvoices    int64                `json:"pending_invoices"`
	ReceivableDue      decimal.Decimal      `json:"receivable_due"`
	OverdueBills       int64                `json:"overdue_bills"`
	ActiveCustomers    int64                `json:"active_customers"`
	ActiveVendors      int64                `json:"active_vendors"`
	RecentTransactions []*RecentTransaction `json:"recent_transactions"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

func dashboardCacheKey(companyId string) string {
	return reportCacheKey(companyId, "Dashboard")
}

// GetDashboardStats is cached per company until the next ledger event for it is processed.
func GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	var cached DashboardStats
	exists, err := config.GetRedisObject(dashboardCacheKey(companyId), &cached)
	if err != nil {
		return nil, err
	}
	if exists {
		return &cached, nil
	}

	started := time.Now()
	defer logSlowReport(ctx, "Dashboard", started, nil)
	ctx, span := tracer.Start(ctx, "GetDashboardStats")
	defer span.End()

	stats, err := buildDashboardStats(ctx, companyId)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := config.SetRedisObject(dashboardCacheKey(companyId), stats, reportCacheTTL()); err != nil {
		return nil, err
	}
	return stats, nil
}

func buildDashboardStats(ctx context.Context, companyId string) (*DashboardStats, error) {
	db := config.GetDB()
	stats := DashboardStats{GeneratedAt: time.Now().UTC()}

	var totals []struct {
		Category models.AccountCategory
		Total    decimal.Decimal
	}
	if err := db.WithContext(ctx).Model(&models.Account{}).
		Select("category, COALESCE(SUM(current_balance), 0) AS total").
		Where("company_id = ? AND category IN ?", companyId,
			[]models.AccountCategory{models.AccountCategoryRevenue, models.AccountCategoryExpense}).
		Group("category").Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats.TotalRevenue, stats.TotalExpenses = decimal.Zero, decimal.Zero
	for _, t := range totals {
		switch t.Category {
		case models.AccountCategoryRevenue:
			stats.TotalRevenue = t.Total
		case models.AccountCategoryExpense:
			stats.TotalExpenses = t.Total
		}
	}
	stats.NetIncome = stats.TotalRevenue.Sub(stats.TotalExpenses)

	cash, err := models.TotalCashBalance(ctx, companyId)
	if err != nil {
		return nil, err
	}
	stats.CashBalance = cash

	pending, err := models.GetPendingInvoiceSummary(ctx, companyId)
	if err != nil {
		return nil, err
	}
	stats.PendingInvoices = pending.Count
	stats.ReceivableDue = pending.BalanceDue

	if stats.OverdueBills, err = models.CountOverdueBills(ctx, companyId); err != nil {
		return nil, err
	}
	if stats.ActiveCustomers, err = utils.ResourceCountWhere[models.Customer](ctx, companyId, "is_active = ?", true); err != nil {
		return nil, err
	}
	if stats.ActiveVendors, err = utils.ResourceCountWhere[models.Vendor](ctx, companyId, "is_active = ?", true); err != nil {
		return nil, err
	}

	stats.RecentTransactions = make([]*RecentTransaction, 0)
	if err := db.WithContext(ctx).Model(&models.JournalEntry{}).
		Select("id, entry_number, entry_date, description, total_amount, source_type").
		Where("company_id = ? AND is_posted = ?", companyId, true).
		Order("posted_at DESC, id DESC").Limit(10).
		Scan(&stats.RecentTransactions).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// InvalidateDashboard drops the cached dashboard of the company.
func InvalidateDashboard(companyId string) error {
	return config.RemoveRedisKey(dashboardCacheKey(companyId))
}
