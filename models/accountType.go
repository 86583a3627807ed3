package models

import (
	"context"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
)

// AccountType is the global catalogue every account is classified by.
type AccountType struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Code        string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Category    AccountCategory `gorm:"size:20;not null;index" json:"category"`
	NormalSide  NormalSide      `gorm:"size:10;not null" json:"normal_side"`
	Description string          `gorm:"type:text" json:"description"`
}

// default catalogue, seeded once
var defaultAccountTypes = []AccountType{
	{Code: "bank", Name: "Bank", Category: AccountCategoryAsset, Description: "Cash and bank accounts"},
	{Code: "receivables", Name: "Accounts Receivable", Category: AccountCategoryAsset, Description: "Amounts owed by customers"},
	{Code: "inventory", Name: "Inventory", Category: AccountCategoryAsset, Description: "Goods held for sale"},
	{Code: "fixed-assets", Name: "Fixed Assets", Category: AccountCategoryAsset, Description: "Long-term tangible assets"},
	{Code: "payables", Name: "Accounts Payable", Category: AccountCategoryLiability, Description: "Amounts owed to vendors"},
	{Code: "credit-cards", Name: "Credit Cards", Category: AccountCategoryLiability, Description: "Credit card balances"},
	{Code: "equity", Name: "Equity", Category: AccountCategoryEquity, Description: "Owner's equity and retained earnings"},
	{Code: "revenue", Name: "Revenue", Category: AccountCategoryRevenue, Description: "Income from sales and services"},
	{Code: "cost-of-sales", Name: "Cost of Sales", Category: AccountCategoryExpense, Description: "Direct costs of goods sold"},
	{Code: "operating-expenses", Name: "Operating Expenses", Category: AccountCategoryExpense, Description: "Day-to-day business expenses"},
}

// DefaultAccountTypes returns the seed catalogue with normal sides filled in.
func DefaultAccountTypes() []AccountType {
	out := make([]AccountType, 0, len(defaultAccountTypes))
	for _, t := range defaultAccountTypes {
		t.NormalSide = NormalSide(ledger.NormalSideFor(ledger.Category(t.Category)))
		out = append(out, t)
	}
	return out
}

func ListAccountTypes(ctx context.Context) ([]*AccountType, error) {
	var results []*AccountType
	exists, err := config.GetRedisObject("AccountTypeList", &results)
	if err != nil {
		return nil, err
	}
	if exists {
		return results, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject("AccountTypeList", &results, 0); err != nil {
		return nil, err
	}
	return results, nil
}

func getAccountType(ctx context.Context, id int) (*AccountType, error) {
	types, err := ListAccountTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrAccountTypeNotFound
}
