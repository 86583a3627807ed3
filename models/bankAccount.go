package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

type BankAccount struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CompanyId     string          `gorm:"size:64;not null;index;uniqueIndex:uniq_bank_ledger_account" json:"company_id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	AccountNumber string          `gorm:"size:50" json:"account_number"`
	BankName      string          `gorm:"size:100" json:"bank_name"`
	Branch        string          `gorm:"size:100" json:"branch"`
	RoutingNumber string          `gorm:"size:20" json:"routing_number"`
	Type          BankAccountType `gorm:"size:20;not null;default:'CHECKING'" json:"type"`
	AccountId     int             `gorm:"not null;uniqueIndex:uniq_bank_ledger_account" json:"account_id"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	Balance       decimal.Decimal `gorm:"-" json:"balance"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBankAccount struct {
	Name          string          `json:"name" validate:"required,max=100"`
	AccountNumber string          `json:"account_number" validate:"max=50"`
	BankName      string          `json:"bank_name" validate:"max=100"`
	Branch        string          `json:"branch" validate:"max=100"`
	RoutingNumber string          `json:"routing_number" validate:"omitempty,numeric,max=20"`
	Type          BankAccountType `json:"type"`
	AccountId     int             `json:"account_id" validate:"required"`
	IsActive      *bool           `json:"is_active"`
}

func (b BankAccount) GetCompanyId() string {
	return b.CompanyId
}

// validate requires an active asset (or, for credit cards, liability) ledger account not linked elsewhere.
func (input *NewBankAccount) validate(ctx context.Context, companyId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Type == "" {
		input.Type = BankAccountTypeChecking
	}
	account, err := utils.FetchModel[Account](ctx, companyId, input.AccountId)
	if err != nil {
		return utils.InvalidInput("ledger account not found")
	}
	expected := AccountCategoryAsset
	if input.Type == BankAccountTypeCredit {
		expected = AccountCategoryLiability
	}
	if account.Category != expected {
		return utils.InvalidInput("ledger account category does not match the bank account type")
	}
	if err := account.CheckPostable(); err != nil {
		return err
	}
	count, err := utils.ResourceCountWhere[BankAccount](ctx, companyId, "account_id = ? AND id <> ?", input.AccountId, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrBankAccountLinkExists
	}
	return nil
}

func (b *BankAccount) loadBalance(ctx context.Context) error {
	account, err := utils.FetchModel[Account](ctx, b.CompanyId, b.AccountId)
	if err != nil {
		return err
	}
	b.Balance = account.CurrentBalance
	return nil
}

func CreateBankAccount(ctx context.Context, input *NewBankAccount) (*BankAccount, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	bank := BankAccount{
		CompanyId:     companyId,
		Name:          strings.TrimSpace(input.Name),
		AccountNumber: strings.TrimSpace(input.AccountNumber),
		BankName:      input.BankName,
		Branch:        input.Branch,
		RoutingNumber: input.RoutingNumber,
		Type:          input.Type,
		AccountId:     input.AccountId,
		IsActive:      isActive,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bank).Error; err != nil {
		return nil, err
	}
	if err := bank.loadBalance(ctx); err != nil {
		return nil, err
	}
	return &bank, nil
}

func UpdateBankAccount(ctx context.Context, id int, input *NewBankAccount) (*BankAccount, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	bank, err := utils.FetchModel[BankAccount](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"Name":          strings.TrimSpace(input.Name),
		"AccountNumber": strings.TrimSpace(input.AccountNumber),
		"BankName":      input.BankName,
		"Branch":        input.Branch,
		"RoutingNumber": input.RoutingNumber,
		"Type":          input.Type,
		"AccountId":     input.AccountId,
	}
	if input.IsActive != nil {
		updates["IsActive"] = *input.IsActive
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(bank).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetBankAccount(ctx, id)
}

// DeleteBankAccount removes the bank record only; the ledger account and its history stay.
func DeleteBankAccount(ctx context.Context, id int) (*BankAccount, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	bank, err := utils.FetchModel[BankAccount](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Payment](ctx, companyId, "bank_account_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrBankAccountHasPayments
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(bank).Error; err != nil {
		return nil, err
	}
	return bank, nil
}

func GetBankAccount(ctx context.Context, id int) (*BankAccount, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	bank, err := utils.FetchModel[BankAccount](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	if err := bank.loadBalance(ctx); err != nil {
		return nil, err
	}
	return bank, nil
}

// ListBankAccounts returns bank accounts with balances read from their ledger accounts in one query.
func ListBankAccounts(ctx context.Context) ([]*BankAccount, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	banks, err := utils.FetchAllModels[BankAccount](ctx, companyId, "name")
	if err != nil {
		return nil, err
	}
	if len(banks) == 0 {
		return banks, nil
	}
	ids := make([]int, 0, len(banks))
	for _, b := range banks {
		ids = append(ids, b.AccountId)
	}
	accounts, err := GetAccountsByIds(ctx, companyId, ids)
	if err != nil {
		return nil, err
	}
	balances := make(map[int]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = a.CurrentBalance
	}
	for _, b := range banks {
		b.Balance = balances[b.AccountId]
	}
	return banks, nil
}

// TotalCashBalance sums the balances of the ledger accounts behind active bank accounts
// plus the CASH system account.
func TotalCashBalance(ctx context.Context, companyId string) (decimal.Decimal, error) {
	var total decimal.Decimal
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Account{}).
		Select("COALESCE(SUM(current_balance), 0)").
		Where("company_id = ? AND (system_code = ? OR id IN (?))", companyId, SystemCodeCash,
			db.Model(&BankAccount{}).Select("account_id").Where("company_id = ? AND is_active = ?", companyId, true)).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
