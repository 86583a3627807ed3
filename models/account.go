package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/ledger"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Account struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"size:64;not null;uniqueIndex:uniq_account_code" json:"company_id"`
	Code           string          `gorm:"size:20;not null;uniqueIndex:uniq_account_code" json:"code"`
	Name           string          `gorm:"size:100;not null;index" json:"name"`
	AccountTypeId  int             `gorm:"not null;index" json:"account_type_id"`
	AccountType    *AccountType    `gorm:"foreignKey:AccountTypeId" json:"account_type,omitempty"`
	Category       AccountCategory `gorm:"size:20;not null;index" json:"category"`
	NormalSide     NormalSide      `gorm:"size:10;not null" json:"normal_side"`
	ParentId       *int            `gorm:"index" json:"parent_id"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"opening_balance"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_balance"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	AllowPosting   *bool           `gorm:"not null;default:true" json:"allow_posting"`
	SystemCode     SystemCode      `gorm:"size:10;index" json:"system_code"`
	Description    string          `gorm:"type:text" json:"description"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Code           string          `json:"code" validate:"max=20"`
	Name           string          `json:"name" validate:"required,max=100"`
	AccountTypeId  int             `json:"account_type_id" validate:"required"`
	ParentId       *int            `json:"parent_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	AllowPosting   *bool           `json:"allow_posting"`
	SystemCode     SystemCode      `json:"system_code"`
	Description    string          `json:"description"`
}

type AccountFilter struct {
	Name            string          `form:"name"`
	Code            string          `form:"code"`
	Category        AccountCategory `form:"category"`
	IncludeInactive bool            `form:"include_inactive"`
}

// AccountBalance is the balance derived from posted journal lines.
type AccountBalance struct {
	AccountId      int             `json:"account_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Category       AccountCategory `json:"category"`
	NormalSide     NormalSide      `json:"normal_side"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	PostedDebit    decimal.Decimal `json:"posted_debit"`
	PostedCredit   decimal.Decimal `json:"posted_credit"`
	Balance        decimal.Decimal `json:"balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// AccountDrift reports a stored current balance that disagreed with the posted lines.
type AccountDrift struct {
	AccountId int             `json:"account_id"`
	Code      string          `json:"code"`
	Stored    decimal.Decimal `json:"stored"`
	Derived   decimal.Decimal `json:"derived"`
}

func (a Account) GetCompanyId() string {
	return a.CompanyId
}

func (a *Account) Side() ledger.Side {
	return ledger.Side(a.NormalSide)
}

func (a *Account) CheckPostable() error {
	if a.IsActive != nil && !*a.IsActive {
		return fmt.Errorf("%w: %s", ErrAccountInactive, a.Code)
	}
	if a.AllowPosting != nil && !*a.AllowPosting {
		return fmt.Errorf("%w: %s", ErrAccountNoPosting, a.Code)
	}
	return nil
}

// validate input for both create & update. (id = 0 for create)
func (input *NewAccount) validate(ctx context.Context, companyId string, id int) (*AccountType, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	input.Code = strings.TrimSpace(input.Code)
	accountType, err := getAccountType(ctx, input.AccountTypeId)
	if err != nil {
		return nil, err
	}
	if input.OpeningBalance.IsNegative() {
		return nil, utils.InvalidInput("opening balance cannot be negative")
	}
	if !input.OpeningBalance.Equal(input.OpeningBalance.Truncate(ledger.MaxScale)) {
		return nil, utils.InvalidInput("opening balance has too many decimal places")
	}
	if input.Code != "" {
		if err := utils.ValidateUnique[Account](ctx, companyId, "code", input.Code, id); err != nil {
			var dup *utils.DuplicateError
			if errors.As(err, &dup) {
				return nil, ErrAccountCodeExists
			}
			return nil, err
		}
	}
	if input.ParentId != nil && *input.ParentId > 0 {
		if *input.ParentId == id {
			return nil, utils.InvalidInput("self-parent not allowed")
		}
		parent, err := utils.FetchModel[Account](ctx, companyId, *input.ParentId)
		if err != nil {
			return nil, utils.InvalidInput("parent not found")
		}
		if parent.Category != accountType.Category {
			return nil, utils.InvalidInput("parent account must have the same category")
		}
		if id > 0 {
			descendants, err := accountDescendantIds(ctx, companyId, id)
			if err != nil {
				return nil, err
			}
			for _, d := range descendants {
				if d == parent.ID {
					return nil, utils.InvalidInput("parent cannot be a sub-account of this account")
				}
			}
		}
	}
	return accountType, nil
}

// nextAccountCode generates the first free code for category.
func nextAccountCode(ctx context.Context, companyId string, category AccountCategory) (string, error) {
	count, err := utils.ResourceCountWhere[Account](ctx, companyId, "category = ?", category)
	if err != nil {
		return "", err
	}
	for seq := int(count) + 1; ; seq++ {
		code := utils.GenerateAccountCode(string(category), seq)
		n, err := utils.ResourceCountWhere[Account](ctx, companyId, "code = ?", code)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	accountType, err := input.validate(ctx, companyId, 0)
	if err != nil {
		return nil, err
	}
	if input.Code == "" {
		if input.Code, err = nextAccountCode(ctx, companyId, accountType.Category); err != nil {
			return nil, err
		}
	}

	allowPosting := input.AllowPosting
	if allowPosting == nil {
		allowPosting = utils.NewTrue()
	}
	account := Account{
		CompanyId:      companyId,
		Code:           input.Code,
		Name:           strings.TrimSpace(input.Name),
		AccountTypeId:  accountType.ID,
		Category:       accountType.Category,
		NormalSide:     accountType.NormalSide,
		ParentId:       normalizeParentId(input.ParentId),
		OpeningBalance: input.OpeningBalance,
		CurrentBalance: input.OpeningBalance,
		IsActive:       utils.NewTrue(),
		AllowPosting:   allowPosting,
		SystemCode:     input.SystemCode,
		Description:    input.Description,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	account.AccountType = accountType
	return &account, nil
}

func normalizeParentId(id *int) *int {
	if id == nil || *id <= 0 {
		return nil
	}
	return id
}

func UpdateAccount(ctx context.Context, id int, input *NewAccount) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	accountType, err := input.validate(ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[Account](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	if input.Code == "" {
		input.Code = account.Code
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&Account{}).Clauses(lockForUpdate()).
		Where("company_id = ? AND id = ?", companyId, id).First(account).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	frozenChanged := !input.OpeningBalance.Equal(account.OpeningBalance) || accountType.ID != account.AccountTypeId
	if frozenChanged {
		posted, err := countPostedLines(ctx, tx, companyId, id)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if posted > 0 {
			tx.Rollback()
			return nil, ErrAccountFrozen
		}
	}

	updates := map[string]interface{}{
		"Code":           input.Code,
		"Name":           strings.TrimSpace(input.Name),
		"AccountTypeId":  accountType.ID,
		"Category":       accountType.Category,
		"NormalSide":     accountType.NormalSide,
		"ParentId":       normalizeParentId(input.ParentId),
		"OpeningBalance": input.OpeningBalance,
		"Description":    input.Description,
	}
	if input.AllowPosting != nil {
		updates["AllowPosting"] = *input.AllowPosting
	}
	// with no posted lines the running balance is just the opening balance
	if frozenChanged {
		updates["CurrentBalance"] = input.OpeningBalance
	}
	if err := tx.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	account.AccountType = accountType
	return account, nil
}

// MarkAccountActive toggles the account and all of its sub-accounts.
func MarkAccountActive(ctx context.Context, id int, isActive bool) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	account, err := utils.FetchModel[Account](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	ids, err := accountDescendantIds(ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	ids = append(ids, id)

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Account{}).
		Where("company_id = ? AND id IN ?", companyId, ids).
		UpdateColumn("is_active", isActive).Error; err != nil {
		return nil, err
	}
	account.IsActive = &isActive
	return account, nil
}

// accountDescendantIds walks the parent tree breadth first.
func accountDescendantIds(ctx context.Context, companyId string, id int) ([]int, error) {
	db := config.GetDB()
	var result []int
	frontier := []int{id}
	seen := map[int]bool{id: true}
	for len(frontier) > 0 {
		var children []int
		if err := db.WithContext(ctx).Model(&Account{}).
			Where("company_id = ? AND parent_id IN ?", companyId, frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			if seen[c] {
				continue
			}
			seen[c] = true
			result = append(result, c)
			frontier = append(frontier, c)
		}
	}
	return result, nil
}

func DeleteAccount(ctx context.Context, id int) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	account, err := utils.FetchModel[Account](ctx, companyId, id)
	if err != nil {
		return nil, err
	}

	children, err := utils.ResourceCountWhere[Account](ctx, companyId, "parent_id = ?", id)
	if err != nil {
		return nil, err
	}
	if children > 0 {
		return nil, ErrAccountHasChildren
	}
	lines, err := utils.ResourceCountWhere[JournalLineItem](ctx, companyId, "account_id = ?", id)
	if err != nil {
		return nil, err
	}
	if lines > 0 {
		return nil, ErrAccountInUse
	}
	banks, err := utils.ResourceCountWhere[BankAccount](ctx, companyId, "account_id = ?", id)
	if err != nil {
		return nil, err
	}
	if banks > 0 {
		return nil, ErrAccountLinkedToBank
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).Delete(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchModel[Account](ctx, companyId, id, "AccountType")
}

// ListAccounts returns active accounts ordered by code unless IncludeInactive is set.
func ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("AccountType").Where("company_id = ?", companyId)
	if filter.Name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Code != "" {
		dbCtx = dbCtx.Where("code LIKE ?", filter.Code+"%")
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", strings.ToUpper(string(filter.Category)))
	}
	if !filter.IncludeInactive {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var results []*Account
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetAccountsByIds is the batch fetch behind the account dataloader.
func GetAccountsByIds(ctx context.Context, companyId string, ids []int) ([]*Account, error) {
	var results []*Account
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("company_id = ? AND id IN ?", companyId, ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetSystemAccount resolves the account automatic postings use for code.
func GetSystemAccount(ctx context.Context, tx *gorm.DB, companyId string, code SystemCode) (*Account, error) {
	var account Account
	err := tx.WithContext(ctx).Where("company_id = ? AND system_code = ?", companyId, code).
		Order("id").First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSystemAccountMissing, code)
		}
		return nil, err
	}
	return &account, nil
}

type postedSums struct {
	AccountId int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func postedLineSums(ctx context.Context, tx *gorm.DB, companyId string, accountIds []int, asOf *time.Time) (map[int]postedSums, error) {
	var rows []postedSums
	dbCtx := tx.WithContext(ctx).Table("journal_line_items AS li").
		Select("li.account_id AS account_id, COALESCE(SUM(li.debit_amount),0) AS debit, COALESCE(SUM(li.credit_amount),0) AS credit").
		Joins("JOIN journal_entries je ON je.id = li.journal_entry_id").
		Where("li.company_id = ? AND je.is_posted = ?", companyId, true)
	if len(accountIds) > 0 {
		dbCtx = dbCtx.Where("li.account_id IN ?", accountIds)
	}
	if asOf != nil {
		dbCtx = dbCtx.Where("je.entry_date <= ?", *asOf)
	}
	if err := dbCtx.Group("li.account_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]postedSums, len(rows))
	for _, r := range rows {
		out[r.AccountId] = r
	}
	return out, nil
}

func countPostedLines(ctx context.Context, tx *gorm.DB, companyId string, accountId int) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Table("journal_line_items AS li").
		Joins("JOIN journal_entries je ON je.id = li.journal_entry_id").
		Where("li.company_id = ? AND li.account_id = ? AND je.is_posted = ?", companyId, accountId, true).
		Count(&count).Error
	return count, err
}

func deriveBalance(account *Account, sums postedSums) AccountBalance {
	debit, credit := sums.Debit, sums.Credit
	return AccountBalance{
		AccountId:      account.ID,
		Code:           account.Code,
		Name:           account.Name,
		Category:       account.Category,
		NormalSide:     account.NormalSide,
		OpeningBalance: account.OpeningBalance,
		PostedDebit:    debit,
		PostedCredit:   credit,
		Balance:        account.OpeningBalance.Add(ledger.SignedAmount(account.Side(), debit, credit)),
		CurrentBalance: account.CurrentBalance,
	}
}

// GetAccountBalance derives the balance as opening balance + signed posted lines.
func GetAccountBalance(ctx context.Context, id int) (*AccountBalance, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	account, err := utils.FetchModel[Account](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	sums, err := postedLineSums(ctx, config.GetDB(), companyId, []int{id}, nil)
	if err != nil {
		return nil, err
	}
	balance := deriveBalance(account, sums[id])
	return &balance, nil
}

// GetAccountBalances derives every account's balance from posted lines dated on or before asOf
// (all posted lines when asOf is nil), ordered by code.
func GetAccountBalances(ctx context.Context, companyId string, asOf *time.Time) ([]*AccountBalance, error) {
	db := config.GetDB()
	var accounts []*Account
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).Order("code").Find(&accounts).Error; err != nil {
		return nil, err
	}
	sums, err := postedLineSums(ctx, db, companyId, nil, asOf)
	if err != nil {
		return nil, err
	}
	balances := make([]*AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		b := deriveBalance(account, sums[account.ID])
		balances = append(balances, &b)
	}
	return balances, nil
}

// RecalculateAccountBalances rewrites every current balance from posted lines and reports the drift it fixed.
func RecalculateAccountBalances(ctx context.Context) ([]*AccountDrift, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}

	db := config.GetDB()
	tx := db.Begin()
	var accounts []*Account
	if err := tx.WithContext(ctx).Clauses(lockForUpdate()).Where("company_id = ?", companyId).
		Order("code").Find(&accounts).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	sums, err := postedLineSums(ctx, tx, companyId, nil, nil)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	drifts := make([]*AccountDrift, 0)
	for _, account := range accounts {
		derived := deriveBalance(account, sums[account.ID]).Balance
		if derived.Equal(account.CurrentBalance) {
			continue
		}
		drifts = append(drifts, &AccountDrift{
			AccountId: account.ID,
			Code:      account.Code,
			Stored:    account.CurrentBalance,
			Derived:   derived,
		})
		if err := tx.WithContext(ctx).Model(&Account{}).Where("company_id = ? AND id = ?", companyId, account.ID).
			UpdateColumn("current_balance", derived).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if len(drifts) > 0 {
		config.GetLogger().WithField("company_id", companyId).WithField("accounts", len(drifts)).
			Warn("account balances drifted from posted lines; corrected")
	}
	return drifts, nil
}
