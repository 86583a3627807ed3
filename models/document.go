package models

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

// money amounts on documents are kept to cents
const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// DocumentLine is the shape shared by invoice and bill line items.
type DocumentLine struct {
	LineNo       int             `gorm:"not null" json:"line_no"`
	Description  string          `gorm:"size:255;not null" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"tax_rate"`
	LineSubtotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_subtotal"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"tax_amount"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	AccountId    int             `gorm:"not null;index" json:"account_id"`
}

type NewDocumentLine struct {
	Description string          `json:"description" validate:"required,max=255"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	AccountId   int             `json:"account_id"`
}

type DocumentTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type DocumentFilter struct {
	Status  string     `form:"status"`
	PartyId int        `form:"party_id"`
	From    *time.Time `form:"from" time_format:"2006-01-02"`
	To      *time.Time `form:"to" time_format:"2006-01-02"`
	Search  string     `form:"search"`
	PageRequest
}

// CalculateDocumentLine prices one line: subtotal = qty x price, tax = subtotal x rate%.
func CalculateDocumentLine(no int, in NewDocumentLine) DocumentLine {
	subtotal := in.Quantity.Mul(in.UnitPrice).Round(moneyScale)
	tax := subtotal.Mul(in.TaxRate).Div(hundred).Round(moneyScale)
	return DocumentLine{
		LineNo:       no,
		Description:  strings.TrimSpace(in.Description),
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		TaxRate:      in.TaxRate,
		LineSubtotal: subtotal,
		TaxAmount:    tax,
		LineTotal:    subtotal.Add(tax),
		AccountId:    in.AccountId,
	}
}

func SumDocumentLines(lines []DocumentLine) DocumentTotals {
	totals := DocumentTotals{Subtotal: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	for _, l := range lines {
		totals.Subtotal = totals.Subtotal.Add(l.LineSubtotal)
		totals.Tax = totals.Tax.Add(l.TaxAmount)
	}
	totals.Total = totals.Subtotal.Add(totals.Tax)
	return totals
}

// prepareDocumentLines validates and prices lines. A line without an account falls back to
// the system account defaultCode; every account must be postable and in one of categories.
func prepareDocumentLines(ctx context.Context, companyId string, input []NewDocumentLine, defaultCode SystemCode, categories ...AccountCategory) ([]DocumentLine, error) {
	if len(input) == 0 {
		return nil, utils.InvalidInput("at least one line item is required")
	}
	db := config.GetDB()
	var fallback *Account
	lines := make([]DocumentLine, 0, len(input))
	for i, in := range input {
		if err := utils.ValidateStruct(in); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if !in.Quantity.IsPositive() {
			return nil, utils.InvalidInput("line %d: quantity must be greater than zero", i+1)
		}
		if in.UnitPrice.IsNegative() {
			return nil, utils.InvalidInput("line %d: unit price cannot be negative", i+1)
		}
		if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred) {
			return nil, utils.InvalidInput("line %d: tax rate must be between 0 and 100", i+1)
		}
		if in.AccountId == 0 {
			if fallback == nil {
				a, err := GetSystemAccount(ctx, db, companyId, defaultCode)
				if err != nil {
					return nil, err
				}
				fallback = a
			}
			in.AccountId = fallback.ID
		}
		lines = append(lines, CalculateDocumentLine(i+1, in))
	}

	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountId)
	}
	accounts, err := loadPostableAccounts(ctx, db, companyId, ids, false)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if a := accounts[l.AccountId]; !slices.Contains(categories, a.Category) {
			return nil, utils.InvalidInput("line %d: account %s cannot be used on this document", l.LineNo, a.Code)
		}
	}
	if SumDocumentLines(lines).Total.IsZero() {
		return nil, utils.InvalidInput("document total must be greater than zero")
	}
	return lines, nil
}

// resolveCashAccount returns the ledger account behind bankAccountId, or the CASH system account.
func resolveCashAccount(ctx context.Context, companyId string, bankAccountId *int) (*Account, error) {
	db := config.GetDB()
	if bankAccountId != nil && *bankAccountId > 0 {
		bank, err := utils.FetchModel[BankAccount](ctx, companyId, *bankAccountId)
		if err != nil {
			return nil, utils.InvalidInput("bank account not found")
		}
		if bank.IsActive != nil && !*bank.IsActive {
			return nil, utils.InvalidInput("bank account is inactive")
		}
		return utils.FetchModel[Account](ctx, companyId, bank.AccountId)
	}
	return GetSystemAccount(ctx, db, companyId, SystemCodeCash)
}
