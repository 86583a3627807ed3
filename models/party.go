package models

import (
	"context"
	"errors"
	"strings"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

// Party holds the contact fields customers and vendors share.
type Party struct {
	Name          string          `gorm:"size:200;not null;index" json:"name"`
	ContactPerson string          `gorm:"size:100" json:"contact_person"`
	Email         string          `gorm:"size:100" json:"email"`
	Phone         string          `gorm:"size:20" json:"phone"`
	Address       string          `gorm:"type:text" json:"address"`
	City          string          `gorm:"size:100" json:"city"`
	State         string          `gorm:"size:100" json:"state"`
	ZipCode       string          `gorm:"size:20" json:"zip_code"`
	Country       string          `gorm:"size:2" json:"country"`
	PaymentTerms  PaymentTerms    `gorm:"size:20;not null;default:'NET_30'" json:"payment_terms"`
	CreditLimit   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"credit_limit"`
	TaxId         string          `gorm:"size:50" json:"tax_id"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
}

type NewParty struct {
	Number        string          `json:"number" validate:"max=20"`
	Name          string          `json:"name" validate:"required,max=200"`
	ContactPerson string          `json:"contact_person" validate:"max=100"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	City          string          `json:"city"`
	State         string          `json:"state"`
	ZipCode       string          `json:"zip_code"`
	Country       string          `json:"country" validate:"omitempty,len=2"`
	PaymentTerms  PaymentTerms    `json:"payment_terms"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	TaxId         string          `json:"tax_id"`
}

type PartyFilter struct {
	Search   string `form:"search"`
	IsActive *bool  `form:"is_active"`
}

// validate checks contact data against the party's country (or the company's when blank).
func (input *NewParty) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.CreditLimit.IsNegative() {
		return utils.InvalidInput("credit limit cannot be negative")
	}
	country := strings.ToUpper(input.Country)
	if country == "" {
		company, err := GetCompany(ctx)
		if err != nil {
			return err
		}
		country = company.CountryCode()
	}
	if input.Phone != "" {
		phone, err := utils.FormatPhoneNumber(input.Phone, country)
		if err != nil {
			return utils.InvalidInput("invalid phone number")
		}
		input.Phone = phone
	}
	if input.TaxId != "" && !utils.ValidateTaxId(input.TaxId, country) {
		if country == "US" {
			return utils.InvalidInput("invalid tax id, expected EIN format XX-XXXXXXX")
		}
		return utils.InvalidInput("invalid tax id")
	}
	return nil
}

func (input *NewParty) toParty(isActive *bool) Party {
	terms := input.PaymentTerms
	if terms == "" {
		terms = PaymentTermsNet30
	}
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	return Party{
		Name:          strings.TrimSpace(input.Name),
		ContactPerson: strings.TrimSpace(input.ContactPerson),
		Email:         strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:         input.Phone,
		Address:       input.Address,
		City:          input.City,
		State:         input.State,
		ZipCode:       input.ZipCode,
		Country:       strings.ToUpper(input.Country),
		PaymentTerms:  terms,
		CreditLimit:   input.CreditLimit,
		TaxId:         input.TaxId,
		IsActive:      isActive,
	}
}

func (p Party) updates() map[string]interface{} {
	return map[string]interface{}{
		"Name":          p.Name,
		"ContactPerson": p.ContactPerson,
		"Email":         p.Email,
		"Phone":         p.Phone,
		"Address":       p.Address,
		"City":          p.City,
		"State":         p.State,
		"ZipCode":       p.ZipCode,
		"Country":       p.Country,
		"PaymentTerms":  p.PaymentTerms,
		"CreditLimit":   p.CreditLimit,
		"TaxId":         p.TaxId,
	}
}

// nextPartyNumber returns number when given (checked unique) or the next generated one.
func nextPartyNumber[T any](ctx context.Context, companyId string, column string, prefix string, number string, id int) (string, int64, error) {
	if number = strings.TrimSpace(number); number != "" {
		if err := utils.ValidateUnique[T](ctx, companyId, column, number, id); err != nil {
			return "", 0, err
		}
		return number, 0, nil
	}
	for {
		seq, err := utils.GetSequence[T](ctx, companyId)
		if err != nil {
			return "", 0, err
		}
		number = utils.GeneratePartyNumber(prefix, seq)
		err = utils.ValidateUnique[T](ctx, companyId, column, number, id)
		if err == nil {
			return number, seq, nil
		}
		var dup *utils.DuplicateError
		if !errors.As(err, &dup) {
			return "", 0, err
		}
	}
}

func listParties[T any](ctx context.Context, numberColumn string, filter PartyFilter) ([]*T, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var model T
	dbCtx := db.WithContext(ctx).Model(&model).Where("company_id = ?", companyId)
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		dbCtx = dbCtx.Where("(name LIKE ? OR "+numberColumn+" LIKE ? OR email LIKE ? OR contact_person LIKE ?)", like, like, like, like)
	}
	if filter.IsActive != nil {
		dbCtx = dbCtx.Where("is_active = ?", *filter.IsActive)
	}
	var results []*T
	if err := dbCtx.Order(numberColumn).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func toggleParty[T any](ctx context.Context, id int, isActive bool) (*T, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if _, err := utils.FetchModel[T](ctx, companyId, id); err != nil {
		return nil, err
	}
	var model T
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&model).Where("company_id = ? AND id = ?", companyId, id).
		UpdateColumn("is_active", isActive).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[T](ctx, companyId, id)
}
