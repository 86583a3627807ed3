package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

// Tenant is the organisation that owns companies and users.
type Tenant struct {
	ID        string    `gorm:"primary_key;size:64" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Slug      string    `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Company is one set of books. Its id is the company_id every ledger row is scoped by.
type Company struct {
	ID                   string    `gorm:"primary_key;size:64" json:"id"`
	TenantId             string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Name                 string    `gorm:"size:100;not null" json:"name"`
	LegalName            string    `gorm:"size:255" json:"legal_name"`
	BaseCurrency         string    `gorm:"size:3;not null;default:'USD'" json:"base_currency"`
	FiscalYearStartMonth int       `gorm:"not null;default:1" json:"fiscal_year_start_month"`
	Email                string    `gorm:"size:100" json:"email"`
	Phone                string    `gorm:"size:20" json:"phone"`
	Address              string    `gorm:"type:text" json:"address"`
	Country              string    `gorm:"size:2;not null;default:'US'" json:"country"`
	TaxId                string    `gorm:"size:50" json:"tax_id"`
	IsActive             *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name                 string `json:"name" validate:"required,max=100"`
	LegalName            string `json:"legal_name" validate:"max=255"`
	BaseCurrency         string `json:"base_currency" validate:"omitempty,len=3"`
	FiscalYearStartMonth int    `json:"fiscal_year_start_month" validate:"omitempty,min=1,max=12"`
	Email                string `json:"email" validate:"omitempty,email"`
	Phone                string `json:"phone"`
	Address              string `json:"address"`
	Country              string `json:"country" validate:"omitempty,len=2"`
	TaxId                string `json:"tax_id"`
}

func (company *Company) StoreRedis() error {
	return config.SetRedisObject("Company:"+company.ID, company, utils.GetCacheLifespan())
}

func (company *Company) RemoveRedis() error {
	return config.RemoveRedisKey("Company:" + company.ID)
}

// CountryCode is the region used for phone and tax id validation.
func (company *Company) CountryCode() string {
	if company == nil || company.Country == "" {
		return config.DefaultCountry()
	}
	return strings.ToUpper(company.Country)
}

func (input *NewCompany) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	country := strings.ToUpper(input.Country)
	if country == "" {
		country = config.DefaultCountry()
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, country); err != nil {
			return err
		}
	}
	if input.TaxId != "" && !utils.ValidateTaxId(input.TaxId, country) {
		return utils.InvalidInput("invalid tax id")
	}
	return nil
}

func (input *NewCompany) apply(company *Company) {
	company.Name = strings.TrimSpace(input.Name)
	company.LegalName = input.LegalName
	company.Email = strings.ToLower(input.Email)
	company.Phone = input.Phone
	company.Address = input.Address
	company.TaxId = input.TaxId
	if input.BaseCurrency != "" {
		company.BaseCurrency = strings.ToUpper(input.BaseCurrency)
	}
	if input.FiscalYearStartMonth > 0 {
		company.FiscalYearStartMonth = input.FiscalYearStartMonth
	}
	if input.Country != "" {
		company.Country = strings.ToUpper(input.Country)
	}
}

// CreateCompany adds a company to the caller's tenant.
func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.InvalidInput("tenant id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	company := Company{
		ID:                   uuid.NewString(),
		TenantId:             tenantId,
		BaseCurrency:         "USD",
		FiscalYearStartMonth: 1,
		Country:              config.DefaultCountry(),
		IsActive:             utils.NewTrue(),
	}
	input.apply(&company)

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func UpdateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	company, err := GetCompany(ctx)
	if err != nil {
		return nil, err
	}
	input.apply(company)

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Company{}).Where("id = ?", company.ID).
		Select("Name", "LegalName", "BaseCurrency", "FiscalYearStartMonth", "Email", "Phone", "Address", "Country", "TaxId").
		Updates(company).Error; err != nil {
		return nil, err
	}
	if err := company.RemoveRedis(); err != nil {
		return nil, err
	}
	return company, nil
}

// GetCompany returns the company of the request context.
func GetCompany(ctx context.Context) (*Company, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	return GetCompanyById(ctx, companyId)
}

func GetCompanyById(ctx context.Context, id string) (*Company, error) {
	var result Company

	exists, err := config.GetRedisObject("Company:"+id, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, err
		}
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// ListTenantCompanies lists the companies the caller's tenant owns.
func ListTenantCompanies(ctx context.Context) ([]*Company, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.InvalidInput("tenant id is required")
	}
	var results []*Company
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("tenant_id = ?", tenantId).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListActiveCompanyIds is used by background sweeps that iterate every set of books.
func ListActiveCompanyIds(ctx context.Context) ([]string, error) {
	var ids []string
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Company{}).Where("is_active = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
