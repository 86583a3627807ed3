package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
)

type Customer struct {
	ID             int       `gorm:"primary_key" json:"id"`
	CompanyId      string    `gorm:"size:64;not null;uniqueIndex:uniq_customer_number" json:"company_id"`
	CustomerNumber string    `gorm:"size:20;not null;uniqueIndex:uniq_customer_number" json:"customer_number"`
	SequenceNo     int64     `gorm:"not null;default:0" json:"-"`
	Party          `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Customer) GetCompanyId() string {
	return c.CompanyId
}

func CreateCustomer(ctx context.Context, input *NewParty) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	number, seq, err := nextPartyNumber[Customer](ctx, companyId, "customer_number", "CUST", input.Number, 0)
	if err != nil {
		return nil, err
	}
	customer := Customer{
		CompanyId:      companyId,
		CustomerNumber: number,
		SequenceNo:     seq,
		Party:          input.toParty(nil),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewParty) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	updates := input.toParty(customer.IsActive).updates()
	if input.Number != "" && input.Number != customer.CustomerNumber {
		if err := utils.ValidateUnique[Customer](ctx, companyId, "customer_number", input.Number, id); err != nil {
			return nil, err
		}
		updates["CustomerNumber"] = input.Number
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(customer).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Customer](ctx, companyId, id)
}

func ToggleActiveCustomer(ctx context.Context, id int, isActive bool) (*Customer, error) {
	return toggleParty[Customer](ctx, id, isActive)
}

// DeleteCustomer is blocked once the customer has invoices.
func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	customer, err := utils.FetchModel[Customer](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Invoice](ctx, companyId, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPartyInUse
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchModel[Customer](ctx, companyId, id)
}

func ListCustomers(ctx context.Context, filter PartyFilter) ([]*Customer, error) {
	return listParties[Customer](ctx, "customer_number", filter)
}
