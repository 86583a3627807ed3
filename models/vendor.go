package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
)

type Vendor struct {
	ID           int       `gorm:"primary_key" json:"id"`
	CompanyId    string    `gorm:"size:64;not null;uniqueIndex:uniq_vendor_number" json:"company_id"`
	VendorNumber string    `gorm:"size:20;not null;uniqueIndex:uniq_vendor_number" json:"vendor_number"`
	SequenceNo   int64     `gorm:"not null;default:0" json:"-"`
	Party        `gorm:"embedded"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Vendor) GetCompanyId() string {
	return v.CompanyId
}

func CreateVendor(ctx context.Context, input *NewParty) (*Vendor, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	number, seq, err := nextPartyNumber[Vendor](ctx, companyId, "vendor_number", "VEND", input.Number, 0)
	if err != nil {
		return nil, err
	}
	vendor := Vendor{
		CompanyId:    companyId,
		VendorNumber: number,
		SequenceNo:   seq,
		Party:        input.toParty(nil),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, id int, input *NewParty) (*Vendor, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	vendor, err := utils.FetchModel[Vendor](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	updates := input.toParty(vendor.IsActive).updates()
	if input.Number != "" && input.Number != vendor.VendorNumber {
		if err := utils.ValidateUnique[Vendor](ctx, companyId, "vendor_number", input.Number, id); err != nil {
			return nil, err
		}
		updates["VendorNumber"] = input.Number
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(vendor).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Vendor](ctx, companyId, id)
}

func ToggleActiveVendor(ctx context.Context, id int, isActive bool) (*Vendor, error) {
	return toggleParty[Vendor](ctx, id, isActive)
}

// DeleteVendor is blocked once the vendor has bills.
func DeleteVendor(ctx context.Context, id int) (*Vendor, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	vendor, err := utils.FetchModel[Vendor](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Bill](ctx, companyId, "vendor_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPartyInUse
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(vendor).Error; err != nil {
		return nil, err
	}
	return vendor, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchModel[Vendor](ctx, companyId, id)
}

func ListVendors(ctx context.Context, filter PartyFilter) ([]*Vendor, error) {
	return listParties[Vendor](ctx, "vendor_number", filter)
}
