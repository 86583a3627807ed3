package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

type FinancialPeriod struct {
	ID        int          `gorm:"primary_key" json:"id"`
	CompanyId string       `gorm:"size:64;not null;index:idx_period_range,priority:1" json:"company_id"`
	Name      string       `gorm:"size:100;not null" json:"name"`
	StartDate time.Time    `gorm:"not null;index:idx_period_range,priority:2" json:"start_date"`
	EndDate   time.Time    `gorm:"not null;index:idx_period_range,priority:3" json:"end_date"`
	Status    PeriodStatus `gorm:"size:10;not null;default:'OPEN'" json:"status"`
	ClosedAt  *time.Time   `json:"closed_at"`
	ClosedBy  *int         `json:"closed_by"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFinancialPeriod struct {
	Name      string    `json:"name" validate:"required,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

func (input *NewFinancialPeriod) validate(ctx context.Context, companyId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	start, end := utils.StartOfDay(input.StartDate), utils.EndOfDay(input.EndDate)
	if !start.Before(end) {
		return utils.InvalidInput("start date must be before end date")
	}
	count, err := utils.ResourceCountWhere[FinancialPeriod](ctx, companyId,
		"start_date <= ? AND end_date >= ? AND NOT id = ?", end, start, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPeriodOverlap
	}
	return nil
}

// checkPeriodOpen rejects dates inside a CLOSED period. Dates outside every period are allowed.
func checkPeriodOpen(ctx context.Context, tx *gorm.DB, companyId string, date time.Time) error {
	var closed []FinancialPeriod
	if err := tx.WithContext(ctx).Where("company_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
		companyId, PeriodStatusClosed, date, date).Limit(1).Find(&closed).Error; err != nil {
		return err
	}
	if len(closed) > 0 {
		return fmt.Errorf("%w: %s", ErrPeriodClosed, closed[0].Name)
	}
	return nil
}

func CreateFinancialPeriod(ctx context.Context, input *NewFinancialPeriod) (*FinancialPeriod, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}
	period := FinancialPeriod{
		CompanyId: companyId,
		Name:      strings.TrimSpace(input.Name),
		StartDate: utils.StartOfDay(input.StartDate),
		EndDate:   utils.EndOfDay(input.EndDate),
		Status:    PeriodStatusOpen,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func UpdateFinancialPeriod(ctx context.Context, id int, input *NewFinancialPeriod) (*FinancialPeriod, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}
	period, err := utils.FetchModel[FinancialPeriod](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	if period.Status == PeriodStatusClosed {
		return nil, ErrPeriodClosed
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(period).Updates(map[string]interface{}{
		"Name":      strings.TrimSpace(input.Name),
		"StartDate": utils.StartOfDay(input.StartDate),
		"EndDate":   utils.EndOfDay(input.EndDate),
	}).Error; err != nil {
		return nil, err
	}
	return period, nil
}

// CloseFinancialPeriod locks a period; drafts dated inside it can no longer be posted.
// It waits for in-flight postings through the company posting lock.
func CloseFinancialPeriod(ctx context.Context, id int) (*FinancialPeriod, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	var period FinancialPeriod
	err := WithPostingLock(ctx, companyId, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Clauses(lockForUpdate()).
			Where("company_id = ? AND id = ?", companyId, id).First(&period).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if period.Status == PeriodStatusClosed {
			return fmt.Errorf("%w: financial period is already closed", ErrInvalidStatus)
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{"status": PeriodStatusClosed, "closed_at": now}
		if userId > 0 {
			updates["closed_by"] = userId
			period.ClosedBy = &userId
		}
		period.Status = PeriodStatusClosed
		period.ClosedAt = &now
		return tx.WithContext(ctx).Model(&FinancialPeriod{}).Where("company_id = ? AND id = ?", companyId, id).
			Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func ReopenFinancialPeriod(ctx context.Context, id int) (*FinancialPeriod, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	period, err := utils.FetchModel[FinancialPeriod](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(period).Updates(map[string]interface{}{
		"status":    PeriodStatusOpen,
		"closed_at": nil,
		"closed_by": nil,
	}).Error; err != nil {
		return nil, err
	}
	period.Status = PeriodStatusOpen
	period.ClosedAt = nil
	period.ClosedBy = nil
	return period, nil
}

func ListFinancialPeriods(ctx context.Context) ([]*FinancialPeriod, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchAllModels[FinancialPeriod](ctx, companyId, "start_date DESC")
}

func GetFinancialPeriod(ctx context.Context, id int) (*FinancialPeriod, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchModel[FinancialPeriod](ctx, companyId, id)
}
