package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

type accountReader struct {
	db *gorm.DB
}

func (r *accountReader) getAccounts(ctx context.Context, ids []int) []*dataloader.Result[*models.Account] {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return handleError[*models.Account](len(ids), utils.ErrorCompanyRequired)
	}
	var results []models.Account
	err := r.db.WithContext(ctx).Where("company_id = ? AND id IN ?", companyId, ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Account](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetAccount(ctx context.Context, id int) (*models.Account, error) {
	return For(ctx).AccountLoader.Load(ctx, id)()
}

func GetAccounts(ctx context.Context, ids []int) ([]*models.Account, []error) {
	return For(ctx).AccountLoader.LoadMany(ctx, ids)()
}

// AttachAccountSummaries fills each line's account through the batched loader.
func AttachAccountSummaries(ctx context.Context, entries ...*models.JournalEntry) error {
	var ids []int
	seen := map[int]bool{}
	for _, e := range entries {
		for _, l := range e.Lines {
			if !seen[l.AccountId] {
				seen[l.AccountId] = true
				ids = append(ids, l.AccountId)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	accounts, errs := GetAccounts(ctx, ids)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	byId := make(map[int]*models.Account, len(accounts))
	for _, a := range accounts {
		byId[a.ID] = a
	}
	for _, e := range entries {
		for i := range e.Lines {
			if a, ok := byId[e.Lines[i].AccountId]; ok {
				e.Lines[i].Account = a.Summary()
			}
		}
	}
	return nil
}
