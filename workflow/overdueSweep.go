package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/models/reports"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/sirupsen/logrus"
)

// SweepOverdue marks past-due invoices and bills OVERDUE in every active company.
func SweepOverdue(ctx context.Context, logger *logrus.Logger, asOf time.Time) (map[string]*models.OverdueResult, error) {
	ids, err := models.ListActiveCompanyIds(systemScope(ctx))
	if err != nil {
		return nil, err
	}
	results := make(map[string]*models.OverdueResult, len(ids))
	for _, id := range ids {
		r, err := models.MarkOverdueDocuments(utils.SystemContext(ctx, id), id, asOf)
		if err != nil {
			if logger != nil {
				logger.WithField("company_id", id).Error("overdue sweep failed: " + err.Error())
			}
			continue
		}
		if r.Invoices > 0 || r.Bills > 0 {
			_ = reports.InvalidateDashboard(id)
		}
		results[id] = r
	}
	return results, nil
}

// RunDailySweeps runs the overdue sweep once a day until ctx is done.
func RunDailySweeps(ctx context.Context, logger *logrus.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := SweepOverdue(ctx, logger, time.Now().UTC()); err != nil && logger != nil {
			logger.WithField("field", "OverdueSweep").Error(err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
