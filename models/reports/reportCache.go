package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/sirupsen/logrus"
)

// cache keys are grouped per company so one event can drop all of them:
//   Report:$companyId:Dashboard
//   Report:$companyId:TrialBalance:$asOf

func reportCacheEnabled() bool {
	return config.BoolFromEnv("ENABLE_REPORT_CACHE")
}

func reportCacheTTL() time.Duration {
	return time.Duration(config.IntFromEnv("REPORT_CACHE_TTL_SECONDS", 120)) * time.Second
}

func reportSlowMs() int64 {
	return int64(config.IntFromEnv("REPORT_SLOW_MS", 500))
}

func reportCacheKey(companyId string, parts ...any) string {
	key := "Report:" + companyId
	for _, p := range parts {
		key += ":" + fmt.Sprint(p)
	}
	return key
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	companyId, _ := utils.GetCompanyIdFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"company_id":     companyId,
		"correlation_id": cid,
		"extra":          extra,
	}).Warn("slow report")
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	if !reportCacheEnabled() {
		return false, nil
	}
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any, ttl time.Duration) error {
	if !reportCacheEnabled() {
		return nil
	}
	return config.SetRedisObject(key, obj, ttl)
}

// InvalidateCompanyReports drops every cached report of the company.
func InvalidateCompanyReports(companyId string) error {
	return config.RemoveRedisKeysByPattern(reportCacheKey(companyId) + ":*")
}
