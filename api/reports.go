package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models/reports"
)

func getDashboard(c *gin.Context) {
	stats, err := reports.GetDashboardStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

func getTrialBalance(c *gin.Context) {
	asOf, valid := queryDate(c, "as_of", time.Now().UTC())
	if !valid {
		return
	}
	report, err := reports.GetTrialBalanceReport(c.Request.Context(), asOf)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

// exportTrialBalance streams the workbook, or redirects to the uploaded copy
// when ?link=true and object storage is configured.
func exportTrialBalance(c *gin.Context) {
	asOf, valid := queryDate(c, "as_of", time.Now().UTC())
	if !valid {
		return
	}
	data, stored, err := reports.ExportTrialBalance(c.Request.Context(), asOf)
	if err != nil {
		fail(c, err)
		return
	}
	if stored != nil && c.Query("link") == "true" {
		ok(c, stored)
		return
	}
	attachment(c, fmt.Sprintf("trial-balance-%s.xlsx", asOf.Format("2006-01-02")), data)
}

func getGeneralLedger(c *gin.Context) {
	accountId, valid := pathId(c, "accountId")
	if !valid {
		return
	}
	now := time.Now().UTC()
	from, valid := queryDate(c, "from", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	if !valid {
		return
	}
	to, valid := queryDate(c, "to", now)
	if !valid {
		return
	}
	report, err := reports.GetGeneralLedgerReport(c.Request.Context(), accountId, from, to)
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("format") != "xlsx" {
		ok(c, report)
		return
	}
	data, err := reports.GeneralLedgerWorkbook(report)
	if err != nil {
		fail(c, err)
		return
	}
	attachment(c, fmt.Sprintf("general-ledger-%s.xlsx", report.Code), data)
}

func attachment(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, reports.XlsxContentType, data)
}
