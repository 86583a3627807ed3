package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/middlewares"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
)

type reverseRequest struct {
	Reason string     `json:"reason"`
	Date   *time.Time `json:"date"`
}

type duplicateRequest struct {
	Date *time.Time `json:"date"`
}

func listJournalEntries(c *gin.Context) {
	var filter models.JournalEntryFilter
	if !bindQuery(c, &filter) {
		return
	}
	var err error
	if filter.MinAmount, err = utils.ParseAmountPtr(c.Query("min_amount")); err != nil {
		fail(c, err)
		return
	}
	if filter.MaxAmount, err = utils.ParseAmountPtr(c.Query("max_amount")); err != nil {
		fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	var after *string
	if v := c.Query("after"); v != "" {
		after = &v
	}

	conn, err := models.ListJournalEntries(c.Request.Context(), filter, limit, after)
	if err != nil {
		fail(c, err)
		return
	}
	entries := make([]*models.JournalEntry, 0, len(conn.Edges))
	for _, e := range conn.Edges {
		entries = append(entries, e.Node)
	}
	if err := middlewares.AttachAccountSummaries(c.Request.Context(), entries...); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: conn.Edges, PageInfo: conn.PageInfo})
}

func getJournalEntry(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	entry, err := models.GetJournalEntry(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if err := middlewares.AttachAccountSummaries(c.Request.Context(), entry); err != nil {
		fail(c, err)
		return
	}
	ok(c, entry)
}

// createJournalEntry saves a draft; ?post=true also posts it, which needs journal:post.
func createJournalEntry(c *gin.Context) {
	postNow := c.Query("post") == "true"
	if postNow && !hasPermission(c, models.PermissionJournalPost) {
		fail(c, utils.ErrorForbidden)
		return
	}
	var input models.NewJournalEntry
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.CreateJournalEntry(c.Request.Context(), &input, postNow)
	if err != nil {
		fail(c, err)
		return
	}
	message := "journal entry saved as draft"
	if postNow {
		message = "journal entry posted"
	}
	created(c, entry, message)
}

func updateJournalEntry(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewJournalEntry
	if !bindJSON(c, &input) {
		return
	}
	entry, err := models.UpdateJournalEntry(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, entry, "journal entry updated")
}

func deleteJournalEntry(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	entry, err := models.DeleteJournalEntry(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, entry, "journal entry deleted")
}

func postJournalEntry(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	entry, err := models.PostJournalEntry(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, entry, "journal entry posted")
}

func reverseJournalEntry(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req reverseRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := models.ReverseJournalEntry(c.Request.Context(), id, req.Reason, req.Date)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, entry, "journal entry reversed")
}

func duplicateJournalEntry(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req duplicateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	entry, err := models.DuplicateJournalEntry(c.Request.Context(), id, req.Date)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, entry, "journal entry duplicated")
}

func hasPermission(c *gin.Context, p models.Permission) bool {
	role, _ := utils.GetUserRoleFromContext(c.Request.Context())
	return models.HasPermission(models.UserRole(role), p)
}
