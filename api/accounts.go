package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
)

func listAccountTypes(c *gin.Context) {
	types, err := models.ListAccountTypes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types)
}

func listAccounts(c *gin.Context) {
	var filter models.AccountFilter
	if !bindQuery(c, &filter) {
		return
	}
	accounts, err := models.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, accounts)
}

func getAccount(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	account, err := models.GetAccount(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, account)
}

func getAccountBalance(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	balance, err := models.GetAccountBalance(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, balance)
}

func createAccount(c *gin.Context) {
	var input models.NewAccount
	if !bindJSON(c, &input) {
		return
	}
	account, err := models.CreateAccount(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, account, "account created")
}

func updateAccount(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewAccount
	if !bindJSON(c, &input) {
		return
	}
	account, err := models.UpdateAccount(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, account, "account updated")
}

func markAccountActive(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req activeRequest
	if !bindActive(c, &req) {
		return
	}
	account, err := models.MarkAccountActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, account)
}

func deleteAccount(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	account, err := models.DeleteAccount(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, account, "account deleted")
}

func recalculateBalances(c *gin.Context) {
	drifts, err := models.RecalculateAccountBalances(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, drifts, "balances recalculated")
}
