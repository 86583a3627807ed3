package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
)

func listBankAccounts(c *gin.Context) {
	accounts, err := models.ListBankAccounts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, accounts)
}

func getBankAccount(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	account, err := models.GetBankAccount(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, account)
}

func createBankAccount(c *gin.Context) {
	var input models.NewBankAccount
	if !bindJSON(c, &input) {
		return
	}
	account, err := models.CreateBankAccount(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, account, "bank account created")
}

func updateBankAccount(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewBankAccount
	if !bindJSON(c, &input) {
		return
	}
	account, err := models.UpdateBankAccount(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, account, "bank account updated")
}

func deleteBankAccount(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	account, err := models.DeleteBankAccount(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, account, "bank account deleted")
}

func listFinancialPeriods(c *gin.Context) {
	periods, err := models.ListFinancialPeriods(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, periods)
}

func getFinancialPeriod(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	period, err := models.GetFinancialPeriod(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, period)
}

func createFinancialPeriod(c *gin.Context) {
	var input models.NewFinancialPeriod
	if !bindJSON(c, &input) {
		return
	}
	period, err := models.CreateFinancialPeriod(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, period, "financial period created")
}

func updateFinancialPeriod(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewFinancialPeriod
	if !bindJSON(c, &input) {
		return
	}
	period, err := models.UpdateFinancialPeriod(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, period, "financial period updated")
}

func closeFinancialPeriod(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	period, err := models.CloseFinancialPeriod(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, period, "financial period closed")
}

func reopenFinancialPeriod(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	period, err := models.ReopenFinancialPeriod(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, period, "financial period reopened")
}
