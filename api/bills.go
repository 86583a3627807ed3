package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
)

func listBills(c *gin.Context) {
	var filter models.DocumentFilter
	if !bindQuery(c, &filter) {
		return
	}
	bills, pagination, err := models.ListBills(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	page(c, bills, pagination)
}

func getBill(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	bill, err := models.GetBill(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, bill)
}

func createBill(c *gin.Context) {
	var input models.NewBill
	if !bindJSON(c, &input) {
		return
	}
	bill, err := models.CreateBill(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, bill, "bill created")
}

func updateBill(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewBill
	if !bindJSON(c, &input) {
		return
	}
	bill, err := models.UpdateBill(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, bill, "bill updated")
}

func deleteBill(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	bill, err := models.DeleteBill(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, bill, "bill deleted")
}

func approveBill(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	bill, err := models.ApproveBill(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, bill, "bill approved")
}

func listBillPayments(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	payments, err := models.ListPayments(c.Request.Context(), models.PaymentDocumentBill, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, payments)
}

func recordBillPayment(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.RecordBillPayment(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, payment, "payment recorded")
}

func cancelBill(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	bill, err := models.CancelBill(c.Request.Context(), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, bill, "bill cancelled")
}

