package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

func listInvoices(c *gin.Context) {
	var filter models.DocumentFilter
	if !bindQuery(c, &filter) {
		return
	}
	invoices, pagination, err := models.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	page(c, invoices, pagination)
}

func getInvoice(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, invoice)
}

func createInvoice(c *gin.Context) {
	var input models.NewInvoice
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.CreateInvoice(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, invoice, "invoice created")
}

func updateInvoice(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewInvoice
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, invoice, "invoice updated")
}

func deleteInvoice(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	invoice, err := models.DeleteInvoice(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, invoice, "invoice deleted")
}

func sendInvoice(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	invoice, err := models.SendInvoice(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, invoice, "invoice sent")
}

func listInvoicePayments(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	payments, err := models.ListPayments(c.Request.Context(), models.PaymentDocumentInvoice, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, payments)
}

func recordInvoicePayment(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.RecordInvoicePayment(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, payment, "payment recorded")
}

func cancelInvoice(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	invoice, err := models.CancelInvoice(c.Request.Context(), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, invoice, "invoice cancelled")
}

