package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
)

func listCustomers(c *gin.Context) {
	var filter models.PartyFilter
	if !bindQuery(c, &filter) {
		return
	}
	customers, err := models.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, customers)
}

func getCustomer(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	customer, err := models.GetCustomer(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, customer)
}

func createCustomer(c *gin.Context) {
	var input models.NewParty
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, customer, "customer created")
}

func updateCustomer(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewParty
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, customer, "customer updated")
}

func toggleCustomerActive(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req activeRequest
	if !bindActive(c, &req) {
		return
	}
	customer, err := models.ToggleActiveCustomer(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, customer)
}

func deleteCustomer(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	customer, err := models.DeleteCustomer(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, customer, "customer deleted")
}

func listVendors(c *gin.Context) {
	var filter models.PartyFilter
	if !bindQuery(c, &filter) {
		return
	}
	vendors, err := models.ListVendors(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vendors)
}

func getVendor(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	vendor, err := models.GetVendor(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vendor)
}

func createVendor(c *gin.Context) {
	var input models.NewParty
	if !bindJSON(c, &input) {
		return
	}
	vendor, err := models.CreateVendor(c.Request.Context(), &input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, vendor, "vendor created")
}

func updateVendor(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var input models.NewParty
	if !bindJSON(c, &input) {
		return
	}
	vendor, err := models.UpdateVendor(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, vendor, "vendor updated")
}

func toggleVendorActive(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	var req activeRequest
	if !bindActive(c, &req) {
		return
	}
	vendor, err := models.ToggleActiveVendor(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vendor)
}

func deleteVendor(c *gin.Context) {
	id, valid := pathId(c, "id")
	if !valid {
		return
	}
	vendor, err := models.DeleteVendor(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	okMessage(c, vendor, "vendor deleted")
}
