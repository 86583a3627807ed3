package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/middlewares"
	"github.com/mmdatafocus/ledger_backend/models"
)

// RegisterRoutes mounts the bookkeeping API under /api and the operational routes.
// Identity middlewares (session, JWT) must already be installed on r.
func RegisterRoutes(r gin.IRouter) {
	r.POST("/pubsub", pubSubPushHandler)

	can := middlewares.RequirePermission
	base := r.Group("/api")
	base.POST("/auth/login", login)

	authed := base.Group("", middlewares.RequireAuth())
	authed.POST("/auth/logout", logout)
	authed.GET("/auth/me", me)

	users := authed.Group("/users")
	users.POST("/me/password", changePassword)
	users.GET("", can(models.PermissionUsersWrite), listUsers)
	users.GET("/:id", can(models.PermissionUsersWrite), getUser)
	users.POST("", can(models.PermissionUsersWrite), createUser)
	users.PUT("/:id", can(models.PermissionUsersWrite), updateUser)
	users.PATCH("/:id/active", can(models.PermissionUsersWrite), toggleUserActive)
	users.DELETE("/:id", can(models.PermissionUsersWrite), deleteUser)

	authed.GET("/company", getCompany)
	authed.PUT("/company", can(models.PermissionCompanyWrite), updateCompany)
	authed.GET("/companies", listCompanies)
	authed.POST("/companies", can(models.PermissionCompanyWrite), createCompany)

	authed.GET("/account-types", listAccountTypes)
	accounts := authed.Group("/accounts")
	accounts.GET("", listAccounts)
	accounts.GET("/:id", getAccount)
	accounts.GET("/:id/balance", getAccountBalance)
	accounts.POST("", can(models.PermissionAccountsWrite), createAccount)
	accounts.PUT("/:id", can(models.PermissionAccountsWrite), updateAccount)
	accounts.PATCH("/:id/active", can(models.PermissionAccountsWrite), markAccountActive)
	accounts.DELETE("/:id", can(models.PermissionAccountsWrite), deleteAccount)
	accounts.POST("/recalculate", can(models.PermissionJournalPost), recalculateBalances)

	entries := authed.Group("/journal-entries")
	entries.GET("", listJournalEntries)
	entries.GET("/:id", getJournalEntry)
	entries.POST("", can(models.PermissionJournalWrite), createJournalEntry)
	entries.PUT("/:id", can(models.PermissionJournalWrite), updateJournalEntry)
	entries.DELETE("/:id", can(models.PermissionJournalWrite), deleteJournalEntry)
	entries.POST("/:id/duplicate", can(models.PermissionJournalWrite), duplicateJournalEntry)
	entries.POST("/:id/post", can(models.PermissionJournalPost), postJournalEntry)
	entries.POST("/:id/reverse", can(models.PermissionJournalPost), reverseJournalEntry)

	customers := authed.Group("/customers")
	customers.GET("", listCustomers)
	customers.GET("/:id", getCustomer)
	customers.POST("", can(models.PermissionSalesWrite), createCustomer)
	customers.PUT("/:id", can(models.PermissionSalesWrite), updateCustomer)
	customers.PATCH("/:id/active", can(models.PermissionSalesWrite), toggleCustomerActive)
	customers.DELETE("/:id", can(models.PermissionSalesWrite), deleteCustomer)

	vendors := authed.Group("/vendors")
	vendors.GET("", listVendors)
	vendors.GET("/:id", getVendor)
	vendors.POST("", can(models.PermissionPurchasesWrite), createVendor)
	vendors.PUT("/:id", can(models.PermissionPurchasesWrite), updateVendor)
	vendors.PATCH("/:id/active", can(models.PermissionPurchasesWrite), toggleVendorActive)
	vendors.DELETE("/:id", can(models.PermissionPurchasesWrite), deleteVendor)

	invoices := authed.Group("/invoices")
	invoices.GET("", listInvoices)
	invoices.GET("/:id", getInvoice)
	invoices.GET("/:id/payments", listInvoicePayments)
	invoices.POST("", can(models.PermissionSalesWrite), createInvoice)
	invoices.PUT("/:id", can(models.PermissionSalesWrite), updateInvoice)
	invoices.DELETE("/:id", can(models.PermissionSalesWrite), deleteInvoice)
	invoices.POST("/:id/send", can(models.PermissionSalesWrite), sendInvoice)
	invoices.POST("/:id/payments", can(models.PermissionSalesWrite), recordInvoicePayment)
	invoices.POST("/:id/cancel", can(models.PermissionSalesWrite), cancelInvoice)

	bills := authed.Group("/bills")
	bills.GET("", listBills)
	bills.GET("/:id", getBill)
	bills.GET("/:id/payments", listBillPayments)
	bills.POST("", can(models.PermissionPurchasesWrite), createBill)
	bills.PUT("/:id", can(models.PermissionPurchasesWrite), updateBill)
	bills.DELETE("/:id", can(models.PermissionPurchasesWrite), deleteBill)
	bills.POST("/:id/approve", can(models.PermissionPurchasesWrite), approveBill)
	bills.POST("/:id/payments", can(models.PermissionPurchasesWrite), recordBillPayment)
	bills.POST("/:id/cancel", can(models.PermissionPurchasesWrite), cancelBill)

	banks := authed.Group("/bank-accounts")
	banks.GET("", listBankAccounts)
	banks.GET("/:id", getBankAccount)
	banks.POST("", can(models.PermissionAccountsWrite), createBankAccount)
	banks.PUT("/:id", can(models.PermissionAccountsWrite), updateBankAccount)
	banks.DELETE("/:id", can(models.PermissionAccountsWrite), deleteBankAccount)

	periods := authed.Group("/financial-periods")
	periods.GET("", listFinancialPeriods)
	periods.GET("/:id", getFinancialPeriod)
	periods.POST("", can(models.PermissionCompanyWrite), createFinancialPeriod)
	periods.PUT("/:id", can(models.PermissionCompanyWrite), updateFinancialPeriod)
	periods.POST("/:id/close", can(models.PermissionCompanyWrite), closeFinancialPeriod)
	periods.POST("/:id/reopen", can(models.PermissionCompanyWrite), reopenFinancialPeriod)

	read := authed.Group("", can(models.PermissionReportsRead))
	read.GET("/dashboard", getDashboard)
	read.GET("/reports/trial-balance", getTrialBalance)
	read.GET("/reports/trial-balance.xlsx", exportTrialBalance)
	read.GET("/reports/general-ledger/:accountId", getGeneralLedger)

	ops := r.Group("/internal/ops", middlewares.RequireRole(models.UserRoleSuperAdmin, models.UserRoleAdmin))
	ops.GET("/outbox", outboxSummary)
	ops.POST("/outbox/replay", outboxReplay)
	ops.POST("/reconcile", reconcile)
	ops.GET("/reconciliation", listReconciliationReports)
	ops.POST("/overdue", sweepOverdue)
}
