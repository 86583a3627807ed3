package models

import (
	"log"

	"github.com/mmdatafocus/ledger_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tenant{}, &Company{}, &User{},
		&AccountType{}, &Account{},
		&JournalEntry{}, &JournalLineItem{},
		&FinancialPeriod{},
		&Customer{}, &Vendor{},
		&Invoice{}, &InvoiceLineItem{}, &Bill{}, &BillLineItem{}, &Payment{},
		&BankAccount{},
		&PubSubMessageRecord{}, &IdempotencyKey{},
		&ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
