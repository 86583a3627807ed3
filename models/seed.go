package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DemoTenantSlug  = "default"
	DemoCompanyId   = "default-company"
	DemoAdminEmail  = "admin@demo.com"
	demoPassword    = "password"
	seedSystemActor = "Seed"
)

type SeedResult struct {
	TenantId  string `json:"tenant_id"`
	CompanyId string `json:"company_id"`
	Users     int    `json:"users"`
	Accounts  int    `json:"accounts"`
}

type seedAccount struct {
	code       string
	name       string
	typeCode   string
	opening    string
	systemCode SystemCode
}

// equity opening is the balancing figure so the opening trial balance is even
var demoChart = []seedAccount{
	{"1001", "Cash - Checking Account", "bank", "25000", SystemCodeCash},
	{"1002", "Cash - Savings Account", "bank", "15000", SystemCodeNone},
	{"1200", "Accounts Receivable", "receivables", "8500", SystemCodeReceivable},
	{"1300", "Inventory", "inventory", "12000", SystemCodeNone},
	{"1500", "Equipment", "fixed-assets", "25000", SystemCodeNone},
	{"2001", "Accounts Payable", "payables", "4200", SystemCodePayable},
	{"2100", "Credit Card - Business", "credit-cards", "1500", SystemCodeNone},
	{"2200", "Sales Tax Payable", "payables", "0", SystemCodeTax},
	{"3001", "Owner's Equity", "equity", "79800", SystemCodeNone},
	{"4001", "Sales Revenue", "revenue", "0", SystemCodeSales},
	{"4010", "Service Revenue", "revenue", "0", SystemCodeNone},
	{"5001", "Cost of Goods Sold", "cost-of-sales", "0", SystemCodeNone},
	{"5010", "Office Supplies", "operating-expenses", "0", SystemCodeExpense},
	{"5020", "Rent Expense", "operating-expenses", "0", SystemCodeNone},
	{"5030", "Utilities", "operating-expenses", "0", SystemCodeNone},
}

// SeedAccountTypes inserts the global account type catalogue when missing.
func SeedAccountTypes(ctx context.Context, tx *gorm.DB) (map[string]*AccountType, error) {
	types := make(map[string]*AccountType)
	for _, t := range DefaultAccountTypes() {
		var row AccountType
		if err := tx.WithContext(ctx).Where(AccountType{Code: t.Code}).Attrs(t).FirstOrCreate(&row).Error; err != nil {
			return nil, err
		}
		types[row.Code] = &row
	}
	_ = config.RemoveRedisKey("AccountTypeList")
	return types, nil
}

// SeedDemoData creates the demo tenant, users, company and books. Rows that already exist are left alone.
func SeedDemoData(ctx context.Context) (*SeedResult, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	ctx = utils.SetUserNameInContext(ctx, seedSystemActor)
	db := config.GetDB()
	result := SeedResult{CompanyId: DemoCompanyId}

	hashed, err := utils.HashPassword(demoPassword)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		types, err := SeedAccountTypes(ctx, tx)
		if err != nil {
			return err
		}

		var tenant Tenant
		if err := tx.Where(Tenant{Slug: DemoTenantSlug}).
			Attrs(Tenant{ID: uuid.NewString(), Name: "Default Organization", IsActive: utils.NewTrue()}).
			FirstOrCreate(&tenant).Error; err != nil {
			return err
		}
		result.TenantId = tenant.ID

		var company Company
		if err := tx.Where(Company{ID: DemoCompanyId}).Attrs(Company{
			TenantId:             tenant.ID,
			Name:                 "Demo Company Ltd.",
			LegalName:            "Demo Company Limited",
			BaseCurrency:         "USD",
			FiscalYearStartMonth: 1,
			Email:                "info@democompany.com",
			Phone:                "+15551234567",
			Address:              "123 Business Street, Business City, BC 12345",
			Country:              "US",
			IsActive:             utils.NewTrue(),
		}).FirstOrCreate(&company).Error; err != nil {
			return err
		}

		users := []User{
			{Email: DemoAdminEmail, FirstName: "Super", LastName: "Admin", Role: UserRoleSuperAdmin},
			{Email: "ap@demo.com", FirstName: "AP", LastName: "Manager", Role: UserRoleAPManager},
			{Email: "ar@demo.com", FirstName: "AR", LastName: "Manager", Role: UserRoleARManager},
			{Email: "accountant@demo.com", FirstName: "Staff", LastName: "Accountant", Role: UserRoleAccountant},
		}
		for _, u := range users {
			u.TenantId = tenant.ID
			u.CompanyId = company.ID
			u.Password = string(hashed)
			u.IsActive = utils.NewTrue()
			var row User
			if err := tx.Where(User{Email: u.Email}).Attrs(u).FirstOrCreate(&row).Error; err != nil {
				return err
			}
			result.Users++
		}

		accounts := make(map[string]*Account)
		for _, a := range demoChart {
			t, ok := types[a.typeCode]
			if !ok {
				return fmt.Errorf("%w: %s", ErrAccountTypeNotFound, a.typeCode)
			}
			opening := decimal.RequireFromString(a.opening)
			var row Account
			if err := tx.Where(Account{CompanyId: company.ID, Code: a.code}).Attrs(Account{
				Name:           a.name,
				AccountTypeId:  t.ID,
				Category:       t.Category,
				NormalSide:     t.NormalSide,
				OpeningBalance: opening,
				CurrentBalance: opening,
				IsActive:       utils.NewTrue(),
				AllowPosting:   utils.NewTrue(),
				SystemCode:     a.systemCode,
			}).FirstOrCreate(&row).Error; err != nil {
				return err
			}
			accounts[a.code] = &row
			result.Accounts++
		}

		customers := []Customer{
			{CustomerNumber: "CUST001", SequenceNo: 1, Party: Party{
				Name: "ABC Corporation", ContactPerson: "John Smith", Email: "john@abccorp.com", Phone: "+15551111111",
				Address: "123 Customer St", City: "Customer City", State: "CC", ZipCode: "11111", Country: "US",
				PaymentTerms: PaymentTermsNet30, CreditLimit: decimal.NewFromInt(10000), IsActive: utils.NewTrue(),
			}},
			{CustomerNumber: "CUST002", SequenceNo: 2, Party: Party{
				Name: "XYZ Industries", ContactPerson: "Jane Doe", Email: "jane@xyzind.com", Phone: "+15552222222",
				Address: "456 Industry Ave", City: "Industry Town", State: "IT", ZipCode: "22222", Country: "US",
				PaymentTerms: PaymentTermsNet45, CreditLimit: decimal.NewFromInt(15000), IsActive: utils.NewTrue(),
			}},
		}
		for _, c := range customers {
			c.CompanyId = company.ID
			var row Customer
			if err := tx.Where(Customer{CompanyId: company.ID, CustomerNumber: c.CustomerNumber}).Attrs(c).
				FirstOrCreate(&row).Error; err != nil {
				return err
			}
		}

		vendors := []Vendor{
			{VendorNumber: "VEND001", SequenceNo: 1, Party: Party{
				Name: "Office Supplies Co", ContactPerson: "Mike Johnson", Email: "mike@officesupplies.com", Phone: "+15553333333",
				Address: "789 Supplier Blvd", City: "Supplier City", State: "SC", ZipCode: "33333", Country: "US",
				PaymentTerms: PaymentTermsNet30, CreditLimit: decimal.NewFromInt(5000), IsActive: utils.NewTrue(),
			}},
			{VendorNumber: "VEND002", SequenceNo: 2, Party: Party{
				Name: "Tech Equipment Ltd", ContactPerson: "Sarah Wilson", Email: "sarah@techequip.com", Phone: "+15554444444",
				Address: "321 Tech Park", City: "Tech Valley", State: "TV", ZipCode: "44444", Country: "US",
				PaymentTerms: PaymentTermsNet45, CreditLimit: decimal.NewFromInt(20000), IsActive: utils.NewTrue(),
			}},
		}
		for _, v := range vendors {
			v.CompanyId = company.ID
			var row Vendor
			if err := tx.Where(Vendor{CompanyId: company.ID, VendorNumber: v.VendorNumber}).Attrs(v).
				FirstOrCreate(&row).Error; err != nil {
				return err
			}
		}

		banks := []BankAccount{
			{Name: "Main Checking Account", AccountNumber: "123456789", Type: BankAccountTypeChecking, AccountId: accounts["1001"].ID},
			{Name: "Business Savings", AccountNumber: "987654321", Type: BankAccountTypeSavings, AccountId: accounts["1002"].ID},
		}
		for _, b := range banks {
			b.CompanyId = company.ID
			b.BankName = "First National Bank"
			b.Branch = "Downtown Branch"
			b.RoutingNumber = "021000021"
			b.IsActive = utils.NewTrue()
			var row BankAccount
			if err := tx.Where(BankAccount{CompanyId: company.ID, AccountId: b.AccountId}).Attrs(b).
				FirstOrCreate(&row).Error; err != nil {
				return err
			}
		}

		start, end := utils.GetFiscalYearRange(time.Month(company.FiscalYearStartMonth), time.Now().UTC())
		var period FinancialPeriod
		name := fmt.Sprintf("FY %d", end.Year())
		return tx.Where(FinancialPeriod{CompanyId: company.ID, Name: name}).Attrs(FinancialPeriod{
			StartDate: start,
			EndDate:   end,
			Status:    PeriodStatusOpen,
		}).FirstOrCreate(&period).Error
	})
	if err != nil {
		return nil, err
	}
	config.GetLogger().WithField("company_id", result.CompanyId).Info("demo data seeded")
	return &result, nil
}
