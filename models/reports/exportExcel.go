package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/xuri/excelize/v2"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExcelExporter interface {
	GetCellValues() []interface{}
}

func (r *TrialBalanceRow) GetCellValues() []interface{} {
	return []interface{}{r.Code, r.Name, string(r.Category), r.Debit.InexactFloat64(), r.Credit.InexactFloat64()}
}

func (l *GeneralLedgerLine) GetCellValues() []interface{} {
	return []interface{}{
		l.EntryDate.Format(time.DateOnly), l.EntryNumber, l.Reference, l.Description,
		l.DebitAmount.InexactFloat64(), l.CreditAmount.InexactFloat64(), l.Balance.InexactFloat64(),
	}
}

// writeSheet writes headings on row 1 and one row per record below them.
func writeSheet(f *excelize.File, sheetName string, data []ExcelExporter, headings ...string) (int, error) {
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return 0, err
		}
	}
	rowNo := 2
	for _, d := range data {
		cell, err := excelize.CoordinatesToCellName(1, rowNo)
		if err != nil {
			return 0, err
		}
		values := d.GetCellValues()
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return 0, err
		}
		rowNo++
	}
	return rowNo, nil
}

// TrialBalanceWorkbook renders the report as an xlsx document.
func TrialBalanceWorkbook(report *TrialBalanceReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Trial Balance"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	rows := make([]ExcelExporter, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, r)
	}
	next, err := writeSheet(f, sheetName, rows, "Code", "Account", "Category", "Debit", "Credit")
	if err != nil {
		return nil, err
	}
	totals := []interface{}{"", "Total", "", report.TotalDebit.InexactFloat64(), report.TotalCredit.InexactFloat64()}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", next), &totals); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, "G1", "As of"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, "H1", report.AsOf.Format(time.DateOnly)); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GeneralLedgerWorkbook renders one account's ledger as an xlsx document.
func GeneralLedgerWorkbook(report *GeneralLedgerReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := report.Code
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	lines := make([]ExcelExporter, 0, len(report.Lines))
	for _, l := range report.Lines {
		lines = append(lines, l)
	}
	if _, err := writeSheet(f, sheetName, lines, "Date", "Entry", "Reference", "Description", "Debit", "Credit", "Balance"); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportTrialBalance builds the trial balance workbook; when object storage is configured
// it is also uploaded and a signed download URL returned.
func ExportTrialBalance(ctx context.Context, asOf time.Time) ([]byte, *utils.StoredObject, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, nil, utils.ErrorCompanyRequired
	}
	report, err := GetTrialBalanceReport(ctx, asOf)
	if err != nil {
		return nil, nil, err
	}
	data, err := TrialBalanceWorkbook(report)
	if err != nil {
		return nil, nil, err
	}
	if !utils.StorageEnabled() {
		return data, nil, nil
	}
	key := fmt.Sprintf("exports/%s/trial-balance-%s-%d.xlsx", companyId, asOf.Format("20060102"), time.Now().Unix())
	stored, err := utils.UploadExport(ctx, key, XlsxContentType, data, 15*time.Minute)
	if err != nil {
		return nil, nil, err
	}
	return data, stored, nil
}
