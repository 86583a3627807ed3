package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var einPattern = regexp.MustCompile(`^\d{2}-\d{7}$`)

// accountCodePrefix maps an account category to the leading digit of its code.
var accountCodePrefix = map[string]string{
	"ASSET":     "1",
	"LIABILITY": "2",
	"EQUITY":    "3",
	"REVENUE":   "4",
	"EXPENSE":   "5",
}

// GenerateAccountCode returns <category digit><seq padded to 3>, e.g. ASSET,7 -> "1007".
// Unknown categories use prefix 9.
func GenerateAccountCode(category string, seq int) string {
	prefix, ok := accountCodePrefix[strings.ToUpper(category)]
	if !ok {
		prefix = "9"
	}
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// GenerateDocumentNumber returns <prefix><YYMM><seq padded to 4>, e.g. INV-2406-0012.
func GenerateDocumentNumber(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s%s-%04d", prefix, date.Format("0601"), seq)
}

// GeneratePartyNumber returns <prefix><seq padded to 3>, e.g. CUST001.
func GeneratePartyNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// PaymentTermDays returns the number of days granted by a payment term code.
func PaymentTermDays(terms string) int {
	switch strings.ToUpper(strings.TrimSpace(terms)) {
	case "DUE_ON_RECEIPT":
		return 0
	case "NET_15":
		return 15
	case "NET_30":
		return 30
	case "NET_45":
		return 45
	case "NET_60":
		return 60
	case "NET_90":
		return 90
	default:
		return 30
	}
}

// CalculateDueDate adds the payment term days to issueDate.
func CalculateDueDate(issueDate time.Time, terms string) time.Time {
	return issueDate.AddDate(0, 0, PaymentTermDays(terms))
}

// ValidateTaxId checks the US EIN format for US companies; other countries only require 5+ characters.
func ValidateTaxId(taxId string, country string) bool {
	taxId = strings.TrimSpace(taxId)
	if strings.EqualFold(country, "US") {
		return einPattern.MatchString(taxId)
	}
	return len(taxId) >= 5
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last nanosecond of t's day in UTC.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// GetFiscalYearRange returns the fiscal year containing date for a fiscal year starting in startMonth.
func GetFiscalYearRange(startMonth time.Month, date time.Time) (time.Time, time.Time) {
	year := date.Year()
	if date.Month() < startMonth {
		year--
	}
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond)
}
