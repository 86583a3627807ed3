package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccountCode(t *testing.T) {
	assert.Equal(t, "1007", GenerateAccountCode("ASSET", 7))
	assert.Equal(t, "2010", GenerateAccountCode("liability", 10))
	assert.Equal(t, "5123", GenerateAccountCode("EXPENSE", 123))
	assert.Equal(t, "9001", GenerateAccountCode("OTHER", 1))
}

func TestGenerateDocumentNumber(t *testing.T) {
	date := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-2406-0012", GenerateDocumentNumber("INV-", date, 12))
	assert.Equal(t, "JE-2406-10000", GenerateDocumentNumber("JE-", date, 10000))
	assert.Equal(t, "CUST001", GeneratePartyNumber("CUST", 1))
}

func TestCalculateDueDate(t *testing.T) {
	issue := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, issue.AddDate(0, 0, 15), CalculateDueDate(issue, "NET_15"))
	assert.Equal(t, issue.AddDate(0, 0, 60), CalculateDueDate(issue, "net_60"))
	assert.Equal(t, issue, CalculateDueDate(issue, "DUE_ON_RECEIPT"))
	assert.Equal(t, issue.AddDate(0, 0, 30), CalculateDueDate(issue, "whatever"))
}

func TestValidateTaxId(t *testing.T) {
	assert.True(t, ValidateTaxId("12-3456789", "US"))
	assert.False(t, ValidateTaxId("123456789", "US"))
	assert.True(t, ValidateTaxId("GB123456", "GB"))
	assert.False(t, ValidateTaxId("123", "GB"))
}

func TestGetFiscalYearRange(t *testing.T) {
	start, end := GetFiscalYearRange(time.April, time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 2024, end.Year())
	assert.Equal(t, time.March, end.Month())
	assert.Equal(t, 31, end.Day())
}

func TestParseAmountAcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"USD 20,000", "20000"},
		{"USD -20,000", "-20000"},
		{"  $ 1,234.50  ", "1234.5"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, d.String(), tc.in)
	}

	d, err := ParseAmount(json.Number("12.25"))
	require.NoError(t, err)
	assert.Equal(t, "12.25", d.String())

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrorInvalidInput)

	_, err = ParseAmount("1.2.3")
	assert.ErrorIs(t, err, ErrorInvalidInput)

	p, err := ParseAmountPtr("")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestValidatePhoneNumber(t *testing.T) {
	assert.NoError(t, ValidatePhoneNumber("+1 650-253-0000", ""))
	assert.NoError(t, ValidatePhoneNumber("(650) 253-0000", "US"))
	assert.Error(t, ValidatePhoneNumber("12", "US"))

	formatted, err := FormatPhoneNumber("(650) 253-0000", "us")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", formatted)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := JwtGenerate(7, "ACCOUNTANT", "company-1", time.Hour)
	require.NoError(t, err)
	parsed, err := JwtValidate(token)
	require.NoError(t, err)
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	require.True(t, ok)
	assert.Equal(t, 7, claims.ID)
	assert.Equal(t, "company-1", claims.CompanyId)
}
