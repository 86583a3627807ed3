// Package ledger holds the double-entry rules shared by journal entries,
// invoices and bills. It does no I/O.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxScale is the number of decimal places amounts are stored with (decimal(20,4)).
const MaxScale = 4

// MinLines is the smallest number of lines a journal entry may have.
const MinLines = 2

type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

type Category string

const (
	Asset     Category = "ASSET"
	Liability Category = "LIABILITY"
	Equity    Category = "EQUITY"
	Revenue   Category = "REVENUE"
	Expense   Category = "EXPENSE"
)

var (
	ErrUnbalanced    = errors.New("total debits must equal total credits")
	ErrZeroTotal     = errors.New("journal entry total must be greater than zero")
	ErrAlreadyPosted = errors.New("journal entry is already posted")
	ErrTooFewLines   = errors.New("journal entry must have at least two line items")
)

// Rule names reported in ValidationError.
const (
	RuleOneSide       = "one_side"
	RuleNonNegative   = "non_negative"
	RuleScale         = "scale"
	RuleAccount       = "account"
	RuleMinLines      = "min_lines"
	RuleBalanced      = "balanced"
	RuleNonZeroAmount = "non_zero"
)

// Line is one debit or credit leg.
type Line struct {
	AccountId int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// ValidationError describes the first line that breaks a rule. Line is 1-based, 0 for entry-level rules.
type ValidationError struct {
	Rule        string
	Line        int
	Description string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Description)
	}
	return e.Description
}

func lineErr(rule string, idx int, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Line: idx + 1, Description: fmt.Sprintf(format, args...)}
}

// ValidateLine checks a single leg: exactly one positive side, no negatives, at most MaxScale places.
func ValidateLine(idx int, l Line) error {
	if l.AccountId <= 0 {
		return lineErr(RuleAccount, idx, "account is required")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return lineErr(RuleNonNegative, idx, "amounts cannot be negative")
	}
	hasDebit := l.Debit.IsPositive()
	hasCredit := l.Credit.IsPositive()
	if hasDebit == hasCredit {
		if hasDebit {
			return lineErr(RuleOneSide, idx, "either debit or credit must have value, not both")
		}
		return lineErr(RuleOneSide, idx, "either debit or credit must have value")
	}
	amount := l.Debit
	if hasCredit {
		amount = l.Credit
	}
	if !amount.Equal(amount.Truncate(MaxScale)) {
		return lineErr(RuleScale, idx, "amount %s has more than %d decimal places", amount.String(), MaxScale)
	}
	return nil
}

// ValidateLines checks every leg and the minimum line count. It does not require balance;
// drafts may be saved unbalanced.
func ValidateLines(lines []Line) error {
	if len(lines) < MinLines {
		return &ValidationError{Rule: RuleMinLines, Description: ErrTooFewLines.Error()}
	}
	for i, l := range lines {
		if err := ValidateLine(i, l); err != nil {
			return err
		}
	}
	return nil
}

// Totals returns the sum of debits and the sum of credits.
func Totals(lines []Line) (debit decimal.Decimal, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// IsBalanced is true when debits equal credits and the total is positive.
func IsBalanced(lines []Line) bool {
	return CheckBalanced(lines) == nil
}

// CheckBalanced validates lines and requires sum(debit) == sum(credit) > 0.
func CheckBalanced(lines []Line) error {
	if err := ValidateLines(lines); err != nil {
		return err
	}
	debit, credit := Totals(lines)
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debits %s, credits %s", ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	if !debit.IsPositive() {
		return ErrZeroTotal
	}
	return nil
}

// CanPost is the draft -> posted gate.
func CanPost(isPosted bool, lines []Line) error {
	if isPosted {
		return ErrAlreadyPosted
	}
	return CheckBalanced(lines)
}

// Reverse swaps debit and credit on every leg.
func Reverse(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{AccountId: l.AccountId, Debit: l.Credit, Credit: l.Debit})
	}
	return out
}

// NormalSideFor returns the side that increases an account of category c.
func NormalSideFor(c Category) Side {
	switch c {
	case Asset, Expense:
		return Debit
	default:
		return Credit
	}
}

// SignedAmount is the effect of a leg on an account balance with the given normal side.
func SignedAmount(normal Side, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == Credit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// BalanceDeltas groups the signed effect of lines by account.
func BalanceDeltas(lines []Line, normalSideOf func(accountId int) Side) map[int]decimal.Decimal {
	deltas := make(map[int]decimal.Decimal, len(lines))
	for _, l := range lines {
		d, ok := deltas[l.AccountId]
		if !ok {
			d = decimal.Zero
		}
		deltas[l.AccountId] = d.Add(SignedAmount(normalSideOf(l.AccountId), l.Debit, l.Credit))
	}
	return deltas
}

// TrialBalanceColumns splits a signed balance into debit/credit presentation columns.
func TrialBalanceColumns(normal Side, balance decimal.Decimal) (debit decimal.Decimal, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	positive := !balance.IsNegative()
	if (normal == Debit) == positive {
		debit = balance.Abs()
	} else {
		credit = balance.Abs()
	}
	return debit, credit
}
