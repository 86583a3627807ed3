package ledger

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func debitLine(account int, amt string) Line {
	return Line{AccountId: account, Debit: d(amt), Credit: decimal.Zero}
}

func creditLine(account int, amt string) Line {
	return Line{AccountId: account, Debit: decimal.Zero, Credit: d(amt)}
}

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name     string
		lines    []Line
		wantRule string
		wantLine int
	}{
		{"ok", []Line{debitLine(1, "100"), creditLine(2, "100")}, "", 0},
		{"single line", []Line{debitLine(1, "100")}, RuleMinLines, 0},
		{"both sides", []Line{{AccountId: 1, Debit: d("5"), Credit: d("5")}, creditLine(2, "5")}, RuleOneSide, 1},
		{"neither side", []Line{debitLine(1, "5"), {AccountId: 2, Debit: decimal.Zero, Credit: decimal.Zero}}, RuleOneSide, 2},
		{"negative", []Line{debitLine(1, "-5"), creditLine(2, "5")}, RuleNonNegative, 1},
		{"too many decimals", []Line{debitLine(1, "1.00001"), creditLine(2, "1.00001")}, RuleScale, 1},
		{"missing account", []Line{debitLine(0, "1"), creditLine(2, "1")}, RuleAccount, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLines(tt.lines)
			if tt.wantRule == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantRule, ve.Rule)
			assert.Equal(t, tt.wantLine, ve.Line)
		})
	}
}

func TestCheckBalanced(t *testing.T) {
	balanced := []Line{debitLine(1, "150.25"), creditLine(2, "100"), creditLine(3, "50.25")}
	assert.NoError(t, CheckBalanced(balanced))
	assert.True(t, IsBalanced(balanced))

	unbalanced := []Line{debitLine(1, "150"), creditLine(2, "100")}
	err := CheckBalanced(unbalanced)
	assert.ErrorIs(t, err, ErrUnbalanced)
	assert.Contains(t, err.Error(), "150.00")

	debit, credit := Totals(balanced)
	assert.True(t, debit.Equal(d("150.25")))
	assert.True(t, credit.Equal(d("150.25")))
}

func TestCanPost(t *testing.T) {
	lines := []Line{debitLine(1, "10"), creditLine(2, "10")}
	assert.NoError(t, CanPost(false, lines))
	assert.ErrorIs(t, CanPost(true, lines), ErrAlreadyPosted)
	assert.ErrorIs(t, CanPost(false, []Line{debitLine(1, "10"), creditLine(2, "9")}), ErrUnbalanced)
}

func TestSignedAmountFollowsNormalSide(t *testing.T) {
	assert.True(t, SignedAmount(Debit, d("100"), d("30")).Equal(d("70")))
	assert.True(t, SignedAmount(Credit, d("100"), d("30")).Equal(d("-70")))
	assert.Equal(t, Debit, NormalSideFor(Asset))
	assert.Equal(t, Debit, NormalSideFor(Expense))
	assert.Equal(t, Credit, NormalSideFor(Liability))
	assert.Equal(t, Credit, NormalSideFor(Equity))
	assert.Equal(t, Credit, NormalSideFor(Revenue))
}

func TestBalanceDeltas(t *testing.T) {
	sides := map[int]Side{1: Debit, 2: Credit}
	lines := []Line{debitLine(1, "40"), debitLine(1, "60"), creditLine(2, "100")}
	deltas := BalanceDeltas(lines, func(id int) Side { return sides[id] })
	assert.True(t, deltas[1].Equal(d("100")))
	assert.True(t, deltas[2].Equal(d("100")))
}

func TestReverseKeepsBalance(t *testing.T) {
	lines := []Line{debitLine(1, "10"), creditLine(2, "10")}
	rev := Reverse(lines)
	require.Len(t, rev, 2)
	assert.True(t, rev[0].Credit.Equal(d("10")))
	assert.True(t, rev[1].Debit.Equal(d("10")))
	assert.NoError(t, CheckBalanced(rev))
}

func TestTrialBalanceColumns(t *testing.T) {
	dr, cr := TrialBalanceColumns(Debit, d("50"))
	assert.True(t, dr.Equal(d("50")) && cr.IsZero())
	dr, cr = TrialBalanceColumns(Credit, d("50"))
	assert.True(t, cr.Equal(d("50")) && dr.IsZero())
	dr, cr = TrialBalanceColumns(Debit, d("-20"))
	assert.True(t, cr.Equal(d("20")) && dr.IsZero())
}

// Random entries run through the posting gate: whatever CanPost accepts is balanced.
func TestPostedImpliesBalanced(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		n := rng.Intn(5) + 1
		lines := make([]Line, 0, n)
		for j := 0; j < n; j++ {
			amt := decimal.New(int64(rng.Intn(20000)), -2)
			if rng.Intn(2) == 0 {
				lines = append(lines, Line{AccountId: j + 1, Debit: amt, Credit: decimal.Zero})
			} else {
				lines = append(lines, Line{AccountId: j + 1, Debit: decimal.Zero, Credit: amt})
			}
		}
		isPosted := CanPost(false, lines) == nil
		if isPosted {
			debit, credit := Totals(lines)
			require.True(t, debit.Equal(credit), "posted entry %d unbalanced: %v", i, lines)
			require.True(t, debit.IsPositive())
		}
	}
}
