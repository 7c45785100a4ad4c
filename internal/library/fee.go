package library

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const firstTierDays = 7

var (
	firstTierDailyFee  = decimal.RequireFromString("0.50")
	secondTierDailyFee = decimal.RequireFromString("1.00")
	maxLateFee         = decimal.RequireFromString("15.00")
)

// LateFee is the fee owed for one loan.
type LateFee struct {
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	DaysOverdue int             `json:"days_overdue"`
}

// MarshalJSON writes fee_amount as a number with two decimals.
func (f LateFee) MarshalJSON() ([]byte, error) {
	type plain LateFee
	return json.Marshal(struct {
		plain
		FeeAmount json.RawMessage `json:"fee_amount"`
	}{plain(f), jsonAmount(f.FeeAmount)})
}

// ComputeFee maps whole overdue days to a fee: 0.50/day for the first week,
// 1.00/day after that, never more than 15.00.
func ComputeFee(daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	first := decimal.NewFromInt(int64(min(daysOverdue, firstTierDays)))
	rest := decimal.NewFromInt(int64(max(0, daysOverdue-firstTierDays)))

	total := firstTierDailyFee.Mul(first).Add(secondTierDailyFee.Mul(rest))
	if total.GreaterThan(maxLateFee) {
		total = maxLateFee
	}
	return total.Round(2)
}

// daysOverdue compares calendar dates only; a loan due today is not overdue.
func daysOverdue(due, asOf time.Time) int {
	return max(0, calendarDays(due, asOf))
}

func lateFeeAt(due, asOf time.Time) LateFee {
	days := daysOverdue(due, asOf)
	return LateFee{FeeAmount: ComputeFee(days), DaysOverdue: days}
}

func formatFee(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func jsonAmount(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.StringFixed(2))
}
