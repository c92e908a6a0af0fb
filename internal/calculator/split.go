package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// SplitMismatchError reports that the owed shares of an expense do not add up
// to its amount. Expected and Actual are exact at two decimal places.
type SplitMismatchError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("sum of splits (%s) does not equal expense total (%s)",
		e.ActualString(), e.ExpectedString())
}

// ExpectedString renders the expense amount, e.g. "300.00".
func (e *SplitMismatchError) ExpectedString() string {
	return money.Format(e.Expected)
}

// ActualString renders the sum of owed shares, e.g. "250.00".
func (e *SplitMismatchError) ActualString() string {
	return money.Format(e.Actual)
}

// ValidateSplits checks that the owed shares add up to target exactly.
//
// Paid shares do not count toward the total but must still be valid
// amounts. Amounts with significant digits past two
// decimal places are rejected with money.ErrExcessPrecision rather than
// rounded. An empty split list sums to 0.00 and so fails for any non-zero
// target.
func ValidateSplits(target decimal.Decimal, splits []models.SplitInput) error {
	if err := money.CheckScale(target); err != nil {
		return fmt.Errorf("expense amount: %w", err)
	}

	total := money.Zero
	for i, split := range splits {
		if err := money.CheckScale(split.OwedShare); err != nil {
			return fmt.Errorf("split %d owed share: %w", i, err)
		}
		if err := money.CheckScale(split.PaidShare); err != nil {
			return fmt.Errorf("split %d paid share: %w", i, err)
		}
		total = total.Add(split.OwedShare)
	}

	if !money.Equal(total, target) {
		return &SplitMismatchError{
			Expected: target.Round(money.Scale),
			Actual:   total.Round(money.Scale),
		}
	}

	return nil
}
