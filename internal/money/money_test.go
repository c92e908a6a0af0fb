package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "two decimals", input: "300.00", want: "300.00"},
		{name: "one decimal", input: "33.3", want: "33.30"},
		{name: "integer", input: "100", want: "100.00"},
		{name: "surrounding spaces", input: " 12.50 ", want: "12.50"},
		{name: "trailing zeros past scale", input: "1.500", want: "1.50"},
		{name: "negative", input: "-4.20", want: "-4.20"},
		{name: "three significant decimals", input: "33.333", wantErr: ErrExcessPrecision},
		{name: "tiny fraction", input: "0.001", wantErr: ErrExcessPrecision},
		{name: "empty", input: "", wantErr: ErrInvalidAmount},
		{name: "garbage", input: "12,50", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestParseNonNegative(t *testing.T) {
	t.Parallel()

	_, err := ParseNonNegative("-0.01")
	require.ErrorIs(t, err, ErrNegativeAmount)

	d, err := ParseNonNegative("0")
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestSumIsExact(t *testing.T) {
	t.Parallel()

	// 0.1 added ten times is exactly 1.00 in decimal arithmetic.
	values := make([]decimal.Decimal, 10)
	for i := range values {
		values[i] = MustParse("0.10")
	}

	assert.Equal(t, "1.00", Format(Sum(values...)))
	assert.True(t, Equal(Sum(values...), MustParse("1")))
	assert.Equal(t, "0.00", Format(Sum()))
}

func TestCheckScale(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckScale(decimal.RequireFromString("99.99")))
	assert.NoError(t, CheckScale(decimal.RequireFromString("10.000")))
	assert.ErrorIs(t, CheckScale(decimal.RequireFromString("99.999")), ErrExcessPrecision)
}
