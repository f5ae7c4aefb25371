package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCharge(t *testing.T) {
	cases := []struct {
		name       string
		price      string
		rate       string
		commission string
		total      string
	}{
		{name: "twenty percent of hundred", price: "100", rate: "20", commission: "20", total: "120"},
		{name: "zero rate", price: "75.50", rate: "0", commission: "0", total: "75.50"},
		{name: "full rate", price: "10", rate: "100", commission: "10", total: "20"},
		{name: "rounds half up", price: "10.10", rate: "15", commission: "1.52", total: "11.62"},
		{name: "rounds down below half", price: "1.01", rate: "10", commission: "0.10", total: "1.11"},
		{name: "free course", price: "0", rate: "25", commission: "0", total: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price := decimal.RequireFromString(tc.price)
			rate := decimal.RequireFromString(tc.rate)

			charge, err := ComputeCharge(price, rate)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tc.commission).Equal(charge.Commission), "commission %s", charge.Commission)
			assert.True(t, decimal.RequireFromString(tc.total).Equal(charge.TotalCharge), "total %s", charge.TotalCharge)
			assert.True(t, charge.TotalCharge.Equal(price.Add(charge.Commission)))
		})
	}
}

func TestComputeChargeRejectsInvalidInput(t *testing.T) {
	_, err := ComputeCharge(decimal.NewFromInt(-1), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ComputeCharge(decimal.NewFromInt(10), decimal.RequireFromString("100.01"))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = ComputeCharge(decimal.NewFromInt(10), decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrInvalidRate)
}
