package money_test

import (
	"testing"

	"sixwallet/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"10.50":  1050,
		"10.5":   1050,
		"10":     1000,
		"0.01":   1,
		"0":      0,
		"100":    10000,
		"999.99": 99999,
	}
	for in, want := range cases {
		d, err := decimal.NewFromString(in)
		assert.NoError(t, err)
		assert.Equal(t, want, money.ToMinorUnits(d), "amount %s", in)
	}
}

func TestToMinorUnits_RoundsHalfAwayFromZero(t *testing.T) {
	d, _ := decimal.NewFromString("10.005")
	assert.Equal(t, int64(1001), money.ToMinorUnits(d))

	d, _ = decimal.NewFromString("10.004")
	assert.Equal(t, int64(1000), money.ToMinorUnits(d))

	d, _ = decimal.NewFromString("10.015")
	assert.Equal(t, int64(1002), money.ToMinorUnits(d))
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "10.50", money.FromMinorUnits(1050))
	assert.Equal(t, "0.01", money.FromMinorUnits(1))
	assert.Equal(t, "0.00", money.FromMinorUnits(0))
	assert.Equal(t, "123.45", money.FromMinorUnits(12345))
}

func TestRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 1050, 12345, 1e12} {
		d, err := decimal.NewFromString(money.FromMinorUnits(minor))
		assert.NoError(t, err)
		assert.Equal(t, minor, money.ToMinorUnits(d))
	}
}
