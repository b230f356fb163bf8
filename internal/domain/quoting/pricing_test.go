package quoting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPriceTable(t *testing.T) {
	table, err := DefaultPriceTable()
	require.NoError(t, err)
	require.Equal(t, "MXN", table.Currency)
	require.Equal(t, []string{"diamante", "esencial", "premium"}, table.TierNames())
}

func TestEstimateBrackets(t *testing.T) {
	table, err := DefaultPriceTable()
	require.NoError(t, err)

	cases := []struct {
		tier    string
		rent    float64
		price   float64
		percent float64
	}{
		{"esencial", 8000, 3500, 0},
		{"Esencial", 10000, 3500, 0},
		{"esencial", 10000.01, 4900, 0},
		{"premium", 30000, 10500, 35},
		{"diamante", 80000, 40000, 50},
	}
	for _, tc := range cases {
		est, err := table.Estimate(tc.tier, tc.rent)
		require.NoError(t, err, tc.tier)
		require.InDelta(t, tc.price, est.Price, 0.001, "%s %.2f", tc.tier, tc.rent)
		require.Equal(t, tc.percent, est.Percent)
		require.Equal(t, "MXN", est.Currency)
	}
}

func TestEstimateErrors(t *testing.T) {
	table, err := DefaultPriceTable()
	require.NoError(t, err)

	_, err = table.Estimate("platino", 9000)
	require.ErrorIs(t, err, ErrUnknownTier)

	_, err = table.Estimate("premium", 0)
	require.ErrorIs(t, err, ErrInvalidRent)
}

func TestParsePriceTableOrdersBrackets(t *testing.T) {
	table, err := ParsePriceTable([]byte(`
currency: MXN
tiers:
  Basic:
    - percent: 10
    - maxRent: 2000
      price: 300
    - maxRent: 1000
      price: 100
`))
	require.NoError(t, err)

	est, err := table.Estimate("basic", 1500)
	require.NoError(t, err)
	require.Equal(t, 300.0, est.Price)

	est, err = table.Estimate("basic", 5000)
	require.NoError(t, err)
	require.Equal(t, 500.0, est.Price)
}
