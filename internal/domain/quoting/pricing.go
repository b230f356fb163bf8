package quoting

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed price_table.yaml
var defaultPriceTable []byte

var (
	ErrUnknownTier = errors.New("unknown plan tier")
	ErrInvalidRent = errors.New("monthly rent must be positive")
)

// Bracket prices rents up to MaxRent. A zero MaxRent is the open-ended top
// bracket. Either Price (fixed) or Percent (of one month's rent) is set.
type Bracket struct {
	MaxRent float64 `yaml:"maxRent"`
	Price   float64 `yaml:"price"`
	Percent float64 `yaml:"percent"`
}

// PriceTable maps a plan tier to its rent brackets.
type PriceTable struct {
	Currency string               `yaml:"currency"`
	Tiers    map[string][]Bracket `yaml:"tiers"`
}

// Estimate is the client-side price of a tier for a given rent.
type Estimate struct {
	Tier        string  `json:"tier"`
	MonthlyRent float64 `json:"monthlyRent"`
	Price       float64 `json:"price"`
	Percent     float64 `json:"percent,omitempty"`
	Currency    string  `json:"currency"`
}

// DefaultPriceTable returns the embedded price table.
func DefaultPriceTable() (*PriceTable, error) {
	return ParsePriceTable(defaultPriceTable)
}

// ParsePriceTable decodes a YAML price table and orders its brackets.
func ParsePriceTable(data []byte) (*PriceTable, error) {
	var table PriceTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse price table: %w", err)
	}
	normalized := make(map[string][]Bracket, len(table.Tiers))
	for tier, brackets := range table.Tiers {
		sorted := append([]Bracket(nil), brackets...)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i].MaxRent, sorted[j].MaxRent
			if a == 0 {
				return false
			}
			if b == 0 {
				return true
			}
			return a < b
		})
		normalized[strings.ToLower(tier)] = sorted
	}
	table.Tiers = normalized
	return &table, nil
}

// TierNames lists the known tiers alphabetically.
func (t *PriceTable) TierNames() []string {
	out := make([]string, 0, len(t.Tiers))
	for tier := range t.Tiers {
		out = append(out, tier)
	}
	sort.Strings(out)
	return out
}

// Estimate prices tier for rent.
func (t *PriceTable) Estimate(tier string, rent float64) (Estimate, error) {
	if rent <= 0 || math.IsNaN(rent) || math.IsInf(rent, 0) {
		return Estimate{}, ErrInvalidRent
	}
	key := strings.ToLower(strings.TrimSpace(tier))
	brackets, ok := t.Tiers[key]
	if !ok || len(brackets) == 0 {
		return Estimate{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	chosen := brackets[len(brackets)-1]
	for _, b := range brackets {
		if b.MaxRent == 0 || rent <= b.MaxRent {
			chosen = b
			break
		}
	}

	est := Estimate{Tier: key, MonthlyRent: rent, Currency: t.Currency}
	if chosen.Percent > 0 {
		est.Percent = chosen.Percent
		est.Price = math.Round(rent*chosen.Percent) / 100
	} else {
		est.Price = chosen.Price
	}
	return est, nil
}
