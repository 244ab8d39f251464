package resolver

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var fallbackPricesYAML []byte

// FallbackTable maps category and unit to a base unit price in IDR. It is
// the unconditional last stage of resolution, so lookups are total: unknown
// categories resolve through "miscellaneous", unknown units through "pcs".
type FallbackTable map[string]map[string]int64

const (
	defaultCategory  = "miscellaneous"
	defaultUnit      = "pcs"
	defaultUnitPrice = 50000
)

// LoadFallbackTable parses the embedded price table. An unparseable or
// incomplete table is a build defect, not a runtime condition, so callers
// should fail startup on error.
func LoadFallbackTable() (FallbackTable, error) {
	var table FallbackTable
	if err := yaml.Unmarshal(fallbackPricesYAML, &table); err != nil {
		return nil, eris.Wrap(err, "resolver: parse fallback prices")
	}
	if _, ok := table[defaultCategory]; !ok {
		return nil, eris.New("resolver: fallback prices missing miscellaneous category")
	}
	return table, nil
}

// Estimate returns the base unit price for a category/unit pair.
func (t FallbackTable) Estimate(category, unit string) int64 {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = defaultCategory
	}
	prices, ok := t[category]
	if !ok {
		prices = t[defaultCategory]
	}

	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = defaultUnit
	}
	if price, ok := prices[unit]; ok {
		return price
	}
	if price, ok := prices[defaultUnit]; ok {
		return price
	}
	return defaultUnitPrice
}
