package pricing

import (
	"os"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// PromoTable maps a normalized promo code to its discount percentage.
type PromoTable map[string]int64

func DefaultPromoTable() PromoTable {
	return PromoTable{
		"CRAFT10":   10,
		"WELCOME20": 20,
		"ARTISAN15": 15,
	}
}

// NormalizeCode trims whitespace and upper-cases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup normalizes code and returns its percentage.
func (t PromoTable) Lookup(code string) (int64, bool) {
	pct, ok := t[NormalizeCode(code)]
	return pct, ok
}

func (t PromoTable) Codes() []string {
	codes := make([]string, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func (t PromoTable) Validate() error {
	for code, pct := range t {
		if code == "" || code != NormalizeCode(code) {
			return errors.Errorf("promo code %q is not normalized", code)
		}
		if pct < 0 || pct > 100 {
			return errors.Errorf("promo code %s: percentage must be 0-100, got %d", code, pct)
		}
	}
	return nil
}

type promoFile struct {
	Promos []struct {
		Code       string `yaml:"code"`
		Percentage int64  `yaml:"percentage"`
	} `yaml:"promos"`
}

// ParsePromoTable reads a YAML document of the form
//
//	promos:
//	  - code: CRAFT10
//	    percentage: 10
func ParsePromoTable(data []byte) (PromoTable, error) {
	var f promoFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse promo table")
	}
	table := make(PromoTable, len(f.Promos))
	for _, p := range f.Promos {
		code := NormalizeCode(p.Code)
		if _, dup := table[code]; dup {
			return nil, errors.Errorf("duplicate promo code %s", code)
		}
		table[code] = p.Percentage
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func LoadPromoTable(path string) (PromoTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read promo table")
	}
	return ParsePromoTable(data)
}
