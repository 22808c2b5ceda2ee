package review

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type caseFile struct {
	MinEdge float64 `yaml:"min_edge"`
	Cases   []Case  `yaml:"cases"`
}

// LoadCases reads a YAML review file:
//
//	min_edge: 0.1
//	cases:
//	  - market_slug: some-market
//	    p_market: 0.35
//	    scenarios:
//	      - {name: base, p: 0.6, resolves_yes: true}
//
// The returned min edge is zero when the file does not set one.
func LoadCases(path string) ([]Case, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read review file: %w", err)
	}

	var f caseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal review file: %w", err)
	}
	for i, c := range f.Cases {
		if c.MarketSlug == "" && c.Question == "" {
			return nil, 0, fmt.Errorf("case %d: market_slug or question is required", i)
		}
		if c.PMarket < 0 || c.PMarket > 1 {
			return nil, 0, fmt.Errorf("case %d: p_market must be between 0 and 1, got %v", i, c.PMarket)
		}
	}
	return f.Cases, f.MinEdge, nil
}
