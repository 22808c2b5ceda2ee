// Package models defines the core domain entities: market metadata, book
// snapshots, regime scores, cascade signals and the records routed to
// persistence and execution.
package models

import (
	"errors"
	"time"
)

// Float returns a pointer to v. Optional numeric fields use nil for absent.
func Float(v float64) *float64 {
	return &v
}

// MarketMeta is the Gamma-side description of a tradable binary market.
type MarketMeta struct {
	MarketID     string    `json:"market_id"`
	Slug         string    `json:"slug"`
	Question     string    `json:"question"`
	Active       bool      `json:"active"`
	Closed       bool      `json:"closed"`
	Archived     bool      `json:"archived"`
	Restricted   bool      `json:"restricted"`
	EndDate      time.Time `json:"end_date,omitempty"`
	ClobTokenIDs []string  `json:"clob_token_ids"`
	Volume24h    *float64  `json:"volume_24h,omitempty"`
	Volume       *float64  `json:"volume,omitempty"`
	Liquidity    *float64  `json:"liquidity,omitempty"`
}

// Open reports whether the market can still trade.
func (m *MarketMeta) Open() bool {
	return m.Active && !m.Closed && !m.Archived
}

// Validate checks metadata field constraints.
func (m *MarketMeta) Validate() error {
	if m.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if len(m.ClobTokenIDs) == 0 {
		return errors.New("market must expose at least one CLOB token")
	}
	for _, id := range m.ClobTokenIDs {
		if id == "" {
			return errors.New("CLOB token ID must not be empty")
		}
	}
	if m.Volume24h != nil && *m.Volume24h < 0 {
		return errors.New("volume 24h must not be negative")
	}
	if m.Volume != nil && *m.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if m.Liquidity != nil && *m.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	return nil
}
