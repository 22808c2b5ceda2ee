package models

import (
	"errors"
	"time"
)

// Snapshot is one cycle's view of a single instrument: CLOB book figures
// plus the Gamma 24h volume. Book-derived fields are only meaningful when
// OKBook is set; use Book to read them.
type Snapshot struct {
	MarketID   string    `json:"market_id"`
	Slug       string    `json:"slug"`
	TokenID    string    `json:"token_id"`
	Timestamp  time.Time `json:"timestamp"`
	Mid        *float64  `json:"mid,omitempty"`
	Spread     *float64  `json:"spread,omitempty"`
	Depth5     *float64  `json:"depth5,omitempty"`
	DepthBid   *float64  `json:"depth_bid,omitempty"`
	DepthAsk   *float64  `json:"depth_ask,omitempty"`
	Vol24h     *float64  `json:"vol_24h,omitempty"`
	Liquidity  *float64  `json:"liquidity,omitempty"`
	Restricted bool      `json:"restricted"`
	OKBook     bool      `json:"ok_book"`
}

// BookView holds the effective book-derived figures of a snapshot.
type BookView struct {
	Mid      *float64
	Spread   *float64
	Depth5   *float64
	DepthBid *float64
	DepthAsk *float64
}

// Book returns the book-derived fields, all nil when book access failed,
// regardless of whatever stale values the snapshot carries.
func (s *Snapshot) Book() BookView {
	if !s.OKBook {
		return BookView{}
	}
	return BookView{
		Mid:      s.Mid,
		Spread:   s.Spread,
		Depth5:   s.Depth5,
		DepthBid: s.DepthBid,
		DepthAsk: s.DepthAsk,
	}
}

// Validate checks snapshot field constraints.
func (s *Snapshot) Validate() error {
	if s.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if s.Mid != nil && (*s.Mid < 0 || *s.Mid > 1) {
		return errors.New("mid must be between 0.0 and 1.0")
	}
	if s.Spread != nil && *s.Spread < 0 {
		return errors.New("spread must not be negative")
	}
	if s.Depth5 != nil && *s.Depth5 < 0 {
		return errors.New("depth5 must not be negative")
	}
	if s.Vol24h != nil && *s.Vol24h < 0 {
		return errors.New("volume 24h must not be negative")
	}
	return nil
}

// PriorObservation is what the orchestrator remembers of an instrument's
// previous cycle: the mid for the bot-score move, spread and depth for the
// churn features and 24h volume for the window-volume delta.
type PriorObservation struct {
	Mid    *float64 `json:"mid,omitempty"`
	Spread *float64 `json:"spread,omitempty"`
	Depth5 *float64 `json:"depth5,omitempty"`
	Vol24h *float64 `json:"vol_24h,omitempty"`
}
