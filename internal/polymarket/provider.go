package polymarket

import (
	"context"
	"fmt"
	"time"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/metrics"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

// ProviderConfig controls universe paging and token selection.
type ProviderConfig struct {
	Pages           int    `mapstructure:"pages"`
	PageSize        int    `mapstructure:"page_size"`
	Order           string `mapstructure:"order"`
	AllowRestricted bool   `mapstructure:"allow_restricted"`
	DepthLevels     int    `mapstructure:"depth_levels"`
	MaxTokens       int    `mapstructure:"max_tokens"`
}

func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Pages:           10,
		PageSize:        100,
		Order:           "volume24hr",
		AllowRestricted: true,
		DepthLevels:     5,
		MaxTokens:       4,
	}
}

// Provider turns Gamma and CLOB responses into universe entries and
// snapshots for the research cycle.
type Provider struct {
	client  *Client
	config  ProviderConfig
	metrics *metrics.Registry
	now     func() time.Time
}

// NewProvider wraps client. reg may be nil.
func NewProvider(client *Client, config ProviderConfig, reg *metrics.Registry) *Provider {
	def := DefaultProviderConfig()
	if config.Pages <= 0 {
		config.Pages = def.Pages
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	if config.DepthLevels <= 0 {
		config.DepthLevels = def.DepthLevels
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	return &Provider{client: client, config: config, metrics: reg, now: time.Now}
}

// ListUniverse pages through Gamma markets ordered by 24h volume and keeps
// open markets exposing at least one CLOB token, deduplicated by id in
// first-seen order. Paging stops early on an empty page. A failure on page
// one is an error; later failures truncate the universe.
func (p *Provider) ListUniverse(ctx context.Context) ([]models.MarketMeta, error) {
	seen := make(map[string]bool)
	var out []models.MarketMeta

	for page := 0; page < p.config.Pages; page++ {
		batch, err := p.client.Markets(ctx, MarketsQuery{
			Limit:  p.config.PageSize,
			Offset: page * p.config.PageSize,
			Order:  p.config.Order,
		})
		if err != nil {
			p.metrics.ObserveProviderError("markets")
			if page == 0 {
				return nil, err
			}
			logger.Warn("Stopping universe paging at page %d: %v", page, err)
			break
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			meta := batch[i].Meta()
			if meta.MarketID == "" || seen[meta.MarketID] {
				continue
			}
			seen[meta.MarketID] = true
			if meta.Closed || meta.Archived {
				continue
			}
			if meta.Restricted && !p.config.AllowRestricted {
				continue
			}
			if len(meta.ClobTokenIDs) == 0 {
				continue
			}
			out = append(out, meta)
		}
	}

	logger.Debug("Universe: %d markets across up to %d pages", len(out), p.config.Pages)
	return out, nil
}

type bookProbe struct {
	tokenID string
	book    *OrderBook
	depth   BookDepth
}

// pickToken probes the books of the first MaxTokens tokens and returns the
// one with the greatest top-of-book depth. ok is false when no book could be
// read, in which case the first token is returned.
func (p *Provider) pickToken(ctx context.Context, tokens []string) (bookProbe, bool) {
	limit := p.config.MaxTokens
	if len(tokens) < limit {
		limit = len(tokens)
	}

	var best bookProbe
	found := false
	for _, tok := range tokens[:limit] {
		book, err := p.client.OrderBook(ctx, tok)
		if err != nil {
			p.metrics.ObserveProviderError("book")
			logger.Debug("Book unavailable for token %s: %v", tok, err)
			continue
		}
		depth := book.Depth(p.config.DepthLevels)
		if !found || depth.Total.GreaterThan(best.depth.Total) {
			best = bookProbe{tokenID: tok, book: book, depth: depth}
			found = true
		}
	}
	if !found {
		return bookProbe{tokenID: tokens[0]}, false
	}
	return best, true
}

// FetchSnapshot builds the current snapshot of meta. It never fails: when
// no book can be read the snapshot carries OKBook=false and no book fields.
// Spread and mid come from their CLOB endpoints, falling back to the book's
// top when those calls fail.
func (p *Provider) FetchSnapshot(ctx context.Context, meta models.MarketMeta) models.Snapshot {
	snap := models.Snapshot{
		MarketID:   meta.MarketID,
		Slug:       meta.Slug,
		Timestamp:  p.now().UTC(),
		Vol24h:     meta.Volume24h,
		Liquidity:  meta.Liquidity,
		Restricted: meta.Restricted,
	}
	if len(meta.ClobTokenIDs) == 0 {
		return snap
	}

	probe, ok := p.pickToken(ctx, meta.ClobTokenIDs)
	snap.TokenID = probe.tokenID
	if !ok {
		return snap
	}
	snap.OKBook = true
	snap.Depth5 = models.Float(probe.depth.Total.InexactFloat64())
	snap.DepthBid = models.Float(probe.depth.Bid.InexactFloat64())
	snap.DepthAsk = models.Float(probe.depth.Ask.InexactFloat64())

	if s, err := p.client.Spread(ctx, probe.tokenID); err == nil {
		snap.Spread = models.Float(s)
	} else {
		p.metrics.ObserveProviderError("spread")
		if bid, ask, top := probe.book.Top(); top {
			snap.Spread = models.Float(ask.Sub(bid).InexactFloat64())
		}
	}

	if m, err := p.client.Midpoint(ctx, probe.tokenID); err == nil {
		snap.Mid = models.Float(m)
	} else {
		p.metrics.ObserveProviderError("midpoint")
		if mid, top := probe.book.Mid(); top {
			snap.Mid = models.Float(mid.InexactFloat64())
		}
	}

	return snap
}

// String is used in log lines.
func (p *Provider) String() string {
	return fmt.Sprintf("polymarket(gamma=%s, clob=%s)", p.client.gammaURL, p.client.clobURL)
}
