package polymarket

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

// flexFloat decodes a JSON number or numeric string. Empty and unparsable
// values decode to nil.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	f.v = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.v = &v
	return nil
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// tokenList decodes either a JSON array of ids or a string holding a JSON
// encoded array, which is how Gamma returns clobTokenIds.
type tokenList []string

func (t *tokenList) UnmarshalJSON(data []byte) error {
	*t = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return nil
		}
		data = []byte(inner)
	}
	var raw []flexString
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for _, id := range raw {
		if s := strings.TrimSpace(string(id)); s != "" {
			*t = append(*t, s)
		}
	}
	return nil
}

// GammaMarket is the subset of a Gamma /markets entry the research loop uses.
// Token ids and numeric fields arrive under several spellings and types.
type GammaMarket struct {
	ID         flexString
	Slug       string
	Question   string
	Active     bool
	Closed     bool
	Archived   bool
	Restricted bool
	EndDate    time.Time
	TokenIDs   []string
	Volume24hr *float64
	Volume     *float64
	Liquidity  *float64
}

var tokenKeys = []string{"clobTokenIds", "clobTokenIDs", "clob_token_ids", "tokenIds", "token_ids"}

func (g *GammaMarket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*g = GammaMarket{}
	decode := func(key string, out any) bool {
		raw, ok := fields[key]
		if !ok {
			return false
		}
		return json.Unmarshal(raw, out) == nil
	}

	decode("id", &g.ID)
	decode("slug", &g.Slug)
	decode("question", &g.Question)
	decode("active", &g.Active)
	decode("closed", &g.Closed)
	decode("archived", &g.Archived)
	decode("restricted", &g.Restricted)

	for _, key := range tokenKeys {
		var ids tokenList
		if decode(key, &ids) && len(ids) > 0 {
			g.TokenIDs = ids
			break
		}
	}

	var f flexFloat
	if decode("volume24hr", &f) {
		g.Volume24hr = f.v
	}
	if decode("volume", &f) {
		g.Volume = f.v
	}
	if decode("liquidityNum", &f) && f.v != nil {
		g.Liquidity = f.v
	} else if decode("liquidity", &f) {
		g.Liquidity = f.v
	}

	for _, key := range []string{"endDateIso", "end_date_iso", "endDate"} {
		var s string
		if decode(key, &s) && s != "" {
			if t, ok := parseEndDate(s); ok {
				g.EndDate = t
				break
			}
		}
	}
	return nil
}

func parseEndDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Meta converts the Gamma entry to the domain type.
func (g *GammaMarket) Meta() models.MarketMeta {
	return models.MarketMeta{
		MarketID:     string(g.ID),
		Slug:         g.Slug,
		Question:     g.Question,
		Active:       g.Active,
		Closed:       g.Closed,
		Archived:     g.Archived,
		Restricted:   g.Restricted,
		EndDate:      g.EndDate,
		ClobTokenIDs: g.TokenIDs,
		Volume24h:    g.Volume24hr,
		Volume:       g.Volume,
		Liquidity:    g.Liquidity,
	}
}
