package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		GammaURL:        url,
		ClobURL:         url,
		Timeout:         2 * time.Second,
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
		BreakerFailures: 50,
		BreakerTimeout:  time.Minute,
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestGammaMarket_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantID     string
		wantTokens []string
		wantVol    *float64
		wantLiq    *float64
	}{
		{
			name:       "string encoded token list and string numbers",
			body:       `{"id":"123","clobTokenIds":"[\"a\",\"b\"]","volume24hr":"1500.5","liquidityNum":"200"}`,
			wantID:     "123",
			wantTokens: []string{"a", "b"},
			wantVol:    ptr(1500.5),
			wantLiq:    ptr(200),
		},
		{
			name:       "numeric id and array tokens under snake case key",
			body:       `{"id":77,"clob_token_ids":["x"],"volume24hr":42,"liquidity":"9"}`,
			wantID:     "77",
			wantTokens: []string{"x"},
			wantVol:    ptr(42),
			wantLiq:    ptr(9),
		},
		{
			name:       "liquidityNum preferred over liquidity",
			body:       `{"id":"1","tokenIds":["t"],"liquidityNum":5,"liquidity":"7"}`,
			wantID:     "1",
			wantTokens: []string{"t"},
			wantLiq:    ptr(5),
		},
		{
			name:   "garbage values decode to absent",
			body:   `{"id":"2","clobTokenIds":"not json","volume24hr":"n/a"}`,
			wantID: "2",
		},
		{
			name:   "non-finite numbers decode to absent",
			body:   `{"id":"3","volume24hr":"NaN","liquidityNum":"+Inf"}`,
			wantID: "3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g GammaMarket
			if err := json.Unmarshal([]byte(tt.body), &g); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if string(g.ID) != tt.wantID {
				t.Errorf("ID = %q, want %q", g.ID, tt.wantID)
			}
			if len(g.TokenIDs) != len(tt.wantTokens) {
				t.Fatalf("TokenIDs = %v, want %v", g.TokenIDs, tt.wantTokens)
			}
			for i := range tt.wantTokens {
				if g.TokenIDs[i] != tt.wantTokens[i] {
					t.Errorf("TokenIDs[%d] = %q, want %q", i, g.TokenIDs[i], tt.wantTokens[i])
				}
			}
			if !sameFloat(g.Volume24hr, tt.wantVol) {
				t.Errorf("Volume24hr = %v, want %v", g.Volume24hr, tt.wantVol)
			}
			if !sameFloat(g.Liquidity, tt.wantLiq) {
				t.Errorf("Liquidity = %v, want %v", g.Liquidity, tt.wantLiq)
			}
		})
	}
}

func TestGammaMarket_EndDate(t *testing.T) {
	var g GammaMarket
	if err := json.Unmarshal([]byte(`{"id":"1","end_date_iso":"2026-11-03"}`), &g); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	if !g.EndDate.Equal(want) {
		t.Errorf("EndDate = %v, want %v", g.EndDate, want)
	}
}

func TestOrderBook_DepthSortsLevels(t *testing.T) {
	// wire order is worst first on both sides
	book := OrderBook{
		Bids: []PriceLevel{{"0.40", "100"}, {"0.45", "200"}, {"bad", "1"}},
		Asks: []PriceLevel{{"0.55", "100"}, {"0.50", "50"}, {"0.52", "0"}},
	}

	full := book.Depth(5)
	if !full.Bid.Equal(decimal.RequireFromString("130")) {
		t.Errorf("bid depth = %s, want 130", full.Bid)
	}
	if !full.Ask.Equal(decimal.RequireFromString("80")) {
		t.Errorf("ask depth = %s, want 80", full.Ask)
	}
	if !full.Total.Equal(decimal.RequireFromString("210")) {
		t.Errorf("total depth = %s, want 210", full.Total)
	}

	top := book.Depth(1)
	if !top.Bid.Equal(decimal.RequireFromString("90")) || !top.Ask.Equal(decimal.RequireFromString("25")) {
		t.Errorf("Depth(1) = %s/%s, want 90/25", top.Bid, top.Ask)
	}

	mid, ok := book.Mid()
	if !ok || !mid.Equal(decimal.RequireFromString("0.475")) {
		t.Errorf("Mid() = %s, %v, want 0.475", mid, ok)
	}
}

func TestOrderBook_EmptySide(t *testing.T) {
	book := OrderBook{Bids: []PriceLevel{{"0.4", "10"}}}
	if _, _, ok := book.Top(); ok {
		t.Error("Top() should fail with no asks")
	}
	if d := book.Depth(5); !d.Ask.IsZero() || !d.Total.Equal(decimal.RequireFromString("4")) {
		t.Errorf("Depth() = %+v", d)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, map[string]string{"mid": "0.61"})
	}))
	defer server.Close()

	c := NewClient(testClientConfig(server.URL))
	mid, err := c.Midpoint(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Midpoint() error = %v", err)
	}
	if mid != 0.61 {
		t.Errorf("Midpoint() = %v, want 0.61", mid)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusBadRequest} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(code)
			}))
			defer server.Close()

			c := NewClient(testClientConfig(server.URL))
			if _, err := c.OrderBook(context.Background(), "tok"); err == nil {
				t.Fatal("expected error")
			}
			if calls != 1 {
				t.Errorf("server saw %d calls, want 1", calls)
			}
		})
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.MaxRetries = 1
	cfg.BreakerFailures = 2
	c := NewClient(cfg)

	for i := 0; i < 2; i++ {
		if _, err := c.Spread(context.Background(), "tok"); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := c.Spread(context.Background(), "tok")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("third call error = %v, want open circuit", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
	if c.BreakerState() != "open" {
		t.Errorf("BreakerState() = %q", c.BreakerState())
	}
}

func TestClient_NotFoundKeepsBreakerClosed(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.BreakerFailures = 1
	c := NewClient(cfg)
	for i := 0; i < 3; i++ {
		if _, err := c.OrderBook(context.Background(), "tok"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("OrderBook() error = %v, want ErrNotFound", err)
		}
	}
	if c.BreakerState() != "closed" {
		t.Errorf("BreakerState() = %q, want closed", c.BreakerState())
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.BackoffBase = time.Hour
	c := NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Markets(ctx, MarketsQuery{Limit: 10}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Markets() error = %v, want deadline exceeded", err)
	}
}

func ptr(v float64) *float64 { return &v }

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
