package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"kline-relay/src/helpers"
	"kline-relay/src/logger"
	"kline-relay/src/models"
)

type fakeMarket struct {
	mu      sync.Mutex
	symbols []models.MSymbolInfo
	err     error
	calls   int
}

func (f *fakeMarket) LatestKline(ctx context.Context, symbol, interval string) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func (f *fakeMarket) ExchangeSymbols(ctx context.Context) ([]models.MSymbolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.symbols, nil
}

type memoryStore struct {
	snap     models.MSymbolSnapshot
	replaced int
}

func (m *memoryStore) Initialize(ctx context.Context) error { return nil }
func (m *memoryStore) Close() error { return nil }
func (m *memoryStore) LoadSymbols(ctx context.Context) (models.MSymbolSnapshot, error) {
	return m.snap, nil
}
func (m *memoryStore) ReplaceSymbols(ctx context.Context, symbols []models.MSymbolInfo, fetchedAt time.Time) error {
	m.snap = models.MSymbolSnapshot{Symbols: symbols, FetchedAt: fetchedAt}
	m.replaced++
	return nil
}

var listing = []models.MSymbolInfo{
	{Symbol: "ETHUSDT", Status: "TRADING", BaseAsset: "ETH", QuoteAsset: "USDT"},
	{Symbol: "BTCUSDT", Status: "TRADING", BaseAsset: "BTC", QuoteAsset: "USDT", TickSize: "0.01"},
	{Symbol: "ETHBTC", Status: "TRADING", BaseAsset: "ETH", QuoteAsset: "BTC"},
	{Symbol: "LUNAUSDT", Status: "BREAK", BaseAsset: "LUNA", QuoteAsset: "USDT"},
}

func testConfig() *models.MConfig {
	return &models.MConfig{Pairs: models.MPairsConfig{
		CacheTTLSeconds: 60,
		AvatarURL:       "https://dummyimage.com/320x320/000/fff.png&text=%s",
	}}
}

func TestPairsFilterSortAndAvatar(t *testing.T) {
	c := New(&fakeMarket{symbols: listing}, nil, testConfig(), logger.NewNop())

	pairs, err := c.Pairs(context.Background(), "")
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	var labels []string
	for _, p := range pairs {
		labels = append(labels, p.Label)
	}
	if len(labels) != 3 || labels[0] != "BTC/USDT" || labels[1] != "ETH/BTC" || labels[2] != "ETH/USDT" {
		t.Fatalf("labels = %v", labels)
	}
	first := pairs[0]
	if first.Value != "BTCUSDT" || first.Avatar.Alt != "BTC/USDT" ||
		first.Avatar.Src != "https://dummyimage.com/320x320/000/fff.png&text=BTC/USDT" {
		t.Fatalf("pair = %+v", first)
	}
	if first.TickSize != "0.01" || pairs[1].TickSize != "" {
		t.Fatalf("tick sizes = %q %q", first.TickSize, pairs[1].TickSize)
	}
}

func TestPairsSortIgnoresCase(t *testing.T) {
	src := &fakeMarket{symbols: []models.MSymbolInfo{
		{Symbol: "LINKUSDT", Status: "TRADING", BaseAsset: "LINK", QuoteAsset: "USDT"},
		{Symbol: "ldoUSDT", Status: "TRADING", BaseAsset: "ldo", QuoteAsset: "USDT"},
		{Symbol: "BTCUSDT", Status: "TRADING", BaseAsset: "BTC", QuoteAsset: "USDT"},
		{Symbol: "1INCHUSDT", Status: "TRADING", BaseAsset: "1INCH", QuoteAsset: "USDT"},
	}}
	c := New(src, nil, testConfig(), logger.NewNop())

	pairs, err := c.Pairs(context.Background(), "")
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	var got []string
	for _, p := range pairs {
		got = append(got, p.Label)
	}
	want := []string{"1INCH/USDT", "BTC/USDT", "ldo/USDT", "LINK/USDT"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
}

func TestPairsQueryIsCaseInsensitiveSubstring(t *testing.T) {
	c := New(&fakeMarket{symbols: listing}, nil, testConfig(), logger.NewNop())

	pairs, err := c.Pairs(context.Background(), "eth/")
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if len(pairs) != 2 || pairs[0].Value != "ETHBTC" {
		t.Fatalf("pairs = %+v", pairs)
	}
	pairs, _ = c.Pairs(context.Background(), "luna")
	if len(pairs) != 0 {
		t.Fatalf("non-trading pair returned: %+v", pairs)
	}
}

func TestPairsCachedWithinTTL(t *testing.T) {
	src := &fakeMarket{symbols: listing}
	c := New(src, nil, testConfig(), logger.NewNop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Pairs(context.Background(), "")
	c.Pairs(context.Background(), "btc")
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}

	now = now.Add(61 * time.Second)
	c.Pairs(context.Background(), "")
	if src.calls != 2 {
		t.Fatalf("source calls = %d after expiry, want 2", src.calls)
	}
}

func TestPairsServeStaleOnSourceError(t *testing.T) {
	src := &fakeMarket{symbols: listing}
	c := New(src, nil, testConfig(), logger.NewNop())
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Pairs(context.Background(), "")

	now = now.Add(time.Hour)
	src.err = errors.New("exchange down")
	pairs, err := c.Pairs(context.Background(), "")
	if err != nil || len(pairs) != 3 {
		t.Fatalf("stale fallback failed: %v %d", err, len(pairs))
	}

	empty := New(&fakeMarket{err: errors.New("exchange down")}, nil, testConfig(), logger.NewNop())
	if _, err := empty.Pairs(context.Background(), ""); err == nil {
		t.Fatal("expected error with nothing cached")
	}
}

func TestPairsDisabledProvider(t *testing.T) {
	c := New(&fakeMarket{err: helpers.ErrProviderDisabled}, nil, testConfig(), logger.NewNop())
	if _, err := c.Pairs(context.Background(), ""); !errors.Is(err, helpers.ErrProviderDisabled) {
		t.Fatalf("err = %v", err)
	}
}

func TestPairsUsesStore(t *testing.T) {
	store := &memoryStore{snap: models.MSymbolSnapshot{Symbols: listing[:1], FetchedAt: time.Now()}}
	src := &fakeMarket{symbols: listing}
	c := New(src, store, testConfig(), logger.NewNop())

	pairs, err := c.Pairs(context.Background(), "")
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if len(pairs) != 1 || src.calls != 0 {
		t.Fatalf("fresh store snapshot not used: %d pairs, %d calls", len(pairs), src.calls)
	}

	n, err := c.Refresh(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("Refresh = %d, %v", n, err)
	}
	if store.replaced != 1 || len(store.snap.Symbols) != 4 {
		t.Fatalf("store not updated: %+v", store)
	}
}
