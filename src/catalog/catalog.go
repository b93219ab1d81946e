package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"kline-relay/src/helpers"
	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const statusTrading = "TRADING"

// Catalog builds the trading pair list from the exchange symbol listing.
// The listing is cached in memory and, when a store is set, in the database.
type Catalog struct {
	source    interfaces.IMarketData
	store     interfaces.IDatabase
	ttl       time.Duration
	avatarURL string
	log       *logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	snapshot models.MSymbolSnapshot
	loaded   bool
}

var _ interfaces.IPairCatalog = (*Catalog)(nil)

// -----------------------------------------------------------------------------

// New creates a catalog. store may be nil.
func New(source interfaces.IMarketData, store interfaces.IDatabase, cfg *models.MConfig, log *logger.Logger) *Catalog {
	return &Catalog{
		source:    source,
		store:     store,
		ttl:       time.Duration(cfg.Pairs.CacheTTLSeconds) * time.Second,
		avatarURL: cfg.Pairs.AvatarURL,
		log:       log,
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

// Pairs returns the trading pairs whose "BASE/QUOTE" label contains query,
// case-insensitively, in collation order of the label.
func (c *Catalog) Pairs(ctx context.Context, query string) ([]models.MPair, error) {
	symbols, err := c.symbols(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToUpper(strings.TrimSpace(query))
	pairs := make([]models.MPair, 0, len(symbols))
	for _, s := range symbols {
		if s.Status != statusTrading {
			continue
		}
		label := s.BaseAsset + "/" + s.QuoteAsset
		if query != "" && !strings.Contains(strings.ToUpper(label), query) {
			continue
		}
		pairs = append(pairs, models.MPair{
			Label: label,
			Value: s.Symbol,
			Avatar: models.MPairAvatar{
				Src: fmt.Sprintf(c.avatarURL, label),
				Alt: label,
			},
			TickSize: s.TickSize,
		})
	}

	// a Collator is not safe for concurrent use
	col := collate.New(language.English)
	sort.SliceStable(pairs, func(i, j int) bool { return col.CompareString(pairs[i].Label, pairs[j].Label) < 0 })
	return pairs, nil
}

// -----------------------------------------------------------------------------

// Refresh fetches the listing from the exchange regardless of its age.
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fetchLocked(ctx); err != nil {
		return 0, err
	}
	return len(c.snapshot.Symbols), nil
}

// -----------------------------------------------------------------------------

func (c *Catalog) symbols(ctx context.Context) ([]models.MSymbolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded && c.store != nil {
		c.loaded = true
		snap, err := c.store.LoadSymbols(ctx)
		if err != nil {
			c.log.Warning("Failed to load cached symbols: %v", err)
		} else if len(snap.Symbols) > 0 {
			c.snapshot = snap
			c.log.Info("Loaded %d cached symbols from %s", len(snap.Symbols), snap.FetchedAt.Format(time.RFC3339))
		}
	}

	if c.fresh() {
		return c.snapshot.Symbols, nil
	}

	err := c.fetchLocked(ctx)
	switch {
	case err == nil:
		return c.snapshot.Symbols, nil
	case errors.Is(err, helpers.ErrProviderDisabled):
		return nil, err
	case len(c.snapshot.Symbols) > 0:
		c.log.Warning("Serving stale symbols from %s: %v", c.snapshot.FetchedAt.Format(time.RFC3339), err)
		return c.snapshot.Symbols, nil
	default:
		return nil, err
	}
}

func (c *Catalog) fresh() bool {
	if len(c.snapshot.Symbols) == 0 {
		return false
	}
	return c.now().Sub(c.snapshot.FetchedAt) < c.ttl
}

// fetchLocked must be called with mu held.
func (c *Catalog) fetchLocked(ctx context.Context) error {
	symbols, err := c.source.ExchangeSymbols(ctx)
	if err != nil {
		return err
	}

	fetchedAt := c.now().UTC()
	c.snapshot = models.MSymbolSnapshot{Symbols: symbols, FetchedAt: fetchedAt}
	if c.store != nil {
		if err := c.store.ReplaceSymbols(ctx, symbols, fetchedAt); err != nil {
			c.log.Error("Failed to cache symbols: %v", err)
		}
	}
	c.log.Info("Refreshed %d exchange symbols", len(symbols))
	return nil
}
