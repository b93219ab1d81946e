package main

import (
	"context"

	"kline-relay/src/catalog"
	"kline-relay/src/config"
	"kline-relay/src/data_source/binance"
	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/network"
	"kline-relay/src/relay"
	"kline-relay/src/storage"
)

// dataSources groups the two faces of the Binance provider.
type dataSources struct {
	stream *binance.Provider
	rest   *binance.Client
}

// -----------------------------------------------------------------------------

// setupDatabase opens the symbol cache. The relay runs without one when the
// store is disabled or cannot be opened; the pair picker then always asks Binance.
func setupDatabase(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) interfaces.IDatabase {
	dbLogger := logger.NewLogger(cfg, "SymbolStore")

	db, err := storage.New(cfg.MConfig, dbLogger)
	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		return nil
	}
	if db == nil {
		appLogger.Info("Symbol cache disabled")
		return nil
	}
	if err := db.Initialize(ctx); err != nil {
		appLogger.Error("Failed to migrate db: %v", err)
		db.Close()
		return nil
	}
	return db
}

// -----------------------------------------------------------------------------

func setupNetwork(cfg *config.Config) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(cfg.MConfig, logger.NewLogger(cfg, "NetworkManager"))
}

// -----------------------------------------------------------------------------

func setupDataSources(cfg *config.Config, networkManager interfaces.INetworkManager) dataSources {
	return dataSources{
		stream: binance.NewProvider(cfg.MConfig, logger.NewLogger(cfg, "BinanceStream")),
		rest:   binance.NewClient(cfg.MConfig, networkManager, logger.NewLogger(cfg, "BinanceREST")),
	}
}

// -----------------------------------------------------------------------------

func setupCatalog(cfg *config.Config, source interfaces.IMarketData, db interfaces.IDatabase) *catalog.Catalog {
	return catalog.New(source, db, cfg.MConfig, logger.NewLogger(cfg, "PairCatalog"))
}

// -----------------------------------------------------------------------------

func setupRelay(cfg *config.Config, upstream interfaces.IUpstream) *relay.Relay {
	if cfg.Relay.MaxUpstreamSymbols <= 0 || cfg.Relay.MaxUpstreamSymbols > binance.MaxStreams {
		cfg.Relay.MaxUpstreamSymbols = binance.MaxStreams
	}
	return relay.New(upstream, cfg.MConfig, logger.NewLogger(cfg, "Relay"))
}
