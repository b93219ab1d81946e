package server

import (
	"errors"
	"net/http"
	"strings"

	"kline-relay/src/helpers"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode":    status,
		"statusMessage": message,
	})
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getKlines(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		abortWithError(c, http.StatusBadRequest, "Symbol query parameter is required.")
		return
	}

	row, err := s.market.LatestKline(c.Request.Context(), symbol, s.Config.Binance.Interval)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "application/json; charset=utf-8", row)
	case errors.Is(err, helpers.ErrProviderDisabled):
		abortWithError(c, http.StatusServiceUnavailable, "Binance service is not configured on the server.")
	default:
		s.Logger.Error("Failed to fetch klines for %s from Binance: %v", symbol, err)
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch klines for "+symbol+".")
	}
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getPairs(c *gin.Context) {
	pairs, err := s.pairs.Pairs(c.Request.Context(), c.Query("query"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, pairs)
	case errors.Is(err, helpers.ErrProviderDisabled):
		abortWithError(c, http.StatusServiceUnavailable, "Binance service is not configured on the server.")
	default:
		s.Logger.Error("Failed to fetch pairs from Binance: %v", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch trading pairs from Binance.")
	}
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getHealth(c *gin.Context) {
	st := s.relay.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"connections":      s.clientCount(),
		"upstream_state":   st.State,
		"upstream_enabled": st.UpstreamEnabled,
	})
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"interval":                s.Config.Binance.Interval,
		"max_symbols_per_session": s.Config.Relay.MaxSymbolsPerSession,
		"max_upstream_symbols":    s.Config.Relay.MaxUpstreamSymbols,
		"upstream_enabled":        s.Config.Binance.HasCredentials(),
	})
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.relay.Status())
}
