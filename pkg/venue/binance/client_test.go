package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderboard/pkg/ledger"
	"traderboard/pkg/pricing"
	"traderboard/pkg/venue"
)

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const exchangeInfoBody = `{"symbols":[
  {"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","baseAssetPrecision":8,"quoteAsset":"USDT"},
  {"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","baseAssetPrecision":8,"quoteAsset":"BTC"}
]}`

func newTestProvider(t *testing.T, routes map[string]string) *Provider {
	t.Helper()
	srv := newTestServer(t, routes)
	return New("binance", &venue.ProviderConfig{Type: "binance", BaseURL: srv.URL})
}

func TestPriceTable(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v3/ticker/24hr": `[
  {"symbol":"BTCUSDT","lastPrice":"60000.00","openPrice":"58000.00","highPrice":"61000.00","lowPrice":"57500.00","count":123456},
  {"symbol":"ETHBTC","lastPrice":"0.05","openPrice":"0.049","highPrice":"0.051","lowPrice":"0.048","count":0},
  {"symbol":"BADSYM","lastPrice":"not-a-number","openPrice":"0","highPrice":"0","lowPrice":"0","count":1}
]`,
		"/api/v3/exchangeInfo": exchangeInfoBody,
	})

	table, err := p.PriceTable(context.Background())
	require.NoError(t, err)

	btc, ok := table.Ticker("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "60000", btc.Last.String())
	assert.Equal(t, int64(123456), btc.TradeCount)

	eth, ok := table.Ticker("ETHBTC")
	require.True(t, ok)
	assert.Equal(t, int64(0), eth.TradeCount, "dead markets keep their zero trade count")

	_, ok = table.Ticker("BADSYM")
	assert.False(t, ok, "unparseable tickers are dropped")

	info, ok := table.SymbolInfo("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "BTC", info.BaseAsset)
	assert.Equal(t, "USDT", info.QuoteAsset)
}

func TestCandles(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v3/klines": `[
  [1700000000000,"100.0","105.0","99.0","102.0","10.0",1700003599999,"1000.0",50,"5.0","500.0","0"],
  [1700003600000,"102.0","110.0","101.0","108.0","12.0",1700007199999,"1200.0",60,"6.0","600.0","0"]
]`,
	})

	from := time.UnixMilli(1700000000000).UTC()
	to := time.UnixMilli(1700003600000).UTC()
	candles, err := p.Candles(context.Background(), "btcusdt", pricing.IntervalHour, from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, from, candles[0].OpenTime)
	assert.Equal(t, "100", candles[0].Open.String())
	assert.Equal(t, "102", candles[0].Close.String())
	assert.Equal(t, "108", candles[1].Close.String())
	assert.True(t, candles[1].CloseTime.After(candles[1].OpenTime))
}

func TestBalances(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v3/account": `{"balances":[
  {"asset":"BTC","free":"1.5","locked":"0.5"},
  {"asset":"usdt","free":"1000.0","locked":"0"},
  {"asset":"DUST","free":"0","locked":"0"}
]}`,
	})

	src := p.AccountSource("key", "secret")
	balances, err := src.Balances(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2", balances["BTC"].String(), "free and locked are summed")
	assert.Equal(t, "1000", balances["USDT"].String(), "assets are uppercased")
	_, ok := balances["DUST"]
	assert.False(t, ok, "zero balances are dropped")
}

func TestTradesSplitsSymbolLegs(t *testing.T) {
	p := newTestProvider(t, map[string]string{
		"/api/v3/exchangeInfo": exchangeInfoBody,
		"/api/v3/myTrades": `[
  {"id":1,"symbol":"BTCUSDT","price":"60000.0","qty":"0.1","quoteQty":"6000.0","time":1700000000000,"isBuyer":true},
  {"id":2,"symbol":"BTCUSDT","price":"61000.0","qty":"0.2","quoteQty":"12200.0","time":1700001000000,"isBuyer":false}
]`,
	})

	src := p.AccountSource("key", "secret")
	from := time.UnixMilli(1699990000000).UTC()
	to := time.UnixMilli(1700010000000).UTC()
	events, err := src.Trades(context.Background(), "BTCUSDT", from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)

	buy := events[0]
	assert.Equal(t, ledger.KindTrade, buy.Kind)
	assert.Equal(t, "BTC", buy.Asset)
	assert.Equal(t, "USDT", buy.Quote)
	assert.Equal(t, ledger.SideBuy, buy.Side)
	assert.Equal(t, "0.1", buy.Amount.String())
	assert.Equal(t, "60000", buy.Price.String())
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), buy.Time)

	assert.Equal(t, ledger.SideSell, events[1].Side)

	_, err = src.Trades(context.Background(), "NOPEUSD", from, to)
	assert.Error(t, err)
}

func TestProviderRegistered(t *testing.T) {
	cfg := &venue.Config{
		Default: "binance",
		Providers: map[string]*venue.ProviderConfig{
			"binance": {Type: "binance"},
		},
	}
	require.NoError(t, cfg.Validate())

	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	require.Contains(t, providers, "binance")
	assert.Equal(t, "binance", providers["binance"].Name())
}
