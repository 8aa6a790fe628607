package fetch

import (
	"context"
	"fmt"
	"os"

	"github.com/dnldd/zone/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HistoricDataConfig represents the historic bucket data source configuration.
type HistoricDataConfig struct {
	// FilePath is the filepath to the historic bucket data.
	FilePath string
	// TradeStep is the bucket size used to aggregate bars recorded as trades.
	TradeStep float64
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// HistoricData represents historic per bar bucket data.
type HistoricData struct {
	cfg    *HistoricDataConfig
	market string
	bars   []shared.BarBuckets
}

// Ensure historic data implements the BucketProvider interface.
var _ shared.BucketProvider = (*HistoricData)(nil)

// loadHistoricData loads the historic data bytes from the provided file path.
func loadHistoricData(filepath string) (*gjson.Result, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %w", filepath, err)
	}

	if !gjson.ValidBytes(readb) {
		return nil, fmt.Errorf("historic data file with path '%s' is not valid json", filepath)
	}

	b := gjson.ParseBytes(readb)

	return &b, nil
}

// ParseBuckets parses price buckets from the provided json data.
func ParseBuckets(data []gjson.Result) (shared.BarBuckets, error) {
	buckets := make(shared.BarBuckets, 0, len(data))

	for idx := range data {
		quantity := data[idx].Get("quantity")
		if quantity.Type != gjson.Number {
			return nil, fmt.Errorf("bucket %d: quantity is not a number", idx)
		}

		buckets = append(buckets, shared.PriceBucket{
			Quantity:     quantity.Float(),
			AveragePrice: data[idx].Get("averagePrice").Float(),
			HighPrice:    data[idx].Get("highPrice").Float(),
			LowPrice:     data[idx].Get("lowPrice").Float(),
			MaxPrice:     data[idx].Get("maxPrice").Float(),
			MinPrice:     data[idx].Get("minPrice").Float(),
		})
	}

	return buckets, nil
}

// ParseTrades parses trades from the provided json data.
func ParseTrades(data []gjson.Result) ([]shared.Trade, error) {
	trades := make([]shared.Trade, 0, len(data))

	for idx := range data {
		price := data[idx].Get("price")
		quantity := data[idx].Get("quantity")
		if price.Type != gjson.Number || quantity.Type != gjson.Number {
			return nil, fmt.Errorf("trade %d: price and quantity must be numbers", idx)
		}

		trades = append(trades, shared.Trade{
			Price:    price.Float(),
			Quantity: quantity.Float(),
		})
	}

	return trades, nil
}

// NewHistoricData initializes a new historic bucket data source.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	b, err := loadHistoricData(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	data := b.Get("bars")
	if !data.IsArray() {
		return nil, fmt.Errorf("historic data has no bars")
	}

	historicData := &HistoricData{
		cfg:    cfg,
		market: b.Get("market").String(),
	}

	var aggregated int
	for idx, bar := range data.Array() {
		var buckets shared.BarBuckets

		switch {
		case bar.Get("trades").Exists():
			// Bars recorded as raw trades are aggregated into buckets.
			if !(cfg.TradeStep > 0) {
				return nil, fmt.Errorf("bar %d is recorded as trades and requires a trade step greater than 0, got %v",
					idx, cfg.TradeStep)
			}

			trades, err := ParseTrades(bar.Get("trades").Array())
			if err != nil {
				return nil, fmt.Errorf("parsing trades of bar %d: %w", idx, err)
			}

			buckets, err = Aggregate(trades, cfg.TradeStep)
			if err != nil {
				return nil, fmt.Errorf("aggregating trades of bar %d: %w", idx, err)
			}

			aggregated++

		default:
			buckets, err = ParseBuckets(bar.Get("buckets").Array())
			if err != nil {
				return nil, fmt.Errorf("parsing buckets of bar %d: %w", idx, err)
			}
		}

		historicData.bars = append(historicData.bars, buckets)
	}

	cfg.Logger.Info().Msgf("loaded %d %s bars (%d aggregated from trades) from %s",
		len(historicData.bars), historicData.market, aggregated, cfg.FilePath)

	return historicData, nil
}

// FetchBars returns the price buckets of every loaded bar.
func (h *HistoricData) FetchBars(ctx context.Context) ([]shared.BarBuckets, error) {
	bars := make([]shared.BarBuckets, len(h.bars))
	copy(bars, h.bars)

	return bars, nil
}

// FetchMarket returns the market of the loaded data.
func (h *HistoricData) FetchMarket() string {
	return h.market
}
