package fetch

import (
	"context"
	"strings"
	"testing"

	"github.com/dnldd/zone/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestHistoricData(t *testing.T) {
	cfg := &HistoricDataConfig{
		FilePath:  "../testdata/buckets.json",
		TradeStep: 0.5,
		Logger:    &log.Logger,
	}

	// Ensure historic data can be initialized.
	historicData, err := NewHistoricData(cfg)
	assert.NoError(t, err)
	assert.Equal(t, historicData.FetchMarket(), "^GSPC")

	bars, err := historicData.FetchBars(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(bars), 3)

	// Ensure buckets are loaded in file order.
	assert.Equal(t, len(bars[0]), 5)
	assert.Equal(t, bars[0][0], shared.PriceBucket{
		Quantity:     4,
		AveragePrice: 103,
		HighPrice:    103.25,
		LowPrice:     102.75,
		MaxPrice:     103.5,
		MinPrice:     102.5,
	})

	// Ensure empty bars are preserved.
	assert.Equal(t, len(bars[1]), 0)

	// Ensure bars recorded as trades are aggregated.
	want := shared.BarBuckets{
		{Quantity: 1, AveragePrice: 99.9, HighPrice: 99.9, LowPrice: 99.9, MaxPrice: 100, MinPrice: 99.5},
		{Quantity: 3, AveragePrice: (100.1*2 + 100.3) / 3, HighPrice: 100.3, LowPrice: 100.1, MaxPrice: 100.5, MinPrice: 100},
		{Quantity: 4, AveragePrice: 100.6, HighPrice: 100.6, LowPrice: 100.6, MaxPrice: 101, MinPrice: 100.5},
	}
	if !cmp.Equal(want, bars[2], cmpopts.EquateApprox(0, 1e-9)) {
		t.Errorf("unexpected aggregated buckets: %s", cmp.Diff(want, bars[2], cmpopts.EquateApprox(0, 1e-9)))
	}

	// Ensure fetched bars cannot alter the loaded data.
	bars[0] = nil
	again, err := historicData.FetchBars(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(again[0]), 5)

	// Ensure trade bars require a valid step.
	_, err = NewHistoricData(&HistoricDataConfig{
		FilePath: "../testdata/buckets.json",
		Logger:   &log.Logger,
	})
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bar 2 is recorded as trades and requires a trade step greater than 0"))

	// Ensure malformed buckets are rejected.
	_, err = NewHistoricData(&HistoricDataConfig{
		FilePath:  "../testdata/invalidbuckets.json",
		TradeStep: 0.5,
		Logger:    &log.Logger,
	})
	assert.Error(t, err)

	// Ensure a missing file is rejected.
	_, err = NewHistoricData(&HistoricDataConfig{
		FilePath: "../testdata/missing.json",
		Logger:   &log.Logger,
	})
	assert.Error(t, err)
}
