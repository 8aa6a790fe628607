package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/zone/shared"
	"github.com/peterldowns/testy/assert"
	"go.uber.org/atomic"
)

// staticProvider serves a fixed set of bars.
type staticProvider struct {
	bars    []shared.BarBuckets
	err     error
	fetches atomic.Int32
}

func (p *staticProvider) FetchBars(ctx context.Context) ([]shared.BarBuckets, error) {
	p.fetches.Inc()
	if p.err != nil {
		return nil, p.err
	}

	return p.bars, nil
}

func TestZoneConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ZoneConfig
		wantErr []string
	}{
		{
			name: "valid file config",
			cfg: ZoneConfig{
				Size:         70,
				DataFilepath: "buckets.json",
			},
		},
		{
			name: "valid database config",
			cfg: ZoneConfig{
				Size:       100,
				DBEndpoint: "http://localhost:4001",
				Workers:    4,
				Interval:   time.Minute,
			},
		},
		{
			name: "zero size",
			cfg: ZoneConfig{
				Size:         0,
				DataFilepath: "buckets.json",
			},
			wantErr: []string{"zone size must be greater than 0 and at most 100"},
		},
		{
			name: "oversized, no source",
			cfg: ZoneConfig{
				Size: 150,
			},
			wantErr: []string{
				"zone size must be greater than 0 and at most 100",
				"no bucket data filepath or database endpoint provided",
			},
		},
		{
			name: "both sources, negative workers and interval",
			cfg: ZoneConfig{
				Size:         70,
				DataFilepath: "buckets.json",
				DBEndpoint:   "http://localhost:4001",
				Workers:      -1,
				Interval:     -time.Second,
				TradeStep:    -1,
			},
			wantErr: []string{
				"only one of bucket data filepath or database endpoint can be provided",
				"workers cannot be negative",
				"interval cannot be negative",
				"trade step cannot be negative",
			},
		},
		{
			name: "provider override needs no source",
			cfg: ZoneConfig{
				Size:     70,
				Provider: &staticProvider{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}

			if err == nil {
				t.Errorf("expected error(s) %v, got none", tt.wantErr)
				return
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("expected error to contain %q, got %v", want, err)
				}
			}
		})
	}
}

func TestWriteZones(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZones(&buf, []shared.ValueArea{
		{Upper: 103.25, Lower: 101.75},
		{Upper: 0, Lower: 0},
	})
	assert.NoError(t, err)
	assert.Equal(t, buf.String(), "bar,upper,lower\n0,103.25,101.75\n1,0,0\n")
}

func TestZone(t *testing.T) {
	ctx := context.Background()

	// Ensure the service can compute zones from a historic data file.
	var buf bytes.Buffer
	zone, err := NewZone(ctx, &ZoneConfig{
		Size:         70,
		BorderPolicy: shared.HighLow,
		DataFilepath: "../testdata/buckets.json",
		TradeStep:    0.5,
		Workers:      2,
		Output:       &buf,
	})
	assert.NoError(t, err)

	err = zone.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, buf.String(), "bar,upper,lower\n0,103.25,101.75\n1,0,0\n2,100.6,100.1\n")

	// Ensure invalid configurations are rejected before any data is loaded.
	_, err = NewZone(ctx, &ZoneConfig{
		Size:         0,
		DataFilepath: "../testdata/buckets.json",
	})
	assert.Error(t, err)

	// Ensure unsupported data formats are rejected.
	_, err = NewZone(ctx, &ZoneConfig{
		Size:         70,
		DataFilepath: "../testdata/buckets.csv",
	})
	assert.Error(t, err)

	// Ensure provider failures are surfaced.
	failing := &staticProvider{err: errors.New("provider unavailable")}
	zone, err = NewZone(ctx, &ZoneConfig{
		Size:     70,
		Provider: failing,
		Output:   io.Discard,
	})
	assert.NoError(t, err)

	err = zone.Run(ctx)
	assert.Error(t, err)
	assert.Equal(t, failing.fetches.Load(), int32(1))

	// Ensure computed zones follow the configured border policy.
	provider := &staticProvider{
		bars: []shared.BarBuckets{
			{
				{Quantity: 2, AveragePrice: 100, HighPrice: 100.25, LowPrice: 99.75, MaxPrice: 100.5, MinPrice: 99.5},
				{Quantity: 10, AveragePrice: 102, HighPrice: 102.25, LowPrice: 101.75, MaxPrice: 102.5, MinPrice: 101.5},
				{Quantity: 4, AveragePrice: 103, HighPrice: 103.25, LowPrice: 102.75, MaxPrice: 103.5, MinPrice: 102.5},
				{Quantity: 3, AveragePrice: 101, HighPrice: 101.25, LowPrice: 100.75, MaxPrice: 101.5, MinPrice: 100.5},
				{Quantity: 1, AveragePrice: 104, HighPrice: 104.25, LowPrice: 103.75, MaxPrice: 104.5, MinPrice: 103.5},
			},
		},
	}
	zone, err = NewZone(ctx, &ZoneConfig{
		Size:         100,
		BorderPolicy: shared.MaxMin,
		Provider:     provider,
	})
	assert.NoError(t, err)

	areas, err := zone.Compute(ctx)
	assert.NoError(t, err)
	assert.Equal(t, areas, []shared.ValueArea{{Upper: 104.5, Lower: 99.5}})
}

func TestZoneScheduled(t *testing.T) {
	provider := &staticProvider{
		bars: []shared.BarBuckets{
			{{Quantity: 1, AveragePrice: 100, HighPrice: 100, LowPrice: 100, MaxPrice: 100.5, MinPrice: 99.5}},
		},
	}

	zone, err := NewZone(context.Background(), &ZoneConfig{
		Size:     70,
		Provider: provider,
		Interval: time.Millisecond * 50,
		Output:   io.Discard,
	})
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*400)
	defer cancel()

	// Ensure scheduled computations run until the context is cancelled.
	err = zone.Run(ctx)
	assert.NoError(t, err)
	assert.GreaterThan(t, provider.fetches.Load(), int32(1))
}
