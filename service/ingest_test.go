package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dnldd/zone/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// memoryStorer keeps persisted buckets in memory.
type memoryStorer struct {
	bars   map[int64]shared.BarBuckets
	failAt int64
}

func (s *memoryStorer) PersistBuckets(ctx context.Context, bar int64, buckets shared.BarBuckets) error {
	if bar == s.failAt {
		return errors.New("node unavailable")
	}

	s.bars[bar] = buckets
	return nil
}

func TestIngestConfigValidate(t *testing.T) {
	cfg := IngestConfig{
		DataFilepath: "buckets.json",
		DBEndpoint:   "http://localhost:4001",
	}
	assert.NoError(t, cfg.Validate())

	// Ensure both a data file and a database are required.
	err := (&IngestConfig{TradeStep: -1}).Validate()
	assert.Error(t, err)
	for _, want := range []string{
		"ingestion requires a bucket data filepath",
		"ingestion requires a database endpoint",
		"trade step cannot be negative",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to contain %q, got %v", want, err)
		}
	}

	_, err = Ingest(context.Background(), &IngestConfig{DataFilepath: "buckets.json"})
	assert.Error(t, err)
}

func TestIngestBars(t *testing.T) {
	ctx := context.Background()

	source, err := newFileProvider("../testdata/buckets.json", 0.5, &log.Logger)
	assert.NoError(t, err)
	want, err := source.FetchBars(ctx)
	assert.NoError(t, err)

	// Ensure every bar is persisted under its index, empty bars included.
	storer := &memoryStorer{bars: make(map[int64]shared.BarBuckets), failAt: -1}
	count, err := ingestBars(ctx, source, storer, &log.Logger)
	assert.NoError(t, err)
	assert.Equal(t, count, 3)
	assert.Equal(t, len(storer.bars), 3)
	for idx := range want {
		if !cmp.Equal(want[idx], storer.bars[int64(idx)]) {
			t.Errorf("bar %d: %s", idx, cmp.Diff(want[idx], storer.bars[int64(idx)]))
		}
	}

	// Ensure storage failures stop ingestion.
	failing := &memoryStorer{bars: make(map[int64]shared.BarBuckets), failAt: 1}
	count, err = ingestBars(ctx, source, failing, &log.Logger)
	assert.Error(t, err)
	assert.Equal(t, count, 1)

	// Ensure source failures are surfaced.
	_, err = ingestBars(ctx, &staticProvider{err: errors.New("unreadable")}, storer, &log.Logger)
	assert.Error(t, err)

	// Ensure a cancelled context stops ingestion before storing.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	empty := &memoryStorer{bars: make(map[int64]shared.BarBuckets), failAt: -1}
	_, err = ingestBars(cancelled, source, empty, &log.Logger)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, len(empty.bars), 0)
}
