package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/zone/shared"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createBucketTableSQL = "CREATE TABLE IF NOT EXISTS bucket (bar INTEGER, quantity REAL, averageprice REAL, highprice REAL, lowprice REAL, maxprice REAL, minprice REAL)"
	createBucketIndexSQL = "CREATE INDEX IF NOT EXISTS bucket_bar ON bucket (bar)"
	persistBucketSQL     = "INSERT INTO bucket(bar, quantity, averageprice, highprice, lowprice, maxprice, minprice) VALUES(?,?,?,?,?,?,?)"
	deleteBarSQL         = "DELETE FROM bucket WHERE bar = ?"
	findBucketsSQL       = "SELECT bar, quantity, averageprice, highprice, lowprice, maxprice, minprice FROM bucket ORDER BY bar, rowid"
)

// bucketColumns are the expected columns of a bucket query, in order.
var bucketColumns = []string{"bar", "quantity", "averageprice", "highprice", "lowprice", "maxprice", "minprice"}

// BucketStorer defines the requirements for storing price buckets.
type BucketStorer interface {
	// PersistBuckets replaces the stored price buckets of the provided bar.
	PersistBuckets(ctx context.Context, bar int64, buckets shared.BarBuckets) error
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the BucketStorer and BucketProvider interfaces.
var _ BucketStorer = (*Database)(nil)
var _ shared.BucketProvider = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createBucketTableSQL},
		{SQL: createBucketIndexSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("creating bucket table: %d -> %s", idx, errStr)
	}

	return nil
}

// persistStatements builds the statements replacing the stored price buckets of the provided bar.
func persistStatements(bar int64, buckets shared.BarBuckets) (rqlitehttp.SQLStatements, error) {
	if bar < 0 || bar >= shared.MaxBars {
		return nil, fmt.Errorf("bar index must be in [0, %d), got %d", shared.MaxBars, bar)
	}

	stmts := rqlitehttp.SQLStatements{
		{
			SQL:              deleteBarSQL,
			PositionalParams: []any{bar},
		},
	}

	for idx := range buckets {
		row := shared.NewBucketRow(bar, &buckets[idx])
		stmts = append(stmts, rqlitehttp.SQLStatements{
			{
				SQL: persistBucketSQL,
				PositionalParams: []any{row.Bar, row.Quantity, row.AveragePrice, row.HighPrice,
					row.LowPrice, row.MaxPrice, row.MinPrice},
			},
		}...)
	}

	return stmts, nil
}

// PersistBuckets replaces the stored price buckets of the provided bar.
func (db *Database) PersistBuckets(ctx context.Context, bar int64, buckets shared.BarBuckets) error {
	stmts, err := persistStatements(bar, buckets)
	if err != nil {
		return err
	}

	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting buckets of bar %d: %d -> %s", bar, idx, errStr)
	}

	return nil
}

// toFloat converts the provided query value to a float.
func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", value)
	}
}

// scanBucketRows converts the provided query columns and values to bucket rows.
func scanBucketRows(columns []string, values [][]any) ([]shared.BucketRow, error) {
	if len(columns) != len(bucketColumns) {
		return nil, fmt.Errorf("unexpected bucket columns: %s", strings.Join(columns, ","))
	}
	for idx := range columns {
		if !strings.EqualFold(columns[idx], bucketColumns[idx]) {
			return nil, fmt.Errorf("unexpected bucket column %d: %s", idx, columns[idx])
		}
	}

	rows := make([]shared.BucketRow, 0, len(values))
	for idx := range values {
		if len(values[idx]) != len(bucketColumns) {
			return nil, fmt.Errorf("row %d: expected %d values, got %d", idx, len(bucketColumns), len(values[idx]))
		}

		fields := make([]float64, len(bucketColumns))
		for i := range values[idx] {
			f, err := toFloat(values[idx][i])
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", idx, bucketColumns[i], err)
			}

			fields[i] = f
		}

		// Bar indices are stored as REAL, only whole in range values convert.
		if fields[0] != math.Trunc(fields[0]) || fields[0] < 0 || fields[0] >= shared.MaxBars {
			return nil, fmt.Errorf("row %d: invalid bar index %v", idx, fields[0])
		}

		rows = append(rows, shared.BucketRow{
			Bar:          int64(fields[0]),
			Quantity:     fields[1],
			AveragePrice: fields[2],
			HighPrice:    fields[3],
			LowPrice:     fields[4],
			MaxPrice:     fields[5],
			MinPrice:     fields[6],
		})
	}

	return rows, nil
}

// FetchBars fetches the stored price buckets of every bar.
func (db *Database) FetchBars(ctx context.Context) ([]shared.BarBuckets, error) {
	resp, err := db.client.QuerySingle(ctx, findBucketsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying buckets: %w", err)
	}

	var rows []shared.BucketRow
	for _, result := range resp.GetQueryResults() {
		if result.Error != "" {
			return nil, fmt.Errorf("querying buckets: %s", result.Error)
		}

		set, err := scanBucketRows(result.Columns, result.Values)
		if err != nil {
			db.cfg.Logger.Error().Msgf("unexpected bucket query result: %s", spew.Sdump(result))
			return nil, fmt.Errorf("scanning buckets: %w", err)
		}

		rows = append(rows, set...)
	}

	bars, err := shared.GroupBucketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("grouping buckets: %w", err)
	}

	db.cfg.Logger.Info().Msgf("fetched %d bars from %d stored buckets", len(bars), len(rows))

	return bars, nil
}
