package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type assetRow struct {
	ID         int32
	Ticker     string
	Name       string
	Type       string
	CreatedAt  *time.Time
	ModifiedAt *time.Time
}

type aggregatesParams struct {
	TimeBucket string
	AssetID    int32
	StartTime  time.Time
	EndTime    time.Time
}

type aggregateRow struct {
	Bucket  time.Time
	AssetID int32
	Open    decimal.Decimal
	High    decimal.Decimal
	Low     decimal.Decimal
	Close   decimal.Decimal
	Volume  decimal.Decimal
}

// queries runs the store's SQL against a pool with the decimal codec
// registered.
type queries struct {
	pool *pgxpool.Pool
}

func newQueries(pool *pgxpool.Pool) *queries {
	return &queries{pool: pool}
}

const getAssetByTicker = `
	SELECT id, ticker, name, type, created_at, modified_at
	FROM assets
	WHERE ticker = $1`

func (q *queries) GetAssetByTicker(ctx context.Context, ticker string) (assetRow, error) {
	var a assetRow
	err := q.pool.QueryRow(ctx, getAssetByTicker, ticker).Scan(
		&a.ID, &a.Ticker, &a.Name, &a.Type, &a.CreatedAt, &a.ModifiedAt,
	)
	return a, err
}

// Raw candles are rolled up into the requested bucket size. Start is
// inclusive, end exclusive.
const getAggregates = `
	SELECT
		time_bucket($1::interval, timestamp) AS bucket,
		asset_id,
		first(open, timestamp)  AS open,
		max(high)               AS high,
		min(low)                AS low,
		last(close, timestamp)  AS close,
		sum(volume)             AS volume
	FROM candles
	WHERE asset_id = $2
	  AND timestamp >= $3
	  AND timestamp < $4
	GROUP BY bucket, asset_id
	ORDER BY bucket`

func (q *queries) GetAggregates(ctx context.Context, arg aggregatesParams) ([]aggregateRow, error) {
	rows, err := q.pool.Query(ctx, getAggregates, arg.TimeBucket, arg.AssetID, arg.StartTime, arg.EndTime)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (aggregateRow, error) {
		var r aggregateRow
		err := row.Scan(&r.Bucket, &r.AssetID, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume)
		return r, err
	})
}
