package engine

import (
	"context"
	"fmt"
	"time"

	"papertrade/types"
)

type DataFeed struct {
	Ticker   string
	Interval types.Interval
	Start    time.Time
	End      time.Time
}

func NewDataFeed(ticker string, interval types.Interval, start, end time.Time) DataFeed {
	return DataFeed{
		Ticker:   ticker,
		Interval: interval,
		Start:    start,
		End:      end,
	}
}

// LoadFeeds fetches every feed from the store and keys the candles by ticker,
// ready for Engine.Run.
func LoadFeeds(ctx context.Context, store dataStore, feeds []DataFeed) (map[string][]types.Candle, error) {
	out := make(map[string][]types.Candle, len(feeds))
	for _, feed := range feeds {
		asset, err := store.GetAssetByTicker(ctx, feed.Ticker)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", feed.Ticker, err)
		}
		candles, err := store.GetAggregates(ctx, asset.Id, feed.Ticker, feed.Interval, feed.Start, feed.End)
		if err != nil {
			return nil, fmt.Errorf("load %s candles: %w", feed.Ticker, err)
		}
		out[feed.Ticker] = candles
	}
	return out, nil
}
