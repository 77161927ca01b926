package engine

import (
	"io"
	"maps"
	"slices"
	"time"

	"papertrade/types"

	"github.com/schollz/progressbar/v3"
)

// BarRecord is everything that happened at one timestamp.
type BarRecord struct {
	Timestamp        time.Time
	Candles          map[string]types.Candle
	SnapshotBefore   types.PortfolioSnapshot
	SnapshotAfter    types.PortfolioSnapshot
	OrderIntents     []types.OrderIntent
	ExecutionDetails []ExecutionDetail
}

type backtester struct {
	series     map[string][]types.Candle
	timestamps []time.Time
	// index of the next unconsumed candle per symbol
	feedIndex  map[string]int
	broker     *Broker
	strategy   Strategy
	maxHistory int
	progress   io.Writer
}

func newBacktester(series map[string][]types.Candle, broker *Broker, strat Strategy, maxHistory int, progress io.Writer) *backtester {
	feedIndex := make(map[string]int, len(series))
	for sym := range series {
		feedIndex[sym] = 0
	}
	return &backtester{
		series:     series,
		timestamps: unionTimestamps(series),
		feedIndex:  feedIndex,
		broker:     broker,
		strategy:   strat,
		maxHistory: maxHistory,
		progress:   progress,
	}
}

func (b *backtester) run() []BarRecord {
	var bar *progressbar.ProgressBar
	if b.progress != nil {
		bar = initProgressBar(b.progress, len(b.timestamps))
	}

	records := make([]BarRecord, 0, len(b.timestamps))
	for _, ts := range b.timestamps {
		current := b.advance(ts)
		before := b.broker.Snapshot(current, ts)

		ctx := &BarContext{
			Timestamp:  ts,
			Candles:    maps.Clone(current),
			Snapshot:   before,
			history:    b.history(),
			maxHistory: b.maxHistory,
		}
		intents := slices.Clone(b.strategy.OnBar(ctx))

		after, details := b.broker.ProcessBars(current, intents)
		records = append(records, BarRecord{
			Timestamp:        ts,
			Candles:          current,
			SnapshotBefore:   before,
			SnapshotAfter:    after,
			OrderIntents:     intents,
			ExecutionDetails: details,
		})

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return records
}

// advance consumes the candle of every symbol stamped ts. Index only goes one
// way.
func (b *backtester) advance(ts time.Time) map[string]types.Candle {
	current := make(map[string]types.Candle)
	for sym, candles := range b.series {
		i := b.feedIndex[sym]
		if i < len(candles) && candles[i].Timestamp.Equal(ts) {
			current[sym] = candles[i]
			b.feedIndex[sym] = i + 1
		}
	}
	return current
}

// history exposes every consumed candle per symbol, nothing after the
// current timestamp.
func (b *backtester) history() map[string][]types.Candle {
	out := make(map[string][]types.Candle, len(b.series))
	for sym, candles := range b.series {
		out[sym] = candles[:b.feedIndex[sym]]
	}
	return out
}

func unionTimestamps(series map[string][]types.Candle) []time.Time {
	var all []time.Time
	for _, candles := range series {
		for _, c := range candles {
			all = append(all, c.Timestamp)
		}
	}
	slices.SortFunc(all, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(all, func(a, b time.Time) bool { return a.Equal(b) })
}

func initProgressBar(w io.Writer, maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
