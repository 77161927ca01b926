package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"papertrade/types"

	"github.com/shopspring/decimal"
)

func TestEngine_Run_UnionOfTimestamps(t *testing.T) {
	input := map[string][]types.Candle{
		"AAPL": {
			newCandle("AAPL", at(0), "100"),
			newCandle("AAPL", at(1), "101"),
			newCandle("AAPL", at(2), "102"),
		},
		"MSFT": {
			newCandle("MSFT", at(1), "200"),
			newCandle("MSFT", at(3), "210"),
		},
	}

	var seen []time.Time
	var symbolsPerBar [][]string
	strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
		seen = append(seen, ctx.Timestamp)
		symbolsPerBar = append(symbolsPerBar, ctx.Symbols())
		return nil
	})

	records, err := newTestEngine(t, strat).Run(input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []time.Time{at(0), at(1), at(2), at(3)}
	if len(records) != len(want) || len(seen) != len(want) {
		t.Fatalf("got %d records / %d strategy calls, want %d", len(records), len(seen), len(want))
	}
	for i := range want {
		if !records[i].Timestamp.Equal(want[i]) || !seen[i].Equal(want[i]) {
			t.Fatalf("bar %d at %s (strategy saw %s), want %s", i, records[i].Timestamp, seen[i], want[i])
		}
	}

	wantSymbols := [][]string{{"AAPL"}, {"AAPL", "MSFT"}, {"AAPL"}, {"MSFT"}}
	for i, syms := range wantSymbols {
		if !slices.Equal(symbolsPerBar[i], syms) {
			t.Fatalf("bar %d symbols = %v, want %v", i, symbolsPerBar[i], syms)
		}
		if len(records[i].Candles) != len(syms) {
			t.Fatalf("bar %d record has %d candles, want %d", i, len(records[i].Candles), len(syms))
		}
	}
}

func TestEngine_Run_NoLookAhead(t *testing.T) {
	input := map[string][]types.Candle{
		"AAPL": mockCandles("AAPL", 10, "100"),
		"MSFT": mockCandles("MSFT", 10, "50"),
	}

	strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
		for _, sym := range []string{"AAPL", "MSFT"} {
			hist := ctx.GetHistory(sym, 0)
			last := hist[len(hist)-1]
			if last.Timestamp.After(ctx.Timestamp) {
				t.Fatalf("%s history reaches %s at bar %s", sym, last.Timestamp, ctx.Timestamp)
			}
			if !last.Timestamp.Equal(ctx.Timestamp) {
				t.Fatalf("%s history does not include the current bar", sym)
			}
		}
		return nil
	})

	if _, err := newTestEngine(t, strat).Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestBarContext_HistoryLimits(t *testing.T) {
	tests := []struct {
		name       string
		maxHistory int
		limit      int
		bar        int
		wantLen    int
	}{
		{name: "unbounded", maxHistory: 0, limit: 0, bar: 6, wantLen: 7},
		{name: "limit only", maxHistory: 0, limit: 3, bar: 6, wantLen: 3},
		{name: "engine cap", maxHistory: 4, limit: 0, bar: 6, wantLen: 4},
		{name: "limit under cap", maxHistory: 4, limit: 2, bar: 6, wantLen: 2},
		{name: "limit above cap", maxHistory: 4, limit: 10, bar: 6, wantLen: 4},
		{name: "not enough bars yet", maxHistory: 0, limit: 5, bar: 1, wantLen: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []types.Candle
			var series []decimal.Decimal
			bars := 0
			strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
				if bars == tc.bar {
					got = ctx.GetHistory("AAPL", tc.limit)
					series = ctx.GetSeries("AAPL", types.FieldClose, tc.limit)
				}
				bars++
				return nil
			})

			input := map[string][]types.Candle{"AAPL": mockCandles("AAPL", 8, "100")}
			if _, err := newTestEngine(t, strat, WithMaxHistory(tc.maxHistory)).Run(input); err != nil {
				t.Fatalf("Run: %v", err)
			}

			if len(got) != tc.wantLen || len(series) != tc.wantLen {
				t.Fatalf("history len = %d, series len = %d, want %d", len(got), len(series), tc.wantLen)
			}
			if !got[len(got)-1].Timestamp.Equal(at(tc.bar)) {
				t.Fatalf("last candle at %s, want %s", got[len(got)-1].Timestamp, at(tc.bar))
			}
			for i, c := range got {
				if !series[i].Equal(c.Close) {
					t.Fatalf("series[%d] = %s, want close %s", i, series[i], c.Close)
				}
			}
		})
	}
}

func TestBarContext_GetSeries(t *testing.T) {
	ctx := &BarContext{
		history: map[string][]types.Candle{
			"AAPL": {
				{Open: d("1"), High: d("3"), Low: d("0.5"), Close: d("2"), Volume: d("10")},
				{Open: d("2"), High: d("4"), Low: d("1.5"), Close: d("3"), Volume: d("20")},
			},
		},
	}

	if got := ctx.GetSeries("AAPL", types.FieldHigh, 0); len(got) != 2 || !got[1].Equal(d("4")) {
		t.Fatalf("high series = %v", got)
	}
	if got := ctx.GetSeries("AAPL", types.FieldVolume, 1); len(got) != 1 || !got[0].Equal(d("20")) {
		t.Fatalf("volume series = %v", got)
	}
	if got := ctx.GetSeries("AAPL", types.Field("vwap"), 0); got != nil {
		t.Fatalf("unknown field = %v, want nil", got)
	}
	if got := ctx.GetSeries("MSFT", types.FieldClose, 0); len(got) != 0 {
		t.Fatalf("unknown symbol = %v, want empty", got)
	}
}

func TestBarContext_HistoryIsACopy(t *testing.T) {
	input := map[string][]types.Candle{"AAPL": mockCandles("AAPL", 3, "100")}
	strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
		hist := ctx.GetHistory("AAPL", 0)
		if !hist[0].Close.Equal(d("100")) {
			t.Fatalf("history mutated by an earlier bar: close = %s", hist[0].Close)
		}
		hist[0].Close = d("-1")
		return nil
	})

	if _, err := newTestEngine(t, strat).Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestEngine_Run_InvalidSeries(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string][]types.Candle
		wantErr error
	}{
		{
			name: "descending timestamps",
			input: map[string][]types.Candle{"AAPL": {
				newCandle("AAPL", at(1), "100"),
				newCandle("AAPL", at(0), "100"),
			}},
			wantErr: ErrNonMonotonicSeries,
		},
		{
			name: "duplicate timestamp",
			input: map[string][]types.Candle{"AAPL": {
				newCandle("AAPL", at(0), "100"),
				newCandle("AAPL", at(0), "101"),
			}},
			wantErr: ErrNonMonotonicSeries,
		},
		{
			name: "candle keyed under another symbol",
			input: map[string][]types.Candle{"AAPL": {
				newCandle("MSFT", at(0), "100"),
			}},
			wantErr: ErrSymbolMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
				calls++
				return nil
			})
			records, err := newTestEngine(t, strat).Run(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
			if records != nil || calls != 0 {
				t.Fatalf("replay started on invalid input")
			}
		})
	}
}

func TestEngine_Run_FillsEmptySymbol(t *testing.T) {
	c := newCandle("", at(0), "100")
	input := map[string][]types.Candle{"AAPL": {c}}

	records, err := newTestEngine(t, StrategyFunc(func(*BarContext) []types.OrderIntent { return nil })).Run(input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := records[0].Candles["AAPL"].Symbol; got != "AAPL" {
		t.Fatalf("symbol = %q, want AAPL", got)
	}
	if input["AAPL"][0].Symbol != "" {
		t.Fatalf("input was mutated")
	}
}

func TestEngine_Run_RecordsAndSnapshots(t *testing.T) {
	input := map[string][]types.Candle{
		"AAPL": {
			newCandle("AAPL", at(0), "100"),
			newCandle("AAPL", at(1), "120"),
		},
		"MSFT": {
			newCandle("MSFT", at(0), "50"),
			newCandle("MSFT", at(1), "55"),
			newCandle("MSFT", at(2), "60"),
		},
	}

	strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
		if ctx.Timestamp.Equal(at(0)) {
			return []types.OrderIntent{
				types.NewMarketOrder("AAPL", types.SideTypeBuy, d("10"), ""),
				types.NewMarketOrder("MSFT", types.SideTypeBuy, d("1000"), "too big"),
			}
		}
		return nil
	})

	records, err := newTestEngine(t, strat).Run(input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if len(first.OrderIntents) != 2 || len(first.ExecutionDetails) != 2 {
		t.Fatalf("first bar intents/details = %d/%d", len(first.OrderIntents), len(first.ExecutionDetails))
	}
	if !first.ExecutionDetails[0].Executed() || first.ExecutionDetails[1].Reason != ReasonInsufficientCash {
		t.Fatalf("unexpected outcomes: %+v", first.ExecutionDetails)
	}
	if !first.SnapshotBefore.Cash.Equal(d("10000")) || len(first.SnapshotBefore.Positions) != 0 {
		t.Fatalf("before snapshot includes the bar's trades: %+v", first.SnapshotBefore)
	}
	if !first.SnapshotAfter.Cash.Equal(d("9000")) {
		t.Fatalf("after cash = %s, want 9000", first.SnapshotAfter.Cash)
	}

	for i := 1; i < len(records); i++ {
		if !records[i].SnapshotBefore.Cash.Equal(records[i-1].SnapshotAfter.Cash) {
			t.Fatalf("bar %d starts with cash %s, previous bar ended with %s",
				i, records[i].SnapshotBefore.Cash, records[i-1].SnapshotAfter.Cash)
		}
		if len(records[i].ExecutionDetails) != 0 {
			t.Fatalf("bar %d has details without intents", i)
		}
	}

	if !records[1].SnapshotAfter.Equity.Equal(d("10200")) {
		t.Fatalf("bar 1 equity = %s, want 10200", records[1].SnapshotAfter.Equity)
	}
	// no AAPL candle at bar 2: valued at its last close
	if !records[2].SnapshotBefore.Equity.Equal(d("10200")) {
		t.Fatalf("bar 2 equity = %s, want 10200", records[2].SnapshotBefore.Equity)
	}
}

func TestEngine_Run_Deterministic(t *testing.T) {
	input := map[string][]types.Candle{
		"AAPL": mockCandles("AAPL", 20, "100"),
		"MSFT": mockCandles("MSFT", 20, "30"),
	}
	strat := StrategyFunc(func(ctx *BarContext) []types.OrderIntent {
		var out []types.OrderIntent
		for _, sym := range ctx.Symbols() {
			side := types.SideTypeBuy
			if len(ctx.GetHistory(sym, 0))%3 == 0 {
				side = types.SideTypeSell
			}
			out = append(out, types.NewMarketOrder(sym, side, d("7"), ""))
		}
		return out
	})

	run := func() []BarRecord {
		records, err := newTestEngine(t, strat).Run(input)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return records
	}
	a, b := run(), run()
	for i := range a {
		if !a[i].SnapshotAfter.Equity.Equal(b[i].SnapshotAfter.Equity) ||
			!a[i].SnapshotAfter.Cash.Equal(b[i].SnapshotAfter.Cash) {
			t.Fatalf("bar %d differs between runs", i)
		}
		for j := range a[i].ExecutionDetails {
			if a[i].ExecutionDetails[j].Status != b[i].ExecutionDetails[j].Status {
				t.Fatalf("bar %d detail %d differs between runs", i, j)
			}
		}
	}
}

func TestEngine_Run_Progress(t *testing.T) {
	var buf bytes.Buffer
	strat := StrategyFunc(func(*BarContext) []types.OrderIntent { return nil })
	input := map[string][]types.Candle{"AAPL": mockCandles("AAPL", 5, "100")}

	if _, err := newTestEngine(t, strat, WithProgress(&buf)).Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("no progress output")
	}
}

func TestUnionTimestamps(t *testing.T) {
	series := map[string][]types.Candle{
		"A": {{Timestamp: at(0)}, {Timestamp: at(2)}, {Timestamp: at(4)}},
		"B": {{Timestamp: at(1)}, {Timestamp: at(2)}},
		"C": nil,
	}
	got := unionTimestamps(series)
	want := []time.Time{at(0), at(1), at(2), at(4)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// Helper functions

func at(i int) time.Time {
	return t0.Add(time.Duration(i) * time.Minute)
}

func mockCandles(symbol string, n int, closePrice string) []types.Candle {
	out := make([]types.Candle, n)
	for i := range n {
		out[i] = newCandle(symbol, at(i), closePrice)
	}
	return out
}

func newTestEngine(t *testing.T, strat Strategy, opts ...Option) *Engine {
	t.Helper()
	b := newTestBroker(t, "10000", "0", "0.5", "0.3")
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler)), WithRunID("test")}, opts...)
	return NewEngine(b, strat, opts...)
}

func TestNewBarContext(t *testing.T) {
	history := map[string][]types.Candle{
		"AAPL": mockCandles("AAPL", 3, "100"),
		"MSFT": mockCandles("MSFT", 2, "50"),
	}
	ctx := NewBarContext(at(2), types.PortfolioSnapshot{Cash: d("1")}, history)

	if !slices.Equal(ctx.Symbols(), []string{"AAPL"}) {
		t.Fatalf("symbols = %v, want [AAPL]", ctx.Symbols())
	}
	if got := ctx.GetHistory("MSFT", 0); len(got) != 2 {
		t.Fatalf("MSFT history len = %d, want 2", len(got))
	}
	if !ctx.Snapshot.Cash.Equal(d("1")) {
		t.Fatalf("snapshot not carried")
	}
}
