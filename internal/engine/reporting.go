package engine

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"papertrade/types"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Summary struct {
	RunID          string
	Symbols        []string
	Steps          int
	FirstTimestamp time.Time
	LastTimestamp  time.Time

	// Absolute performance
	InitialEquity decimal.Decimal
	FinalEquity   decimal.Decimal
	FinalCash     decimal.Decimal
	NetProfit     decimal.Decimal
	NetProfitPct  decimal.Decimal
	RealizedPnL   decimal.Decimal
	CAGR          decimal.Decimal

	// Trade-level distribution, over trades that realized pnl
	ClosingTrades        int
	AvgWin               decimal.Decimal
	AvgLoss              decimal.Decimal
	ProfitFactor         decimal.Decimal
	MaxConsecutiveLosses int

	// Equity range & drawdown. MaxDrawdown is a positive amount.
	MaxEquity           decimal.Decimal
	MinEquity           decimal.Decimal
	MaxDrawdown         decimal.Decimal
	MaxDrawdownPercent  decimal.Decimal
	MaxDrawdownDuration time.Duration

	// Risk-adjusted
	SharpeRatio decimal.Decimal

	// Orders
	Executed           int
	Rejected           int
	OrdersBySymbol     map[string]map[types.Side]int
	RejectionsByReason map[RejectReason]int

	// Costs
	TotalFees    decimal.Decimal
	FeesBySymbol map[string]decimal.Decimal
}

type equityPoint struct {
	time   time.Time
	equity decimal.Decimal
}

// Summarize aggregates the records of one run. initialCash is used as the
// starting equity when there are no records. riskFreeRate is annual and only
// feeds the Sharpe ratio.
func Summarize(runID string, initialCash, riskFreeRate decimal.Decimal, records []BarRecord) Summary {
	s := Summary{
		RunID:              runID,
		InitialEquity:      initialCash,
		FinalEquity:        initialCash,
		FinalCash:          initialCash,
		MaxEquity:          initialCash,
		MinEquity:          initialCash,
		OrdersBySymbol:     make(map[string]map[types.Side]int),
		RejectionsByReason: make(map[RejectReason]int),
		FeesBySymbol:       make(map[string]decimal.Decimal),
		Steps:              len(records),
	}
	if len(records) == 0 {
		return s
	}

	first, last := records[0], records[len(records)-1]
	s.FirstTimestamp = first.Timestamp
	s.LastTimestamp = last.Timestamp
	s.InitialEquity = first.SnapshotBefore.Equity
	s.FinalEquity = last.SnapshotAfter.Equity
	s.FinalCash = last.SnapshotAfter.Cash
	s.RealizedPnL = last.SnapshotAfter.RealizedPnL
	s.NetProfit = s.FinalEquity.Sub(s.InitialEquity)
	if !s.InitialEquity.IsZero() {
		s.NetProfitPct = s.NetProfit.Div(s.InitialEquity).Mul(hundred)
	}

	symbols := make(map[string]struct{})
	curve := make([]equityPoint, 0, len(records)+1)
	curve = append(curve, equityPoint{time: first.Timestamp, equity: s.InitialEquity})
	var closed []types.Trade
	for _, rec := range records {
		curve = append(curve, equityPoint{time: rec.Timestamp, equity: rec.SnapshotAfter.Equity})
		for sym := range rec.Candles {
			symbols[sym] = struct{}{}
		}
		for _, intent := range rec.OrderIntents {
			bySide := s.OrdersBySymbol[intent.Symbol]
			if bySide == nil {
				bySide = make(map[types.Side]int)
				s.OrdersBySymbol[intent.Symbol] = bySide
			}
			bySide[intent.Side]++
		}
		for _, d := range rec.ExecutionDetails {
			if !d.Executed() {
				s.Rejected++
				s.RejectionsByReason[d.Reason]++
				continue
			}
			s.Executed++
			s.TotalFees = s.TotalFees.Add(d.Trade.Fee)
			s.FeesBySymbol[d.Trade.Symbol] = s.FeesBySymbol[d.Trade.Symbol].Add(d.Trade.Fee)
			if !d.Trade.RealizedPnL.IsZero() {
				closed = append(closed, *d.Trade)
			}
		}
	}
	s.Symbols = slices.Sorted(maps.Keys(symbols))
	s.ClosingTrades = len(closed)

	var wg sync.WaitGroup
	wg.Add(5)
	go func() {
		defer wg.Done()
		s.MaxEquity, s.MinEquity = calcEquityRange(curve)
	}()
	go func() {
		defer wg.Done()
		s.MaxDrawdown, s.MaxDrawdownPercent, s.MaxDrawdownDuration = calcDrawdownMetrics(curve)
	}()
	go func() {
		defer wg.Done()
		s.AvgWin, s.AvgLoss, s.ProfitFactor = calcWinLoss(closed)
		s.MaxConsecutiveLosses = calcMaxConsecutiveLosses(closed)
	}()
	go func() {
		defer wg.Done()
		s.CAGR = calcCAGR(curve)
	}()
	go func() {
		defer wg.Done()
		s.SharpeRatio = calcSharpeRatio(curve, riskFreeRate)
	}()
	wg.Wait()

	return s
}

func calcEquityRange(curve []equityPoint) (decimal.Decimal, decimal.Decimal) {
	hi, lo := curve[0].equity, curve[0].equity
	for _, p := range curve[1:] {
		hi = decimal.Max(hi, p.equity)
		lo = decimal.Min(lo, p.equity)
	}
	return hi, lo
}

// calcDrawdownMetrics returns the largest peak-to-trough fall of the equity
// curve as an amount, as a percentage of the peak, and the time from that
// peak to the trough.
func calcDrawdownMetrics(curve []equityPoint) (decimal.Decimal, decimal.Decimal, time.Duration) {
	if len(curve) == 0 {
		return decimal.Zero, decimal.Zero, 0
	}

	peak := curve[0].equity
	peakTime := curve[0].time
	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	var maxDDDuration time.Duration

	for _, p := range curve {
		if p.equity.GreaterThan(peak) {
			peak = p.equity
			peakTime = p.time
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(p.equity)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			maxDDPct = dd.Div(peak).Mul(hundred)
			maxDDDuration = p.time.Sub(peakTime)
		}
	}
	return maxDD, maxDDPct, maxDDDuration
}

// calcWinLoss works on the net (realized minus fee) result of each closing
// trade. AvgLoss is a positive amount. ProfitFactor is zero without losses.
func calcWinLoss(closed []types.Trade) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	sumWins := decimal.Zero
	sumLosses := decimal.Zero
	winCount, lossCount := 0, 0

	for _, tr := range closed {
		net := tr.RealizedPnL.Sub(tr.Fee)
		switch {
		case net.IsPositive():
			sumWins = sumWins.Add(net)
			winCount++
		case net.IsNegative():
			sumLosses = sumLosses.Add(net.Abs())
			lossCount++
		}
	}

	avgWin, avgLoss, profitFactor := decimal.Zero, decimal.Zero, decimal.Zero
	if winCount > 0 {
		avgWin = sumWins.Div(decimal.NewFromInt(int64(winCount)))
	}
	if lossCount > 0 {
		avgLoss = sumLosses.Div(decimal.NewFromInt(int64(lossCount)))
		profitFactor = sumWins.Div(sumLosses)
	}
	return avgWin, avgLoss, profitFactor
}

// calcMaxConsecutiveLosses expects closed in execution order.
func calcMaxConsecutiveLosses(closed []types.Trade) int {
	maxLossStreak := 0
	currentStreak := 0
	for _, tr := range closed {
		if tr.RealizedPnL.Sub(tr.Fee).IsNegative() {
			currentStreak++
			maxLossStreak = max(maxLossStreak, currentStreak)
		} else {
			currentStreak = 0
		}
	}
	return maxLossStreak
}

func calcCAGR(curve []equityPoint) decimal.Decimal {
	if len(curve) < 2 {
		return decimal.Zero
	}
	start, end := curve[0], curve[len(curve)-1]
	if !start.equity.IsPositive() {
		return decimal.Zero
	}

	// 365.25 days to account for leap years
	years := end.time.Sub(start.time).Hours() / (24.0 * 365.25)
	if years <= 0 {
		return decimal.Zero
	}

	ratio := end.equity.Div(start.equity)
	if !ratio.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0)
}

// calcSharpeRatio annualizes the Sharpe ratio of monthly excess returns.
// Fewer than two monthly returns yield zero.
func calcSharpeRatio(curve []equityPoint, annualRiskFree decimal.Decimal) decimal.Decimal {
	monthlyReturns := getMonthlyReturns(curve)
	if len(monthlyReturns) < 2 {
		return decimal.Zero
	}

	// rf_monthly = (1 + rf_annual)^(1/12) - 1
	rfMonthly := math.Pow(1.0+annualRiskFree.InexactFloat64(), 1.0/12.0) - 1.0

	excess := make([]float64, 0, len(monthlyReturns))
	var sum float64
	for _, r := range monthlyReturns {
		x := r.InexactFloat64() - rfMonthly
		excess = append(excess, x)
		sum += x
	}
	mean := sum / float64(len(excess))

	var varianceSum float64
	for _, x := range excess {
		diff := x - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(excess)-1))
	if std == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mean / std * math.Sqrt(12.0))
}

// getMonthlyReturns returns the returns between consecutive calendar
// month-end equities. curve must be in time order.
func getMonthlyReturns(curve []equityPoint) []decimal.Decimal {
	type monthKey struct {
		year  int
		month time.Month
	}

	var monthEnds []decimal.Decimal
	var lastKey monthKey
	for i, p := range curve {
		y, m, _ := p.time.Date()
		key := monthKey{year: y, month: m}
		if i > 0 && key == lastKey {
			monthEnds[len(monthEnds)-1] = p.equity
			continue
		}
		monthEnds = append(monthEnds, p.equity)
		lastKey = key
	}
	if len(monthEnds) < 2 {
		return nil
	}

	one := decimal.NewFromInt(1)
	returns := make([]decimal.Decimal, 0, len(monthEnds)-1)
	prev := monthEnds[0]
	for _, curr := range monthEnds[1:] {
		if prev.IsPositive() {
			returns = append(returns, curr.Div(prev).Sub(one))
		}
		prev = curr
	}
	return returns
}

func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "===== Backtest Summary =====")
	fmt.Fprintf(w, "Run ID:                %s\n", s.RunID)
	fmt.Fprintf(w, "Symbols:               %v\n", s.Symbols)
	fmt.Fprintf(w, "Steps:                 %d\n", s.Steps)
	if s.Steps > 0 {
		fmt.Fprintf(w, "Period:                %s -> %s\n",
			s.FirstTimestamp.Format(time.RFC3339), s.LastTimestamp.Format(time.RFC3339))
	}

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Initial Equity:        %s\n", s.InitialEquity.StringFixed(2))
	fmt.Fprintf(w, "Final Equity:          %s\n", s.FinalEquity.StringFixed(2))
	fmt.Fprintf(w, "Final Cash:            %s\n", s.FinalCash.StringFixed(2))
	fmt.Fprintf(w, "Net Profit:            %s (%s%%)\n", s.NetProfit.StringFixed(2), s.NetProfitPct.StringFixed(2))
	fmt.Fprintf(w, "Realized PnL:          %s\n", s.RealizedPnL.StringFixed(2))
	fmt.Fprintf(w, "CAGR:                  %s\n", s.CAGR.StringFixed(4))

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Closing Trades:        %d\n", s.ClosingTrades)
	fmt.Fprintf(w, "Avg Win:               %s\n", s.AvgWin.StringFixed(2))
	fmt.Fprintf(w, "Avg Loss:              %s\n", s.AvgLoss.StringFixed(2))
	fmt.Fprintf(w, "Profit Factor:         %s\n", s.ProfitFactor.StringFixed(2))
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", s.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Equity:            %s\n", s.MaxEquity.StringFixed(2))
	fmt.Fprintf(w, "Min Equity:            %s\n", s.MinEquity.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown:          %s\n", s.MaxDrawdown.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown %%:        %s\n", s.MaxDrawdownPercent.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown Duration: %v\n", s.MaxDrawdownDuration)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", s.SharpeRatio.StringFixed(4))

	fmt.Fprintln(w, "\n-- Orders --")
	fmt.Fprintf(w, "Executed:              %d\n", s.Executed)
	fmt.Fprintf(w, "Rejected:              %d\n", s.Rejected)
	for _, reason := range slices.Sorted(maps.Keys(s.RejectionsByReason)) {
		fmt.Fprintf(w, "  %-26s %d\n", reason, s.RejectionsByReason[reason])
	}
	for _, sym := range slices.Sorted(maps.Keys(s.OrdersBySymbol)) {
		bySide := s.OrdersBySymbol[sym]
		fmt.Fprintf(w, "  %-8s BUY=%d SELL=%d\n", sym, bySide[types.SideTypeBuy], bySide[types.SideTypeSell])
	}

	fmt.Fprintln(w, "\n-- Costs --")
	fmt.Fprintf(w, "Total Fees:            %s\n", s.TotalFees.StringFixed(2))
	for _, sym := range slices.Sorted(maps.Keys(s.FeesBySymbol)) {
		fmt.Fprintf(w, "  %-8s %s\n", sym, s.FeesBySymbol[sym].StringFixed(2))
	}

	fmt.Fprintln(w, "============================")
}
