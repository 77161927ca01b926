package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"papertrade/internal/config"
	"papertrade/internal/engine"
	"papertrade/internal/repository"
	"papertrade/strategies/buyhold"
	"papertrade/strategies/crossover"
	"papertrade/strategies/donchian"
)

const defaultConfigPath = "backtest.toml"

func main() {
	path := defaultConfigPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.NewDatabase(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	feeds := make([]engine.DataFeed, 0, len(cfg.Backtest.Tickers))
	for _, ticker := range cfg.Backtest.Tickers {
		feeds = append(feeds, engine.NewDataFeed(ticker, cfg.Interval(), cfg.Backtest.Start, cfg.Backtest.End))
	}
	candles, err := engine.LoadFeeds(ctx, db, feeds)
	if err != nil {
		log.Fatal(err)
	}

	b := cfg.Broker
	broker, err := engine.NewBroker(
		engine.NewBrokerConfig(b.InitialCash, b.FeeRate, b.MarginRequirement, b.MaintenanceMargin),
		engine.WithSymbols(cfg.TradingSymbols()...),
		engine.WithBrokerLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	opts := []engine.Option{
		engine.WithMaxHistory(cfg.Backtest.MaxHistory),
		engine.WithLogger(logger),
	}
	if cfg.Backtest.Progress {
		opts = append(opts, engine.WithProgress(os.Stderr))
	}
	eng := engine.NewEngine(broker, newStrategy(cfg.Strategy), opts...)

	records, err := eng.Run(candles)
	if err != nil {
		log.Fatal(err)
	}

	summary := engine.Summarize(eng.RunID(), broker.Config().InitialCash, cfg.Report.RiskFreeRate, records)
	engine.PrintSummary(os.Stdout, summary)

	if cfg.Report.CSVPath != "" {
		if err := engine.WriteExecutionsCSVFile(cfg.Report.CSVPath, records); err != nil {
			log.Fatal(err)
		}
		logger.Info("executions written", "path", cfg.Report.CSVPath)
	}
}

func newStrategy(cfg config.StrategyConfig) engine.Strategy {
	switch strings.ToLower(cfg.Name) {
	case "crossover":
		x := cfg.Crossover
		return crossover.New(x.FastPeriod, x.SlowPeriod, x.Quantity)
	case "donchian":
		return donchian.New(cfg.Donchian.Period, cfg.Donchian.Allocation)
	default:
		return buyhold.New(cfg.BuyHold.Quantity)
	}
}
