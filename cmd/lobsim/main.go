package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/0x5487/lob-sim"
	"github.com/0x5487/lob-sim/backtest"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration file")
	curve := flag.Bool("curve", false, "include the full equity curve in the output")
	flag.Parse()

	if err := run(*configPath, *curve); err != nil {
		fmt.Fprintln(os.Stderr, "lobsim:", err)
		os.Exit(1)
	}
}

func run(configPath string, includeCurve bool) error {
	cfg, err := backtest.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	lob.SetLogger(log)
	backtest.SetLogger(log)

	strategy, err := buildStrategy(cfg.Strategy.Name)
	if err != nil {
		return err
	}

	source, err := backtest.NewCSVDataSource(cfg.Data.Path)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine()
	engine.SetDataSource(source)
	engine.SetInitialCapital(decimal.NewFromFloat(cfg.Portfolio.InitialCapital))
	engine.SetCommissionRate(decimal.NewFromFloat(cfg.Portfolio.CommissionRate))
	engine.SetSignalInterval(cfg.Signals.Interval)
	engine.AddStrategy(strategy, cfg.Strategy.Params)

	result, err := engine.Run()
	if err != nil {
		return err
	}
	if !includeCurve {
		result.EquityCurve = nil
	}

	perf := engine.PerfStats()
	log.Info("run complete",
		"run_id", engine.RunID(),
		"strategy", strategy.Name(),
		"events", perf.EventsProcessed,
		"avg_strategy_latency_ns", perf.AverageStrategyLatency())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func buildStrategy(name string) (backtest.Strategy, error) {
	switch name {
	case "market_maker":
		return backtest.NewMarketMakerStrategy(), nil
	case "momentum":
		return backtest.NewMomentumStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// newLogger builds a JSON logger writing to stderr and, when a log file
// is configured, to a size-rotated file as well.
func newLogger(cfg *backtest.Config) *slog.Logger {
	var writer io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		writer = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
}
