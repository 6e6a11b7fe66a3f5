// kairos-backtest 从本地 K 线库与信号文件重放一段历史，
// 输出净值指标并生成 HTML 报告。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"kairos/internal/backtest"
	"kairos/internal/config"
	"kairos/internal/logger"
	"kairos/internal/market"
	"kairos/internal/signal"
	"kairos/internal/strategy"
	"kairos/internal/strategy/params"
)

func main() {
	var (
		cfgPath    = flag.String("config", envOr("KAIROS_CONFIG", "configs/config.yaml"), "配置文件路径")
		instrument = flag.String("instrument", "", "六位品种代码，如 005930")
		signalPath = flag.String("signals", "", "信号回放文件（JSON 数组）")
		barsPath   = flag.String("bars", "", "K 线 JSON 文件；为空时从 data root 读取")
		policy     = flag.String("policy", "classification", "classification | crossover | continuous")
		shortWin   = flag.Int("short", 5, "crossover 短均线窗口")
		longWin    = flag.Int("long", 20, "crossover 长均线窗口")
		maxPos     = flag.Float64("max-position", 1.0, "continuous 最大仓位")
		initial    = flag.Float64("initial", 1_000_000, "初始净值")
		start      = flag.Int64("start", 0, "起始时间戳（毫秒）")
		end        = flag.Int64("end", 1<<62, "结束时间戳（毫秒）")
	)
	flag.Parse()
	if *instrument == "" || *signalPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	ctx := context.Background()
	series, err := loadSeries(ctx, cfg, *instrument, *barsPath, *start, *end)
	if err != nil {
		log.Fatalf("加载 K 线失败: %v", err)
	}
	sigs, err := signal.LoadFile(*signalPath)
	if err != nil {
		log.Fatalf("加载信号失败: %v", err)
	}

	decider, err := buildDecider(cfg, *policy, *instrument, *shortWin, *longWin, *maxPos)
	if err != nil {
		log.Fatalf("构建策略失败: %v", err)
	}

	sim := backtest.NewSimulator()
	res, err := sim.Run(ctx, backtest.RunConfig{
		Instrument:    *instrument,
		InitialEquity: *initial,
		Steps:         backtest.PairSteps(series, sigs),
		Decider:       decider,
	})
	if err != nil {
		log.Fatalf("回测失败: %v", err)
	}

	out, _ := json.MarshalIndent(map[string]any{
		"run_id":  res.RunID,
		"metrics": res.Metrics,
		"trades":  res.Trades,
		"skipped": res.SkippedBars,
	}, "", "  ")
	fmt.Println(string(out))

	report, err := backtest.WriteEquityReport(cfg.Backtest.ReportDir, res)
	if err != nil {
		log.Fatalf("生成报告失败: %v", err)
	}
	fmt.Println("report:", report)
}

func loadSeries(ctx context.Context, cfg *config.Config, instrument, barsPath string, start, end int64) (*market.Series, error) {
	if barsPath != "" {
		raw, err := os.ReadFile(barsPath)
		if err != nil {
			return nil, err
		}
		var bars []market.Bar
		if err := json.Unmarshal(raw, &bars); err != nil {
			return nil, fmt.Errorf("解析 K 线文件失败: %w", err)
		}
		return market.NewSeries(bars), nil
	}
	bs, err := backtest.NewBarStore(cfg.Backtest.DataRoot)
	if err != nil {
		return nil, err
	}
	defer bs.Close()
	return bs.LoadSeries(ctx, instrument, start, end)
}

func buildDecider(cfg *config.Config, policy, instrument string, short, long int, maxPos float64) (strategy.Decider, error) {
	switch policy {
	case "classification":
		table := params.NewTable()
		if cfg.Strategy.ParamsPath != "" {
			if err := table.LoadFile(cfg.Strategy.ParamsPath); err != nil {
				logger.Warnf("策略参数加载失败，使用默认值: %v", err)
			}
		}
		return strategy.NewClassificationDecider(instrument, table), nil
	case "crossover":
		return strategy.NewCrossoverDecider(instrument, short, long)
	case "continuous":
		return strategy.NewContinuousDecider(instrument, maxPos)
	default:
		return nil, fmt.Errorf("未知策略 %q", policy)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
