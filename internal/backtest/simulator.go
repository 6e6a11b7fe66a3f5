// Package backtest 把历史 (bar, signal) 序列回放给策略，构建模拟净值曲线。
// 回放路径不经过风控和券商，单次运行完全确定：相同输入必得相同输出。
package backtest

import (
	"context"
	"fmt"

	"kairos/internal/logger"
	"kairos/internal/market"
	"kairos/internal/perf"
	"kairos/internal/signal"
	"kairos/internal/strategy"

	"github.com/google/uuid"
)

// Step 为一个决策步：bar 与同一时间戳的外部信号。
type Step struct {
	Bar    market.Bar
	Signal signal.Signal
}

// EquityPoint 为净值曲线上的一个点。
type EquityPoint struct {
	TS     int64         `json:"ts"`
	Equity float64       `json:"equity"`
	State  strategy.Side `json:"state"`
}

// RunConfig 描述一次回放。
type RunConfig struct {
	Instrument    string
	InitialEquity float64
	Steps         []Step
	Decider       strategy.Decider
}

// Result 为一次回放的产物。
type Result struct {
	RunID       string            `json:"run_id"`
	Instrument  string            `json:"instrument"`
	Initial     float64           `json:"initial"`
	Curve       []EquityPoint     `json:"curve"`
	Metrics     perf.CurveMetrics `json:"metrics"`
	Trades      int               `json:"trades"`
	SkippedBars int               `json:"skipped_bars"`
}

// Simulator 对策略做单遍确定性回放。
type Simulator struct{}

func NewSimulator() *Simulator { return &Simulator{} }

// Run 逐步回放。第 t 步的决策作用于 close[t]→close[t+1] 的收益，
// 任一端收盘价缺失时该步跳过、净值不变。每步检查 ctx 以支持协作取消。
func (s *Simulator) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.InitialEquity <= 0 {
		return nil, fmt.Errorf("initial equity must be positive, got %v", cfg.InitialEquity)
	}
	if cfg.Decider == nil {
		return nil, fmt.Errorf("decider is required")
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Instrument: cfg.Instrument,
		Initial:    cfg.InitialEquity,
		Curve:      make([]EquityPoint, 0, len(cfg.Steps)),
	}
	equity := cfg.InitialEquity
	prevMultiplier := 0.0

	for i := 0; i+1 < len(cfg.Steps); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := cfg.Steps[i]
		pos, err := cfg.Decider.Decide(step.Bar, step.Signal)
		if err != nil {
			return nil, fmt.Errorf("decide at ts=%d: %w", step.Bar.TS, err)
		}

		if pos.Multiplier != prevMultiplier {
			res.Trades++
		}
		prevMultiplier = pos.Multiplier

		cur := step.Bar.Close
		next := cfg.Steps[i+1].Bar.Close
		if cur <= 0 || next <= 0 {
			res.SkippedBars++
		} else {
			equity *= 1 + pos.Multiplier*(next/cur-1)
		}
		res.Curve = append(res.Curve, EquityPoint{TS: cfg.Steps[i+1].Bar.TS, Equity: equity, State: pos.Side})
	}

	values := make([]float64, len(res.Curve))
	for i, p := range res.Curve {
		values[i] = p.Equity
	}
	res.Metrics = perf.MeasureCurve(cfg.InitialEquity, values)
	logger.Infof("[backtest] run %s: %d steps, %d trades, %d skipped, return=%.4f maxDD=%.4f sharpe=%.2f",
		res.RunID, len(res.Curve), res.Trades, res.SkippedBars,
		res.Metrics.TotalReturn, res.Metrics.MaxDrawdown, res.Metrics.Sharpe)
	return res, nil
}

// PairSteps 按精确时间戳把信号序列对齐到 bar 序列。
// 没有对应 bar 的信号被丢弃，不做插值。
func PairSteps(series *market.Series, sigs []signal.Signal) []Step {
	steps := make([]Step, 0, len(sigs))
	for _, sig := range sigs {
		b, ok := series.BarAt(sig.TS)
		if !ok {
			continue
		}
		steps = append(steps, Step{Bar: b, Signal: sig})
	}
	return steps
}
