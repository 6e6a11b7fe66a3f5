// Package perf 计算账户快照序列与回测净值曲线的绩效指标。
package perf

import (
	"math"
	"time"
)

// tradingDaysPerYear 按日频年化 Sharpe。
const tradingDaysPerYear = 252

// SnapshotPoint 是绩效统计消费的最小快照视图。
type SnapshotPoint struct {
	TS         time.Time
	TotalValue float64
	TotalPnL   float64
}

// Summary 为一段快照窗口的汇总指标。
type Summary struct {
	StartValue     float64 `json:"start_value"`
	EndValue       float64 `json:"end_value"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	PnLSum         float64 `json:"pnl_sum"`
	Points         int     `json:"points"`
}

// Summarize 对时间升序的快照窗口做汇总。
// 起始值为 0 时收益率记 0；回撤取窗口内相对运行峰值的最大跌幅。
// PnLSum 为各次独立采样的浮动盈亏之和，是近似值而非已实现盈亏。
func Summarize(points []SnapshotPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	s := Summary{
		StartValue: points[0].TotalValue,
		EndValue:   points[len(points)-1].TotalValue,
		Points:     len(points),
	}
	if s.StartValue != 0 {
		s.TotalReturnPct = (s.EndValue - s.StartValue) / s.StartValue * 100
	}
	peak := points[0].TotalValue
	for _, p := range points {
		s.PnLSum += p.TotalPnL
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak > 0 {
			dd := (peak - p.TotalValue) / peak * 100
			if dd > s.MaxDrawdownPct {
				s.MaxDrawdownPct = dd
			}
		}
	}
	return s
}

// CurveMetrics 为一条净值曲线的指标。
type CurveMetrics struct {
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Sharpe      float64 `json:"sharpe"`
	Steps       int     `json:"steps"`
}

// MeasureCurve 计算净值曲线的收益、回撤与年化 Sharpe。
// initial 为第 0 步之前的初始净值；单步收益 = Δequity / 前一净值。
// MaxDrawdown 取 (equity-runmax)/runmax 的最小值（≤0）；
// 收益标准差为 0 时 Sharpe 记 0。
func MeasureCurve(initial float64, equity []float64) CurveMetrics {
	m := CurveMetrics{Steps: len(equity)}
	if len(equity) == 0 || initial <= 0 {
		return m
	}
	m.TotalReturn = equity[len(equity)-1]/initial - 1

	returns := make([]float64, len(equity))
	prev := initial
	runMax := initial
	for i, e := range equity {
		returns[i] = (e - prev) / prev
		prev = e
		if e > runMax {
			runMax = e
		}
		dd := (e - runMax) / runMax
		if dd < m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std > 0 {
		m.Sharpe = mean / std * math.Sqrt(tradingDaysPerYear)
	}
	return m
}
