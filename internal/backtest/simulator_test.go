package backtest

import (
	"context"
	"testing"

	"kairos/internal/market"
	"kairos/internal/signal"
	"kairos/internal/strategy"

	"github.com/stretchr/testify/assert"
)

// alwaysLong 每一步都满仓做多。
type alwaysLong struct{}

func (alwaysLong) Decide(bar market.Bar, _ signal.Signal) (strategy.Position, error) {
	return strategy.NewPosition("TEST", 1), nil
}

func steps(closes ...float64) []Step {
	out := make([]Step, len(closes))
	for i, c := range closes {
		out[i] = Step{
			Bar:    market.Bar{TS: int64(i) * 86_400_000, Close: c},
			Signal: signal.Signal{TS: int64(i) * 86_400_000},
		}
	}
	return out
}

func TestSimulator_EquityRecurrence(t *testing.T) {
	sim := NewSimulator()
	res, err := sim.Run(context.Background(), RunConfig{
		Instrument:    "TEST",
		InitialEquity: 1000,
		Steps:         steps(100, 110, 99, 99),
		Decider:       alwaysLong{},
	})
	assert.NoError(t, err)
	assert.Len(t, res.Curve, 3)

	// equity(t) = equity(t-1) × (1 + r_t)
	assert.InDelta(t, 1000*1.10, res.Curve[0].Equity, 1e-9)
	assert.InDelta(t, 1000*1.10*(99.0/110.0), res.Curve[1].Equity, 1e-9)
	assert.InDelta(t, res.Curve[1].Equity, res.Curve[2].Equity, 1e-9)

	// r_t > -1 恒成立时净值保持为正
	for _, p := range res.Curve {
		assert.Greater(t, p.Equity, 0.0)
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	cfg := func() RunConfig {
		return RunConfig{
			Instrument:    "TEST",
			InitialEquity: 500,
			Steps:         steps(10, 12, 11, 14, 13),
			Decider:       alwaysLong{},
		}
	}
	sim := NewSimulator()
	a, err := sim.Run(context.Background(), cfg())
	assert.NoError(t, err)
	b, err := sim.Run(context.Background(), cfg())
	assert.NoError(t, err)

	assert.Equal(t, len(a.Curve), len(b.Curve))
	for i := range a.Curve {
		assert.Equal(t, a.Curve[i].TS, b.Curve[i].TS)
		assert.Equal(t, a.Curve[i].Equity, b.Curve[i].Equity)
		assert.Equal(t, a.Curve[i].State, b.Curve[i].State)
	}
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestSimulator_SkipsMissingCloses(t *testing.T) {
	sim := NewSimulator()
	res, err := sim.Run(context.Background(), RunConfig{
		Instrument:    "TEST",
		InitialEquity: 1000,
		Steps:         steps(100, 0, 120), // 中间一根缺收盘价
		Decider:       alwaysLong{},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, res.SkippedBars)
	// 两段转移都触及缺失价，净值全程不变
	for _, p := range res.Curve {
		assert.Equal(t, 1000.0, p.Equity)
	}
}

func TestSimulator_OneBarLag(t *testing.T) {
	// 只有第 0 步发出做多信号的策略：若无滞后约束，
	// 第 0 步收益会被计入；有滞后时收益来自 close[0]→close[1]。
	first := &onlyFirstLong{}
	sim := NewSimulator()
	res, err := sim.Run(context.Background(), RunConfig{
		Instrument:    "TEST",
		InitialEquity: 100,
		Steps:         steps(100, 150, 300),
		Decider:       first,
	})
	assert.NoError(t, err)
	// 第 0 步决策吃到 100→150，第 1 步已平仓、错过 150→300
	assert.InDelta(t, 150.0, res.Curve[0].Equity, 1e-9)
	assert.InDelta(t, 150.0, res.Curve[1].Equity, 1e-9)
}

type onlyFirstLong struct{ calls int }

func (d *onlyFirstLong) Decide(market.Bar, signal.Signal) (strategy.Position, error) {
	d.calls++
	if d.calls == 1 {
		return strategy.NewPosition("TEST", 1), nil
	}
	return strategy.NewPosition("TEST", 0), nil
}

func TestSimulator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := NewSimulator()
	_, err := sim.Run(ctx, RunConfig{
		Instrument:    "TEST",
		InitialEquity: 100,
		Steps:         steps(1, 2, 3),
		Decider:       alwaysLong{},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_Validation(t *testing.T) {
	sim := NewSimulator()
	_, err := sim.Run(context.Background(), RunConfig{InitialEquity: 0, Decider: alwaysLong{}})
	assert.Error(t, err)
	_, err = sim.Run(context.Background(), RunConfig{InitialEquity: 100})
	assert.Error(t, err)
}

func TestPairSteps_DropsUnmatchedSignals(t *testing.T) {
	series := market.NewSeries([]market.Bar{
		{TS: 1000, Close: 10},
		{TS: 2000, Close: 11},
	})
	sigs := []signal.Signal{{TS: 1000}, {TS: 1500}, {TS: 2000}}
	paired := PairSteps(series, sigs)
	assert.Len(t, paired, 2)
	assert.Equal(t, int64(1000), paired[0].Bar.TS)
	assert.Equal(t, int64(2000), paired[1].Bar.TS)
}
