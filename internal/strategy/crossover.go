package strategy

import (
	"fmt"

	"kairos/internal/market"
	"kairos/internal/signal"

	"github.com/markcheno/go-talib"
)

// CrossoverDecider 为双均线两态策略（FLAT/LONG，不做空）。
// 金叉（上一根 short≤long 且本根 short>long）进场，
// 死叉（上一根 short≥long 且本根 short<long）离场，其余保持原状态。
// 均线优先取信号自带的 ma 值；没有时用收盘价滚动计算。
type CrossoverDecider struct {
	instrument string
	short      int
	long       int

	closes []float64
	inLong bool

	prevShort float64
	prevLong  float64
	hasPrev   bool
}

func NewCrossoverDecider(instrument string, short, long int) (*CrossoverDecider, error) {
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("crossover windows must satisfy 0 < short < long, got short=%d long=%d", short, long)
	}
	return &CrossoverDecider{instrument: instrument, short: short, long: long}, nil
}

func (d *CrossoverDecider) Decide(bar market.Bar, sig signal.Signal) (Position, error) {
	curShort, curLong, ok := d.currentMAs(bar, sig)
	if !ok {
		// 长窗口还没攒满，保持当前状态。
		return d.position(), nil
	}
	if d.hasPrev {
		switch {
		case !d.inLong && d.prevShort <= d.prevLong && curShort > curLong:
			d.inLong = true
		case d.inLong && d.prevShort >= d.prevLong && curShort < curLong:
			d.inLong = false
		}
	}
	d.prevShort, d.prevLong, d.hasPrev = curShort, curLong, true
	return d.position(), nil
}

func (d *CrossoverDecider) currentMAs(bar market.Bar, sig signal.Signal) (float64, float64, bool) {
	if sig.MA != nil {
		return sig.MA.Short, sig.MA.Long, true
	}
	d.closes = append(d.closes, bar.Close)
	if len(d.closes) < d.long {
		return 0, 0, false
	}
	shortMA := talib.Sma(d.closes, d.short)
	longMA := talib.Sma(d.closes, d.long)
	last := len(d.closes) - 1
	return shortMA[last], longMA[last], true
}

func (d *CrossoverDecider) position() Position {
	if d.inLong {
		return NewPosition(d.instrument, 1)
	}
	return NewPosition(d.instrument, 0)
}
