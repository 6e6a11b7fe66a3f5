package strategy

import (
	"fmt"

	"kairos/internal/market"
	"kairos/internal/signal"
	"kairos/internal/strategy/params"
)

// ClassificationDecider 按三分类概率差做阈值判定。
// diff_up = p_up - p_down：严格大于 margin 做多，严格小于
// -margin 时做空（仅当允许做空，否则平仓），其余一律持平。
// 恰好等于阈值按持平处理。
type ClassificationDecider struct {
	instrument string
	table      *params.Table
}

func NewClassificationDecider(instrument string, table *params.Table) *ClassificationDecider {
	if table == nil {
		table = params.NewTable()
	}
	return &ClassificationDecider{instrument: instrument, table: table}
}

func (d *ClassificationDecider) Decide(_ market.Bar, sig signal.Signal) (Position, error) {
	if sig.Probs == nil {
		return Position{}, fmt.Errorf("classification decider requires probability signal, got none at ts=%d", sig.TS)
	}
	policy := d.table.Lookup(d.instrument)
	diffUp := sig.Probs.Up - sig.Probs.Down
	switch {
	case diffUp > policy.Margin:
		return NewPosition(d.instrument, 1), nil
	case -diffUp > policy.Margin:
		if policy.AllowShort {
			return NewPosition(d.instrument, -1), nil
		}
		return NewPosition(d.instrument, 0), nil
	default:
		return NewPosition(d.instrument, 0), nil
	}
}
