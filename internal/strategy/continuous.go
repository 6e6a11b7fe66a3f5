package strategy

import (
	"fmt"

	"kairos/internal/market"
	"kairos/internal/signal"
)

// ContinuousDecider 直接把连续动作标量映射为目标仓位，
// 仅做 [-maxPosition, maxPosition] 截断，不做阈值化。
type ContinuousDecider struct {
	instrument  string
	maxPosition float64
}

func NewContinuousDecider(instrument string, maxPosition float64) (*ContinuousDecider, error) {
	if maxPosition <= 0 || maxPosition > 1 {
		return nil, fmt.Errorf("max position must be in (0,1], got %v", maxPosition)
	}
	return &ContinuousDecider{instrument: instrument, maxPosition: maxPosition}, nil
}

func (d *ContinuousDecider) Decide(_ market.Bar, sig signal.Signal) (Position, error) {
	if sig.Action == nil {
		return Position{}, fmt.Errorf("continuous decider requires action signal, got none at ts=%d", sig.TS)
	}
	m := *sig.Action
	if m > d.maxPosition {
		m = d.maxPosition
	}
	if m < -d.maxPosition {
		m = -d.maxPosition
	}
	return NewPosition(d.instrument, m), nil
}
