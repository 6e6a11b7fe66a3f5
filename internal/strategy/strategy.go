// Package strategy 将外部信号映射为目标仓位。
//
// 所有策略遵守同一滞后约束：用 t 日收盘可得的数据做出的决策，
// 只作用于 close[t] → close[t+1] 的收益区间，绝不回看。
package strategy

import (
	"kairos/internal/market"
	"kairos/internal/signal"
)

// Side 为仓位方向。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
	SideFlat  Side = "FLAT"
)

// Position 为策略输出的目标仓位，Multiplier ∈ [-1,1]。
type Position struct {
	Instrument string
	Side       Side
	Multiplier float64
}

// NewPosition 根据乘数推导方向。
func NewPosition(instrument string, multiplier float64) Position {
	side := SideFlat
	switch {
	case multiplier > 0:
		side = SideLong
	case multiplier < 0:
		side = SideShort
	}
	return Position{Instrument: instrument, Side: side, Multiplier: multiplier}
}

// Decider 消费第 t 步的 (bar, signal)，返回目标仓位。
// 实现持有自身状态（如均线窗口），不要求并发安全。
type Decider interface {
	Decide(bar market.Bar, sig signal.Signal) (Position, error)
}
