package strategy

import (
	"testing"

	"kairos/internal/market"
	"kairos/internal/signal"

	"github.com/stretchr/testify/assert"
)

func maSignal(short, long float64) signal.Signal {
	return signal.Signal{TS: 1, MA: &signal.MAPair{Short: short, Long: long}}
}

func TestCrossoverDecider_WindowValidation(t *testing.T) {
	_, err := NewCrossoverDecider("005930", 20, 5)
	assert.Error(t, err)
	_, err = NewCrossoverDecider("005930", 0, 5)
	assert.Error(t, err)
	_, err = NewCrossoverDecider("005930", 5, 20)
	assert.NoError(t, err)
}

func TestCrossoverDecider_GoldenAndDeadCross(t *testing.T) {
	d, err := NewCrossoverDecider("005930", 2, 3)
	assert.NoError(t, err)

	// 短均线先在长均线下方，上穿后进场，下穿后离场。
	steps := []struct {
		short, long float64
		want        Side
	}{
		{short: 9, long: 10, want: SideFlat}, // 首个观测，只记录
		{short: 9.5, long: 10, want: SideFlat},
		{short: 11, long: 10, want: SideLong}, // 金叉
		{short: 12, long: 10, want: SideLong}, // 保持
		{short: 9, long: 10, want: SideFlat},  // 死叉
		{short: 8, long: 10, want: SideFlat},  // 保持空仓
	}
	for i, st := range steps {
		pos, err := d.Decide(market.Bar{TS: int64(i)}, maSignal(st.short, st.long))
		assert.NoError(t, err)
		assert.Equal(t, st.want, pos.Side, "step %d", i)
	}
}

func TestCrossoverDecider_SingleTransitionPerCrossing(t *testing.T) {
	d, err := NewCrossoverDecider("005930", 2, 3)
	assert.NoError(t, err)

	// 上穿后短均线持续抬升：只允许一次进场。
	values := [][2]float64{{9, 10}, {11, 10}, {12, 10}, {13, 10}, {14, 10}}
	entries := 0
	prev := SideFlat
	for i, v := range values {
		pos, err := d.Decide(market.Bar{TS: int64(i)}, maSignal(v[0], v[1]))
		assert.NoError(t, err)
		if prev == SideFlat && pos.Side == SideLong {
			entries++
		}
		prev = pos.Side
	}
	assert.Equal(t, 1, entries)
}

func TestCrossoverDecider_NeverExitsWithoutEntry(t *testing.T) {
	d, err := NewCrossoverDecider("005930", 2, 3)
	assert.NoError(t, err)

	// 一直在长均线下方：任何一步都不应持仓。
	for i := 0; i < 10; i++ {
		pos, err := d.Decide(market.Bar{TS: int64(i)}, maSignal(9-float64(i)*0.1, 10))
		assert.NoError(t, err)
		assert.Equal(t, SideFlat, pos.Side)
	}
}

func TestCrossoverDecider_DerivesFromCloses(t *testing.T) {
	d, err := NewCrossoverDecider("005930", 2, 3)
	assert.NoError(t, err)

	// 无 ma 负载时从收盘价滚动计算；长窗口攒满前保持 FLAT。
	closes := []float64{10, 10, 10, 10, 20, 30}
	var last Position
	for i, c := range closes {
		last, err = d.Decide(market.Bar{TS: int64(i), Close: c}, signal.Signal{TS: int64(i)})
		assert.NoError(t, err)
		if i < 2 {
			assert.Equal(t, SideFlat, last.Side, "warmup step %d", i)
		}
	}
	// 收盘价快速抬升后短均线上穿长均线
	assert.Equal(t, SideLong, last.Side)
}
