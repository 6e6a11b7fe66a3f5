package market

import "sort"

// Bar 为单根日/分钟级 K 线，时间戳为毫秒。
type Bar struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Series 按时间升序保存一段 Bar 序列，并支持精确时间戳查价。
// 缺失的时间戳由调用方跳过，不做插值。
type Series struct {
	bars  []Bar
	index map[int64]int
}

func NewSeries(bars []Bar) *Series {
	sorted := append([]Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TS < sorted[j].TS })
	idx := make(map[int64]int, len(sorted))
	for i, b := range sorted {
		idx[b.TS] = i
	}
	return &Series{bars: sorted, index: idx}
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

func (s *Series) Bars() []Bar {
	if s == nil {
		return nil
	}
	return s.bars
}

// BarAt 返回给定时间戳的 Bar；时间戳不存在时 ok=false。
func (s *Series) BarAt(ts int64) (Bar, bool) {
	if s == nil {
		return Bar{}, false
	}
	i, ok := s.index[ts]
	if !ok {
		return Bar{}, false
	}
	return s.bars[i], true
}

// CloseAt 返回给定时间戳的收盘价；时间戳不存在时 ok=false。
func (s *Series) CloseAt(ts int64) (float64, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[ts]
	if !ok {
		return 0, false
	}
	return s.bars[i].Close, true
}

// At 返回第 i 根 Bar。
func (s *Series) At(i int) (Bar, bool) {
	if s == nil || i < 0 || i >= len(s.bars) {
		return Bar{}, false
	}
	return s.bars[i], true
}
