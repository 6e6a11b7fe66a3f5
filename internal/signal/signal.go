// Package signal 定义外部模型产出的交易信号。
// 信号由外部进程（分类模型、均线计算或连续动作策略）生成，
// 本服务只消费，不负责产生。
package signal

import "context"

// Probs 为三分类概率（下跌/持平/上涨）。
type Probs struct {
	Down float64 `json:"p_down"`
	Hold float64 `json:"p_hold"`
	Up   float64 `json:"p_up"`
}

// MAPair 为外部预先算好的短/长均线值。
type MAPair struct {
	Short float64 `json:"ma_short"`
	Long  float64 `json:"ma_long"`
}

// Signal 在每个决策步携带三种负载之一：
// 分类概率、均线状态或连续动作标量。
type Signal struct {
	TS     int64    `json:"ts"`
	Probs  *Probs   `json:"probs,omitempty"`
	MA     *MAPair  `json:"ma,omitempty"`
	Action *float64 `json:"action,omitempty"`
}

// Provider 由外部信号源实现（模型推理进程、回放文件等）。
// ok=false 表示序列耗尽。
type Provider interface {
	Next(ctx context.Context) (sig Signal, ok bool, err error)
}
