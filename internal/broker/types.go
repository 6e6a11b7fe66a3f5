// Package broker 定义券商网关的抽象契约。
// 各券商的报文字段与交易代码互不兼容，这里只约定本服务消费的
// 最小类型集合，原始响应以 Raw 字段透传给审计层。
package broker

import "context"

// Side 为委托方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// OrderRequest 为一笔委托请求。PriceHint 为 0 时按市价委托。
type OrderRequest struct {
	Instrument string
	Side       Side
	Quantity   int64
	PriceHint  float64
}

// OrderResult 为一次到达券商的委托结果。
// Accepted=false 表示券商业务拒绝（非传输错误）。
type OrderResult struct {
	Accepted   bool
	ResultCode string
	Message    string
	OrderNo    string
	Raw        []byte
}

// Holding 为账户内单只持仓的快照。
type Holding struct {
	Instrument   string  `json:"instrument"`
	Name         string  `json:"name"`
	Quantity     int64   `json:"quantity"`
	Sellable     int64   `json:"sellable"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	EvalAmount   float64 `json:"eval_amount"`
	BuyAmount    float64 `json:"buy_amount"`
	PnL          float64 `json:"pnl"`
}

// EffectivePrice 取现价，行情缺失时退回持仓估值均价。
func (h Holding) EffectivePrice() float64 {
	if h.CurrentPrice > 0 {
		return h.CurrentPrice
	}
	if h.Quantity > 0 && h.EvalAmount > 0 {
		return h.EvalAmount / float64(h.Quantity)
	}
	return 0
}

// Summary 为账户层面的汇总字段。
type Summary struct {
	Cash float64 `json:"cash"`
}

// Balance 为一次余额查询的完整结果。
type Balance struct {
	Holdings []Holding `json:"holdings"`
	Summary  Summary   `json:"summary"`
	Raw      []byte    `json:"-"`
}

// Holding 按品种查找持仓，未持有时返回零值。
func (b *Balance) Holding(instrument string) Holding {
	for _, h := range b.Holdings {
		if h.Instrument == instrument {
			return h
		}
	}
	return Holding{Instrument: instrument}
}

// TotalEvalAmount 为全部持仓市值之和。
func (b *Balance) TotalEvalAmount() float64 {
	var sum float64
	for _, h := range b.Holdings {
		sum += h.EvalAmount
	}
	return sum
}

// TotalBuyAmount 为全部持仓买入金额之和。
func (b *Balance) TotalBuyAmount() float64 {
	var sum float64
	for _, h := range b.Holdings {
		sum += h.BuyAmount
	}
	return sum
}

// TotalPnL 为全部持仓浮动盈亏之和。
func (b *Balance) TotalPnL() float64 {
	var sum float64
	for _, h := range b.Holdings {
		sum += h.PnL
	}
	return sum
}

// TotalValue = 持仓市值 + 现金。
func (b *Balance) TotalValue() float64 {
	return b.TotalEvalAmount() + b.Summary.Cash
}

// Client 为券商网关。所有调用均阻塞并受 ctx 超时约束。
type Client interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	GetBalance(ctx context.Context) (*Balance, error)
}
