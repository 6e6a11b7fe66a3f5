// Package risk 在下单前做准入检查。
// Gate 只读不写，也不与后续下单构成事务；并发正确性由
// trader 侧的品种级临界区保证。
package risk

import (
	"context"
	"fmt"
	"time"

	"kairos/internal/broker"
	"kairos/internal/config"
	"kairos/internal/logger"
	"kairos/internal/store"

	"github.com/shopspring/decimal"
)

// 权重检查的浮点容差。
const weightEpsilon = 1e-9

// 拒绝原因代码。
const (
	CodeDailyBuyLimit = "daily_buy_limit"
	CodePositionLimit = "position_limit"
	CodeWeightLimit   = "weight_limit"
	CodeSellableLimit = "sellable_limit"
)

// Rejection 说明被触发的具体限制。
type Rejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (r *Rejection) Error() string { return fmt.Sprintf("risk rejected (%s): %s", r.Code, r.Reason) }

// limits 为解析后的生效限额。
type limits struct {
	maxPositionShares int64
	maxWeightPct      float64
	maxDailyBuyAmount float64
}

// Gate 读取最新余额与生效风控行，评估一笔委托。
type Gate struct {
	store    *store.Store
	defaults config.RiskConfig
}

func NewGate(st *store.Store, defaults config.RiskConfig) *Gate {
	return &Gate{store: st, defaults: defaults}
}

// Evaluate 返回 nil 表示放行；*Rejection 表示拒绝；error 表示评估本身失败。
func (g *Gate) Evaluate(ctx context.Context, bal *broker.Balance, instrument string, side broker.Side, quantity int64) (*Rejection, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("side 必须是 BUY 或 SELL，got %q", side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity 必须大于 0，got %d", quantity)
	}
	lim, err := g.resolveLimits(ctx, instrument)
	if err != nil {
		return nil, err
	}
	holding := bal.Holding(instrument)

	if side == broker.SideSell {
		if quantity > holding.Sellable {
			return &Rejection{
				Code:   CodeSellableLimit,
				Reason: fmt.Sprintf("sell %d exceeds sellable %d", quantity, holding.Sellable),
			}, nil
		}
		return nil, nil
	}

	// 1. 当日买入限额（账户级，自当日零点起累计成功买单金额）。
	if lim.maxDailyBuyAmount > 0 {
		if rej, err := g.checkDailySpend(ctx, holding, quantity, lim.maxDailyBuyAmount); err != nil || rej != nil {
			return rej, err
		}
	}

	// 2. 持仓数量上限。
	if holding.Quantity+quantity > lim.maxPositionShares {
		return &Rejection{
			Code: CodePositionLimit,
			Reason: fmt.Sprintf("held %d + buy %d exceeds max position %d",
				holding.Quantity, quantity, lim.maxPositionShares),
		}, nil
	}

	// 3. 组合权重上限。无任何可用价格时跳过（记录 fail-open）。
	price := holding.EffectivePrice()
	if price <= 0 {
		logger.Warnf("[risk] %s 无可用价格，跳过权重检查", instrument)
		return nil, nil
	}
	// 买入用账户现金支付，组合总值不因买入而变化。
	projected := holding.EvalAmount + price*float64(quantity)
	total := bal.TotalValue()
	if total > 0 && projected/total > lim.maxWeightPct+weightEpsilon {
		return &Rejection{
			Code: CodeWeightLimit,
			Reason: fmt.Sprintf("projected weight %.4f exceeds max %.4f",
				projected/total, lim.maxWeightPct),
		}, nil
	}
	return nil, nil
}

func (g *Gate) checkDailySpend(ctx context.Context, holding broker.Holding, quantity int64, limit float64) (*Rejection, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	spent, err := g.store.BuyAmountSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("查询当日买入金额失败: %w", err)
	}

	// 无价格时估算金额为 0，等价于跳过本项。
	estimated := decimal.NewFromFloat(holding.EffectivePrice()).
		Mul(decimal.NewFromInt(quantity))
	total := decimal.NewFromFloat(spent).Add(estimated)
	budget := decimal.NewFromFloat(limit)
	if total.GreaterThan(budget) {
		remaining := budget.Sub(decimal.NewFromFloat(spent))
		return &Rejection{
			Code: CodeDailyBuyLimit,
			Reason: fmt.Sprintf("estimated %s exceeds remaining daily budget %s",
				estimated.StringFixed(0), remaining.StringFixed(0)),
		}, nil
	}
	return nil, nil
}

// resolveLimits 把生效风控行与进程默认值合并：
// 行中为 nil 的字段落回默认。
func (g *Gate) resolveLimits(ctx context.Context, instrument string) (limits, error) {
	lim := limits{
		maxPositionShares: g.defaults.MaxPositionShares,
		maxWeightPct:      g.defaults.MaxWeightPct,
		maxDailyBuyAmount: g.defaults.MaxDailyBuyAmount,
	}
	rs, err := g.store.ResolveRiskSetting(ctx, instrument)
	if err != nil {
		return lim, fmt.Errorf("解析风控配置失败: %w", err)
	}
	if rs == nil {
		return lim, nil
	}
	if rs.MaxPositionShares != nil {
		lim.maxPositionShares = *rs.MaxPositionShares
	}
	if rs.MaxWeightPct != nil {
		lim.maxWeightPct = *rs.MaxWeightPct
	}
	if rs.MaxDailyBuyAmount != nil {
		lim.maxDailyBuyAmount = *rs.MaxDailyBuyAmount
	}
	return lim, nil
}
