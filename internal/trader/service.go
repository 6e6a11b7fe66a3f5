// Package trader 是实盘路径的编排层：
// 余额读取、风控评估、下单与审计写入在品种级互斥下顺序完成，
// 避免并发请求在检查与下单之间穿插导致限额被突破。
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kairos/internal/broker"
	"kairos/internal/logger"
	"kairos/internal/perf"
	"kairos/internal/risk"
	"kairos/internal/scheduler"
	"kairos/internal/store"
)

// SubmitResult 为一次委托请求的处理结果。
type SubmitResult struct {
	Accepted  bool              `json:"accepted"`
	Rejection *risk.Rejection   `json:"rejection,omitempty"`
	Order     *store.TradeOrder `json:"order,omitempty"`
}

// Service 聚合券商客户端、风控与存储。
type Service struct {
	broker broker.Client
	gate   *risk.Gate
	store  *store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(bk broker.Client, gate *risk.Gate, st *store.Store) *Service {
	return &Service{broker: bk, gate: gate, store: st, locks: make(map[string]*sync.Mutex)}
}

// instrumentLock 返回品种专属互斥锁，首次使用时创建。
func (s *Service) instrumentLock(instrument string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[instrument]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[instrument] = l
	return l
}

// SubmitOrder 处理一笔委托。{读余额, 风控, 下单, 写审计} 是
// 同一品种下的单一临界区。风控拒绝直接返回，不产生审计行；
// 到达券商的每一次尝试（成功/业务拒绝/传输失败）各写一行。
func (s *Service) SubmitOrder(ctx context.Context, instrument string, side broker.Side, quantity int64) (*SubmitResult, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("side 必须是 BUY 或 SELL，got %q", side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity 必须大于 0，got %d", quantity)
	}

	lock := s.instrumentLock(instrument)
	lock.Lock()
	defer lock.Unlock()

	bal, err := s.broker.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	rej, err := s.gate.Evaluate(ctx, bal, instrument, side, quantity)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		logger.Infof("[trader] %s %s x%d 被风控拒绝: %s", instrument, side, quantity, rej.Reason)
		return &SubmitResult{Accepted: false, Rejection: rej}, nil
	}

	holding := bal.Holding(instrument)
	res, err := s.broker.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
	})

	// 市价单无委托价，审计金额按现价估算，现价缺失时退回持仓估值均价。
	price := holding.EffectivePrice()
	order := &store.TradeOrder{
		TS:         time.Now(),
		Instrument: instrument,
		Side:       string(side),
		Quantity:   quantity,
		Price:      price,
		Amount:     price * float64(quantity),
	}
	switch {
	case err != nil:
		order.Status = store.OrderStatusError
		order.Message = err.Error()
	case !res.Accepted:
		order.Status = store.OrderStatusRejected
		order.Message = res.Message
		order.RawResponse = res.Raw
	default:
		order.Status = store.OrderStatusOK
		order.Message = res.Message
		order.RawResponse = res.Raw
	}
	if insErr := s.store.InsertOrder(ctx, order); insErr != nil {
		logger.Errorf("[trader] 写入委托审计失败: %v", insErr)
	}

	if err != nil {
		return nil, err
	}
	return &SubmitResult{Accepted: res.Accepted, Order: order}, nil
}

// PollBalance 拉取余额并追加一条账户快照。
func (s *Service) PollBalance(ctx context.Context) (*store.AccountSnapshot, *broker.Balance, error) {
	bal, err := s.broker.GetBalance(ctx)
	if err != nil {
		return nil, nil, err
	}
	holdingsJSON, _ := json.Marshal(bal.Holdings)
	snap := &store.AccountSnapshot{
		TS:              time.Now(),
		TotalValue:      bal.TotalValue(),
		Cash:            bal.Summary.Cash,
		TotalBuyAmount:  bal.TotalBuyAmount(),
		TotalEvalAmount: bal.TotalEvalAmount(),
		TotalPnL:        bal.TotalPnL(),
		Holdings:        holdingsJSON,
		RawResponse:     bal.Raw,
	}
	if err := s.store.InsertSnapshot(ctx, snap); err != nil {
		return nil, nil, fmt.Errorf("写入快照失败: %w", err)
	}
	return snap, bal, nil
}

// PerformanceReport 聚合最近 days 天的绩效。
type PerformanceReport struct {
	Summary   perf.Summary            `json:"summary"`
	Snapshots []store.AccountSnapshot `json:"snapshots"`
}

// Performance 统计 [now-days, now] 窗口的快照绩效。
func (s *Service) Performance(ctx context.Context, days int) (*PerformanceReport, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	snaps, err := s.store.SnapshotsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	points := make([]perf.SnapshotPoint, len(snaps))
	for i, sn := range snaps {
		points[i] = perf.SnapshotPoint{TS: sn.TS, TotalValue: sn.TotalValue, TotalPnL: sn.TotalPnL}
	}
	return &PerformanceReport{Summary: perf.Summarize(points), Snapshots: snaps}, nil
}

// RunPoller 按 interval 周期拉取余额写快照，阻塞至 ctx 取消。
func (s *Service) RunPoller(ctx context.Context, interval time.Duration) {
	scheduler.RunEvery(ctx, "balance-poller", interval, func(ctx context.Context) error {
		snap, _, err := s.PollBalance(ctx)
		if err != nil {
			return err
		}
		logger.Debugf("[trader] snapshot: total=%.0f cash=%.0f pnl=%.0f",
			snap.TotalValue, snap.Cash, snap.TotalPnL)
		return nil
	})
}
