package store

import (
	"time"

	"gorm.io/datatypes"
)

// OrderStatus 为委托审计行的终态。
// OK：券商接受；REJECTED：券商业务拒绝；ERROR：传输层失败。
type OrderStatus string

const (
	OrderStatusOK       OrderStatus = "OK"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusError    OrderStatus = "ERROR"
)

// AccountSnapshot 每次余额轮询追加一行，只写不改。
type AccountSnapshot struct {
	ID              int64          `gorm:"column:id;primaryKey" json:"id"`
	TS              time.Time      `gorm:"column:ts;index" json:"ts"`
	TotalValue      float64        `gorm:"column:total_value" json:"total_value"`
	Cash            float64        `gorm:"column:cash" json:"cash"`
	TotalBuyAmount  float64        `gorm:"column:total_buy_amount" json:"total_buy_amount"`
	TotalEvalAmount float64        `gorm:"column:total_eval_amount" json:"total_eval_amount"`
	TotalPnL        float64        `gorm:"column:total_pnl" json:"total_pnl"`
	Holdings        datatypes.JSON `gorm:"column:holdings" json:"holdings"`
	RawResponse     datatypes.JSON `gorm:"column:raw_response" json:"-"`
}

func (AccountSnapshot) TableName() string { return "account_snapshots" }

// TradeOrder 为委托审计行：每一次到达券商的下单尝试写一行，写后不改。
// 风控拦截的请求不会产生审计行。
type TradeOrder struct {
	ID          int64          `gorm:"column:id;primaryKey" json:"id"`
	TS          time.Time      `gorm:"column:ts;index" json:"ts"`
	Instrument  string         `gorm:"column:instrument;index" json:"instrument"`
	Side        string         `gorm:"column:side;index" json:"side"`
	Quantity    int64          `gorm:"column:quantity" json:"quantity"`
	Price       float64        `gorm:"column:price" json:"price"`
	Amount      float64        `gorm:"column:amount" json:"amount"`
	Status      OrderStatus    `gorm:"column:status;index" json:"status"`
	Message     string         `gorm:"column:message" json:"message"`
	RawResponse datatypes.JSON `gorm:"column:raw_response" json:"raw_response"`
}

func (TradeOrder) TableName() string { return "trade_orders" }

// RiskSettingKeyAll 为账户级默认行的哨兵键。
const RiskSettingKeyAll = "ALL"

// RiskSetting 按品种代码或哨兵 "ALL" 键控的风控参数。
// 品种行与 ALL 行同时激活时，品种行优先。
type RiskSetting struct {
	Key               string    `gorm:"column:key;primaryKey" json:"key"`
	MaxPositionShares *int64    `gorm:"column:max_position_shares" json:"max_position_shares,omitempty"`
	MaxWeightPct      *float64  `gorm:"column:max_weight_pct" json:"max_weight_pct,omitempty"`
	MaxDailyBuyAmount *float64  `gorm:"column:max_daily_buy_amount" json:"max_daily_buy_amount,omitempty"`
	Active            bool      `gorm:"column:active" json:"active"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (RiskSetting) TableName() string { return "risk_settings" }
