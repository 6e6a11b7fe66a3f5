// Package store 持久化账户快照、委托审计与风控配置。
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewFromDB(db)
}

// NewFromDB 基于已有连接构建（测试用内存库走这里）。
func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&AccountSnapshot{}, &TradeOrder{}, &RiskSetting{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---------------------------------------------------------------- 快照

func (s *Store) InsertSnapshot(ctx context.Context, snap *AccountSnapshot) error {
	if snap.TS.IsZero() {
		snap.TS = time.Now()
	}
	return s.db.WithContext(ctx).Create(snap).Error
}

// SnapshotsSince 返回 since 之后的快照，按时间升序。
func (s *Store) SnapshotsSince(ctx context.Context, since time.Time) ([]AccountSnapshot, error) {
	var out []AccountSnapshot
	err := s.db.WithContext(ctx).
		Where("ts >= ?", since).
		Order("ts ASC").
		Find(&out).Error
	return out, err
}

// ---------------------------------------------------------------- 委托审计

func (s *Store) InsertOrder(ctx context.Context, o *TradeOrder) error {
	if o.TS.IsZero() {
		o.TS = time.Now()
	}
	return s.db.WithContext(ctx).Create(o).Error
}

// ListOrders 按时间倒序分页返回审计行；instrument 为空时不过滤。
func (s *Store) ListOrders(ctx context.Context, instrument string, limit int) ([]TradeOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("ts DESC").Limit(limit)
	if instrument != "" {
		q = q.Where("instrument = ?", instrument)
	}
	var out []TradeOrder
	err := q.Find(&out).Error
	return out, err
}

// BuyAmountSince 汇总 since 之后全账户成功买入金额。
// 日内限额按账户维度累计，不分品种。
func (s *Store) BuyAmountSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&TradeOrder{}).
		Where("ts >= ? AND side = ? AND status = ?", since, "BUY", OrderStatusOK).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ---------------------------------------------------------------- 风控配置

// ResolveRiskSetting 解析某品种的生效风控行：
// 先找激活的品种行，没有再退回激活的 "ALL" 行，都没有返回 nil。
func (s *Store) ResolveRiskSetting(ctx context.Context, instrument string) (*RiskSetting, error) {
	for _, key := range []string{instrument, RiskSettingKeyAll} {
		if key == "" {
			continue
		}
		var rs RiskSetting
		err := s.db.WithContext(ctx).
			Where("key = ? AND active = ?", key, true).
			First(&rs).Error
		if err == nil {
			return &rs, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// RiskSettingPatch 为部分更新载荷，nil 字段保持原值。
type RiskSettingPatch struct {
	MaxPositionShares *int64   `json:"max_position_shares"`
	MaxWeightPct      *float64 `json:"max_weight_pct"`
	MaxDailyBuyAmount *float64 `json:"max_daily_buy_amount"`
	Active            *bool    `json:"active"`
}

// UpsertRiskSetting 按键写入风控行：不存在则创建，存在则只覆盖
// patch 中给出的字段。
func (s *Store) UpsertRiskSetting(ctx context.Context, key string, patch RiskSettingPatch) (*RiskSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("risk setting key 不能为空")
	}
	if patch.MaxWeightPct != nil && (*patch.MaxWeightPct < 0 || *patch.MaxWeightPct > 1) {
		return nil, fmt.Errorf("max_weight_pct 必须在 [0,1]，got %v", *patch.MaxWeightPct)
	}

	var rs RiskSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rs = RiskSetting{Key: key, Active: true}
	} else if err != nil {
		return nil, err
	}

	if patch.MaxPositionShares != nil {
		rs.MaxPositionShares = patch.MaxPositionShares
	}
	if patch.MaxWeightPct != nil {
		rs.MaxWeightPct = patch.MaxWeightPct
	}
	if patch.MaxDailyBuyAmount != nil {
		rs.MaxDailyBuyAmount = patch.MaxDailyBuyAmount
	}
	if patch.Active != nil {
		rs.Active = *patch.Active
	}
	rs.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(&rs).Error; err != nil {
		return nil, err
	}
	return &rs, nil
}

// GetRiskSetting 按键读取单行，不存在时返回 nil。
func (s *Store) GetRiskSetting(ctx context.Context, key string) (*RiskSetting, error) {
	var rs RiskSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *Store) ListRiskSettings(ctx context.Context) ([]RiskSetting, error) {
	var out []RiskSetting
	err := s.db.WithContext(ctx).Order("key ASC").Find(&out).Error
	return out, err
}
