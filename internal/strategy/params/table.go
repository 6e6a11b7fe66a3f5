// Package params 维护按品种查表的策略参数。
// 按品种硬编码分支是被明确废弃的做法：所有差异化参数
// 一律走查表，未命中时落到默认行。
package params

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Policy 为单个品种的分类策略参数。
type Policy struct {
	Margin     float64 `yaml:"margin"`
	AllowShort bool    `yaml:"allow_short"`
}

// DefaultPolicy 为未配置品种的默认行：2%p 边际、仅做多。
var DefaultPolicy = Policy{Margin: 0.02, AllowShort: false}

type fileLayout struct {
	Default     *Policy           `yaml:"default"`
	Instruments map[string]Policy `yaml:"instruments"`
}

// Table 为品种 → Policy 的并发安全查找表。
type Table struct {
	mu       sync.RWMutex
	fallback Policy
	rows     map[string]Policy
}

func NewTable() *Table {
	return &Table{fallback: DefaultPolicy, rows: map[string]Policy{}}
}

// Lookup 返回品种的策略参数，未配置时为默认行。
func (t *Table) Lookup(instrument string) Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.rows[instrument]; ok {
		return p
	}
	return t.fallback
}

// Set 写入或覆盖单个品种参数（主要供测试使用）。
func (t *Table) Set(instrument string, p Policy) {
	t.mu.Lock()
	t.rows[instrument] = p
	t.mu.Unlock()
}

// LoadFile 从 YAML 文件整体替换表内容。
func (t *Table) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy params failed: %w", err)
	}
	var layout fileLayout
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return fmt.Errorf("parse strategy params failed: %w", err)
	}
	fallback := DefaultPolicy
	if layout.Default != nil {
		fallback = *layout.Default
	}
	if err := validatePolicy("default", fallback); err != nil {
		return err
	}
	rows := make(map[string]Policy, len(layout.Instruments))
	for code, p := range layout.Instruments {
		if err := validatePolicy(code, p); err != nil {
			return err
		}
		rows[code] = p
	}
	t.mu.Lock()
	t.fallback = fallback
	t.rows = rows
	t.mu.Unlock()
	return nil
}

func validatePolicy(key string, p Policy) error {
	if p.Margin < 0 || p.Margin >= 1 {
		return fmt.Errorf("strategy params %s: margin must be in [0,1), got %v", key, p.Margin)
	}
	return nil
}
